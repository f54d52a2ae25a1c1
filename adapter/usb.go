package adapter

import (
	"strconv"

	"github.com/google/gousb"
)

// CrossReferenceUSB walks every USB device visible to libusb and, for each
// candidate whose VendorID matches a device's vendor id, fills in
// USBBus/USBAddress. Absence of a usable libusb context (headless host, or
// a platform where OpenDevices simply fails) is not an error: candidates
// are left exactly as Scan produced them, classification by serial
// descriptor alone remains sufficient.
func CrossReferenceUSB(candidates []Candidate) []Candidate {
	ctx := gousb.NewContext()
	defer ctx.Close()

	devices, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return true
	})
	if err != nil {
		return candidates
	}
	defer func() {
		for _, dev := range devices {
			dev.Close()
		}
	}()

	for i := range candidates {
		vendorID, err := strconv.ParseUint(candidates[i].VendorID, 16, 16)
		if err != nil {
			continue
		}
		for _, dev := range devices {
			if uint16(vendorID) == uint16(dev.Desc.Vendor) {
				candidates[i].USBBus = dev.Desc.Bus
				candidates[i].USBAddress = dev.Desc.Address
				break
			}
		}
	}
	return candidates
}
