// Package adapter implements the adapter abstraction (component A):
// enumerating serial ports, heuristically classifying which ones look like
// an OBD-II adapter, and confirming a candidate by probing it.
package adapter

import (
	"strings"

	"go.bug.st/serial/enumerator"

	"ecudump/transport"
)

// keywords is matched, case-insensitively, against a port's description or
// manufacturer string.
var keywords = []string{
	"elm327", "obd", "obd2", "diagnostic", "scanner",
	"bluetooth", "wifi", "usb", "serial",
}

// knownVendorIDs maps a USB vendor id (lowercase hex, no prefix) to the
// chip/board it's commonly found on in ELM327-class adapters.
var knownVendorIDs = map[string]string{
	"0403": "FTDI",
	"067b": "Prolific",
	"10c4": "Silicon Labs",
	"1a86": "QinHeng Electronics",
	"2341": "Arduino",
	"04d8": "Microchip",
}

// Candidate is a serial port that looks like it might be an OBD-II adapter.
type Candidate struct {
	Port         string
	Description  string
	Manufacturer string
	VendorID     string
	ProductID    string
	SerialNumber string

	// USBBus/USBAddress are populated only when a libusb cross-reference
	// (see usb.go) matched this port's vendor id.
	USBBus     int
	USBAddress int

	Connected bool
}

// Scan enumerates every serial port on the host and returns those that
// look like an OBD-II adapter by description/manufacturer keyword or known
// vendor id. Classification is heuristic and intentionally inclusive;
// Probe is what actually confirms a candidate.
func Scan() ([]Candidate, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}

	var candidates []Candidate
	for _, port := range ports {
		if !looksLikeAdapter(port) {
			continue
		}
		candidates = append(candidates, Candidate{
			Port:         port.Name,
			Description:  port.Product,
			VendorID:     port.VID,
			ProductID:    port.PID,
			SerialNumber: port.SerialNumber,
		})
	}
	return CrossReferenceUSB(candidates), nil
}

// looksLikeAdapter checks the port's description against keywords (the
// go.bug.st/serial enumerator surfaces only a Product string, not a
// separate manufacturer field, so description doubles for both) and falls
// back to a known vendor id.
func looksLikeAdapter(port *enumerator.PortDetails) bool {
	description := strings.ToLower(port.Product)
	for _, keyword := range keywords {
		if strings.Contains(description, keyword) {
			return true
		}
	}
	if _, known := knownVendorIDs[strings.ToLower(port.VID)]; known {
		return true
	}
	return false
}

// Probe opens candidate's port briefly and confirms it's a live ELM327
// adapter via transport.ProbeSerialAdapter, setting Connected on success.
func Probe(c *Candidate) error {
	ok, err := transport.ProbeSerialAdapter(c.Port)
	if err != nil {
		return err
	}
	c.Connected = ok
	return nil
}
