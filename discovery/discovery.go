// Package discovery implements the ECU discovery sweep (component F):
// probing every standard diagnostic response address with UDS, then KWP,
// then a raw CAN heartbeat, and recording the first protocol that answers.
package discovery

import (
	"context"
	"fmt"

	"ecudump/kwp"
	"ecudump/logging"
	"ecudump/protocol"
	"ecudump/transport"
	"ecudump/uds"
)

const (
	// FirstAddress and LastAddress bound the standard 11-bit diagnostic
	// response range swept by Sweep.
	FirstAddress uint16 = 0x7E0
	LastAddress  uint16 = 0x7EF

	didVIN          uint16 = 0xF190
	didManufacturer uint16 = 0xF187
)

// ECU describes one discovered diagnostic endpoint. The Encoder field is
// nil for protocol == protocol.CAN, since raw-CAN targets have no
// request/response encoder of their own.
type ECU struct {
	ID       string
	Protocol protocol.Name
	Address  uint16
	Encoder  protocol.Encoder

	VIN          string
	Manufacturer string
	Model        string
	Version      string
}

// Sweep probes every address in [FirstAddress, LastAddress] with UDS, then
// KWP, then a raw CAN heartbeat, recording the first protocol that answers
// at each address. A single address contributes at most one ECU.
func Sweep(ctx context.Context, t transport.Transport, log *logging.Logger) ([]ECU, error) {
	udsEnc := uds.New(t, log)
	kwpEnc := kwp.New(t, log)

	var found []ECU
	for addr := FirstAddress; addr <= LastAddress; addr++ {
		if ecu, ok := probeAddress(ctx, t, udsEnc, kwpEnc, addr); ok {
			identify(ctx, &ecu)
			found = append(found, ecu)
		}
	}
	return found, nil
}

func probeAddress(ctx context.Context, t transport.Transport, udsEnc *uds.Protocol, kwpEnc *kwp.Protocol, addr uint16) (ECU, bool) {
	if resp, err := udsEnc.Probe(ctx, addr); err == nil && responds(resp) {
		return ECU{ID: fmt.Sprintf("UDS_0x%X", addr), Protocol: protocol.UDS, Address: addr, Encoder: udsEnc}, true
	}
	if resp, err := kwpEnc.Probe(ctx, addr); err == nil && responds(resp) {
		return ECU{ID: fmt.Sprintf("KWP_0x%X", addr), Protocol: protocol.KWP, Address: addr, Encoder: kwpEnc}, true
	}
	if ok := probeRawCAN(ctx, t, addr); ok {
		return ECU{ID: fmt.Sprintf("CAN_0x%X", addr), Protocol: protocol.CAN, Address: addr}, true
	}
	return ECU{}, false
}

// responds implements the corrected discovery rule: any non-timeout reply
// — positive or negative — is evidence of a live ECU. Only None (the
// request timed out) counts as absence.
func responds(resp *protocol.Response) bool {
	return resp != nil && !resp.None
}

func probeRawCAN(ctx context.Context, t transport.Transport, addr uint16) bool {
	reqID := addr - transport.RequestResponseOffset
	raw, err := transport.SendAndRecv(ctx, t, reqID, addr, []byte{0x01, 0x00}, transport.DefaultRecvTimeout)
	return err == nil && len(raw) > 0
}

// identify populates VIN/manufacturer on UDS-speaking ECUs. Failures here
// are non-fatal: the fields are simply left empty.
func identify(ctx context.Context, ecu *ECU) {
	if ecu.Protocol != protocol.UDS || ecu.Encoder == nil {
		return
	}
	if resp, err := ecu.Encoder.ReadDataByIdentifier(ctx, ecu.Address, didVIN); err == nil && resp.Positive {
		ecu.VIN = string(resp.Data)
	}
	if resp, err := ecu.Encoder.ReadDataByIdentifier(ctx, ecu.Address, didManufacturer); err == nil && resp.Positive {
		ecu.Manufacturer = string(resp.Data)
	}
}
