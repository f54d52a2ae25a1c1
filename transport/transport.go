// Package transport implements the CAN transport component: frame
// send/receive over whichever backend opened successfully, plus the
// ISO-TP segmentation/reassembly shared by the UDS and KWP encoders.
//
// Three backends are tried in order at Open time: SocketCAN via
// brutella/can, a raw AF_CAN socket via go-daq/canbus, and an ELM327
// serial tunnel. The first that opens without error is used; see
// native_socketcan.go, native_daq.go and serial_tunnel.go.
package transport

import (
	"context"
	"fmt"
	"time"

	"ecudump/canbus"
	"ecudump/config"
	"ecudump/logging"
)

// DefaultRecvTimeout is the timeout higher-level callers should use for a
// single-frame request/response exchange.
const DefaultRecvTimeout = 2 * time.Second

// RequestResponseOffset is the standard diagnostic CAN id mapping: a
// request to ECU response id R is sent on R-0x08, and its response
// arrives on R itself. The source this module is grounded on conflates
// the two; this module does not.
const RequestResponseOffset uint16 = 0x08

// Transport is the interface every backend implements. Send and Subscribe
// operate on raw 8-byte CAN frames; ISO-TP segmentation and reassembly
// live in isotp.go, behind SendAndRecv.
type Transport interface {
	// Send transmits a single CAN frame with a standard 11-bit id. Every
	// backend ignores the extended flag.
	Send(ctx context.Context, id uint16, data []byte, extended bool) error

	// Subscribe returns a channel of every frame received from here on.
	// Callers must Unsubscribe when done.
	Subscribe() chan canbus.Frame
	Unsubscribe(ch chan canbus.Frame)

	// Close releases the underlying adapter handle.
	Close() error

	// Name identifies the backend for logging ("socketcan", "go-daq",
	// "serial").
	Name() string
}

// Open tries each native backend in turn, then falls back to the serial
// ELM327 tunnel. cfg.AdapterPort, if set, is used for the serial fallback;
// cfg.BusInterface names the interface the native backends bind.
// cfg.BusBitrate is not applied by any backend.
func Open(ctx context.Context, cfg *config.Config, log *logging.Logger) (Transport, error) {
	if t, err := openSocketCAN(cfg.BusInterface); err == nil {
		log.Infof("transport: opened SocketCAN interface %s", cfg.BusInterface)
		return t, nil
	} else {
		log.Debugf("transport: SocketCAN open failed: %v", err)
	}

	if t, err := openDAQCAN(cfg.BusInterface); err == nil {
		log.Infof("transport: opened go-daq/canbus interface %s", cfg.BusInterface)
		return t, nil
	} else {
		log.Debugf("transport: go-daq/canbus open failed: %v", err)
	}

	if cfg.AdapterPort == "" {
		return nil, fmt.Errorf("transport: no native CAN interface available and no serial adapter port configured")
	}

	t, err := openSerialTunnel(cfg.AdapterPort, log)
	if err != nil {
		return nil, fmt.Errorf("transport: all backends failed, last error (serial %s): %w", cfg.AdapterPort, err)
	}
	log.Infof("transport: opened ELM327 serial tunnel on %s", cfg.AdapterPort)
	return t, nil
}

// SendAndRecv sends data as a (possibly multi-frame) ISO-TP message on
// reqID and waits up to timeout for the full reassembled response arriving
// on respID. It is the single request/response primitive the UDS and KWP
// encoders are built on.
func SendAndRecv(ctx context.Context, t Transport, reqID, respID uint16, data []byte, timeout time.Duration) ([]byte, error) {
	if err := sendISOTP(ctx, t, reqID, data); err != nil {
		return nil, err
	}
	return recvISOTP(ctx, t, respID, timeout)
}
