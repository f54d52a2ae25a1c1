// Package protocol defines the response shape and the Encoder contract
// shared by the UDS and KWP protocol packages, so that security access,
// discovery and the memory-read engine can be written once against an
// interface rather than switched by a protocol-name string at every call
// site (see the "closed variants" design note).
package protocol

import "context"

// Name tags which diagnostic protocol produced a Response or handled an
// Encoder call.
type Name string

const (
	UDS Name = "UDS"
	KWP Name = "KWP"
	CAN Name = "CAN"
)

// Response is the tagged union every service call returns: exactly one of
// Positive or a non-empty NRCDescription is meaningful, or neither if None
// is true (the request timed out).
type Response struct {
	None bool

	Positive bool
	SID      byte
	Data     []byte

	NRC            byte
	NRCDescription string
}

// Encoder is implemented by both uds.Protocol and kwp.Protocol. Security
// access, discovery and the memory-read engine depend only on this
// interface, never on the concrete protocol package, so adding a third
// protocol never touches those components.
type Encoder interface {
	Name() Name

	// Probe issues whatever request this protocol uses to announce an ECU
	// is listening at addr (DiagnosticSessionControl for UDS,
	// StartCommunication for KWP).
	Probe(ctx context.Context, addr uint16) (*Response, error)

	SecurityAccess(ctx context.Context, addr uint16, subfunction byte, data []byte) (*Response, error)
	ReadDataByIdentifier(ctx context.Context, addr uint16, id uint16) (*Response, error)
	ReadMemoryByAddress(ctx context.Context, addr uint16, memAddr uint32, size uint32) (*Response, error)
	WriteMemoryByAddress(ctx context.Context, addr uint16, memAddr uint32, data []byte) (*Response, error)

	// RoutineControl starts, stops, or requests the result of the routine
	// named by routineID (subfunction 0x01 start, 0x02 stop, 0x03 result).
	RoutineControl(ctx context.Context, addr uint16, subfunction byte, routineID uint16, data []byte) (*Response, error)
}
