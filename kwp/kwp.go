// Package kwp implements the KWP2000 (ISO 14230) diagnostic protocol as a
// protocol.Encoder, parallel to the uds package and built on the same
// ISO-TP transport.
package kwp

import (
	"context"

	"ecudump/logging"
	"ecudump/protocol"
	"ecudump/transport"
)

const (
	PositiveResponseByte byte = 0xC1
	NegativeResponseByte byte = 0xBF
)

// Protocol is a protocol.Encoder backed by a single transport.Transport.
//
// KWP positive responses carry a single fixed marker byte (PositiveResponseByte)
// rather than UDS's SID+0x40 offset, so a positive response does not echo
// which request it answers; exchange threads the originating SID through so
// protocol.Response.SID is still populated on the way back. Note that
// ServiceStartRoutineByLocalIdentifier (0xC1) is numerically identical to
// PositiveResponseByte: the two never collide in practice because a
// request's SID is always the request's first byte and a response's marker
// is always the response's first byte — the parser only ever looks at
// PositiveResponseByte/NegativeResponseByte on bytes it knows came from a
// response frame.
type Protocol struct {
	t   transport.Transport
	log *logging.Logger
}

func New(t transport.Transport, log *logging.Logger) *Protocol {
	return &Protocol{t: t, log: log}
}

func (p *Protocol) Name() protocol.Name { return protocol.KWP }

func (p *Protocol) exchange(ctx context.Context, addr uint16, reqSID byte, req []byte) (*protocol.Response, error) {
	reqID := addr - transport.RequestResponseOffset
	raw, err := transport.SendAndRecv(ctx, p.t, reqID, addr, req, transport.DefaultRecvTimeout)
	if err != nil {
		return nil, err
	}
	resp := parseResponse(reqSID, raw)
	p.logResponse(addr, resp)
	return resp, nil
}

func (p *Protocol) logResponse(addr uint16, resp *protocol.Response) {
	if p.log == nil {
		return
	}
	switch {
	case resp.None:
		p.log.Debugf("kwp 0x%03X: no reply", addr)
	case resp.Positive:
		p.log.Debugf("kwp 0x%03X: positive %s", addr, serviceLabel(resp.SID))
	default:
		p.log.Debugf("kwp 0x%03X: negative %s (%s)", addr, serviceLabel(resp.SID), resp.NRCDescription)
	}
}

func parseResponse(reqSID byte, raw []byte) *protocol.Response {
	if len(raw) == 0 {
		return &protocol.Response{None: true}
	}
	switch raw[0] {
	case NegativeResponseByte:
		if len(raw) < 3 {
			return &protocol.Response{NRCDescription: "malformed negative response"}
		}
		nrc := raw[2]
		return &protocol.Response{
			SID:            raw[1],
			NRC:            nrc,
			NRCDescription: nrcLabel(nrc),
		}
	case PositiveResponseByte:
		return &protocol.Response{Positive: true, SID: reqSID, Data: raw[1:]}
	default:
		return &protocol.Response{NRCDescription: "unrecognised response marker"}
	}
}

// Probe issues StartCommunication, KWP's session-establishment request.
func (p *Protocol) Probe(ctx context.Context, addr uint16) (*protocol.Response, error) {
	return p.exchange(ctx, addr, ServiceStartCommunication, []byte{ServiceStartCommunication})
}

func (p *Protocol) SecurityAccess(ctx context.Context, addr uint16, subfunction byte, data []byte) (*protocol.Response, error) {
	req := make([]byte, 0, 2+len(data))
	req = append(req, ServiceSecurityAccess, subfunction)
	req = append(req, data...)
	return p.exchange(ctx, addr, ServiceSecurityAccess, req)
}

// ReadDataByIdentifier maps onto KWP's ReadDataByCommonIdentifier, the
// closest equivalent to UDS's 16-bit-identifier read.
func (p *Protocol) ReadDataByIdentifier(ctx context.Context, addr uint16, id uint16) (*protocol.Response, error) {
	req := []byte{ServiceReadDataByCommonIdentifier, byte(id >> 8), byte(id)}
	return p.exchange(ctx, addr, ServiceReadDataByCommonIdentifier, req)
}

func (p *Protocol) ReadMemoryByAddress(ctx context.Context, addr uint16, memAddr uint32, size uint32) (*protocol.Response, error) {
	req := make([]byte, 0, 10)
	req = append(req, ServiceReadMemoryByAddress)
	req = append(req, protocol.EncodeAddrOrSize(memAddr)...)
	req = append(req, protocol.EncodeAddrOrSize(size)...)
	return p.exchange(ctx, addr, ServiceReadMemoryByAddress, req)
}

func (p *Protocol) WriteMemoryByAddress(ctx context.Context, addr uint16, memAddr uint32, data []byte) (*protocol.Response, error) {
	req := make([]byte, 0, 10+len(data))
	req = append(req, ServiceWriteMemoryByAddress)
	req = append(req, protocol.EncodeAddrOrSize(memAddr)...)
	req = append(req, protocol.EncodeAddrOrSize(uint32(len(data)))...)
	req = append(req, data...)
	return p.exchange(ctx, addr, ServiceWriteMemoryByAddress, req)
}

// RoutineControl subfunction values, shared numerically with UDS's
// RoutineControl so callers behind protocol.Encoder don't need to branch
// by protocol.
const (
	SubfunctionStartRoutine          byte = 0x01
	SubfunctionStopRoutine           byte = 0x02
	SubfunctionRequestRoutineResults byte = 0x03
)

// RoutineControl starts, stops, or requests the result of the routine
// named by routineID, via whichever by-local-identifier service
// subfunction selects. routineID is truncated to the low byte, since KWP's
// "local identifier" routines are addressed by a single byte rather than
// UDS's 16-bit routine id.
func (p *Protocol) RoutineControl(ctx context.Context, addr uint16, subfunction byte, routineID uint16, data []byte) (*protocol.Response, error) {
	var sid byte
	switch subfunction {
	case SubfunctionStopRoutine:
		sid = ServiceStopRoutineByLocalIdentifier
	case SubfunctionRequestRoutineResults:
		sid = ServiceRequestRoutineResultsByLocalIdentifier
	default:
		sid = ServiceStartRoutineByLocalIdentifier
	}
	req := make([]byte, 0, 2+len(data))
	req = append(req, sid, byte(routineID))
	req = append(req, data...)
	return p.exchange(ctx, addr, sid, req)
}

// TesterPresent keeps an active session alive.
func (p *Protocol) TesterPresent(ctx context.Context, addr uint16) error {
	_, err := p.exchange(ctx, addr, ServiceTesterPresent, []byte{ServiceTesterPresent})
	return err
}
