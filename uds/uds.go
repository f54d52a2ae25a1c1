// Package uds implements the ISO 14229 (UDS) diagnostic protocol as a
// protocol.Encoder, built on top of the generic ISO-TP transport.
package uds

import (
	"context"
	"sync"

	"ecudump/logging"
	"ecudump/protocol"
	"ecudump/transport"
)

const (
	NegativeResponseByte            byte = 0x7F
	PositiveResponseServiceIdOffset byte = 0x40
)

// Protocol is a protocol.Encoder backed by a single transport.Transport.
// Every exported method issues one request and waits for the matching
// response (or timeout) on the paired id, per transport.RequestResponseOffset.
type Protocol struct {
	t   transport.Transport
	log *logging.Logger

	// mu serialises exchanges, so a TesterPresent sent from another
	// goroutine never overlaps a request still waiting for its response.
	mu sync.Mutex
}

func New(t transport.Transport, log *logging.Logger) *Protocol {
	return &Protocol{t: t, log: log}
}

func (p *Protocol) Name() protocol.Name { return protocol.UDS }

// exchange sends req to addr's request id and parses whatever arrives (or
// doesn't) on addr itself into a protocol.Response.
func (p *Protocol) exchange(ctx context.Context, addr uint16, req []byte) (*protocol.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	reqID := addr - transport.RequestResponseOffset
	raw, err := transport.SendAndRecv(ctx, p.t, reqID, addr, req, transport.DefaultRecvTimeout)
	if err != nil {
		return nil, err
	}
	resp := parseResponse(raw)
	p.logResponse(addr, resp)
	return resp, nil
}

func (p *Protocol) logResponse(addr uint16, resp *protocol.Response) {
	if p.log == nil {
		return
	}
	switch {
	case resp.None:
		p.log.Debugf("uds 0x%03X: no reply", addr)
	case resp.Positive:
		p.log.Debugf("uds 0x%03X: positive %s", addr, serviceLabel(resp.SID))
	default:
		p.log.Debugf("uds 0x%03X: negative %s (%s)", addr, serviceLabel(resp.SID), resp.NRCDescription)
	}
}

func parseResponse(raw []byte) *protocol.Response {
	if len(raw) == 0 {
		return &protocol.Response{None: true}
	}
	if raw[0] == NegativeResponseByte {
		if len(raw) < 3 {
			return &protocol.Response{NRCDescription: "malformed negative response"}
		}
		nrc := raw[2]
		return &protocol.Response{
			SID:            raw[1],
			NRC:            nrc,
			NRCDescription: nrcLabel(nrc),
		}
	}
	return &protocol.Response{
		Positive: true,
		SID:      raw[0] - PositiveResponseServiceIdOffset,
		Data:     raw[1:],
	}
}

// Probe requests the default diagnostic session, the UDS equivalent of
// "is anything listening at addr".
func (p *Protocol) Probe(ctx context.Context, addr uint16) (*protocol.Response, error) {
	return p.exchange(ctx, addr, []byte{ServiceDiagnosticSessionControl, SubfunctionDefaultSession})
}

// SecurityAccess issues a SecurityAccess request with the given subfunction
// (odd levels request a seed, even levels send a key) and payload.
func (p *Protocol) SecurityAccess(ctx context.Context, addr uint16, subfunction byte, data []byte) (*protocol.Response, error) {
	req := make([]byte, 0, 2+len(data))
	req = append(req, ServiceSecurityAccess, subfunction)
	req = append(req, data...)
	return p.exchange(ctx, addr, req)
}

func (p *Protocol) ReadDataByIdentifier(ctx context.Context, addr uint16, id uint16) (*protocol.Response, error) {
	req := []byte{ServiceReadDataByIdentifier, byte(id >> 8), byte(id)}
	return p.exchange(ctx, addr, req)
}

func (p *Protocol) ReadMemoryByAddress(ctx context.Context, addr uint16, memAddr uint32, size uint32) (*protocol.Response, error) {
	req := make([]byte, 0, 10)
	req = append(req, ServiceReadMemoryByAddress)
	req = append(req, protocol.EncodeAddrOrSize(memAddr)...)
	req = append(req, protocol.EncodeAddrOrSize(size)...)
	return p.exchange(ctx, addr, req)
}

func (p *Protocol) WriteMemoryByAddress(ctx context.Context, addr uint16, memAddr uint32, data []byte) (*protocol.Response, error) {
	req := make([]byte, 0, 10+len(data))
	req = append(req, ServiceWriteMemoryByAddress)
	req = append(req, protocol.EncodeAddrOrSize(memAddr)...)
	req = append(req, protocol.EncodeAddrOrSize(uint32(len(data)))...)
	req = append(req, data...)
	return p.exchange(ctx, addr, req)
}

// RoutineControl starts, stops, or requests the result of the routine
// named by routineID. subfunction selects which per SubfunctionStartRoutine
// / SubfunctionStopRoutine / SubfunctionRequestRoutineResults; data carries
// any routine-specific control parameters.
func (p *Protocol) RoutineControl(ctx context.Context, addr uint16, subfunction byte, routineID uint16, data []byte) (*protocol.Response, error) {
	req := make([]byte, 0, 4+len(data))
	req = append(req, ServiceRoutineControl, subfunction, byte(routineID>>8), byte(routineID))
	req = append(req, data...)
	return p.exchange(ctx, addr, req)
}

// TesterPresent keeps an active diagnostic session alive. Callers are
// expected to invoke this periodically (see the keepalive component);
// this method is not part of protocol.Encoder since KWP's equivalent has a
// different wire shape.
func (p *Protocol) TesterPresent(ctx context.Context, addr uint16) error {
	_, err := p.exchange(ctx, addr, []byte{ServiceTesterPresent, 0x00})
	return err
}
