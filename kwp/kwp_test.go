package kwp

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecudump/canbus"
	"ecudump/protocol"
)

// fakeTransport answers every request with a fixed KWP positive response,
// so Protocol methods can be exercised without real CAN hardware.
type fakeTransport struct {
	mu   sync.Mutex
	subs map[chan canbus.Frame]struct{}
	sent []canbus.Frame
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{subs: make(map[chan canbus.Frame]struct{})}
}

func (f *fakeTransport) Send(_ context.Context, id uint16, data []byte, _ bool) error {
	f.mu.Lock()
	f.sent = append(f.sent, canbus.NewFrame(id, data))
	f.mu.Unlock()

	go func() {
		time.Sleep(2 * time.Millisecond)
		f.deliver(canbus.NewFrame(id+0x08, []byte{0x01, PositiveResponseByte, 0x00}))
	}()
	return nil
}

func (f *fakeTransport) deliver(frame canbus.Frame) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs {
		select {
		case ch <- frame:
		default:
		}
	}
}

func (f *fakeTransport) Subscribe() chan canbus.Frame {
	ch := make(chan canbus.Frame, 16)
	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()
	return ch
}

func (f *fakeTransport) Unsubscribe(ch chan canbus.Frame) {
	f.mu.Lock()
	delete(f.subs, ch)
	f.mu.Unlock()
}

func (f *fakeTransport) Close() error { return nil }
func (f *fakeTransport) Name() string { return "fake" }

func TestParseResponsePositiveEchoesRequestSID(t *testing.T) {
	resp := parseResponse(ServiceReadDataByCommonIdentifier, []byte{PositiveResponseByte, 0xF1, 0x90})

	assert.True(t, resp.Positive)
	assert.Equal(t, ServiceReadDataByCommonIdentifier, resp.SID)
	assert.Equal(t, []byte{0xF1, 0x90}, resp.Data)
}

func TestParseResponseNegative(t *testing.T) {
	resp := parseResponse(ServiceSecurityAccess, []byte{NegativeResponseByte, ServiceSecurityAccess, 0x35})

	assert.False(t, resp.Positive)
	assert.Equal(t, ServiceSecurityAccess, resp.SID)
	assert.Equal(t, byte(0x35), resp.NRC)
}

func TestParseResponseNone(t *testing.T) {
	resp := parseResponse(ServiceSecurityAccess, nil)
	assert.True(t, resp.None)
}

// TestStartRoutineByLocalIdentifierDoesNotCollideWithPositiveMarker confirms
// the byte-position disambiguation documented in kwp.go: 0xC1 means
// "service request" as req[0], and "positive response" as raw[0] of a
// response frame, and parseResponse only ever inspects the latter.
func TestStartRoutineByLocalIdentifierDoesNotCollideWithPositiveMarker(t *testing.T) {
	assert.Equal(t, ServiceStartRoutineByLocalIdentifier, PositiveResponseByte)

	resp := parseResponse(ServiceStartRoutineByLocalIdentifier, []byte{PositiveResponseByte, 0x02})
	assert.True(t, resp.Positive)
	assert.Equal(t, ServiceStartRoutineByLocalIdentifier, resp.SID)
}

func TestParseResponseUnrecognisedMarker(t *testing.T) {
	resp := parseResponse(ServiceSecurityAccess, []byte{0x01})
	assert.False(t, resp.Positive)
	assert.False(t, resp.None)
	assert.Equal(t, "unrecognised response marker", resp.NRCDescription)
}

func TestRoutineControlDispatchesServiceBySubfunction(t *testing.T) {
	cases := []struct {
		name        string
		subfunction byte
		wantSID     byte
	}{
		{"start", SubfunctionStartRoutine, ServiceStartRoutineByLocalIdentifier},
		{"stop", SubfunctionStopRoutine, ServiceStopRoutineByLocalIdentifier},
		{"result", SubfunctionRequestRoutineResults, ServiceRequestRoutineResultsByLocalIdentifier},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ft := newFakeTransport()
			p := New(ft, nil)

			resp, err := p.RoutineControl(context.Background(), 0x7E0, tc.subfunction, 0x1234, nil)
			require.NoError(t, err)
			assert.True(t, resp.Positive)

			require.Len(t, ft.sent, 1)
			req := ft.sent[0].Payload()[1:] // drop the ISO-TP PCI byte
			assert.Equal(t, []byte{tc.wantSID, 0x34}, req) // routineID truncated to its low byte
		})
	}
}

var _ protocol.Encoder = (*Protocol)(nil)
