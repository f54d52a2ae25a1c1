package memoryread

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecudump/protocol"
)

// fakeEncoder serves ReadMemoryByAddress from an in-memory byte image and
// always grants security access, so Read can be exercised without a real
// transport or protocol stack.
type fakeEncoder struct {
	mu    sync.Mutex
	image []byte
	calls int
	fail  func(call int) *protocol.Response
}

func (f *fakeEncoder) Name() protocol.Name { return protocol.CAN }
func (f *fakeEncoder) Probe(context.Context, uint16) (*protocol.Response, error) {
	return &protocol.Response{Positive: true}, nil
}
func (f *fakeEncoder) SecurityAccess(context.Context, uint16, byte, []byte) (*protocol.Response, error) {
	return &protocol.Response{Positive: true}, nil
}
func (f *fakeEncoder) ReadDataByIdentifier(context.Context, uint16, uint16) (*protocol.Response, error) {
	return &protocol.Response{Positive: true}, nil
}
func (f *fakeEncoder) ReadMemoryByAddress(_ context.Context, _ uint16, memAddr uint32, size uint32) (*protocol.Response, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()

	if f.fail != nil {
		if resp := f.fail(call); resp != nil {
			return resp, nil
		}
	}

	end := memAddr + size
	if int(end) > len(f.image) {
		end = uint32(len(f.image))
	}
	if int(memAddr) > len(f.image) {
		return &protocol.Response{NRCDescription: "out of range"}, nil
	}
	return &protocol.Response{Positive: true, Data: f.image[memAddr:end]}, nil
}
func (f *fakeEncoder) WriteMemoryByAddress(context.Context, uint16, uint32, []byte) (*protocol.Response, error) {
	return &protocol.Response{Positive: true}, nil
}
func (f *fakeEncoder) RoutineControl(context.Context, uint16, byte, uint16, []byte) (*protocol.Response, error) {
	return &protocol.Response{Positive: true}, nil
}

func newImage(n int) []byte {
	img := make([]byte, n)
	for i := range img {
		img[i] = byte(i)
	}
	return img
}

func TestReadAccumulatesFullRange(t *testing.T) {
	enc := &fakeEncoder{image: newImage(100)}
	e := New(enc, nil)

	err := e.Read(context.Background(), 0x7E0, 0, 100, 16, "default")
	require.NoError(t, err)

	assert.Equal(t, StatusComplete, e.Progress().Status)
	assert.Equal(t, uint32(100), e.Progress().BytesRead)
	assert.Equal(t, enc.image, e.Buffer())
}

func TestReadAdvancesByActualBytesReturned(t *testing.T) {
	enc := &fakeEncoder{
		image: newImage(30),
		fail: func(call int) *protocol.Response {
			if call == 1 {
				return &protocol.Response{Positive: true, Data: newImage(30)[0:5]} // short block
			}
			return nil
		},
	}
	e := New(enc, nil)

	err := e.Read(context.Background(), 0x7E0, 0, 30, 16, "default")
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, e.Progress().Status)
	assert.Equal(t, uint32(30), e.Progress().BytesRead)
}

func TestReadStopsOnNegativeResponse(t *testing.T) {
	enc := &fakeEncoder{
		image: newImage(100),
		fail: func(call int) *protocol.Response {
			if call == 2 {
				return &protocol.Response{NRCDescription: "conditions not correct"}
			}
			return nil
		},
	}
	e := New(enc, nil)

	err := e.Read(context.Background(), 0x7E0, 0, 100, 16, "default")
	require.NoError(t, err)
	assert.Equal(t, StatusError, e.Progress().Status)
	assert.Equal(t, "conditions not correct", e.Progress().Error)
	assert.Less(t, e.Progress().BytesRead, uint32(100))
}

func TestReadRespectsContextCancellation(t *testing.T) {
	enc := &fakeEncoder{image: newImage(1000)}
	e := New(enc, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := e.Read(ctx, 0x7E0, 0, 1000, 16, "default")
	require.NoError(t, err)
	assert.Equal(t, StatusError, e.Progress().Status)
	assert.Equal(t, "cancelled", e.Progress().Error)
}

func TestReadRejectsEndBeforeStart(t *testing.T) {
	enc := &fakeEncoder{image: newImage(100)}
	e := New(enc, nil)

	err := e.Read(context.Background(), 0x7E0, 50, 10, 16, "default")
	assert.Error(t, err)
	assert.Equal(t, StatusError, e.Progress().Status)
	assert.Equal(t, uint32(0), e.Progress().BytesRead)
	assert.Equal(t, uint32(0), e.Progress().TotalBytes)
}

func TestReadDefaultsBlockSize(t *testing.T) {
	enc := &fakeEncoder{image: newImage(10)}
	e := New(enc, nil)

	err := e.Read(context.Background(), 0x7E0, 0, 10, 0, "default")
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, e.Progress().Status)
}

func TestProgressIsIdleBeforeRead(t *testing.T) {
	e := New(&fakeEncoder{}, nil)
	assert.Equal(t, StatusIdle, e.Progress().Status)
}
