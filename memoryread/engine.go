// Package memoryread implements the chunked memory-read engine
// (component G): it walks an address range on a selected ECU, accumulating
// a BIN buffer and a progress record that the facade exposes to callers.
package memoryread

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ecudump/logging"
	"ecudump/protocol"
	"ecudump/security"
)

const interBlockPause = 10 * time.Millisecond

// DefaultBlockSize is used when a caller passes 0.
const DefaultBlockSize = 256

// Engine drives one read session against a single protocol.Encoder. It is
// not safe for concurrent Read calls; Progress may be called from any
// goroutine at any time.
type Engine struct {
	enc protocol.Encoder
	log *logging.Logger
	sec *security.Access

	mu       sync.RWMutex
	progress Progress
	buffer   []byte
}

func New(enc protocol.Encoder, log *logging.Logger) *Engine {
	return &Engine{enc: enc, log: log, sec: security.NewAccess(), progress: Progress{Status: StatusIdle}}
}

// Progress returns a copy of the current progress record.
func (e *Engine) Progress() Progress {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.progress
}

// Buffer returns the bytes accumulated so far (or, on success, the full
// read). Truncated to BytesRead if the read ended in error.
func (e *Engine) Buffer() []byte {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]byte, len(e.buffer))
	copy(out, e.buffer)
	return out
}

func (e *Engine) setProgress(p Progress) {
	e.mu.Lock()
	e.progress = p
	e.mu.Unlock()
}

// Read walks [start, end) on addr in blockSize chunks (0 means
// DefaultBlockSize), performing security access first unless the protocol
// is raw CAN. It returns nil once status reaches complete; a failed read
// is reported through Progress, not a returned error, except for the two
// preconditions: an end before start, and security access itself.
func (e *Engine) Read(ctx context.Context, addr uint16, start, end uint32, blockSize uint32, algorithm string) error {
	if blockSize == 0 {
		blockSize = DefaultBlockSize
	}
	if end < start {
		err := fmt.Errorf("memoryread: end 0x%X is before start 0x%X", end, start)
		e.setProgress(Progress{
			BytesRead:      0,
			TotalBytes:     0,
			CurrentAddress: start,
			Status:         StatusError,
			Error:          err.Error(),
		})
		return err
	}

	e.buffer = nil
	e.setProgress(Progress{
		BytesRead:      0,
		TotalBytes:     end - start,
		CurrentAddress: start,
		Status:         StatusReading,
	})

	if e.enc.Name() != protocol.CAN {
		if _, err := e.sec.PerformAccess(ctx, e.enc, addr, algorithm, e.log); err != nil {
			e.setProgress(Progress{
				BytesRead:      0,
				TotalBytes:     end - start,
				CurrentAddress: start,
				Status:         StatusError,
				Error:          err.Error(),
			})
			return err
		}
	}

	current := start
	var buffer []byte
	for current < end {
		chunk := blockSize
		if remaining := end - current; remaining < chunk {
			chunk = remaining
		}

		resp, err := e.enc.ReadMemoryByAddress(ctx, addr, current, chunk)
		if err != nil {
			e.fail(buffer, current, end-start, err.Error())
			return nil
		}
		if resp.None {
			e.fail(buffer, current, end-start, "no reply")
			return nil
		}
		if !resp.Positive {
			e.fail(buffer, current, end-start, resp.NRCDescription)
			return nil
		}

		buffer = append(buffer, resp.Data...)
		current += uint32(len(resp.Data))

		e.mu.Lock()
		e.buffer = buffer
		e.progress = Progress{
			BytesRead:      uint32(len(buffer)),
			TotalBytes:     end - start,
			CurrentAddress: current,
			Status:         StatusReading,
		}
		e.mu.Unlock()

		select {
		case <-ctx.Done():
			e.fail(buffer, current, end-start, "cancelled")
			return nil
		case <-time.After(interBlockPause):
		}
	}

	e.mu.Lock()
	e.buffer = buffer
	e.progress = Progress{
		BytesRead:      uint32(len(buffer)),
		TotalBytes:     end - start,
		CurrentAddress: current,
		Status:         StatusComplete,
	}
	e.mu.Unlock()
	return nil
}

// fail records a terminal error state. totalBytes is the read's original
// span (end-start), preserved as-is since a failure never changes it.
func (e *Engine) fail(buffer []byte, current, totalBytes uint32, reason string) {
	e.mu.Lock()
	e.buffer = buffer
	e.progress = Progress{
		BytesRead:      uint32(len(buffer)),
		TotalBytes:     totalBytes,
		CurrentAddress: current,
		Status:         StatusError,
		Error:          reason,
	}
	e.mu.Unlock()
	if e.log != nil {
		e.log.Warnf("memoryread: read stopped at 0x%X: %s", current, reason)
	}
}
