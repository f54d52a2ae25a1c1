// Package facade implements the engine facade (component H): the single
// entry point a CLI or a future UI drives, composing the transport,
// discovery, memory-read engine, session store and status API behind the
// six operations the specification names: init_communication, scan_ecus,
// select_ecu, read_bin, save_bin and get_progress.
package facade

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"ecudump/config"
	"ecudump/discovery"
	"ecudump/logging"
	"ecudump/memoryread"
	"ecudump/statusapi"
	"ecudump/store"
	"ecudump/transport"
	"ecudump/uds"
)

// Engine owns one transport connection and drives, at most, one read_bin
// at a time. It is the type main.go constructs and drives end to end.
type Engine struct {
	cfg *config.Config
	log *logging.Logger

	t transport.Transport

	ecus     []discovery.ECU
	selected *discovery.ECU

	read    *memoryread.Engine
	reading atomic.Bool
	status  *statusapi.Server
	sess    *store.Store
}

// New builds an Engine around cfg and log. It does not open a transport;
// call InitCommunication for that.
func New(cfg *config.Config, log *logging.Logger) *Engine {
	return &Engine{cfg: cfg, log: log}
}

// InitCommunication opens the CAN transport (native SocketCAN, raw AF_CAN,
// or an ELM327 serial tunnel, in that order) and opens the session store
// at sessions.db inside cfg.OutputDir. A store failure is logged but never
// fatal: sessions simply go unrecorded.
func (e *Engine) InitCommunication(ctx context.Context) error {
	t, err := transport.Open(ctx, e.cfg, e.log)
	if err != nil {
		return fmt.Errorf("facade: init_communication: %w", err)
	}
	e.t = t

	dbPath := filepath.Join(e.cfg.OutputDir, "sessions.db")
	sess, err := store.Open(dbPath)
	if err != nil {
		e.log.Warnf("facade: session store unavailable, sessions won't be recorded: %v", err)
	} else {
		e.sess = sess
	}

	if e.cfg.Listen != "" {
		e.status = statusapi.New(e.Progress, e.ECUs, e.log)
		go func() {
			if err := e.status.Start(e.cfg.Listen); err != nil {
				e.log.Warnf("facade: status API stopped: %v", err)
			}
		}()
	}

	return nil
}

// ScanECUs sweeps the standard diagnostic address range and records the
// result, replacing any previous scan.
func (e *Engine) ScanECUs(ctx context.Context) ([]discovery.ECU, error) {
	if e.t == nil {
		return nil, fmt.Errorf("facade: scan_ecus: no transport open, call init_communication first")
	}
	found, err := discovery.Sweep(ctx, e.t, e.log)
	if err != nil {
		return nil, fmt.Errorf("facade: scan_ecus: %w", err)
	}
	e.ecus = found
	return found, nil
}

// ECUs returns the most recent scan_ecus result, or nil if none has run
// yet. It satisfies statusapi.ECUSource.
func (e *Engine) ECUs() []discovery.ECU {
	return e.ecus
}

// SelectECU picks the scanned ECU whose ID matches desc and prepares a
// fresh memory-read engine bound to its encoder.
func (e *Engine) SelectECU(desc string) error {
	for i := range e.ecus {
		if e.ecus[i].ID == desc {
			e.selected = &e.ecus[i]
			e.read = memoryread.New(e.selected.Encoder, e.log)
			return nil
		}
	}
	return fmt.Errorf("facade: select_ecu: no scanned ECU matches %q", desc)
}

// ReadBin drives one chunked memory-read session against the selected ECU
// and, on completion or failure, best-effort records the session. If a
// status Server was started, a timestamped progress snapshot is pushed to
// it every 200ms during the read and once more when the read ends.
func (e *Engine) ReadBin(ctx context.Context, start, end, blockSize uint32) error {
	if e.selected == nil {
		return fmt.Errorf("facade: read_bin: no ECU selected, call select_ecu first")
	}
	if !e.reading.CompareAndSwap(false, true) {
		return fmt.Errorf("facade: read_bin: a read is already in progress")
	}
	defer e.reading.Store(false)

	if blockSize == 0 {
		blockSize = uint32(e.cfg.DefaultBlockSize)
	}

	done := make(chan struct{})
	if e.status != nil {
		go e.pushProgressUntil(done)
	}

	startedAt := time.Now()
	stopKeepalive := e.startKeepalive(ctx)
	err := e.read.Read(ctx, e.selected.Address, start, end, blockSize, e.cfg.SecurityAlgorithm)
	stopKeepalive()
	close(done)

	finishedAt := time.Now()
	if e.sess != nil {
		if _, recErr := e.sess.RecordSession(*e.selected, start, end, blockSize, e.read.Progress(), startedAt, finishedAt); recErr != nil {
			e.log.Warnf("facade: read_bin: session not recorded: %v", recErr)
		}
	}

	return err
}

// startKeepalive pings the selected ECU with a diagnostic tester-present
// request every two seconds for the duration of a read, so that a session
// already established by security access doesn't time out mid-read on
// ECUs that require it. It is a no-op for every non-UDS target (raw CAN and
// KWP alike).
func (e *Engine) startKeepalive(ctx context.Context) func() {
	udsProto, ok := e.selected.Encoder.(*uds.Protocol)
	if !ok {
		return func() {}
	}

	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				if err := udsProto.TesterPresent(ctx, e.selected.Address); err != nil {
					e.log.Debugf("facade: tester present failed: %v", err)
				}
			}
		}
	}()
	return func() { close(stop) }
}

func (e *Engine) pushProgressUntil(done <-chan struct{}) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			p := e.read.Progress()
			p.Timestamp = time.Now()
			e.status.PushProgress(p)
			return
		case <-ticker.C:
			p := e.read.Progress()
			p.Timestamp = time.Now()
			e.status.PushProgress(p)
		}
	}
}

// Progress returns the current read's progress snapshot, or a record with
// Status idle if read_bin has never run. It satisfies statusapi.ProgressSource.
func (e *Engine) Progress() memoryread.Progress {
	if e.read == nil {
		return memoryread.Progress{Status: memoryread.StatusIdle}
	}
	return e.read.Progress()
}

// SaveBin writes the accumulated read buffer to path, resolving a relative
// path against cfg.OutputDir and creating parent directories as needed.
func (e *Engine) SaveBin(path string) error {
	if e.read == nil {
		return fmt.Errorf("facade: save_bin: nothing read yet")
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(e.cfg.OutputDir, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("facade: save_bin: %w", err)
	}
	if err := os.WriteFile(path, e.read.Buffer(), 0o644); err != nil {
		return fmt.Errorf("facade: save_bin: %w", err)
	}
	return nil
}

// SendRawFrame transmits one raw CAN frame on the open transport, bypassing
// UDS/KWP framing entirely. It exists for manual bus probing from the CLI.
func (e *Engine) SendRawFrame(ctx context.Context, id uint16, data []byte) error {
	if e.t == nil {
		return fmt.Errorf("facade: send_raw_frame: no transport open, call init_communication first")
	}
	return e.t.Send(ctx, id, data, false)
}

// Disconnect releases the transport and session store. It is safe to call
// even if init_communication never succeeded.
func (e *Engine) Disconnect() error {
	var firstErr error
	if e.t != nil {
		if err := e.t.Close(); err != nil {
			firstErr = err
		}
		e.t = nil
	}
	if e.sess != nil {
		if err := e.sess.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		e.sess = nil
	}
	return firstErr
}
