package memoryread

import "time"

// Status is the memory-read engine's lifecycle state.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusReading  Status = "reading"
	StatusComplete Status = "complete"
	StatusError    Status = "error"
)

// Progress is the single-writer, many-reader record the engine mutates as
// it reads. Callers must go through Engine.Progress to get a copy; the
// zero value is never exposed directly so a reader can't race the writer.
type Progress struct {
	BytesRead      uint32
	TotalBytes     uint32
	CurrentAddress uint32
	Status         Status
	Error          string

	// Timestamp is stamped by the facade when it pushes this snapshot to
	// statusapi; the engine itself never sets it.
	Timestamp time.Time
}
