package audio

import (
	"sync/atomic"
)

// DiscardSink is an audio output that neither plays nor stores anything.
// Bytes written to it are counted and dropped. It is safe for concurrent use.
type DiscardSink struct {
	written atomic.Int64
}

// NewDiscardSink creates a new discard sink
func NewDiscardSink() *DiscardSink {
	return &DiscardSink{}
}

// Write drops data and always reports a full write
func (s *DiscardSink) Write(data []byte) (int, error) {
	s.written.Add(int64(len(data)))
	return len(data), nil
}

// Written returns the total number of bytes dropped since creation
func (s *DiscardSink) Written() int64 {
	return s.written.Load()
}
