package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// MoveEvent is one improving hill-climbing move. Node ids are positions in
// the renamed graphs; -1 means unmapped. Partner is the node that gave up To
// in a swap, or -1 for a plain move.
type MoveEvent struct {
	Pair      int   `json:"pair"`
	Restart   int   `json:"restart"`
	Move      int   `json:"move"`
	Node      int   `json:"node"`
	From      int   `json:"from"`
	To        int   `json:"to"`
	Partner   int   `json:"partner"`
	Gain      int   `json:"gain"`
	Match     int   `json:"match"`
	Timestamp int64 `json:"timestamp"`
}

// MoveTracker writes MoveEvents as JSON lines. A nil tracker discards
// everything, so callers never need to check whether tracking is on.
// It is safe for concurrent use by parallel restarts.
type MoveTracker struct {
	mu      sync.Mutex
	out     io.WriteCloser
	encoder *json.Encoder
	err     error
}

// NewMoveTracker creates the output file and returns a tracker writing to it
func NewMoveTracker(filename string) (*MoveTracker, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create move log %s: %w", filename, err)
	}
	return NewMoveTrackerWriter(file), nil
}

// NewMoveTrackerWriter returns a tracker writing to w
func NewMoveTrackerWriter(w io.WriteCloser) *MoveTracker {
	return &MoveTracker{
		out:     w,
		encoder: json.NewEncoder(w),
	}
}

// LogMove records one move. The first write error is kept and returned by Close.
func (mt *MoveTracker) LogMove(event MoveEvent) {
	if mt == nil {
		return
	}
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}

	mt.mu.Lock()
	defer mt.mu.Unlock()
	if mt.err != nil {
		return
	}
	mt.err = mt.encoder.Encode(event)
}

// Close flushes and closes the underlying writer
func (mt *MoveTracker) Close() error {
	if mt == nil || mt.out == nil {
		return nil
	}
	mt.mu.Lock()
	defer mt.mu.Unlock()
	if err := mt.out.Close(); err != nil && mt.err == nil {
		mt.err = err
	}
	return mt.err
}
