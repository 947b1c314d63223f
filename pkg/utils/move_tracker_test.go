package utils

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestMoveTrackerWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "moves.jsonl")
	tracker, err := NewMoveTracker(path)
	if err != nil {
		t.Fatalf("NewMoveTracker failed: %v", err)
	}

	var wg sync.WaitGroup
	for restart := 0; restart < 4; restart++ {
		wg.Add(1)
		go func(restart int) {
			defer wg.Done()
			for move := 0; move < 25; move++ {
				tracker.LogMove(MoveEvent{Restart: restart, Move: move, Node: 1, From: -1, To: 2, Partner: -1, Gain: 1})
			}
		}(restart)
	}
	wg.Wait()
	if err := tracker.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open move log: %v", err)
	}
	defer file.Close()

	lines := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var event MoveEvent
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			t.Fatalf("line %d is not a move event: %v", lines+1, err)
		}
		if event.Timestamp == 0 {
			t.Errorf("line %d has no timestamp", lines+1)
		}
		lines++
	}
	if lines != 100 {
		t.Errorf("expected 100 events, got %d", lines)
	}
}

func TestNilMoveTrackerIsNoop(t *testing.T) {
	var tracker *MoveTracker
	tracker.LogMove(MoveEvent{Node: 1})
	if err := tracker.Close(); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
}

func TestMoveTrackerBadPath(t *testing.T) {
	if _, err := NewMoveTracker(filepath.Join(t.TempDir(), "missing", "moves.jsonl")); err == nil {
		t.Error("expected an error for a missing directory")
	}
}
