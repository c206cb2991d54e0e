package mock

import (
	"context"
	"sync"
	"testing"
	"time"

	"violin-coach-service/internal/service/pitch"
)

// noteCollector implements pitch.Callback.
type noteCollector struct {
	mu    sync.Mutex
	notes []pitch.NoteEvent
}

func (nc *noteCollector) OnNote(n pitch.NoteEvent) {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	nc.notes = append(nc.notes, n)
}

func (nc *noteCollector) OnError(error) {}

func (nc *noteCollector) snapshot() []pitch.NoteEvent {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	return append([]pitch.NoteEvent(nil), nc.notes...)
}

func TestDetector_ReplaysScript(t *testing.T) {
	d := NewDetector(Config{
		Notes:    []string{"A4", "E5", "G3"},
		Interval: time.Millisecond,
	})
	collector := &noteCollector{}

	if err := d.Start(context.Background(), collector); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.After(time.Second)
	for len(collector.snapshot()) < 3 {
		select {
		case <-deadline:
			t.Fatalf("timed out with %d notes", len(collector.snapshot()))
		case <-time.After(time.Millisecond):
		}
	}
	if err := d.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	notes := collector.snapshot()
	if len(notes) != 3 {
		t.Fatalf("expected 3 notes, got %d", len(notes))
	}

	wantNames := []string{"A4", "E5", "G3"}
	for i, n := range notes {
		if n.NoteName != wantNames[i] {
			t.Errorf("note %d = %s, want %s", i, n.NoteName, wantNames[i])
		}
		if n.Frequency != pitch.Frequency(n.NoteName) {
			t.Errorf("note %d frequency %f does not match its name", i, n.Frequency)
		}
		if n.Attached() {
			t.Errorf("note %d arrived with a bow direction already attached", i)
		}
		if n.Confidence != 0.9 {
			t.Errorf("note %d confidence = %f, want default 0.9", i, n.Confidence)
		}
	}
}

func TestDetector_DoubleStartIsNoop(t *testing.T) {
	d := NewDetector(Config{Notes: []string{"A4"}, Interval: time.Millisecond})
	collector := &noteCollector{}

	if err := d.Start(context.Background(), collector); err != nil {
		t.Fatalf("first start: %v", err)
	}
	if err := d.Start(context.Background(), collector); err != nil {
		t.Fatalf("second start: %v", err)
	}
	if err := d.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
