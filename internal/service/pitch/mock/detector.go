// Package mock provides a pitch detector for tests and simulation without
// a microphone. It replays a scripted note sequence at a fixed interval.
package mock

import (
	"context"
	"sync"
	"time"

	"violin-coach-service/internal/service/pitch"
)

// Config tunes the mock detector.
type Config struct {
	// Notes is the note-name script, e.g. the expected sequence of a
	// piece. Required.
	Notes []string
	// Interval between notes. Defaults to 200ms.
	Interval time.Duration
	// Confidence reported on every note. Defaults to 0.9.
	Confidence float64
	// Loop restarts the script when it runs out.
	Loop bool
}

// Detector implements pitch.Detector with scripted notes.
type Detector struct {
	cfg Config

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewDetector constructs a mock detector.
func NewDetector(cfg Config) *Detector {
	if cfg.Interval <= 0 {
		cfg.Interval = 200 * time.Millisecond
	}
	if cfg.Confidence <= 0 {
		cfg.Confidence = 0.9
	}
	return &Detector{cfg: cfg}
}

// Start begins emitting notes on an internal goroutine.
func (d *Detector) Start(ctx context.Context, cb pitch.Callback) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return nil
	}
	d.started = true

	ctx, d.cancel = context.WithCancel(ctx)
	d.done = make(chan struct{})

	go d.run(ctx, cb)
	return nil
}

func (d *Detector) run(ctx context.Context, cb pitch.Callback) {
	defer close(d.done)

	if len(d.cfg.Notes) == 0 {
		return
	}

	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	idx := 0
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if idx >= len(d.cfg.Notes) {
				if !d.cfg.Loop {
					return
				}
				idx = 0
			}
			name := d.cfg.Notes[idx]
			cb.OnNote(pitch.NoteEvent{
				Timestamp:  now,
				NoteName:   name,
				Frequency:  pitch.Frequency(name),
				Confidence: d.cfg.Confidence,
				DurationMs: d.cfg.Interval.Milliseconds(),
			})
			idx++
		}
	}
}

// Stop ends note delivery and waits for the emitter to exit.
func (d *Detector) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started {
		return nil
	}
	d.cancel()
	<-d.done
	d.started = false
	return nil
}
