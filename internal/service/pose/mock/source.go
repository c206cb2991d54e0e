// Package mock provides a pose source for tests and simulation without a
// camera or model. It synthesizes anatomically consistent frames in which
// the bowing arm sweeps through a scripted sequence of elbow angles.
package mock

import (
	"context"
	"math"
	"sync"
	"time"

	"violin-coach-service/internal/service/bow"
	"violin-coach-service/internal/service/pose"
)

// ReferenceFrame returns the canonical playing posture used as the
// calibration capture: level shoulders, violin arm raised, bow arm at
// mid-stroke. Coordinates are normalized image-style (y grows downward).
func ReferenceFrame() pose.Frame {
	return BowingFrame(90, time.Time{})
}

// BowingFrame returns the reference posture with the right wrist placed so
// that the right-elbow angle equals elbowAngleDeg.
func BowingFrame(elbowAngleDeg float64, ts time.Time) pose.Frame {
	f := pose.Frame{Timestamp: ts}

	set := func(j pose.Joint, x, y, conf float64) {
		f.Keypoints[j] = pose.Keypoint{X: x, Y: y, Confidence: conf}
	}

	set(pose.Nose, 0.50, 0.30, 0.90)
	set(pose.LeftEye, 0.52, 0.28, 0.85)
	set(pose.RightEye, 0.48, 0.28, 0.85)
	set(pose.LeftEar, 0.55, 0.30, 0.80)
	set(pose.RightEar, 0.45, 0.30, 0.80)

	set(pose.LeftShoulder, 0.58, 0.42, 0.95)
	set(pose.RightShoulder, 0.42, 0.42, 0.95)

	// Violin arm: raised, elbow bent, wrist up by the neck.
	set(pose.LeftElbow, 0.66, 0.50, 0.95)
	set(pose.LeftWrist, 0.60, 0.34, 0.95)

	set(pose.LeftHip, 0.56, 0.68, 0.90)
	set(pose.RightHip, 0.44, 0.68, 0.90)
	set(pose.LeftKnee, 0.56, 0.84, 0.70)
	set(pose.RightKnee, 0.44, 0.84, 0.70)
	set(pose.LeftAnkle, 0.56, 0.97, 0.60)
	set(pose.RightAnkle, 0.44, 0.97, 0.60)

	// Bow arm: wrist rotated about the elbow so the shoulder-elbow-wrist
	// angle comes out exactly at elbowAngleDeg.
	elbow := pose.Keypoint{X: 0.36, Y: 0.54, Confidence: 0.95}
	shoulder := f.Keypoints[pose.RightShoulder]
	ux := shoulder.X - elbow.X
	uy := shoulder.Y - elbow.Y
	norm := math.Hypot(ux, uy)
	ux, uy = ux/norm, uy/norm

	rad := elbowAngleDeg * math.Pi / 180
	const forearm = 0.13
	wx := elbow.X + forearm*(ux*math.Cos(rad)-uy*math.Sin(rad))
	wy := elbow.Y + forearm*(ux*math.Sin(rad)+uy*math.Cos(rad))

	f.Keypoints[pose.RightElbow] = elbow
	set(pose.RightWrist, wx, wy, 0.95)

	return f
}

// AnglesForPattern expands a bow-direction pattern into the elbow-angle
// script that drives the classifier through it: each stroke is stepsPerBow
// readings moving 3 degrees per reading in the stroke's direction, enough
// consecutive same-candidate observations to commit it.
func AnglesForPattern(pattern []bow.Direction, base float64, stepsPerBow int) []float64 {
	if stepsPerBow <= 0 {
		stepsPerBow = 4
	}
	const step = 3.0

	angles := make([]float64, 0, len(pattern)*stepsPerBow)
	angle := base
	for _, dir := range pattern {
		delta := step
		if dir == bow.Down {
			delta = -step
		}
		for i := 0; i < stepsPerBow; i++ {
			angle += delta
			angles = append(angles, angle)
		}
	}
	return angles
}

// Config tunes the mock source.
type Config struct {
	// Interval between frames. Defaults to 50ms (20 Hz).
	Interval time.Duration
	// Angles is the elbow-angle script. Defaults to a steady hold at 90.
	Angles []float64
	// Loop restarts the script from the beginning when it runs out.
	Loop bool
}

// Source implements pose.Source with synthesized frames.
type Source struct {
	cfg Config

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSource constructs a mock source.
func NewSource(cfg Config) *Source {
	if cfg.Interval <= 0 {
		cfg.Interval = 50 * time.Millisecond
	}
	if len(cfg.Angles) == 0 {
		cfg.Angles = []float64{90}
		cfg.Loop = true
	}
	return &Source{cfg: cfg}
}

// Start begins emitting frames on an internal goroutine. Delivery ends
// when the script runs out (unless looping), the context is cancelled, or
// Stop is called.
func (s *Source) Start(ctx context.Context, cb pose.Callback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx, cb)
	return nil
}

func (s *Source) run(ctx context.Context, cb pose.Callback) {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	idx := 0
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if idx >= len(s.cfg.Angles) {
				if !s.cfg.Loop {
					return
				}
				idx = 0
			}
			cb.OnFrame(BowingFrame(s.cfg.Angles[idx], now))
			idx++
		}
	}
}

// Stop ends frame delivery and waits for the emitter to exit.
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.cancel()
	<-s.done
	s.started = false
	return nil
}
