// Package bow classifies the bowing arm's joint-angle signal into a
// debounced stroke direction.
package bow

// Direction is the classified bow stroke direction.
type Direction string

const (
	// Neutral means no direction has been committed yet.
	Neutral Direction = "neutral"
	// Up is a rising angle trend (up bow).
	Up Direction = "up"
	// Down is a falling angle trend (down bow).
	Down Direction = "down"
	// Hold means the angle is stable within the jitter threshold.
	Hold Direction = "hold"
)

// Playable reports whether the direction is an actual stroke.
func (d Direction) Playable() bool {
	return d == Up || d == Down
}

// String returns the wire value.
func (d Direction) String() string {
	return string(d)
}

// Config holds the classifier tuning knobs.
type Config struct {
	// WindowSize is how many recent angle readings are retained.
	WindowSize int
	// DeltaThreshold is the per-observation angle change, in degrees,
	// below which the candidate is Hold.
	DeltaThreshold float64
	// StabilityCount is how many consecutive observations of the same
	// candidate are required before it is committed.
	StabilityCount int
}

// DefaultConfig returns the tuning used in production.
func DefaultConfig() Config {
	return Config{
		WindowSize:     5,
		DeltaThreshold: 1.5,
		StabilityCount: 3,
	}
}

// Observation is the classifier output for a single angle reading. The
// Direction is the committed state, which lags the raw candidate by the
// stability requirement.
type Observation struct {
	Direction  Direction `json:"direction"`
	Candidate  Direction `json:"candidate"`
	Confidence float64   `json:"confidence"`
	Angle      float64   `json:"angle"`
	Delta      float64   `json:"delta"`
}

// Classifier turns a noisy per-frame angle signal into a stable stroke
// direction. Raw deltas flap from jitter; a candidate must be observed for
// StabilityCount consecutive readings before it becomes the committed
// state. Not safe for concurrent use; the owning session serializes calls.
type Classifier struct {
	cfg Config

	window    []float64
	candidate Direction
	runLength int
	committed Direction
}

// New constructs a Classifier. Non-positive config fields fall back to the
// defaults.
func New(cfg Config) *Classifier {
	def := DefaultConfig()
	if cfg.WindowSize < 2 {
		cfg.WindowSize = def.WindowSize
	}
	if cfg.DeltaThreshold <= 0 {
		cfg.DeltaThreshold = def.DeltaThreshold
	}
	if cfg.StabilityCount < 1 {
		cfg.StabilityCount = def.StabilityCount
	}
	return &Classifier{
		cfg:       cfg,
		window:    make([]float64, 0, cfg.WindowSize),
		committed: Neutral,
	}
}

// Observe pushes one angle reading and returns the committed direction
// together with the raw candidate's confidence. It never fails: with fewer
// than two samples the result degrades to Neutral with zero confidence.
func (c *Classifier) Observe(angle float64) Observation {
	c.window = append(c.window, angle)
	if len(c.window) > c.cfg.WindowSize {
		c.window = c.window[1:]
	}

	if len(c.window) < 2 {
		return Observation{Direction: Neutral, Candidate: Neutral, Angle: angle}
	}

	delta := c.window[len(c.window)-1] - c.window[len(c.window)-2]

	var candidate Direction
	var confidence float64
	switch {
	case delta > c.cfg.DeltaThreshold:
		candidate = Up
		confidence = min(1, delta/(2*c.cfg.DeltaThreshold))
	case delta < -c.cfg.DeltaThreshold:
		candidate = Down
		confidence = min(1, -delta/(2*c.cfg.DeltaThreshold))
	default:
		candidate = Hold
		confidence = 1 - abs(delta)/c.cfg.DeltaThreshold
	}

	// Counters are mutually exclusive: only the most recent candidate
	// accumulates, any other observation restarts its run.
	if candidate == c.candidate {
		c.runLength++
	} else {
		c.candidate = candidate
		c.runLength = 1
	}

	if c.runLength >= c.cfg.StabilityCount {
		c.committed = candidate
	}

	return Observation{
		Direction:  c.committed,
		Candidate:  candidate,
		Confidence: confidence,
		Angle:      angle,
		Delta:      delta,
	}
}

// Committed returns the current debounced direction.
func (c *Classifier) Committed() Direction {
	return c.committed
}

// Reset clears the window and counters and recommits Neutral.
func (c *Classifier) Reset() {
	c.window = c.window[:0]
	c.candidate = ""
	c.runLength = 0
	c.committed = Neutral
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
