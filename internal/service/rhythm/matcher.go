// Package rhythm grades observed bow strokes against the fixed expected
// sequence of a known piece. Scoring is transition-based: a direction held
// across many frames counts as one stroke.
package rhythm

import (
	"errors"
	"fmt"

	"violin-coach-service/internal/service/bow"
)

// Outcome describes what one Update did.
type Outcome string

const (
	// Waiting means no new stroke was observed; nothing was scored.
	Waiting Outcome = "waiting"
	// Correct means the stroke matched the expected direction.
	Correct Outcome = "correct"
	// Incorrect means the stroke did not match.
	Incorrect Outcome = "incorrect"
)

// Progress is the matcher output after an update.
type Progress struct {
	Outcome  Outcome       `json:"outcome"`
	Scored   bool          `json:"scored"`
	Observed bow.Direction `json:"observed"`
	// Expected is the direction compared against when scored, and the
	// next expected one when waiting.
	Expected       bow.Direction `json:"expected"`
	Position       int           `json:"position"`
	Total          int           `json:"total"`
	PositionLabel  string        `json:"positionLabel"`
	CorrectCount   int           `json:"correctCount"`
	IncorrectCount int           `json:"incorrectCount"`
	// Accuracy is correct/(correct+incorrect) as a fraction, 0 before
	// any stroke is scored.
	Accuracy float64 `json:"accuracy"`
}

// ErrEmptySequence is returned for a sequence with no entries.
var ErrEmptySequence = errors.New("expected sequence is empty")

// Matcher advances a cursor through the expected sequence, wrapping
// cyclically. The cursor advances on every scored stroke regardless of
// correctness, so practice keeps moving after a mistake. Not safe for
// concurrent use; the owning session serializes calls.
type Matcher struct {
	sequence     []bow.Direction
	cursor       int
	lastObserved bow.Direction
	correct      int
	incorrect    int
}

// New constructs a Matcher over the expected sequence. Every entry must be
// a playable direction.
func New(sequence []bow.Direction) (*Matcher, error) {
	if len(sequence) == 0 {
		return nil, ErrEmptySequence
	}
	for i, d := range sequence {
		if !d.Playable() {
			return nil, fmt.Errorf("sequence entry %d: %q is not a playable direction", i, d)
		}
	}
	return &Matcher{sequence: append([]bow.Direction(nil), sequence...)}, nil
}

// Update consumes one observed direction. Hold and Neutral are not
// strokes; the same direction observed twice is the same stroke continuing
// across frames. Both yield a waiting result with no state change. A new
// playable direction is compared to the expected entry, counted, and the
// cursor advances whether or not it matched.
func (m *Matcher) Update(observed bow.Direction) Progress {
	if !observed.Playable() || observed == m.lastObserved {
		p := m.progress(Waiting, observed)
		p.Expected = m.sequence[m.cursor]
		return p
	}

	m.lastObserved = observed
	expected := m.sequence[m.cursor]

	outcome := Incorrect
	if observed == expected {
		m.correct++
		outcome = Correct
	} else {
		m.incorrect++
	}
	m.cursor = (m.cursor + 1) % len(m.sequence)

	p := m.progress(outcome, observed)
	p.Scored = true
	p.Expected = expected
	return p
}

// Stats returns the current progress without consuming an observation.
func (m *Matcher) Stats() Progress {
	p := m.progress(Waiting, m.lastObserved)
	p.Expected = m.sequence[m.cursor]
	return p
}

// Accuracy is the running fraction of correct strokes.
func (m *Matcher) Accuracy() float64 {
	total := m.correct + m.incorrect
	if total == 0 {
		return 0
	}
	return float64(m.correct) / float64(total)
}

// Scored reports whether any stroke has been graded yet.
func (m *Matcher) Scored() bool {
	return m.correct+m.incorrect > 0
}

// Reset returns the cursor to the start and clears all counters.
func (m *Matcher) Reset() {
	m.cursor = 0
	m.lastObserved = ""
	m.correct = 0
	m.incorrect = 0
}

func (m *Matcher) progress(outcome Outcome, observed bow.Direction) Progress {
	return Progress{
		Outcome:        outcome,
		Observed:       observed,
		Position:       m.cursor,
		Total:          len(m.sequence),
		PositionLabel:  fmt.Sprintf("%d/%d", m.cursor, len(m.sequence)),
		CorrectCount:   m.correct,
		IncorrectCount: m.incorrect,
		Accuracy:       m.Accuracy(),
	}
}
