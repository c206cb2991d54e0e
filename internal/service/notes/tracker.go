// Package notes accumulates detected-note events, attaches the bow
// direction active at detection time, and scores bow/string
// synchronization.
package notes

import (
	"strings"
	"time"

	"violin-coach-service/internal/service/bow"
	"violin-coach-service/internal/service/pitch"
)

// Sync is the bow/string synchronization score over a set of note events.
type Sync struct {
	TotalNotes      int     `json:"totalNotes"`
	MatchingNotes   int     `json:"matchingNotes"`
	AccuracyPercent float64 `json:"accuracyPercent"`
}

// ExpectedDirection maps a note's letter class to the bow direction an
// open-string player is expected to use: G and D strings take a down bow,
// A and E strings an up bow. Other letters carry no expectation.
func ExpectedDirection(noteName string) (bow.Direction, bool) {
	switch pitch.Letter(noteName) {
	case "G", "D":
		return bow.Down, true
	case "A", "E":
		return bow.Up, true
	default:
		return "", false
	}
}

// Tracker owns an append-only ordered list of note events. Not safe for
// concurrent use; the owning session serializes calls.
type Tracker struct {
	events []pitch.NoteEvent
}

// New constructs an empty Tracker.
func New() *Tracker {
	return &Tracker{}
}

// Record appends a detected note. Any direction on the incoming event is
// discarded: attachment happens exactly once, through AttachDirection.
func (t *Tracker) Record(note pitch.NoteEvent) pitch.NoteEvent {
	note.BowDirection = ""
	t.events = append(t.events, note)
	return note
}

// AttachDirection attaches a playable direction to the most recent event
// if it has none yet. With no events recorded it synthesizes a minimal
// event carrying only the direction, covering a bow change observed before
// any note has been detected. Returns true when an attachment happened.
func (t *Tracker) AttachDirection(direction bow.Direction) bool {
	if !direction.Playable() {
		return false
	}

	if len(t.events) == 0 {
		t.events = append(t.events, pitch.NoteEvent{
			Timestamp:    time.Now().UTC(),
			BowDirection: direction,
		})
		return true
	}

	last := &t.events[len(t.events)-1]
	if last.Attached() {
		return false
	}
	last.BowDirection = direction
	return true
}

// Events returns a copy of the recorded events.
func (t *Tracker) Events() []pitch.NoteEvent {
	return append([]pitch.NoteEvent(nil), t.events...)
}

// Len returns the number of recorded events.
func (t *Tracker) Len() int {
	return len(t.events)
}

// Reset discards all recorded events.
func (t *Tracker) Reset() {
	t.events = nil
}

// SynchronizationScore scores the tracker's events. See Score.
func (t *Tracker) SynchronizationScore(expectedNotes []string) Sync {
	return Score(t.events, expectedNotes)
}

// Score computes the bow/string synchronization over note events. Only
// events with an attached direction and a letter class that carries an
// expectation participate. A non-empty expectedNotes restricts scoring to
// notes of the piece being practiced. AccuracyPercent is 0 when nothing
// was scoreable.
func Score(events []pitch.NoteEvent, expectedNotes []string) Sync {
	var s Sync
	for _, ev := range events {
		if !ev.Attached() {
			continue
		}
		if len(expectedNotes) > 0 && !containsNote(expectedNotes, ev.NoteName) {
			continue
		}
		expected, ok := ExpectedDirection(ev.NoteName)
		if !ok {
			continue
		}
		s.TotalNotes++
		if ev.BowDirection == expected {
			s.MatchingNotes++
		}
	}
	if s.TotalNotes > 0 {
		s.AccuracyPercent = 100 * float64(s.MatchingNotes) / float64(s.TotalNotes)
	}
	return s
}

func containsNote(notes []string, name string) bool {
	for _, n := range notes {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}
