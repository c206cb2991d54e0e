// Package pitch defines the note-event contract of the audio analysis
// collaborator and the interface the pipeline consumes it through. The
// pitch extraction itself is a black box.
package pitch

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"violin-coach-service/internal/service/bow"
)

// NoteEvent is one detected note. The collaborator creates it without a
// bow direction; the note tracker is the only writer that may attach one,
// at most once.
type NoteEvent struct {
	Timestamp    time.Time     `json:"timestamp"`
	NoteName     string        `json:"noteName"`
	Frequency    float64       `json:"frequency"`
	Confidence   float64       `json:"confidence"`
	DurationMs   int64         `json:"durationMs,omitempty"`
	BowDirection bow.Direction `json:"bowDirection,omitempty"`
}

// Attached reports whether a bow direction has been attached.
func (e *NoteEvent) Attached() bool {
	return e.BowDirection != ""
}

// Callback receives note events from the pitch detection collaborator.
type Callback interface {
	// OnNote is called once per detected note, at irregular intervals.
	OnNote(note NoteEvent)

	// OnError is called when the collaborator fails.
	OnError(err error)
}

// Detector defines the interface for pitch detection providers.
type Detector interface {
	// Start begins note delivery until ctx is cancelled or Stop is called.
	Start(ctx context.Context, cb Callback) error

	// Stop ends note delivery and releases resources.
	Stop() error
}

var semitones = map[string]int{
	"C": 0, "C#": 1, "D": 2, "D#": 3, "E": 4, "F": 5,
	"F#": 6, "G": 7, "G#": 8, "A": 9, "A#": 10, "B": 11,
}

// Letter returns the uppercase letter class of a note name ("G3" -> "G",
// "F#5" -> "F"), or "" for an unparseable name. Accidentals do not change
// the letter class.
func Letter(noteName string) string {
	if noteName == "" {
		return ""
	}
	letter := strings.ToUpper(noteName[:1])
	if letter < "A" || letter > "G" {
		return ""
	}
	return letter
}

// Frequency returns the equal-temperament frequency of a note name such as
// "A4" or "F#5" (A4 = 440 Hz), or 0 for an unparseable name.
func Frequency(noteName string) float64 {
	if len(noteName) < 2 {
		return 0
	}

	split := 1
	if len(noteName) > 2 && noteName[1] == '#' {
		split = 2
	}

	semitone, ok := semitones[strings.ToUpper(noteName[:split])]
	if !ok {
		return 0
	}
	octave, err := strconv.Atoi(noteName[split:])
	if err != nil {
		return 0
	}

	midi := 12*(octave+1) + semitone
	return 440 * math.Pow(2, float64(midi-69)/12)
}
