// Package models defines the wire-level data structures for practice
// events and session summaries.
package models

import "fmt"

// EventType discriminates practice event payloads.
type EventType string

const (
	EventPostureCorrection  EventType = "posture_correction"
	EventBowDirectionChange EventType = "bow_direction_change"
	EventRhythmProgress     EventType = "rhythm_progress"
	EventNoteDetected       EventType = "note_detected"
)

var knownEventTypes = map[EventType]bool{
	EventPostureCorrection:  true,
	EventBowDirectionChange: true,
	EventRhythmProgress:     true,
	EventNoteDetected:       true,
}

// PracticeEvent is the published and stored form of one pipeline event.
// Payload holds the type-specific struct below.
type PracticeEvent struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Type      EventType `json:"type"`
	Timestamp int64     `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// Validate checks the envelope before it is persisted or published.
func (e *PracticeEvent) Validate() error {
	if e.SessionID == "" {
		return fmt.Errorf("practice event missing sessionId")
	}
	if !knownEventTypes[e.Type] {
		return fmt.Errorf("unknown practice event type %q", e.Type)
	}
	if e.Payload == nil {
		return fmt.Errorf("practice event %s missing payload", e.Type)
	}
	return nil
}

// RegionDetail is one body region's verdict inside a posture payload.
type RegionDetail struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// PostureCorrectionPayload is emitted when the posture tier changes.
type PostureCorrectionPayload struct {
	Status           string                  `json:"status"`
	ScalarDifference float64                 `json:"scalarDifference"`
	Regions          map[string]RegionDetail `json:"regions"`
}

// BowDirectionChangePayload is emitted when the committed bow direction
// changes.
type BowDirectionChangePayload struct {
	Direction  string  `json:"direction"`
	Confidence float64 `json:"confidence"`
	Angle      float64 `json:"angle"`
}

// RhythmProgressPayload is emitted when the matcher scores a stroke.
type RhythmProgressPayload struct {
	Position  int     `json:"position"`
	Total     int     `json:"total"`
	Correct   int     `json:"correct"`
	Incorrect int     `json:"incorrect"`
	Accuracy  float64 `json:"accuracy"`
}

// NoteDetectedPayload is emitted for every recorded note.
type NoteDetectedPayload struct {
	NoteName     string  `json:"noteName"`
	Frequency    float64 `json:"frequency"`
	Confidence   float64 `json:"confidence"`
	BowDirection string  `json:"bowDirection,omitempty"`
}

// SessionSummary is the terminal record of one practice session.
// Component scores are fractions in [0,1]; nil means the component saw no
// data during the session.
type SessionSummary struct {
	SessionID            string   `json:"sessionId"`
	UserID               string   `json:"userId"`
	PieceName            string   `json:"pieceName"`
	DurationSeconds      float64  `json:"durationSeconds"`
	PostureScore         *float64 `json:"postureScore"`
	BowDirectionAccuracy *float64 `json:"bowDirectionAccuracy"`
	RhythmScore          *float64 `json:"rhythmScore"`
	OverallScore         *float64 `json:"overallScore"`
	NoteCount            int      `json:"noteCount"`
	EventCount           int      `json:"eventCount"`
}

// Validate checks the summary before it is published.
func (s *SessionSummary) Validate() error {
	if s.SessionID == "" {
		return fmt.Errorf("session summary missing sessionId")
	}
	if s.UserID == "" {
		return fmt.Errorf("session summary missing userId")
	}
	if s.DurationSeconds < 0 {
		return fmt.Errorf("session summary has negative duration %f", s.DurationSeconds)
	}
	for name, score := range map[string]*float64{
		"postureScore":         s.PostureScore,
		"bowDirectionAccuracy": s.BowDirectionAccuracy,
		"rhythmScore":          s.RhythmScore,
		"overallScore":         s.OverallScore,
	} {
		if score != nil && (*score < 0 || *score > 1) {
			return fmt.Errorf("session summary %s %f outside [0,1]", name, *score)
		}
	}
	return nil
}
