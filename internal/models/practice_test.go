package models

import "testing"

func TestPracticeEventValidate(t *testing.T) {
	valid := PracticeEvent{
		ID:        "evt-1",
		SessionID: "sess-1",
		Type:      EventBowDirectionChange,
		Timestamp: 1700000000000,
		Payload:   BowDirectionChangePayload{Direction: "up", Confidence: 0.9, Angle: 96},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid event rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*PracticeEvent)
	}{
		{"missing session", func(e *PracticeEvent) { e.SessionID = "" }},
		{"unknown type", func(e *PracticeEvent) { e.Type = "tuning_started" }},
		{"nil payload", func(e *PracticeEvent) { e.Payload = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := valid
			tt.mutate(&e)
			if err := e.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestSessionSummaryValidate(t *testing.T) {
	score := 0.85
	valid := SessionSummary{
		SessionID:       "sess-1",
		UserID:          "user-1",
		PieceName:       "Twinkle Twinkle Little Star",
		DurationSeconds: 120,
		PostureScore:    &score,
		OverallScore:    &score,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid summary rejected: %v", err)
	}

	bad := 1.2
	tests := []struct {
		name   string
		mutate func(*SessionSummary)
	}{
		{"missing session", func(s *SessionSummary) { s.SessionID = "" }},
		{"missing user", func(s *SessionSummary) { s.UserID = "" }},
		{"negative duration", func(s *SessionSummary) { s.DurationSeconds = -1 }},
		{"score above one", func(s *SessionSummary) { s.RhythmScore = &bad }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid
			tt.mutate(&s)
			if err := s.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
