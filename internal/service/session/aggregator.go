package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"violin-coach-service/internal/catalog"
	"violin-coach-service/internal/events"
	"violin-coach-service/internal/models"
	"violin-coach-service/internal/observability/logging"
	"violin-coach-service/internal/observability/metrics"
	"violin-coach-service/internal/service/bow"
	"violin-coach-service/internal/service/notes"
	"violin-coach-service/internal/service/pitch"
	"violin-coach-service/internal/service/pose"
	"violin-coach-service/internal/service/posture"
	"violin-coach-service/internal/service/rhythm"
	"violin-coach-service/internal/store"
)

// FrameResult is what one processed frame produced. Dropped means the
// frame arrived while another was in flight and was discarded whole.
type FrameResult struct {
	Dropped     bool                `json:"dropped"`
	Observation bow.Observation     `json:"observation"`
	Posture     *posture.Assessment `json:"posture,omitempty"`
	Rhythm      *rhythm.Progress    `json:"rhythm,omitempty"`
}

// Snapshot is a read-only live view for advisory polling. It is a copy;
// holding one never blocks frame processing.
type Snapshot struct {
	SessionID     string          `json:"sessionId"`
	State         string          `json:"state"`
	PieceName     string          `json:"pieceName"`
	StartTime     time.Time       `json:"startTime"`
	EventCount    int             `json:"eventCount"`
	NoteCount     int             `json:"noteCount"`
	LastDirection bow.Direction   `json:"lastDirection"`
	LastPosture   posture.Status  `json:"lastPosture,omitempty"`
	Rhythm        rhythm.Progress `json:"rhythm"`
}

// Options wires an Aggregator's collaborators. Sessions is required;
// Reference may be nil when the player has no calibration, which disables
// posture scoring for the session.
type Options struct {
	Piece     catalog.Piece
	Reference *posture.Reference
	Bow       bow.Config
	Posture   posture.Config
	Sessions  store.SessionRepository
	Publisher *events.Publisher
	Metrics   *metrics.Metrics
}

// Aggregator fuses the pose and note streams of one practice session into
// classified events, an event log, and composite scores. Frames and notes
// arrive from independent producers; a single state mutex serializes all
// session mutation, and a dedicated frame mutex enforces at most one frame
// in flight.
type Aggregator struct {
	piece     catalog.Piece
	reference *posture.Reference

	classifier *bow.Classifier
	scorer     *posture.Scorer
	matcher    *rhythm.Matcher
	tracker    *notes.Tracker

	sessions  store.SessionRepository
	publisher *events.Publisher
	metrics   *metrics.Metrics
	log       zerolog.Logger

	lifecycle *Lifecycle

	// frameMu admits one frame at a time; a frame that cannot take it
	// immediately is dropped, never queued.
	frameMu sync.Mutex

	// mu guards everything below.
	mu            sync.Mutex
	session       *store.PracticeSession
	lastDirection bow.Direction
	lastPosture   posture.Status
	postureTotal  int
	postureGood   int
	noteCount     int
	eventCount    int
}

// New constructs an Aggregator for one piece.
func New(opts Options) (*Aggregator, error) {
	if opts.Sessions == nil {
		return nil, fmt.Errorf("session repository is required")
	}
	if opts.Publisher == nil {
		return nil, fmt.Errorf("event publisher is required")
	}

	matcher, err := rhythm.New(opts.Piece.BowPattern)
	if err != nil {
		return nil, fmt.Errorf("piece %q: %w", opts.Piece.Name, err)
	}

	m := opts.Metrics
	if m == nil {
		m = metrics.DefaultMetrics
	}

	return &Aggregator{
		piece:         opts.Piece,
		reference:     opts.Reference,
		classifier:    bow.New(opts.Bow),
		scorer:        posture.New(opts.Posture),
		matcher:       matcher,
		tracker:       notes.New(),
		sessions:      opts.Sessions,
		publisher:     opts.Publisher,
		metrics:       m,
		log:           logging.WithComponent("session"),
		lifecycle:     NewLifecycle(),
		lastDirection: bow.Neutral,
	}, nil
}

// State returns the current lifecycle state.
func (a *Aggregator) State() State {
	return a.lifecycle.State()
}

// Start begins a new practice session for the user. Allowed when no
// session is active; a previous ended session stays frozen and a fresh
// one is created.
func (a *Aggregator) Start(ctx context.Context, userID string) (*store.PracticeSession, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.lifecycle.Start(); err != nil {
		return nil, err
	}

	session := &store.PracticeSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		PieceName: a.piece.Name,
		StartTime: time.Now().UTC(),
	}
	if err := a.sessions.Create(ctx, session); err != nil {
		// A failed create leaves the lifecycle eligible for another Start.
		_ = a.lifecycle.End()
		return nil, err
	}

	a.classifier.Reset()
	a.matcher.Reset()
	a.tracker.Reset()
	a.session = session
	a.lastDirection = bow.Neutral
	a.lastPosture = ""
	a.postureTotal = 0
	a.postureGood = 0
	a.noteCount = 0
	a.eventCount = 0

	a.log = logging.WithSessionUser(session.ID, userID)

	a.metrics.RecordSessionStart()
	a.log.Info().
		Str("piece", a.piece.Name).
		Bool("calibrated", a.reference != nil).
		Msg("Practice session started")

	out := *session
	return &out, nil
}

// ProcessFrame runs one keypoint frame through the pipeline. A frame
// arriving while another is in flight is dropped and counted. Appended
// events are change events only: committed direction changes, posture
// tier changes, and scored rhythm strokes.
func (a *Aggregator) ProcessFrame(ctx context.Context, frame *pose.Frame) (FrameResult, error) {
	if err := a.lifecycle.RequireActive(); err != nil {
		return FrameResult{}, err
	}

	if !a.frameMu.TryLock() {
		a.metrics.RecordFrameDropped()
		return FrameResult{Dropped: true}, nil
	}
	defer a.frameMu.Unlock()

	start := time.Now()
	angle := frame.RightElbowAngle()

	a.mu.Lock()
	defer a.mu.Unlock()

	// The session may have ended while this frame waited on the mutex;
	// the frame is then discarded whole, never half-applied.
	if err := a.lifecycle.RequireActive(); err != nil {
		return FrameResult{}, err
	}

	obs := a.classifier.Observe(angle)
	result := FrameResult{Observation: obs}

	if obs.Direction != a.lastDirection {
		a.lastDirection = obs.Direction
		a.metrics.RecordDirectionChange(string(obs.Direction))
		a.appendEvent(ctx, models.EventBowDirectionChange, models.BowDirectionChangePayload{
			Direction:  string(obs.Direction),
			Confidence: obs.Confidence,
			Angle:      obs.Angle,
		})
		if obs.Direction.Playable() {
			a.tracker.AttachDirection(obs.Direction)
		}
	}

	progress := a.matcher.Update(obs.Direction)
	if progress.Scored {
		a.metrics.RecordRhythmOutcome(string(progress.Outcome))
		a.appendEvent(ctx, models.EventRhythmProgress, models.RhythmProgressPayload{
			Position:  progress.Position,
			Total:     progress.Total,
			Correct:   progress.CorrectCount,
			Incorrect: progress.IncorrectCount,
			Accuracy:  progress.Accuracy,
		})
		result.Rhythm = &progress
	}

	if a.reference != nil {
		assessment := a.scorer.Assess(frame, a.reference)
		a.postureTotal++
		if assessment.Status.GoodOrBetter() {
			a.postureGood++
		}
		a.metrics.RecordPostureAssessment(string(assessment.Status))
		if assessment.Status != a.lastPosture {
			a.lastPosture = assessment.Status
			a.appendEvent(ctx, models.EventPostureCorrection, postureCorrectionPayload(assessment))
		}
		result.Posture = &assessment
	}

	a.metrics.RecordFrame(time.Since(start).Seconds())
	return result, nil
}

// ProcessNote records one detected note, tagging it with the committed
// bow direction when one is active.
func (a *Aggregator) ProcessNote(ctx context.Context, note pitch.NoteEvent) (pitch.NoteEvent, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.lifecycle.RequireActive(); err != nil {
		return pitch.NoteEvent{}, err
	}

	stored := a.tracker.Record(note)
	// The just-recorded note is the most recent and unattached, so the
	// attachment lands on it.
	if a.lastDirection.Playable() && a.tracker.AttachDirection(a.lastDirection) {
		stored.BowDirection = a.lastDirection
	}
	a.noteCount++
	a.metrics.RecordNote()

	a.appendEvent(ctx, models.EventNoteDetected, models.NoteDetectedPayload{
		NoteName:     stored.NoteName,
		Frequency:    stored.Frequency,
		Confidence:   stored.Confidence,
		BowDirection: string(stored.BowDirection),
	})

	return stored, nil
}

// Snapshot returns a live view of the session for advisory polling.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap := Snapshot{
		State:         a.lifecycle.State().String(),
		PieceName:     a.piece.Name,
		EventCount:    a.eventCount,
		NoteCount:     a.noteCount,
		LastDirection: a.lastDirection,
		LastPosture:   a.lastPosture,
		Rhythm:        a.matcher.Stats(),
	}
	if a.session != nil {
		snap.SessionID = a.session.ID
		snap.StartTime = a.session.StartTime
	}
	return snap
}

// End freezes the session, computes component scores, persists and
// publishes the summary. A component that saw no data contributes no
// score; the overall score is the mean of the available ones.
func (a *Aggregator) End(ctx context.Context) (*models.SessionSummary, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.lifecycle.End(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	duration := now.Sub(a.session.StartTime).Seconds()

	summary := &models.SessionSummary{
		SessionID:       a.session.ID,
		UserID:          a.session.UserID,
		PieceName:       a.piece.Name,
		DurationSeconds: duration,
		NoteCount:       a.noteCount,
		EventCount:      a.eventCount,
	}

	if a.postureTotal > 0 {
		score := float64(a.postureGood) / float64(a.postureTotal)
		summary.PostureScore = &score
	}
	if s := a.tracker.SynchronizationScore(a.piece.Notes); s.TotalNotes > 0 {
		score := s.AccuracyPercent / 100
		summary.BowDirectionAccuracy = &score
	}
	if a.matcher.Scored() {
		score := a.matcher.Accuracy()
		summary.RhythmScore = &score
	}

	var available []float64
	for _, score := range []*float64{summary.PostureScore, summary.BowDirectionAccuracy, summary.RhythmScore} {
		if score != nil {
			available = append(available, *score)
		}
	}
	if len(available) > 0 {
		overall := stat.Mean(available, nil)
		summary.OverallScore = &overall
	}

	a.session.EndTime = &now
	a.session.DurationSeconds = duration
	a.session.PostureScore = summary.PostureScore
	a.session.BowDirectionAccuracy = summary.BowDirectionAccuracy
	a.session.RhythmScore = summary.RhythmScore
	a.session.OverallScore = summary.OverallScore
	a.session.NoteCount = a.noteCount
	a.session.EventCount = a.eventCount

	if err := a.sessions.Update(ctx, a.session); err != nil {
		a.log.Error().Err(err).Msg("Failed to persist session summary")
	}
	if err := a.publisher.PublishSummary(ctx, summary); err != nil {
		a.log.Error().Err(err).Msg("Failed to publish session summary")
	}

	a.metrics.RecordSessionEnd(duration)
	a.log.Info().
		Float64("durationSeconds", duration).
		Int("events", a.eventCount).
		Int("notes", a.noteCount).
		Msg("Practice session ended")

	return summary, nil
}

// appendEvent stores one event and publishes it. Called with mu held.
// Publishing is fire-and-forget; a store failure skips the publish so the
// published stream never runs ahead of the durable log.
func (a *Aggregator) appendEvent(ctx context.Context, typ models.EventType, payload any) {
	event := &models.PracticeEvent{
		ID:        uuid.NewString(),
		SessionID: a.session.ID,
		Type:      typ,
		Timestamp: time.Now().UnixMilli(),
		Payload:   payload,
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		a.log.Error().Err(err).Str("type", string(typ)).Msg("Failed to encode event payload")
		return
	}
	if err := a.sessions.AppendEvent(ctx, &store.PracticeEvent{
		ID:        event.ID,
		SessionID: event.SessionID,
		Type:      string(typ),
		Timestamp: event.Timestamp,
		Payload:   raw,
	}); err != nil {
		a.log.Error().Err(err).Str("type", string(typ)).Msg("Failed to append event")
		return
	}
	a.eventCount++

	if err := a.publisher.PublishEvent(ctx, event); err != nil {
		a.log.Error().Err(err).Str("type", string(typ)).Msg("Failed to publish event")
	}
}

func postureCorrectionPayload(assessment posture.Assessment) models.PostureCorrectionPayload {
	regions := make(map[string]models.RegionDetail, len(assessment.Feedback))
	for region, feedback := range assessment.Feedback {
		regions[string(region)] = models.RegionDetail{
			Status:  string(feedback.Status),
			Message: feedback.Message,
		}
	}
	return models.PostureCorrectionPayload{
		Status:           string(assessment.Status),
		ScalarDifference: assessment.ScalarDifference,
		Regions:          regions,
	}
}
