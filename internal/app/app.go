// Package app wires configuration, storage, eventing and the practice
// pipeline into one process-wide Application.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"violin-coach-service/internal/catalog"
	"violin-coach-service/internal/config"
	"violin-coach-service/internal/events"
	"violin-coach-service/internal/models"
	"violin-coach-service/internal/observability/logging"
	"violin-coach-service/internal/observability/metrics"
	"violin-coach-service/internal/service/bow"
	"violin-coach-service/internal/service/pitch"
	"violin-coach-service/internal/service/pose"
	"violin-coach-service/internal/service/posture"
	"violin-coach-service/internal/service/session"
	"violin-coach-service/internal/store"
)

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Cfg         *config.Config
	Log         zerolog.Logger

	Users        store.UserRepository
	Sessions     store.SessionRepository
	Calibrations store.CalibrationRepository
	Catalog      *catalog.Catalog
	Publisher    *events.Publisher
	Metrics      *metrics.Metrics

	// db is nil when the service runs on the in-memory store.
	db *gorm.DB

	mu     sync.Mutex
	active map[string]*session.Aggregator
}

// New constructs a new Application from the provided configuration.
func New(cfg *config.Config) (*Application, error) {
	logging.Init(logging.Config{
		Level:      cfg.Observability.LogLevel,
		Format:     cfg.Observability.LogFormat,
		TimeFormat: time.RFC3339,
	})

	a := &Application{
		Cfg:     cfg,
		Log:     logging.WithComponent("application"),
		Metrics: metrics.DefaultMetrics,
		active:  make(map[string]*session.Aggregator),
	}

	cat, err := catalog.Load()
	if err != nil {
		return nil, fmt.Errorf("load piece catalog: %w", err)
	}
	a.Catalog = cat

	if cfg.Storage.Enabled {
		db, err := store.Connect(cfg.Storage.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect storage: %w", err)
		}
		a.db = db
		a.Users = store.NewUserRepository(db)
		a.Sessions = store.NewSessionRepository(db)
		a.Calibrations = store.NewCalibrationRepository(db)
		a.Log.Info().Msg("Storage enabled, using PostgreSQL")
	} else {
		mem := store.NewMemoryStore()
		a.Users = mem.Users()
		a.Sessions = mem.Sessions()
		a.Calibrations = mem.Calibrations()
		a.Log.Info().Msg("Storage disabled, using in-memory store")
	}

	a.Publisher = events.New(&events.Config{
		Enabled:        cfg.Kafka.Enabled,
		Brokers:        cfg.Kafka.Brokers,
		TopicEvents:    cfg.Kafka.TopicEvents,
		TopicSummaries: cfg.Kafka.TopicSummaries,
		Principal:      cfg.Kafka.Principal,
	})

	a.Log.Info().
		Str("service", cfg.Service.Name).
		Str("environment", cfg.Service.Environment).
		Int("pieces", len(cat.Pieces())).
		Msg("Violin coach application created")
	return a, nil
}

// Start performs any startup work required before serving traffic.
func (a *Application) Start(ctx context.Context) error {
	a.StartupTime = time.Now().UTC()

	if a.db != nil {
		if err := store.AutoMigrate(a.db); err != nil {
			return fmt.Errorf("migrate schema: %w", err)
		}
		if err := store.HealthCheck(ctx, a.db); err != nil {
			return fmt.Errorf("storage health check: %w", err)
		}
	}

	a.Log.Info().Time("startupTime", a.StartupTime).Msg("Violin coach service starting")
	return nil
}

// Ready reports whether the service can take traffic.
func (a *Application) Ready(ctx context.Context) error {
	if a.db == nil {
		return nil
	}
	return store.HealthCheck(ctx, a.db)
}

// StartSession resolves the player and piece, loads the active calibration
// when one exists, and begins a new practice session.
func (a *Application) StartSession(ctx context.Context, username, pieceName string) (*store.PracticeSession, error) {
	user, err := a.Users.GetOrCreateByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	var piece *catalog.Piece
	if pieceName == "" {
		piece = a.Catalog.Default()
	} else {
		piece, err = a.Catalog.Get(pieceName)
		if err != nil {
			return nil, err
		}
	}

	reference := a.referenceFor(ctx, user.ID)

	agg, err := session.New(session.Options{
		Piece:     *piece,
		Reference: reference,
		Bow:       a.bowConfig(),
		Posture:   a.postureConfig(),
		Sessions:  a.Sessions,
		Publisher: a.Publisher,
		Metrics:   a.Metrics,
	})
	if err != nil {
		return nil, err
	}

	row, err := agg.Start(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.active[row.ID] = agg
	a.mu.Unlock()
	return row, nil
}

// ProcessFrame routes one keypoint frame to its session.
func (a *Application) ProcessFrame(ctx context.Context, sessionID string, frame *pose.Frame) (session.FrameResult, error) {
	agg, err := a.aggregator(ctx, sessionID)
	if err != nil {
		return session.FrameResult{}, err
	}
	return agg.ProcessFrame(ctx, frame)
}

// ProcessNote routes one detected note to its session.
func (a *Application) ProcessNote(ctx context.Context, sessionID string, note pitch.NoteEvent) (pitch.NoteEvent, error) {
	agg, err := a.aggregator(ctx, sessionID)
	if err != nil {
		return pitch.NoteEvent{}, err
	}
	return agg.ProcessNote(ctx, note)
}

// SessionSnapshot returns the live view of an active session.
func (a *Application) SessionSnapshot(ctx context.Context, sessionID string) (session.Snapshot, error) {
	agg, err := a.aggregator(ctx, sessionID)
	if err != nil {
		return session.Snapshot{}, err
	}
	return agg.Snapshot(), nil
}

// EndSession freezes a session and returns its summary.
func (a *Application) EndSession(ctx context.Context, sessionID string) (*models.SessionSummary, error) {
	agg, err := a.aggregator(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	summary, err := agg.End(ctx)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	delete(a.active, sessionID)
	a.mu.Unlock()
	return summary, nil
}

// EndActiveSessions ends every in-flight session, for shutdown.
func (a *Application) EndActiveSessions(ctx context.Context) {
	a.mu.Lock()
	aggregators := make(map[string]*session.Aggregator, len(a.active))
	for id, agg := range a.active {
		aggregators[id] = agg
	}
	a.active = make(map[string]*session.Aggregator)
	a.mu.Unlock()

	for id, agg := range aggregators {
		if _, err := agg.End(ctx); err != nil {
			logging.WithSession(id).Warn().Err(err).Msg("Failed to end session during shutdown")
		}
	}
}

// SaveCalibration captures a posture reference for the player and makes it
// the active profile.
func (a *Application) SaveCalibration(ctx context.Context, username, name string, frame *pose.Frame) (*store.CalibrationProfile, *posture.Reference, error) {
	user, err := a.Users.GetOrCreateByUsername(ctx, username)
	if err != nil {
		return nil, nil, err
	}

	reference := posture.BuildReference(frame)
	payload, err := json.Marshal(reference)
	if err != nil {
		return nil, nil, fmt.Errorf("encode calibration: %w", err)
	}

	if name == "" {
		name = "default"
	}
	profile := &store.CalibrationProfile{
		ID:      uuid.NewString(),
		UserID:  user.ID,
		Name:    name,
		Payload: payload,
	}
	if err := a.Calibrations.Save(ctx, profile); err != nil {
		return nil, nil, err
	}

	a.Log.Info().
		Str("userId", user.ID).
		Str("profile", name).
		Msg("Calibration profile saved")
	return profile, reference, nil
}

// ActiveCalibration returns the player's active profile and its decoded
// reference.
func (a *Application) ActiveCalibration(ctx context.Context, username string) (*store.CalibrationProfile, *posture.Reference, error) {
	user, err := a.Users.GetByUsername(ctx, username)
	if err != nil {
		return nil, nil, err
	}
	profile, err := a.Calibrations.GetActive(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	reference, err := posture.ParseReference(profile.Payload)
	if err != nil {
		return nil, nil, err
	}
	return profile, reference, nil
}

// ListUserSessions returns the player's most recent sessions.
func (a *Application) ListUserSessions(ctx context.Context, username string, limit int) ([]*store.PracticeSession, error) {
	user, err := a.Users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return a.Sessions.ListByUser(ctx, user.ID, limit)
}

// Shutdown performs a best-effort cleanup before process exit.
func (a *Application) Shutdown(ctx context.Context) {
	a.EndActiveSessions(ctx)

	if err := a.Publisher.Close(); err != nil {
		a.Log.Warn().Err(err).Msg("Error closing publisher")
	}
	if err := store.Close(a.db); err != nil {
		a.Log.Warn().Err(err).Msg("Error closing storage")
	}

	a.Log.Info().Msg("Violin coach service shut down")
}

// aggregator finds the session's live aggregator. A session that exists
// only in storage has already ended.
func (a *Application) aggregator(ctx context.Context, sessionID string) (*session.Aggregator, error) {
	a.mu.Lock()
	agg, ok := a.active[sessionID]
	a.mu.Unlock()
	if ok {
		return agg, nil
	}

	if _, err := a.Sessions.GetByID(ctx, sessionID); err != nil {
		return nil, err
	}
	return nil, session.ErrEnded
}

// referenceFor loads the user's active calibration. A missing or
// undecodable profile degrades to running without posture scoring.
func (a *Application) referenceFor(ctx context.Context, userID string) *posture.Reference {
	profile, err := a.Calibrations.GetActive(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			a.Log.Warn().Err(err).Str("userId", userID).Msg("Failed to load calibration")
		}
		return nil
	}
	reference, err := posture.ParseReference(profile.Payload)
	if err != nil {
		a.Log.Warn().Err(err).Str("userId", userID).Msg("Stored calibration is not decodable")
		return nil
	}
	return reference
}

func (a *Application) bowConfig() bow.Config {
	p := a.Cfg.Pipeline
	return bow.Config{
		WindowSize:     p.WindowSize,
		DeltaThreshold: p.DeltaThreshold,
		StabilityCount: p.StabilityCount,
	}
}

func (a *Application) postureConfig() posture.Config {
	p := a.Cfg.Pipeline
	return posture.Config{
		ExcellentBelow:     p.PostureExcellent,
		GoodBelow:          p.PostureGood,
		FairBelow:          p.PostureFair,
		ShoulderTolerance:  p.ShoulderTolerance,
		ElbowToleranceDeg:  p.ElbowToleranceDeg,
		BowArmMinDeg:       p.BowArmMinDeg,
		BowArmMaxDeg:       p.BowArmMaxDeg,
		MinJointConfidence: p.MinJointConfidence,
	}
}
