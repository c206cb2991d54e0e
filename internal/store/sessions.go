package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// SessionRepository persists practice sessions and their event logs.
type SessionRepository interface {
	Create(ctx context.Context, session *PracticeSession) error
	Update(ctx context.Context, session *PracticeSession) error
	GetByID(ctx context.Context, id string) (*PracticeSession, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*PracticeSession, error)
	AppendEvent(ctx context.Context, event *PracticeEvent) error
	ListEvents(ctx context.Context, sessionID string) ([]*PracticeEvent, error)
}

type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository creates a GORM-backed SessionRepository.
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(ctx context.Context, session *PracticeSession) error {
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (r *sessionRepository) Update(ctx context.Context, session *PracticeSession) error {
	if err := r.db.WithContext(ctx).Save(session).Error; err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

func (r *sessionRepository) GetByID(ctx context.Context, id string) (*PracticeSession, error) {
	var session PracticeSession
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

func (r *sessionRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*PracticeSession, error) {
	if limit <= 0 {
		limit = 20
	}

	var sessions []*PracticeSession
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("start_time DESC").
		Limit(limit).
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

func (r *sessionRepository) AppendEvent(ctx context.Context, event *PracticeEvent) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func (r *sessionRepository) ListEvents(ctx context.Context, sessionID string) ([]*PracticeEvent, error) {
	var events []*PracticeEvent
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("timestamp ASC").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}
