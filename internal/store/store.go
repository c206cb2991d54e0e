// Package store persists users, practice sessions, events, and calibration
// profiles. A GORM/PostgreSQL implementation backs production; an in-memory
// implementation backs tests and storage-disabled mode.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// User is a minimal practice account, looked up or created by username.
type User struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Username  string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"username"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// PracticeSession is one practice run. Score pointers stay nil until the
// session ends; a component that saw no data stays nil afterwards too.
type PracticeSession struct {
	ID        string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID    string     `gorm:"type:varchar(36);not null;index" json:"userId"`
	PieceName string     `gorm:"type:varchar(255);not null" json:"pieceName"`
	StartTime time.Time  `gorm:"not null" json:"startTime"`
	EndTime   *time.Time `json:"endTime,omitempty"`

	DurationSeconds      float64  `gorm:"not null;default:0" json:"durationSeconds"`
	PostureScore         *float64 `json:"postureScore,omitempty"`
	BowDirectionAccuracy *float64 `json:"bowDirectionAccuracy,omitempty"`
	RhythmScore          *float64 `json:"rhythmScore,omitempty"`
	OverallScore         *float64 `json:"overallScore,omitempty"`

	NoteCount  int `gorm:"not null;default:0" json:"noteCount"`
	EventCount int `gorm:"not null;default:0" json:"eventCount"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// Ended reports whether the session has been frozen.
func (s *PracticeSession) Ended() bool {
	return s.EndTime != nil
}

// PracticeEvent is one stored pipeline event. Payload carries the
// type-specific JSON document.
type PracticeEvent struct {
	ID        string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	SessionID string `gorm:"type:varchar(36);not null;index" json:"sessionId"`
	Type      string `gorm:"type:varchar(64);not null" json:"type"`
	Timestamp int64  `gorm:"not null" json:"timestamp"`
	Payload   []byte `gorm:"type:jsonb" json:"payload"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// CalibrationProfile is a saved reference posture. Payload carries the
// captured keypoints plus derived measurements; exactly one profile per
// user is active.
type CalibrationProfile struct {
	ID      string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID  string `gorm:"type:varchar(36);not null;index" json:"userId"`
	Name    string `gorm:"type:varchar(255);not null" json:"name"`
	Payload []byte `gorm:"type:jsonb;not null" json:"payload"`
	Active  bool   `gorm:"not null;default:false;index" json:"active"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (User) TableName() string               { return "users" }
func (PracticeSession) TableName() string    { return "practice_sessions" }
func (PracticeEvent) TableName() string      { return "practice_events" }
func (CalibrationProfile) TableName() string { return "calibration_profiles" }

// Connect opens the PostgreSQL database and configures the connection pool.
func Connect(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// AutoMigrate creates or updates the schema for all stored models.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&User{},
		&PracticeSession{},
		&PracticeEvent{},
		&CalibrationProfile{},
	); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// HealthCheck pings the database.
func HealthCheck(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is not initialized")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
