package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jrsteele09/sadsa-portal/session"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultListLimit is how many events List returns when asked for none in particular
const DefaultListLimit = 100

// Origin describes where session events are coming from
type Origin struct {
	Client    string // "portal" or "cli"
	RemoteIP  string
	UserAgent string
}

// Journal is an append-only sqlite log of session events
type Journal struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// Open opens (creating if needed) the journal database at path.
// Use "file::memory:" for a throwaway journal.
func Open(path string, zlog zerolog.Logger) (*Journal, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.New(
			gormWriter{logger: zlog.With().Str("component", "gorm").Logger()},
			logger.Config{
				LogLevel:                  logger.Error,
				IgnoreRecordNotFoundError: true,
				SlowThreshold:             200 * time.Millisecond,
			},
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	// Every connection to an in-memory database would see its own empty database
	if strings.Contains(path, ":memory:") {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(4)
	}

	if err := db.AutoMigrate(&SessionEvent{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate audit database: %w", err)
	}
	return &Journal{db: db, logger: zlog}, nil
}

// gormWriter sends gorm's error and slow query lines to zerolog
type gormWriter struct {
	logger zerolog.Logger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.logger.Warn().Msgf(format, args...)
}

func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Recorder returns a session subscriber that journals every event with origin attached.
// Write failures are logged; they never fail the session change.
func (j *Journal) Recorder(origin Origin) func(session.Event) {
	return func(e session.Event) {
		if err := j.Append(context.Background(), e, origin); err != nil {
			j.logger.Error().Err(err).Str("kind", string(e.Kind)).Msg("failed to journal session event")
		}
	}
}

// Attach subscribes the journal to store and returns the unsubscribe func
func (j *Journal) Attach(store *session.Store, origin Origin) func() {
	return store.Subscribe(j.Recorder(origin))
}

// Append writes one event
func (j *Journal) Append(ctx context.Context, e session.Event, origin Origin) error {
	row := SessionEvent{
		Kind:       string(e.Kind),
		Scope:      string(e.Scope),
		Authorised: e.Authenticated(),
		OccurredAt: e.At.UTC(),
		Client:     origin.Client,
		RemoteIP:   origin.RemoteIP,
		UserAgent:  origin.UserAgent,
	}
	if e.Claims != nil {
		row.Email = strings.ToLower(e.Claims.Email)
		row.Role = string(e.Claims.Role)
		row.UserID = string(e.Claims.UserID)
	}
	if err := j.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert session event: %w", err)
	}
	return nil
}

// Filter narrows List results; zero values match everything
type Filter struct {
	Email string
	Kind  session.EventKind
	Limit int
}

// List returns the latest events first
func (j *Journal) List(ctx context.Context, filter Filter) ([]SessionEvent, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := j.db.WithContext(ctx).Model(&SessionEvent{})
	if filter.Email != "" {
		query = query.Where("email = ?", strings.ToLower(filter.Email))
	}
	if filter.Kind != "" {
		query = query.Where("kind = ?", string(filter.Kind))
	}

	var events []SessionEvent
	if err := query.Order("occurred_at DESC").Order("id DESC").Limit(limit).Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to list session events: %w", err)
	}
	return events, nil
}
