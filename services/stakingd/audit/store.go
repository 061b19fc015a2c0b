package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"stakingcore/core/events"
)

// Record is one committed module event.
type Record struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Type       string    `gorm:"size:64;index" json:"type"`
	Attributes string    `gorm:"type:text" json:"-"`
	CreatedAt  time.Time `gorm:"index" json:"createdAt"`
}

// Fields decodes the stored attribute map.
func (r Record) Fields() (map[string]string, error) {
	out := make(map[string]string)
	if r.Attributes == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(r.Attributes), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AutoMigrate creates the audit tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Record{})
}

// Store persists committed events. It implements events.Emitter so a node
// can publish to it directly.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
	failed int
}

// Open connects to dsn. postgres:// URLs use the postgres driver; anything
// else is treated as a sqlite path.
func Open(dsn string, log *slog.Logger) (*Store, error) {
	db, err := gorm.Open(dialector(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	return New(db, log)
}

func dialector(dsn string) gorm.Dialector {
	trimmed := strings.TrimSpace(dsn)
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return postgres.Open(trimmed)
	}
	return sqlite.Open(trimmed)
}

// New wraps an existing gorm handle and migrates the schema.
func New(db *gorm.DB, log *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, errors.New("audit: database required")
	}
	if log == nil {
		log = slog.Default()
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate audit db: %w", err)
	}
	return &Store{db: db, logger: log, now: time.Now}, nil
}

// SetNowFunc overrides the record timestamp clock.
func (s *Store) SetNowFunc(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Emit implements events.Emitter. Events reach the store after the state
// commit, so a write failure is logged and counted rather than unwinding.
func (s *Store) Emit(ev events.Event) {
	if s == nil || ev == nil {
		return
	}
	payload := ev.Event()
	attrs, err := json.Marshal(payload.Attributes)
	if err != nil {
		s.fail(payload.Type, err)
		return
	}
	rec := Record{
		ID:         uuid.New(),
		Type:       payload.Type,
		Attributes: string(attrs),
		CreatedAt:  s.now().UTC(),
	}
	if err := s.db.Create(&rec).Error; err != nil {
		s.fail(payload.Type, err)
	}
}

func (s *Store) fail(eventType string, err error) {
	s.failed++
	s.logger.Error("audit write failed", slog.String("event", eventType), slog.Any("error", err))
}

// Failures returns the number of events that could not be stored.
func (s *Store) Failures() int { return s.failed }

// Query filters stored records.
type Query struct {
	Type  string
	Limit int
}

// List returns records newest first.
func (s *Store) List(ctx context.Context, q Query) ([]Record, error) {
	limit := q.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	tx := s.db.WithContext(ctx).Order("created_at desc").Limit(limit)
	if q.Type != "" {
		tx = tx.Where("type = ?", q.Type)
	}
	var out []Record
	if err := tx.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
