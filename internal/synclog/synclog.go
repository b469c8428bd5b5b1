// Package synclog - historia przebiegów synchronizacji (tylko dopisywanie).
package synclog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bartek5186/woo2mag/internal/db"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type Log interface {
	Append(ctx context.Context, e *db.SyncLogEntry) error
	Recent(ctx context.Context, n int) ([]db.SyncLogEntry, error)
	Last(ctx context.Context) (*db.SyncLogEntry, error)
}

type GormLog struct {
	log zerolog.Logger
	db  *gorm.DB
}

func NewGormLog(log zerolog.Logger, gdb *gorm.DB) *GormLog {
	return &GormLog{log: log, db: gdb}
}

func (l *GormLog) Append(ctx context.Context, e *db.SyncLogEntry) error {
	e.ID = 0
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if err := l.db.WithContext(ctx).Create(e).Error; err != nil {
		return fmt.Errorf("sync_log append: %w", err)
	}
	l.log.Info().
		Str("run_id", e.RunID).
		Str("status", e.Status).
		Int("added", e.ProductsAdded).
		Int("updated", e.ProductsUpdated).
		Msg(e.Details)
	return nil
}

// Recent - najnowsze n wpisów, od najnowszego
func (l *GormLog) Recent(ctx context.Context, n int) ([]db.SyncLogEntry, error) {
	if n <= 0 {
		n = 10
	}
	var out []db.SyncLogEntry
	err := l.db.WithContext(ctx).Order("timestamp DESC, id DESC").Limit(n).Find(&out).Error
	return out, err
}

func (l *GormLog) Last(ctx context.Context) (*db.SyncLogEntry, error) {
	var e db.SyncLogEntry
	err := l.db.WithContext(ctx).Order("timestamp DESC, id DESC").Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}
