package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bartek5186/woo2mag/internal/db"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStates - checkpointy w tabeli sync_states, przeżywają restart procesu
type GormStates struct {
	db *gorm.DB
}

func NewGormStates(gdb *gorm.DB) *GormStates {
	return &GormStates{db: gdb}
}

func (g *GormStates) Load(ctx context.Context, key string) (*SyncState, error) {
	var row db.SyncStateRow
	err := g.db.WithContext(ctx).Where("session_key = ?", key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load state %q: %w", key, err)
	}
	var st SyncState
	if err := json.Unmarshal(row.Payload, &st); err != nil {
		return nil, fmt.Errorf("decode state %q: %w", key, err)
	}
	st.Version = row.Version
	return &st, nil
}

func (g *GormStates) Save(ctx context.Context, key string, st *SyncState) error {
	expected := st.Version
	st.Version = expected + 1
	payload, err := json.Marshal(st)
	if err != nil {
		st.Version = expected
		return err
	}

	var res *gorm.DB
	if expected == 0 {
		res = g.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&db.SyncStateRow{
			SessionKey: key,
			Version:    st.Version,
			Payload:    datatypes.JSON(payload),
			UpdatedAt:  time.Now(),
		})
	} else {
		res = g.db.WithContext(ctx).Model(&db.SyncStateRow{}).
			Where("session_key = ? AND version = ?", key, expected).
			Updates(map[string]any{
				"version":    st.Version,
				"payload":    datatypes.JSON(payload),
				"updated_at": time.Now(),
			})
	}
	if res.Error != nil {
		st.Version = expected
		return fmt.Errorf("save state %q: %w", key, res.Error)
	}
	if res.RowsAffected == 0 {
		st.Version = expected
		return ErrVersionConflict
	}
	return nil
}

func (g *GormStates) Delete(ctx context.Context, key string) error {
	return g.db.WithContext(ctx).Where("session_key = ?", key).Delete(&db.SyncStateRow{}).Error
}
