package inventory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bartek5186/woo2mag/internal/db"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound = errors.New("inventory item not found")
	ErrExists   = errors.New("inventory item already exists")
)

// Store - lokalny magazyn fizyczny
type Store interface {
	FindByExternalID(ctx context.Context, externalID int64) (*db.InventoryItem, error)
	Insert(ctx context.Context, item *db.InventoryItem) (uint, error)
	Update(ctx context.Context, id uint, p Patch) error
}

// Patch - częściowa aktualizacja, nil = bez zmian
type Patch struct {
	Title             *string
	SKU               *string
	Category          *string
	Price             *decimal.Decimal
	ImageURL          *string
	Notes             *string
	Stock             *int
	LowStockThreshold *int
}

func (p Patch) Empty() bool {
	return p.Title == nil && p.SKU == nil && p.Category == nil && p.Price == nil &&
		p.ImageURL == nil && p.Notes == nil && p.Stock == nil && p.LowStockThreshold == nil
}

// IsLowStock: stan <= próg
func IsLowStock(stock, threshold int) bool { return stock <= threshold }

func VariationNote(parentID int64) string {
	return db.NoteVariationOf + strconv.FormatInt(parentID, 10)
}

type GormStore struct {
	log zerolog.Logger
	db  *gorm.DB
	now func() time.Time
}

func NewGormStore(log zerolog.Logger, gdb *gorm.DB) *GormStore {
	return &GormStore{log: log, db: gdb, now: time.Now}
}

func (s *GormStore) FindByExternalID(ctx context.Context, externalID int64) (*db.InventoryItem, error) {
	var item db.InventoryItem
	err := s.db.WithContext(ctx).Where("external_id = ?", externalID).Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find external_id=%d: %w", externalID, err)
	}
	return &item, nil
}

// Insert - atomowo, ON CONFLICT(external_id) DO NOTHING; ErrExists gdy rekord już był
func (s *GormStore) Insert(ctx context.Context, item *db.InventoryItem) (uint, error) {
	now := s.now()
	item.ID = 0
	item.IsLowStock = IsLowStock(item.Stock, item.LowStockThreshold)
	item.CreatedAt = now
	item.LastUpdated = now

	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_id"}}, // klucz unikalny
		DoNothing: true,
	}).Create(item)
	if res.Error != nil {
		return 0, fmt.Errorf("insert external_id=%d: %w", item.ExternalID, res.Error)
	}
	if res.RowsAffected == 0 {
		s.log.Debug().Int64("external_id", item.ExternalID).Msg("insert skipped, row exists")
		return 0, ErrExists
	}
	return item.ID, nil
}

// Update - zmienia tylko pola z patcha, przelicza is_low_stock gdy zmienia się stan albo próg
func (s *GormStore) Update(ctx context.Context, id uint, p Patch) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur db.InventoryItem
		if err := tx.Take(&cur, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		upd := map[string]any{"last_updated": s.now()}
		if p.Title != nil {
			upd["title"] = *p.Title
		}
		if p.SKU != nil {
			upd["sku"] = *p.SKU
		}
		if p.Category != nil {
			upd["category"] = *p.Category
		}
		if p.Price != nil {
			upd["price"] = *p.Price
		}
		if p.ImageURL != nil {
			upd["image_url"] = *p.ImageURL
		}
		if p.Notes != nil {
			upd["notes"] = *p.Notes
		}
		if p.Stock != nil || p.LowStockThreshold != nil {
			stock, threshold := cur.Stock, cur.LowStockThreshold
			if p.Stock != nil {
				stock = *p.Stock
				upd["stock"] = stock
			}
			if p.LowStockThreshold != nil {
				threshold = *p.LowStockThreshold
				upd["low_stock_threshold"] = threshold
			}
			upd["is_low_stock"] = IsLowStock(stock, threshold)
		}

		if err := tx.Model(&db.InventoryItem{}).Where("id = ?", id).Updates(upd).Error; err != nil {
			return fmt.Errorf("update id=%d: %w", id, err)
		}
		return nil
	})
}

func (s *GormStore) Get(ctx context.Context, id uint) (*db.InventoryItem, error) {
	var item db.InventoryItem
	err := s.db.WithContext(ctx).Take(&item, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &item, err
}

func (s *GormStore) List(ctx context.Context, limit, offset int) ([]db.InventoryItem, error) {
	var out []db.InventoryItem
	err := s.db.WithContext(ctx).Order("title ASC, id ASC").Limit(clampLimit(limit)).Offset(offset).Find(&out).Error
	return out, err
}

// All - cały magazyn, partiami po 1000
func (s *GormStore) All(ctx context.Context) ([]db.InventoryItem, error) {
	var out []db.InventoryItem
	var batch []db.InventoryItem
	err := s.db.WithContext(ctx).Order("id ASC").FindInBatches(&batch, 1000, func(tx *gorm.DB, _ int) error {
		out = append(out, batch...)
		return nil
	}).Error
	return out, err
}

// Search po tytule albo SKU (LIKE)
func (s *GormStore) Search(ctx context.Context, term string, limit int) ([]db.InventoryItem, error) {
	like := "%" + escapeLike(strings.TrimSpace(term)) + "%"
	var out []db.InventoryItem
	err := s.db.WithContext(ctx).
		Where("title LIKE ? ESCAPE '!' OR sku LIKE ? ESCAPE '!'", like, like).
		Order("title ASC").
		Limit(clampLimit(limit)).
		Find(&out).Error
	return out, err
}

func (s *GormStore) LowStock(ctx context.Context, limit int) ([]db.InventoryItem, error) {
	var out []db.InventoryItem
	err := s.db.WithContext(ctx).Where("is_low_stock = ?", true).Order("stock ASC, title ASC").Limit(clampLimit(limit)).Find(&out).Error
	return out, err
}

func (s *GormStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&db.InventoryItem{}).Count(&n).Error
	return n, err
}

func (s *GormStore) CountVariationsOf(ctx context.Context, parentID int64) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&db.InventoryItem{}).Where("notes = ?", VariationNote(parentID)).Count(&n).Error
	return n, err
}

// ExternalIDsByNotePrefix - np. wszystkie "variation-of:" do porównań w imporcie
func (s *GormStore) ExternalIDsByNotePrefix(ctx context.Context, prefix string) (map[int64]struct{}, error) {
	var ids []int64
	if err := s.db.WithContext(ctx).Model(&db.InventoryItem{}).
		Where("notes LIKE ? ESCAPE '!'", escapeLike(prefix)+"%").
		Pluck("external_id", &ids).Error; err != nil {
		return nil, err
	}
	out := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

// TotalValue - suma cena * stan
func (s *GormStore) TotalValue(ctx context.Context) (decimal.Decimal, error) {
	var rows []struct {
		Price decimal.Decimal
		Stock int
	}
	if err := s.db.WithContext(ctx).Model(&db.InventoryItem{}).Select("price", "stock").Where("stock > 0").Find(&rows).Error; err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, r := range rows {
		total = total.Add(r.Price.Mul(decimal.NewFromInt(int64(r.Stock))))
	}
	return total, nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return 100
	}
	return limit
}

// escape '!' działa tak samo w sqlite, mysql i postgres
func escapeLike(s string) string {
	return strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`).Replace(s)
}
