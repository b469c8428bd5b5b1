// Package dbtest daje zmigrowaną bazę sqlite w pamięci dla testów.
package dbtest

import (
	"testing"

	"github.com/bartek5186/woo2mag/internal/db"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

func New(t testing.TB) *gorm.DB {
	t.Helper()
	h, err := db.Open("sqlite://:memory:", zerolog.Nop())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := h.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })
	return h.DB
}
