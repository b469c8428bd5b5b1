// internal/db/models.go
package db

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Notatki pochodzenia rekordu magazynowego
const (
	NoteStandalone     = "standalone"
	NoteVariableParent = "variable-parent"
	NoteVariationOf    = "variation-of:"
)

// physical_inventory - lokalny magazyn
type InventoryItem struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	ExternalID        int64           `gorm:"uniqueIndex;not null" json:"externalId"` // id produktu / wariantu w Woo
	Title             string          `gorm:"size:512" json:"title"`
	SKU               string          `gorm:"index;size:128" json:"sku"`
	Category          string          `gorm:"size:255" json:"category"`
	Price             decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"price"`
	Stock             int             `gorm:"not null;default:0" json:"stock"` // tylko lokalnie, sync nigdy nie nadpisuje
	LowStockThreshold int             `gorm:"not null" json:"lowStockThreshold"`
	IsLowStock        bool            `gorm:"index" json:"isLowStock"`
	ImageURL          string          `gorm:"size:1024" json:"imageUrl"`
	Notes             string          `gorm:"type:text" json:"notes"`
	ParentExternalID  *int64          `gorm:"index" json:"parentExternalId,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	LastUpdated       time.Time       `json:"lastUpdated"`
}

func (InventoryItem) TableName() string { return "physical_inventory" }

// sync_log - tylko dopisywanie
type SyncLogEntry struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	RunID           string    `gorm:"index;size:36" json:"runId"`
	Timestamp       time.Time `gorm:"index" json:"timestamp"`
	ProductsAdded   int       `json:"productsAdded"`
	ProductsUpdated int       `json:"productsUpdated"`
	Status          string    `gorm:"size:16;index" json:"status"` // success / error / cancelled
	Details         string    `gorm:"type:text" json:"details"`
	FullSync        bool      `json:"fullSync"`
	Source          string    `gorm:"size:16" json:"source"` // web / cli / tray / import
}

func (SyncLogEntry) TableName() string { return "sync_log" }

const (
	LogSuccess   = "success"
	LogError     = "error"
	LogCancelled = "cancelled"
)

// sync_issues - ostrzeżenia z deduplikacji (kolizje, duchy)
type SyncIssue struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	ExternalID       int64     `gorm:"uniqueIndex:uniq_issue_key;not null" json:"externalId"`
	Reason           string    `gorm:"uniqueIndex:uniq_issue_key;size:64;not null" json:"reason"`
	ParentExternalID int64     `json:"parentExternalId"`
	Details          string    `gorm:"type:text" json:"details"`
	RunID            string    `gorm:"size:36" json:"runId"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

const (
	IssueCrossParent = "cross_parent_collision"
	IssueGhost       = "ghost_variation"
	IssueDuplicate   = "duplicate_in_response"
)

// sync_states - checkpoint przebiegu per sesja (KV z wersją)
type SyncStateRow struct {
	SessionKey string         `gorm:"primaryKey;size:128"`
	Version    int64          `gorm:"not null"`
	Payload    datatypes.JSON `gorm:"not null"`
	UpdatedAt  time.Time
}
