package syncer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bartek5186/woo2mag/internal/dedup"
)

type Status string

const (
	StatusIdle       Status = "idle"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// maksymalna liczba błędów trzymanych w checkpoincie
const maxStateErrors = 200

// SyncState - checkpoint przebiegu, zapisywany po każdej stronie
type SyncState struct {
	RunID             string         `json:"runId"`
	Status            Status         `json:"status"`
	Source            string         `json:"source"`
	Page              int            `json:"page"`
	PageSize          int            `json:"pageSize"`
	FullSync          bool           `json:"fullSync"`
	ProductsAdded     int            `json:"productsAdded"`
	ProductsUpdated   int            `json:"productsUpdated"`
	ProcessedProducts int            `json:"processedProducts"`
	TotalProducts     int            `json:"totalProducts"`
	EstimatedTotal    int            `json:"estimatedTotal"`
	LastPageCount     int            `json:"lastPageCount"`
	StallPages        int            `json:"stallPages"`
	PageFailures      int            `json:"pageFailures"`
	Errors            []string       `json:"errors"`
	ErrorCount        int            `json:"errorCount"`
	StartTime         time.Time      `json:"startTime"`
	Version           int64          `json:"version"`
	Dedup             dedup.Snapshot `json:"dedup"`
}

func idleState() *SyncState {
	return &SyncState{Status: StatusIdle}
}

func (s *SyncState) addError(msg string) {
	s.ErrorCount++
	if len(s.Errors) < maxStateErrors {
		s.Errors = append(s.Errors, msg)
	}
}

func (s *SyncState) clone() *SyncState {
	raw, _ := json.Marshal(s)
	var out SyncState
	_ = json.Unmarshal(raw, &out)
	return &out
}

// token wznowienia: base64(json{run,page})
type continuation struct {
	Run  string `json:"run"`
	Page int    `json:"page"`
}

func EncodeToken(runID string, page int) string {
	raw, _ := json.Marshal(continuation{Run: runID, Page: page})
	return base64.StdEncoding.EncodeToString(raw)
}

func DecodeToken(token string) (runID string, page int, err error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", 0, fmt.Errorf("token: %w", err)
	}
	var c continuation
	if err := json.Unmarshal(raw, &c); err != nil {
		return "", 0, fmt.Errorf("token: %w", err)
	}
	if c.Page < 1 {
		return "", 0, errors.New("token: invalid page")
	}
	return c.Run, c.Page, nil
}

var (
	ErrStateNotFound   = errors.New("sync state not found")
	ErrVersionConflict = errors.New("sync state modified concurrently")
)

// StateRepository - checkpointy per sesja.
// Save porównuje Version z zapisaną (0 = nowy rekord) i przy sukcesie ją podbija.
type StateRepository interface {
	Load(ctx context.Context, key string) (*SyncState, error)
	Save(ctx context.Context, key string, st *SyncState) error
	Delete(ctx context.Context, key string) error
}
