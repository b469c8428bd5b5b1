package importer

import (
	"context"
	"fmt"
	"time"

	"github.com/bartek5186/woo2mag/internal/db"
	"github.com/bartek5186/woo2mag/internal/dedup"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormIssues - rejestr ostrzeżeń deduplikacji (sync_issues).
// Jeden wiersz na (external_id, reason), kolejne przebiegi go nadpisują.
type GormIssues struct {
	log zerolog.Logger
	db  *gorm.DB
}

func NewGormIssues(log zerolog.Logger, gdb *gorm.DB) *GormIssues {
	return &GormIssues{log: log, db: gdb}
}

func (g *GormIssues) Record(ctx context.Context, runID string, res dedup.Result) error {
	issues := make([]db.SyncIssue, 0, len(res.Collisions)+len(res.Ghosts)+len(res.Duplicates))
	for _, c := range res.Collisions {
		issues = append(issues, db.SyncIssue{
			ExternalID:       c.VariationID,
			Reason:           db.IssueCrossParent,
			ParentExternalID: c.ParentID,
			Details:          fmt.Sprintf("Wariant %d zwrócony pod produktem %d, zachowany pod %d", c.VariationID, c.ParentID, c.FirstParentID),
		})
	}
	for _, gh := range res.Ghosts {
		issues = append(issues, db.SyncIssue{
			ExternalID:       gh.VariationID,
			Reason:           db.IssueGhost,
			ParentExternalID: gh.ParentID,
			Details:          fmt.Sprintf("Wariant %d pominięty (status=%q)", gh.VariationID, gh.Status),
		})
	}
	for _, id := range res.Duplicates {
		issues = append(issues, db.SyncIssue{
			ExternalID:       id,
			Reason:           db.IssueDuplicate,
			ParentExternalID: res.ParentID,
			Details:          fmt.Sprintf("Wariant %d powtórzony w odpowiedzi dla produktu %d", id, res.ParentID),
		})
	}
	if len(issues) == 0 {
		return nil
	}

	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range issues {
			if err := saveIssue(tx, runID, &issues[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// saveIssue - upsert po (external_id, reason)
func saveIssue(tx *gorm.DB, runID string, issue *db.SyncIssue) error {
	issue.RunID = runID
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "external_id"},
			{Name: "reason"},
		},
		DoUpdates: clause.Assignments(map[string]any{
			"parent_external_id": issue.ParentExternalID,
			"details":            issue.Details,
			"run_id":             runID,
			"updated_at":         time.Now(),
		}),
	}).Create(issue).Error
	if err != nil {
		return fmt.Errorf("save issue external_id=%d reason=%s: %w", issue.ExternalID, issue.Reason, err)
	}
	return nil
}

// List - ostatnio zmienione najpierw; reason "" = wszystkie
func (g *GormIssues) List(ctx context.Context, reason string, limit int) ([]db.SyncIssue, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	q := g.db.WithContext(ctx).Order("updated_at DESC, id DESC").Limit(limit)
	if reason != "" {
		q = q.Where("reason = ?", reason)
	}
	var out []db.SyncIssue
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	return out, nil
}

// Clear - czyści rejestr (pełny rebuild przy imporcie)
func (g *GormIssues) Clear(ctx context.Context) error {
	return g.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&db.SyncIssue{}).Error
}
