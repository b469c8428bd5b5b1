package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bartek5186/woo2mag/internal/db"
	"github.com/bartek5186/woo2mag/internal/integrations"
	"github.com/bartek5186/woo2mag/internal/inventory"
)

type Action int

const (
	ActionSkipped Action = iota
	ActionAdded
	ActionUpdated
)

func (a Action) String() string {
	switch a {
	case ActionAdded:
		return "added"
	case ActionUpdated:
		return "updated"
	}
	return "skipped"
}

// Reconciler porównuje rekord z katalogu z magazynem i dopisuje / aktualizuje.
// Stan magazynowy (stock) nigdy nie jest nadpisywany.
type Reconciler struct {
	store     inventory.Store
	threshold int
	dryRun    bool
}

func NewReconciler(store inventory.Store, lowStockThreshold int, dryRun bool) *Reconciler {
	return &Reconciler{store: store, threshold: lowStockThreshold, dryRun: dryRun}
}

func (r *Reconciler) Product(ctx context.Context, p integrations.RemoteProduct, fullSync bool) (Action, error) {
	if p.ID <= 0 {
		return ActionSkipped, fmt.Errorf("%w: product without id (%q)", ErrValidation, p.Name)
	}
	if strings.TrimSpace(p.Name) == "" {
		return ActionSkipped, fmt.Errorf("%w: product %d without name", ErrValidation, p.ID)
	}
	note := db.NoteStandalone
	if p.IsVariable() {
		note = db.NoteVariableParent
	}
	return r.upsert(ctx, db.InventoryItem{
		ExternalID:        p.ID,
		Title:             p.Name,
		SKU:               p.SKU,
		Category:          p.PrimaryCategory(),
		Price:             p.Price,
		ImageURL:          p.PrimaryImage(),
		Notes:             note,
		LowStockThreshold: r.threshold,
	}, fullSync)
}

func (r *Reconciler) Variation(ctx context.Context, parent integrations.RemoteProduct, v integrations.RemoteVariation, fullSync bool) (Action, error) {
	if v.ID <= 0 {
		return ActionSkipped, fmt.Errorf("%w: variation without id (parent %d)", ErrValidation, parent.ID)
	}
	parentID := parent.ID
	return r.upsert(ctx, db.InventoryItem{
		ExternalID:        v.ID,
		Title:             v.Title(parent.Name),
		SKU:               v.SKU,
		Category:          parent.PrimaryCategory(),
		Price:             v.Price,
		ImageURL:          v.ImageURL(parent),
		Notes:             inventory.VariationNote(parent.ID),
		ParentExternalID:  &parentID,
		LowStockThreshold: r.threshold,
	}, fullSync)
}

func (r *Reconciler) upsert(ctx context.Context, item db.InventoryItem, fullSync bool) (Action, error) {
	existing, err := r.store.FindByExternalID(ctx, item.ExternalID)
	if errors.Is(err, inventory.ErrNotFound) {
		if r.dryRun {
			return ActionAdded, nil
		}
		// nowy rekord zawsze ze stanem 0
		item.Stock = 0
		if _, err := r.store.Insert(ctx, &item); err != nil {
			if errors.Is(err, inventory.ErrExists) {
				// ktoś był szybszy
				return ActionSkipped, nil
			}
			return ActionSkipped, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		return ActionAdded, nil
	}
	if err != nil {
		return ActionSkipped, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if !fullSync {
		return ActionSkipped, nil
	}
	if r.dryRun {
		return ActionUpdated, nil
	}
	patch := inventory.Patch{
		Title:    &item.Title,
		SKU:      &item.SKU,
		Category: &item.Category,
		Price:    &item.Price,
		ImageURL: &item.ImageURL,
	}
	if err := r.store.Update(ctx, existing.ID, patch); err != nil {
		return ActionSkipped, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return ActionUpdated, nil
}
