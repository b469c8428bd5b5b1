// Package importer - jednorazowy import produktów wariantowych (parent + warianty)
// poza stronicowaną synchronizacją; z --dry-run tylko plan.
package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bartek5186/woo2mag/internal/db"
	"github.com/bartek5186/woo2mag/internal/dedup"
	"github.com/bartek5186/woo2mag/internal/integrations"
	"github.com/bartek5186/woo2mag/internal/inventory"
	"github.com/bartek5186/woo2mag/internal/syncer"
	"github.com/bartek5186/woo2mag/internal/synclog"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const Source = "import"

type Mode string

const (
	ModeBasic       Mode = "basic"
	ModeStatusAware Mode = "status-aware"
	ModeStrict      Mode = "strict"
)

var ErrNotVariable = errors.New("product is not variable")

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeBasic, ModeStatusAware, ModeStrict:
		return m, nil
	case "":
		return ModeStrict, nil
	}
	return "", fmt.Errorf("unknown import mode %q (basic|status-aware|strict)", s)
}

func (m Mode) options() dedup.Options {
	switch m {
	case ModeBasic:
		return dedup.Basic()
	case ModeStatusAware:
		return dedup.StatusAware()
	}
	return dedup.Strict()
}

type Options struct {
	Mode      Mode
	DryRun    bool
	ProductID int64 // 0 = wszystkie produkty wariantowe
	PageSize  int
}

// PlanItem - jedna pozycja planu / wyniku
type PlanItem struct {
	ExternalID int64  `json:"externalId"`
	ParentID   int64  `json:"parentId,omitempty"`
	Title      string `json:"title"`
	Action     string `json:"action"`
}

type Report struct {
	RunID            string        `json:"runId"`
	Mode             Mode          `json:"mode"`
	DryRun           bool          `json:"dryRun"`
	VariableProducts int           `json:"variableProducts"`
	ParentsAdded     int           `json:"parentsAdded"`
	VariationsAdded  int           `json:"variationsAdded"`
	Skipped          int           `json:"skipped"`
	Dedup            dedup.Stats   `json:"dedup"`
	Plan             []PlanItem    `json:"plan"`
	Errors           []string      `json:"errors"`
	Took             time.Duration `json:"took"`
}

type Importer struct {
	log       zerolog.Logger
	catalog   integrations.Catalog
	store     inventory.Store
	history   synclog.Log
	issues    syncer.IssueRecorder // opcjonalne
	threshold int
	now       func() time.Time
}

func New(log zerolog.Logger, catalog integrations.Catalog, store inventory.Store, history synclog.Log, issues syncer.IssueRecorder, lowStockThreshold int) *Importer {
	return &Importer{
		log:       log,
		catalog:   catalog,
		store:     store,
		history:   history,
		issues:    issues,
		threshold: lowStockThreshold,
		now:       time.Now,
	}
}

// Run: najpierw zbiera wszystkie produkty wariantowe, potem importuje.
// Błąd pobierania listy przerywa przed jakimkolwiek zapisem.
func (i *Importer) Run(ctx context.Context, opts Options) (*Report, error) {
	if opts.Mode == "" {
		opts.Mode = ModeStrict
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}
	start := i.now()
	rep := &Report{RunID: uuid.NewString(), Mode: opts.Mode, DryRun: opts.DryRun}
	log := i.log.With().Str("run_id", rep.RunID).Str("mode", string(opts.Mode)).Bool("dry_run", opts.DryRun).Logger()

	if err := i.catalog.TestConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", syncer.ErrConnectivity, err)
	}

	parents, err := i.collectParents(ctx, opts)
	if err != nil {
		return nil, err
	}
	rep.VariableProducts = len(parents)
	log.Info().Int("variable_products", len(parents)).Msg("import: parents collected")

	filter := dedup.New(log, opts.Mode.options())
	rec := syncer.NewReconciler(i.store, i.threshold, opts.DryRun)

	for _, p := range parents {
		if ctx.Err() != nil {
			rep.Errors = append(rep.Errors, "interrupted: "+ctx.Err().Error())
			break
		}
		a, err := rec.Product(ctx, p, false)
		if err != nil {
			rep.Errors = append(rep.Errors, err.Error())
			continue
		}
		rep.add(PlanItem{ExternalID: p.ID, Title: p.Name, Action: a.String()}, false)

		vp := i.catalog.FetchVariations(ctx, p.ID, integrations.Filters{})
		if vp.Outcome == integrations.OutcomeFailed {
			rep.Errors = append(rep.Errors, fmt.Sprintf("variations of product %d: %v", p.ID, vp.Err))
			continue
		}
		res := filter.Apply(p, vp.Items)
		if !opts.DryRun && i.issues != nil {
			if err := i.issues.Record(ctx, rep.RunID, res); err != nil {
				log.Warn().Err(err).Int64("parent_id", p.ID).Msg("import: cannot record issues")
			}
		}
		for _, pair := range res.Pairs {
			a, err := rec.Variation(ctx, pair.Parent, pair.Variation, false)
			if err != nil {
				rep.Errors = append(rep.Errors, err.Error())
				continue
			}
			rep.add(PlanItem{
				ExternalID: pair.Variation.ID,
				ParentID:   p.ID,
				Title:      pair.Variation.Title(p.Name),
				Action:     a.String(),
			}, true)
		}
	}

	rep.Dedup = filter.Stats()
	rep.Took = i.now().Sub(start)

	log.Info().
		Int("parents_added", rep.ParentsAdded).
		Int("variations_added", rep.VariationsAdded).
		Int("skipped", rep.Skipped).
		Int("duplicates", rep.Dedup.DuplicatesDropped).
		Int("ghosts", rep.Dedup.GhostsDropped).
		Int("errors", len(rep.Errors)).
		Msg("import finished")

	if !opts.DryRun && i.history != nil {
		details := fmt.Sprintf("Variable products: %d, Parents added: %d, Variations added: %d, Mode: %s",
			rep.VariableProducts, rep.ParentsAdded, rep.VariationsAdded, opts.Mode)
		if len(rep.Errors) > 0 {
			details += fmt.Sprintf(", Errors: %d", len(rep.Errors))
		}
		if err := i.history.Append(ctx, &db.SyncLogEntry{
			RunID:         rep.RunID,
			Timestamp:     i.now(),
			ProductsAdded: rep.ParentsAdded + rep.VariationsAdded,
			Status:        db.LogSuccess,
			Details:       details,
			Source:        Source,
		}); err != nil {
			log.Error().Err(err).Msg("import: cannot write sync log")
		}
	}
	return rep, nil
}

func (r *Report) add(it PlanItem, variation bool) {
	if it.Action != syncer.ActionAdded.String() {
		r.Skipped++
		return
	}
	if variation {
		r.VariationsAdded++
	} else {
		r.ParentsAdded++
	}
	r.Plan = append(r.Plan, it)
}

func (i *Importer) collectParents(ctx context.Context, opts Options) ([]integrations.RemoteProduct, error) {
	if opts.ProductID > 0 {
		p, err := i.catalog.FetchProduct(ctx, opts.ProductID)
		if err != nil {
			return nil, fmt.Errorf("%w: product %d: %v", syncer.ErrTransport, opts.ProductID, err)
		}
		if !p.IsVariable() {
			return nil, fmt.Errorf("%w: %d (%s)", ErrNotVariable, p.ID, p.Type)
		}
		return []integrations.RemoteProduct{*p}, nil
	}

	var out []integrations.RemoteProduct
	seen := map[int64]struct{}{}
	for page := 1; ; page++ {
		pp := i.catalog.FetchProductsPage(ctx, opts.PageSize, page, integrations.Filters{})
		switch pp.Outcome {
		case integrations.OutcomeFailed:
			return nil, fmt.Errorf("%w: page %d: %v", syncer.ErrTransport, page, pp.Err)
		case integrations.OutcomeEndOfData:
			return out, nil
		}
		for _, p := range pp.Items {
			if !p.IsVariable() {
				continue
			}
			if _, dup := seen[p.ID]; dup {
				continue
			}
			seen[p.ID] = struct{}{}
			out = append(out, p)
		}
		if len(pp.Items) < opts.PageSize {
			return out, nil
		}
	}
}
