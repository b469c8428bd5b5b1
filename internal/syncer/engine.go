package syncer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/bartek5186/woo2mag/internal/db"
	"github.com/bartek5186/woo2mag/internal/dedup"
	"github.com/bartek5186/woo2mag/internal/events"
	"github.com/bartek5186/woo2mag/internal/integrations"
	"github.com/bartek5186/woo2mag/internal/inventory"
	"github.com/bartek5186/woo2mag/internal/synclog"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// IssueRecorder zapisuje ostrzeżenia deduplikacji (kolizje, duchy)
type IssueRecorder interface {
	Record(ctx context.Context, runID string, res dedup.Result) error
}

type Deps struct {
	Catalog integrations.Catalog
	Store   inventory.Store
	States  StateRepository
	Log     synclog.Log
	Issues  IssueRecorder    // opcjonalne
	Events  events.Publisher // opcjonalne
}

// StepResult - odpowiedź start/continue
type StepResult struct {
	Status            Status      `json:"status"`
	AddedCount        int         `json:"addedCount"`
	UpdatedCount      int         `json:"updatedCount"`
	Errors            []string    `json:"errors"`
	IsComplete        bool        `json:"isComplete"`
	ContinuationToken string      `json:"continuationToken,omitempty"`
	ProcessedCount    int         `json:"processedCount"`
	TotalCount        int         `json:"totalCount"`
	ProgressPercent   int         `json:"progressPercent"`
	Page              int         `json:"page"`
	Dedup             dedup.Stats `json:"dedup"`
}

type Progress struct {
	InProgress bool   `json:"inProgress"`
	RunID      string `json:"runId,omitempty"`
	Percent    int    `json:"percent"`
	Processed  int    `json:"processed"`
	Total      int    `json:"total"`
	Added      int    `json:"added"`
	Updated    int    `json:"updated"`
	Page       int    `json:"page"`
	LastCount  int    `json:"lastCount"`
	FullSync   bool   `json:"fullSync"`
	Errors     int    `json:"errors"`
}

// Engine - przyrostowa, wznawialna synchronizacja katalogu do magazynu.
// Jedno wywołanie Continue = jedna strona produktów.
type Engine struct {
	log    zerolog.Logger
	deps   Deps
	policy Policy
	rec    *Reconciler
	locks  keyedMutex
	now    func() time.Time
}

func NewEngine(log zerolog.Logger, deps Deps, policy Policy) *Engine {
	if deps.Events == nil {
		deps.Events = events.Nop{}
	}
	return &Engine{
		log:    log,
		deps:   deps,
		policy: policy,
		rec:    NewReconciler(deps.Store, policy.LowStockThreshold, false),
		locks:  keyedMutex{locks: map[string]*refMutex{}},
		now:    time.Now,
	}
}

func (e *Engine) Policy() Policy { return e.policy }

// Start - nowy przebieg: test połączenia, checkpoint, pierwsza strona
func (e *Engine) Start(ctx context.Context, session string, fullSync bool, source string) (*StepResult, error) {
	if e.deps.Catalog == nil {
		return nil, ErrNoCatalog
	}
	unlock := e.locks.Lock(session)
	defer unlock()
	return e.startLocked(ctx, session, fullSync, source)
}

// Continue - kolejna strona; pusty token = bez weryfikacji
func (e *Engine) Continue(ctx context.Context, session, token string) (*StepResult, error) {
	if e.deps.Catalog == nil {
		return nil, ErrNoCatalog
	}
	unlock := e.locks.Lock(session)
	defer unlock()

	st, err := e.loadActive(ctx, session)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, ErrNotRunning
	}
	if token != "" {
		run, page, err := DecodeToken(token)
		if err != nil || run != st.RunID || page != st.Page {
			return nil, ErrStaleToken
		}
	}
	return e.step(ctx, session, st)
}

// Sync - kontynuuje trwający przebieg albo zaczyna nowy
func (e *Engine) Sync(ctx context.Context, session string, fullSync bool, source string) (*StepResult, error) {
	if e.deps.Catalog == nil {
		return nil, ErrNoCatalog
	}
	unlock := e.locks.Lock(session)
	defer unlock()

	st, err := e.loadActive(ctx, session)
	if err != nil {
		return nil, err
	}
	if st != nil {
		return e.step(ctx, session, st)
	}
	return e.startLocked(ctx, session, fullSync, source)
}

// State - bieżący checkpoint albo stan bezczynny
func (e *Engine) State(ctx context.Context, session string) (*SyncState, error) {
	st, err := e.loadActive(ctx, session)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return idleState(), nil
	}
	return st, nil
}

func (e *Engine) Progress(ctx context.Context, session string) (Progress, error) {
	st, err := e.loadActive(ctx, session)
	if err != nil {
		return Progress{}, err
	}
	if st == nil {
		return Progress{}, nil
	}
	return Progress{
		InProgress: true,
		RunID:      st.RunID,
		Percent:    percent(st.ProcessedProducts, st.EstimatedTotal),
		Processed:  st.ProcessedProducts,
		Total:      st.EstimatedTotal,
		Added:      st.ProductsAdded,
		Updated:    st.ProductsUpdated,
		Page:       st.Page,
		LastCount:  st.LastPageCount,
		FullSync:   st.FullSync,
		Errors:     st.ErrorCount,
	}, nil
}

// Reset - kasuje checkpoint; przerwany przebieg trafia do historii jako cancelled
func (e *Engine) Reset(ctx context.Context, session string) error {
	unlock := e.locks.Lock(session)
	defer unlock()

	st, err := e.deps.States.Load(ctx, session)
	if err != nil && !errors.Is(err, ErrStateNotFound) {
		e.log.Warn().Err(err).Str("session", session).Msg("reset: cannot read state, deleting anyway")
	}
	if err := e.deps.States.Delete(ctx, session); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	if st != nil && st.Status == StatusInProgress {
		e.finish(ctx, st, db.LogCancelled, fmt.Sprintf("Sync cancelled at page %d, Processed: %d", st.Page, st.ProcessedProducts))
	}
	e.log.Info().Str("session", session).Msg("sync state reset")
	return nil
}

func (e *Engine) Recent(ctx context.Context, n int) ([]db.SyncLogEntry, error) {
	return e.deps.Log.Recent(ctx, n)
}

func (e *Engine) LastRun(ctx context.Context) (*db.SyncLogEntry, error) {
	return e.deps.Log.Last(ctx)
}

func (e *Engine) startLocked(ctx context.Context, session string, fullSync bool, source string) (*StepResult, error) {
	active, err := e.loadActive(ctx, session)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, ErrAlreadyRunning
	}

	st := &SyncState{
		RunID:          uuid.NewString(),
		Status:         StatusInProgress,
		Source:         source,
		Page:           1,
		PageSize:       e.policy.PageSize,
		FullSync:       fullSync,
		EstimatedTotal: e.policy.InitialEstimate,
		StartTime:      e.now(),
	}
	log := e.log.With().Str("run_id", st.RunID).Str("session", session).Logger()

	if err := e.deps.Catalog.TestConnectivity(ctx); err != nil {
		msg := "Connection failed: " + err.Error()
		log.Error().Err(err).Msg("sync not started")
		st.Status = StatusError
		st.addError(msg)
		e.finish(ctx, st, db.LogError, msg)
		res := e.result(st)
		res.IsComplete = true
		return res, fmt.Errorf("%w: %v", ErrConnectivity, err)
	}

	if err := e.deps.States.Save(ctx, session, st); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return nil, ErrAlreadyRunning
		}
		return nil, fmt.Errorf("save state: %w", err)
	}
	log.Info().Bool("full_sync", fullSync).Int("page_size", st.PageSize).Str("source", source).Msg("sync started")
	return e.step(ctx, session, st)
}

// loadActive zwraca trwający przebieg albo nil; przeterminowany kasuje
func (e *Engine) loadActive(ctx context.Context, session string) (*SyncState, error) {
	st, err := e.deps.States.Load(ctx, session)
	if errors.Is(err, ErrStateNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if st.Status != StatusInProgress {
		_ = e.deps.States.Delete(ctx, session)
		return nil, nil
	}
	if e.now().Sub(st.StartTime) > e.policy.MaxDuration {
		e.log.Warn().
			Str("run_id", st.RunID).
			Str("session", session).
			Time("started", st.StartTime).
			Msg("sync exceeded max duration, state reset")
		if err := e.deps.States.Delete(ctx, session); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return st, nil
}

// step przetwarza jedną stronę katalogu
func (e *Engine) step(ctx context.Context, session string, st *SyncState) (*StepResult, error) {
	// strona jest przetwarzana do końca nawet gdy klient HTTP się rozłączy
	ctx = context.WithoutCancel(ctx)
	log := e.log.With().Str("run_id", st.RunID).Int("page", st.Page).Logger()

	page := e.deps.Catalog.FetchProductsPage(ctx, st.PageSize, st.Page, integrations.Filters{Status: integrations.StatusPublish})

	switch page.Outcome {
	case integrations.OutcomeFailed:
		st.PageFailures++
		st.addError(fmt.Sprintf("page %d: %v", st.Page, page.Err))
		if st.PageFailures >= e.policy.MaxPageRetries {
			return e.abort(ctx, session, st, fmt.Errorf("%w: page %d failed %d times: %v", ErrTransport, st.Page, st.PageFailures, page.Err))
		}
		log.Warn().Err(page.Err).Int("failures", st.PageFailures).Msg("page fetch failed, will retry on next continue")
		if err := e.deps.States.Save(ctx, session, st); err != nil {
			return nil, fmt.Errorf("save state: %w", err)
		}
		return e.result(st), nil

	case integrations.OutcomeEndOfData:
		st.LastPageCount = 0
		st.EstimatedTotal = (st.Page-1)*st.PageSize
		return e.complete(ctx, session, st, "")
	}

	st.PageFailures = 0
	filter := dedup.Restore(e.log, dedup.Strict(), st.Dedup)
	before := st.ProductsAdded + st.ProductsUpdated

	for _, p := range page.Items {
		e.processProduct(ctx, st, filter, p)
	}

	st.Dedup = filter.Snapshot()
	count := len(page.Items)
	st.ProcessedProducts += count
	st.LastPageCount = count
	if st.ProductsAdded+st.ProductsUpdated > before {
		st.StallPages = 0
	} else {
		st.StallPages++
	}
	st.EstimatedTotal = e.policy.estimate(st.EstimatedTotal, st.Page, st.PageSize, count, page.Total)

	log.Debug().
		Int("count", count).
		Int("added", st.ProductsAdded).
		Int("updated", st.ProductsUpdated).
		Int("estimated_total", st.EstimatedTotal).
		Msg("page processed")

	if count < st.PageSize {
		return e.complete(ctx, session, st, "")
	}
	if e.policy.stalled(st) {
		return e.complete(ctx, session, st, fmt.Sprintf(", stopped after %d pages without changes", st.StallPages))
	}

	st.Page++
	if err := e.deps.States.Save(ctx, session, st); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return nil, err
		}
		return e.abort(ctx, session, st, fmt.Errorf("save state: %w", err))
	}
	return e.result(st), nil
}

func (e *Engine) processProduct(ctx context.Context, st *SyncState, filter *dedup.Filter, p integrations.RemoteProduct) {
	a, err := e.rec.Product(ctx, p, st.FullSync)
	e.count(st, a, err)
	if !p.IsVariable() || p.ID <= 0 {
		return
	}

	vp := e.deps.Catalog.FetchVariations(ctx, p.ID, integrations.Filters{Status: integrations.StatusPublish})
	if vp.Outcome == integrations.OutcomeFailed {
		st.addError(fmt.Sprintf("variations of product %d: %v", p.ID, vp.Err))
		return
	}

	res := filter.Apply(p, vp.Items)
	if e.deps.Issues != nil && (len(res.Collisions) > 0 || len(res.Ghosts) > 0 || len(res.Duplicates) > 0) {
		if err := e.deps.Issues.Record(ctx, st.RunID, res); err != nil {
			e.log.Warn().Err(err).Int64("parent_id", p.ID).Msg("cannot record sync issues")
		}
	}
	for _, c := range res.Collisions {
		st.addError(fmt.Sprintf("warning: variation %d also listed under product %d, kept under %d", c.VariationID, c.ParentID, c.FirstParentID))
	}
	for _, pair := range res.Pairs {
		a, err := e.rec.Variation(ctx, pair.Parent, pair.Variation, st.FullSync)
		e.count(st, a, err)
	}
}

func (e *Engine) count(st *SyncState, a Action, err error) {
	if err != nil {
		st.addError(err.Error())
		return
	}
	switch a {
	case ActionAdded:
		st.ProductsAdded++
	case ActionUpdated:
		st.ProductsUpdated++
	}
}

func (e *Engine) complete(ctx context.Context, session string, st *SyncState, suffix string) (*StepResult, error) {
	st.Status = StatusCompleted
	st.TotalProducts = st.ProcessedProducts
	details := fmt.Sprintf("Total products: %d, Processed: %d%s", st.TotalProducts, st.ProcessedProducts, suffix)
	if st.ErrorCount > 0 {
		details += fmt.Sprintf(", Errors: %d", st.ErrorCount)
	}
	e.finish(ctx, st, db.LogSuccess, details)
	if err := e.deps.States.Delete(ctx, session); err != nil {
		e.log.Warn().Err(err).Str("session", session).Msg("cannot delete finished state")
	}

	e.log.Info().
		Str("run_id", st.RunID).
		Int("added", st.ProductsAdded).
		Int("updated", st.ProductsUpdated).
		Int("processed", st.ProcessedProducts).
		Int("errors", st.ErrorCount).
		Dur("took", e.now().Sub(st.StartTime)).
		Msg("sync completed")

	res := e.result(st)
	res.IsComplete = true
	res.ContinuationToken = ""
	res.ProgressPercent = 100
	res.TotalCount = st.TotalProducts
	return res, nil
}

func (e *Engine) abort(ctx context.Context, session string, st *SyncState, cause error) (*StepResult, error) {
	st.Status = StatusError
	e.log.Error().Err(cause).Str("run_id", st.RunID).Msg("sync aborted")
	e.finish(ctx, st, db.LogError, cause.Error())
	if err := e.deps.States.Delete(ctx, session); err != nil {
		e.log.Warn().Err(err).Str("session", session).Msg("cannot delete aborted state")
	}
	res := e.result(st)
	res.IsComplete = true
	res.ContinuationToken = ""
	return res, cause
}

// finish - wpis w historii + zdarzenie
func (e *Engine) finish(ctx context.Context, st *SyncState, status, details string) {
	entry := db.SyncLogEntry{
		RunID:           st.RunID,
		Timestamp:       e.now(),
		ProductsAdded:   st.ProductsAdded,
		ProductsUpdated: st.ProductsUpdated,
		Status:          status,
		Details:         details,
		FullSync:        st.FullSync,
		Source:          st.Source,
	}
	if err := e.deps.Log.Append(ctx, &entry); err != nil {
		e.log.Error().Err(err).Str("run_id", st.RunID).Msg("cannot write sync log")
		return
	}
	if err := e.deps.Events.PublishRunFinished(ctx, entry); err != nil {
		e.log.Warn().Err(err).Str("run_id", st.RunID).Msg("cannot publish run event")
	}
}

func (e *Engine) result(st *SyncState) *StepResult {
	res := &StepResult{
		Status:          st.Status,
		AddedCount:      st.ProductsAdded,
		UpdatedCount:    st.ProductsUpdated,
		Errors:          append([]string{}, st.Errors...),
		ProcessedCount:  st.ProcessedProducts,
		TotalCount:      st.EstimatedTotal,
		ProgressPercent: percent(st.ProcessedProducts, st.EstimatedTotal),
		Page:            st.Page,
		Dedup:           st.Dedup.Stats,
	}
	if st.Status == StatusInProgress {
		res.ContinuationToken = EncodeToken(st.RunID, st.Page)
	}
	return res
}

// percent: do 99 w trakcie, 100 tylko po zakończeniu
func percent(processed, estimated int) int {
	if estimated <= 0 {
		return 0
	}
	p := int(math.Round(float64(processed) / float64(estimated) * 100))
	if p > 99 {
		return 99
	}
	return p
}

// keyedMutex - blokada per sesja; wpis znika, gdy nikt go nie trzyma ani nie czeka
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = map[string]*refMutex{}
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
