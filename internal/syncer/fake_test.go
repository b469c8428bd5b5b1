package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bartek5186/woo2mag/internal/db"
	"github.com/bartek5186/woo2mag/internal/db/dbtest"
	"github.com/bartek5186/woo2mag/internal/dedup"
	"github.com/bartek5186/woo2mag/internal/integrations"
	"github.com/bartek5186/woo2mag/internal/inventory"
	"github.com/bartek5186/woo2mag/internal/synclog"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// fakeCatalog - katalog w pamięci stronicowany jak Woo
type fakeCatalog struct {
	mu         sync.Mutex
	products   []integrations.RemoteProduct
	variations map[int64][]integrations.RemoteVariation
	connErr    error
	failPages  map[int]int // strona -> ile razy jeszcze ma się nie udać
	failVars   map[int64]int
	total      int
	pageCalls  []int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{variations: map[int64][]integrations.RemoteVariation{}, failPages: map[int]int{}, failVars: map[int64]int{}, total: -1}
}

func (f *fakeCatalog) addSimple(n int, startID int64) {
	for i := 0; i < n; i++ {
		id := startID + int64(i)
		f.products = append(f.products, integrations.RemoteProduct{
			ID:         id,
			Name:       fmt.Sprintf("Product %d", id),
			Type:       "simple",
			SKU:        fmt.Sprintf("SKU-%d", id),
			Price:      decimal.NewFromInt(10),
			Categories: []integrations.Category{{Name: "Default"}},
			Status:     integrations.StatusPublish,
		})
	}
}

func (f *fakeCatalog) addVariable(id int64, name string, vs ...integrations.RemoteVariation) {
	f.products = append(f.products, integrations.RemoteProduct{
		ID:         id,
		Name:       name,
		Type:       integrations.TypeVariable,
		Categories: []integrations.Category{{Name: "Apparel"}},
		Images:     []integrations.Image{{Src: fmt.Sprintf("parent-%d.jpg", id)}},
		Status:     integrations.StatusPublish,
	})
	f.variations[id] = vs
}

func (f *fakeCatalog) rename(id int64, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.products {
		if f.products[i].ID == id {
			f.products[i].Name = name
		}
	}
}

func (f *fakeCatalog) Name() string { return "fake" }

func (f *fakeCatalog) TestConnectivity(context.Context) error { return f.connErr }

func (f *fakeCatalog) FetchProductsPage(_ context.Context, pageSize, page int, _ integrations.Filters) integrations.ProductPage {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageCalls = append(f.pageCalls, page)
	if f.failPages[page] > 0 {
		f.failPages[page]--
		return integrations.ProductPage{Outcome: integrations.OutcomeFailed, Err: errors.New("http 503"), Total: -1}
	}
	from := (page - 1) * pageSize
	if from >= len(f.products) {
		return integrations.ProductPage{Outcome: integrations.OutcomeEndOfData, Total: f.total}
	}
	to := min(from+pageSize, len(f.products))
	items := append([]integrations.RemoteProduct{}, f.products[from:to]...)
	return integrations.ProductPage{Items: items, Outcome: integrations.OutcomeOK, Total: f.total}
}

func (f *fakeCatalog) FetchVariations(_ context.Context, productID int64, _ integrations.Filters) integrations.VariationPage {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failVars[productID] > 0 {
		f.failVars[productID]--
		return integrations.VariationPage{Outcome: integrations.OutcomeFailed, Err: errors.New("http 502")}
	}
	vs := f.variations[productID]
	if len(vs) == 0 {
		return integrations.VariationPage{Outcome: integrations.OutcomeEndOfData}
	}
	return integrations.VariationPage{Items: append([]integrations.RemoteVariation{}, vs...), Outcome: integrations.OutcomeOK}
}

func (f *fakeCatalog) FetchProduct(_ context.Context, id int64) (*integrations.RemoteProduct, error) {
	for _, p := range f.products {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeCatalog) FetchVariation(_ context.Context, productID, variationID int64) (*integrations.RemoteVariation, error) {
	for _, v := range f.variations[productID] {
		if v.ID == variationID {
			return &v, nil
		}
	}
	return nil, errors.New("not found")
}

type recordedIssues struct {
	mu      sync.Mutex
	results []dedup.Result
}

func (r *recordedIssues) Record(_ context.Context, _ string, res dedup.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
	return nil
}

type harness struct {
	engine  *Engine
	catalog *fakeCatalog
	store   *inventory.GormStore
	log     *synclog.GormLog
	issues  *recordedIssues
	clock   *time.Time
}

func newHarness(t *testing.T, cat *fakeCatalog, mutate ...func(*Policy)) *harness {
	t.Helper()
	gdb := dbtest.New(t)
	policy := DefaultPolicy()
	for _, m := range mutate {
		m(&policy)
	}
	h := &harness{
		catalog: cat,
		store:   inventory.NewGormStore(zerolog.Nop(), gdb),
		log:     synclog.NewGormLog(zerolog.Nop(), gdb),
		issues:  &recordedIssues{},
	}
	h.engine = NewEngine(zerolog.Nop(), Deps{
		Catalog: cat,
		Store:   h.store,
		States:  NewMemoryStates(),
		Log:     h.log,
		Issues:  h.issues,
	}, policy)

	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	h.clock = &now
	h.engine.now = func() time.Time { return *h.clock }
	return h
}

func (h *harness) advance(d time.Duration) { *h.clock = h.clock.Add(d) }

// runAll - start + continue aż do końca, zwraca liczbę kroków
func (h *harness) runAll(t *testing.T, session string, full bool) (*StepResult, int) {
	t.Helper()
	ctx := context.Background()
	res, err := h.engine.Start(ctx, session, full, "test")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	steps := 1
	for !res.IsComplete {
		res, err = h.engine.Continue(ctx, session, res.ContinuationToken)
		if err != nil {
			t.Fatalf("continue (step %d): %v", steps+1, err)
		}
		steps++
		if steps > 1000 {
			t.Fatal("sync did not finish")
		}
	}
	return res, steps
}

func (h *harness) item(t *testing.T, externalID int64) *db.InventoryItem {
	t.Helper()
	it, err := h.store.FindByExternalID(context.Background(), externalID)
	if err != nil {
		t.Fatalf("find %d: %v", externalID, err)
	}
	return it
}

func variation(id int64, status string, options ...string) integrations.RemoteVariation {
	v := integrations.RemoteVariation{ID: id, SKU: fmt.Sprintf("V-%d", id), Price: decimal.NewFromInt(5), Status: status}
	for _, o := range options {
		v.Attributes = append(v.Attributes, integrations.Attribute{Name: "opt", Option: o})
	}
	return v
}
