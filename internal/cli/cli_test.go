package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeShop - minimalne WooCommerce REST: n prostych produktów
func fakeShop(t *testing.T, n int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/wp-json/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"shop"}`))
	})
	mux.HandleFunc("/wp-json/wc/v3/products", func(w http.ResponseWriter, r *http.Request) {
		perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if perPage <= 0 {
			perPage = 10
		}
		if page <= 0 {
			page = 1
		}
		var items []map[string]any
		for i := (page - 1) * perPage; i < min(page*perPage, n); i++ {
			items = append(items, map[string]any{
				"id":     i + 1,
				"name":   fmt.Sprintf("Product %d", i+1),
				"type":   "simple",
				"sku":    fmt.Sprintf("SKU-%d", i+1),
				"price":  "9.90",
				"status": "publish",
			})
		}
		if items == nil {
			items = []map[string]any{}
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-WP-Total", strconv.Itoa(n))
		_ = json.NewEncoder(w).Encode(items)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func setupEnv(t *testing.T, shopURL string) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("WOO_BASE_URL", shopURL)
	t.Setenv("WOO_CONSUMER_KEY", "ck_test")
	t.Setenv("WOO_CONSUMER_SECRET", "cs_test")
	t.Setenv("WOO2MAG_DB_DSN", "")
	t.Setenv("WOO2MAG_STATE_BACKEND", "")
	t.Setenv("WOO2MAG_KAFKA_BROKERS", "")
	return dir
}

func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--dir", dir}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLI_SyncLogsExport(t *testing.T) {
	shop := fakeShop(t, 45)
	dir := setupEnv(t, shop.URL)

	out, err := run(t, dir, "check")
	require.NoError(t, err, out)
	assert.Contains(t, out, "woocommerce: connection OK")

	out, err = run(t, dir, "sync")
	require.NoError(t, err, out)
	assert.Contains(t, out, "done: added 45, updated 0, processed 45")
	assert.Contains(t, out, "page 2")

	out, err = run(t, dir, "sync", "--full")
	require.NoError(t, err, out)
	assert.Contains(t, out, "done: added 0, updated 45")

	out, err = run(t, dir, "logs", "-n", "5")
	require.NoError(t, err, out)
	assert.Contains(t, out, "success")
	assert.Contains(t, out, "Total products: 45, Processed: 45")

	out, err = run(t, dir, "progress")
	require.NoError(t, err)
	assert.Contains(t, out, "no sync in progress")

	xlsx := filepath.Join(t.TempDir(), "inv.xlsx")
	out, err = run(t, dir, "export", "-o", xlsx)
	require.NoError(t, err, out)
	assert.Contains(t, out, "exported 45 items")
	st, err := os.Stat(xlsx)
	require.NoError(t, err)
	assert.Positive(t, st.Size())

	_, err = run(t, dir, "export", "-o", filepath.Join(t.TempDir(), "inv.csv"))
	assert.Error(t, err)

	_, err = os.Stat(filepath.Join(dir, "config.json"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "woo2mag.db"))
	assert.NoError(t, err)
}

func TestCLI_ImportVariationsDryRun(t *testing.T) {
	shop := fakeShop(t, 3)
	dir := setupEnv(t, shop.URL)

	out, err := run(t, dir, "import-variations", "--dry-run")
	require.NoError(t, err, out)
	assert.Contains(t, out, "0 variable products")

	_, err = run(t, dir, "import-variations", "--mode", "loose")
	assert.Error(t, err)
}

func TestCLI_ResetWithoutRun(t *testing.T) {
	dir := setupEnv(t, "https://shop.invalid")
	out, err := run(t, dir, "reset")
	require.NoError(t, err)
	assert.Contains(t, out, "sync state reset")
}

func TestCLI_UnknownStateBackend(t *testing.T) {
	dir := setupEnv(t, "https://shop.invalid")
	t.Setenv("WOO2MAG_STATE_BACKEND", "etcd")
	_, err := run(t, dir, "progress")
	assert.ErrorContains(t, err, "unknown state backend")
}
