package conf

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrCreate_WritesDefaultsOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg, firstRun, err := LoadOrCreate(path)
	require.NoError(t, err)
	assert.True(t, firstRun)
	assert.Equal(t, 20, cfg.Sync.PageSize)
	assert.Equal(t, 5000, cfg.Sync.InitialEstimate)
	assert.Equal(t, 10, cfg.Sync.MaxStallPages)
	assert.InDelta(t, 0.9, cfg.Sync.StallThresholdFraction, 1e-9)
	assert.Contains(t, cfg.Integrations, "woocommerce")
	assert.Equal(t, "db", cfg.Sync.StateBackend)
	assert.Empty(t, cfg.Database.DSN)

	_, err = os.Stat(path)
	require.NoError(t, err)

	again, firstRun, err := LoadOrCreate(path)
	require.NoError(t, err)
	assert.False(t, firstRun)
	assert.Equal(t, cfg.Database.DSN, again.Database.DSN)
}

func TestLoadOrCreate_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"sync":{"page_size":50}}`), 0o644))

	cfg, _, err := LoadOrCreate(path)
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Sync.PageSize)
	assert.Equal(t, 10, cfg.Sync.MaxStallPages)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
}

func TestLoadOrCreate_BrokenJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{`), 0o644))

	_, _, err := LoadOrCreate(path)
	assert.Error(t, err)
}

func TestApplyEnv_OverridesWooCredentials(t *testing.T) {
	t.Setenv("WOO_BASE_URL", "https://shop.test")
	t.Setenv("WOO_CONSUMER_KEY", "ck_env")
	t.Setenv("WOO2MAG_DB_DSN", "sqlite://:memory:")
	t.Setenv("WOO2MAG_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, _, err := LoadOrCreate(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)

	var woo WooDefaults
	require.NoError(t, cfg.UnmarshalIntegration("woocommerce", &woo))
	assert.Equal(t, "https://shop.test", woo.BaseURL)
	assert.Equal(t, "ck_env", woo.ConsumerKey)
	assert.Equal(t, "cs_xxx", woo.ConsumerSec)
	assert.Equal(t, 100, woo.VariationPageSize)
	assert.Equal(t, "sqlite://:memory:", cfg.Database.DSN)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Events.Brokers)
}

func TestUnmarshalIntegration_Missing(t *testing.T) {
	cfg := &Config{Integrations: map[string]json.RawMessage{}}
	var v map[string]any
	assert.Error(t, cfg.UnmarshalIntegration("woocommerce", &v))
}
