// internal/config/config.go
package conf

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Główny config aplikacji
type Config struct {
	AutoStart           bool                       `json:"auto_start"`
	SyncIntervalSeconds int                        `json:"sync_interval_seconds"`
	LogLevel            string                     `json:"log_level"`
	Integration         string                     `json:"integration"`  // aktywny katalog, np. "woocommerce"
	Integrations        map[string]json.RawMessage `json:"integrations"` // nazwa -> surowy JSON integracji
	Database            DatabaseConfig             `json:"database"`
	HTTP                HTTPConfig                 `json:"http"`
	Sync                SyncConfig                 `json:"sync"`
	Redis               RedisConfig                `json:"redis"`
	Events              EventsConfig               `json:"events"`
}

type DatabaseConfig struct {
	// sqlite://, sqlite3://, mysql://, postgres://; pusty = <appDir>/woo2mag.db
	DSN string `json:"dsn"`
}

type HTTPConfig struct {
	Addr        string   `json:"addr"`
	Mode        string   `json:"mode"` // debug / release
	CORSOrigins []string `json:"cors_origins"`
}

// SyncConfig - parametry silnika synchronizacji
type SyncConfig struct {
	PageSize                 int     `json:"page_size"`
	MaxDurationMinutes       int     `json:"max_duration_minutes"`
	MaxStallPages            int     `json:"max_stall_pages"`
	StallThresholdFraction   float64 `json:"stall_threshold_fraction"`
	InitialEstimate          int     `json:"initial_estimate"`
	MaxPageRetries           int     `json:"max_page_retries"`
	DefaultLowStockThreshold int     `json:"default_low_stock_threshold"`
	StateBackend             string  `json:"state_backend"` // memory / db / redis
}

type RedisConfig struct {
	URL       string `json:"url"`
	KeyPrefix string `json:"key_prefix"`
}

type EventsConfig struct {
	Brokers []string `json:"brokers"`
	Topic   string   `json:"topic"`
}

// Przykładowy config integracji WooCommerce (używany do domyślnego JSON-a)
type WooDefaults struct {
	BaseURL           string `json:"base_url"`
	ConsumerKey       string `json:"consumer_key"`
	ConsumerSec       string `json:"consumer_secret"`
	QueryStringAuth   bool   `json:"query_string_auth"`
	TimeoutSec        int    `json:"timeout_sec"`
	RequestsPerSecond int    `json:"requests_per_second"`
	MaxRetries        int    `json:"max_retries"`
	VariationPageSize int    `json:"variation_page_size"`
	MaxVariationPages int    `json:"max_variation_pages"`
	Fields            string `json:"fields"`
}

func Defaults() *Config {
	woo := WooDefaults{
		BaseURL:           "https://example.com",
		ConsumerKey:       "ck_xxx",
		ConsumerSec:       "cs_xxx",
		TimeoutSec:        30,
		RequestsPerSecond: 4,
		MaxRetries:        2,
		VariationPageSize: 100,
		MaxVariationPages: 10,
		Fields:            "id,name,type,sku,price,categories,images,status",
	}
	rawWoo, _ := json.Marshal(woo)

	return &Config{
		AutoStart:           false,
		SyncIntervalSeconds: 3600,
		LogLevel:            "info",
		Integration:         "woocommerce",
		Integrations: map[string]json.RawMessage{
			"woocommerce": rawWoo,
		},
		Database: DatabaseConfig{}, // pusty DSN = sqlite w katalogu aplikacji
		HTTP: HTTPConfig{
			Addr:        ":8080",
			Mode:        "release",
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Sync: SyncConfig{
			PageSize:                 20,
			MaxDurationMinutes:       60,
			MaxStallPages:            10,
			StallThresholdFraction:   0.9,
			InitialEstimate:          5000,
			MaxPageRetries:           3,
			DefaultLowStockThreshold: 5,
			StateBackend:             "db",
		},
		Redis:  RedisConfig{KeyPrefix: "woo2mag:sync:"},
		Events: EventsConfig{Topic: "inventory-sync"},
	}
}

func LoadOrCreate(path string) (*Config, bool, error) {
	// upewnij się, że katalog istnieje
	_ = os.MkdirAll(filepath.Dir(path), 0o755)

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := Defaults()
			if err := Save(path, cfg); err != nil {
				return nil, false, fmt.Errorf("błąd zapisu domyślnego configa: %w", err)
			}
			cfg.applyEnv()
			return cfg, true, nil
		}
		return nil, false, fmt.Errorf("błąd otwierania configa: %w", err)
	}
	defer f.Close()

	cfg := Defaults()
	if err := json.NewDecoder(f).Decode(cfg); err != nil {
		return nil, false, fmt.Errorf("błąd parsowania configa: %w", err)
	}
	if cfg.Integrations == nil {
		cfg.Integrations = map[string]json.RawMessage{}
	}
	cfg.applyEnv()
	return cfg, false, nil
}

func Save(path string, cfg *Config) error {
	_ = os.MkdirAll(filepath.Dir(path), 0o755)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(cfg)
}

// LoadEnv wczytuje .env (brak pliku nie jest błędem)
func LoadEnv(paths ...string) {
	_ = godotenv.Load(paths...)
}

// Helper do odczytu konkretnej integracji do struktury docelowej
func (c *Config) UnmarshalIntegration(name string, v any) error {
	raw, ok := c.Integrations[name]
	if !ok {
		return fmt.Errorf("brak integracji %q w configu", name)
	}
	return json.Unmarshal(raw, v)
}

func (c *Config) MaxDuration() time.Duration {
	if c.Sync.MaxDurationMinutes <= 0 {
		return 60 * time.Minute
	}
	return time.Duration(c.Sync.MaxDurationMinutes) * time.Minute
}

// zmienne środowiskowe mają pierwszeństwo przed plikiem
func (c *Config) applyEnv() {
	c.Database.DSN = getEnv("WOO2MAG_DB_DSN", c.Database.DSN)
	c.HTTP.Addr = getEnv("WOO2MAG_HTTP_ADDR", c.HTTP.Addr)
	c.LogLevel = getEnv("WOO2MAG_LOG_LEVEL", c.LogLevel)
	c.Sync.StateBackend = getEnv("WOO2MAG_STATE_BACKEND", c.Sync.StateBackend)
	c.Redis.URL = getEnv("WOO2MAG_REDIS_URL", c.Redis.URL)
	if brokers := os.Getenv("WOO2MAG_KAFKA_BROKERS"); brokers != "" {
		c.Events.Brokers = strings.Split(brokers, ",")
	}

	base, key, secret := os.Getenv("WOO_BASE_URL"), os.Getenv("WOO_CONSUMER_KEY"), os.Getenv("WOO_CONSUMER_SECRET")
	if base == "" && key == "" && secret == "" {
		return
	}
	fields := map[string]any{}
	if raw, ok := c.Integrations["woocommerce"]; ok {
		_ = json.Unmarshal(raw, &fields)
	}
	if base != "" {
		fields["base_url"] = base
	}
	if key != "" {
		fields["consumer_key"] = key
	}
	if secret != "" {
		fields["consumer_secret"] = secret
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return
	}
	if c.Integrations == nil {
		c.Integrations = map[string]json.RawMessage{}
	}
	c.Integrations["woocommerce"] = raw
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
