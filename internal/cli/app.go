package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	conf "github.com/bartek5186/woo2mag/internal/config"
	"github.com/bartek5186/woo2mag/internal/db"
	"github.com/bartek5186/woo2mag/internal/events"
	"github.com/bartek5186/woo2mag/internal/integrations"
	"github.com/bartek5186/woo2mag/internal/integrations/importer"
	_ "github.com/bartek5186/woo2mag/internal/integrations/woocommerce" // rejestracja "woocommerce"
	"github.com/bartek5186/woo2mag/internal/inventory"
	"github.com/bartek5186/woo2mag/internal/logs"
	"github.com/bartek5186/woo2mag/internal/syncer"
	"github.com/bartek5186/woo2mag/internal/synclog"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const AppName = "woo2mag"

// Options - flagi globalne
type Options struct {
	Dir        string
	ConfigPath string
	LogLevel   string
	Console    bool
}

// App - złożone zależności jednego procesu
type App struct {
	Dir     string
	CfgPath string
	Cfg     *conf.Config
	Log     zerolog.Logger

	DB      *db.Handle
	Store   *inventory.GormStore
	History *synclog.GormLog
	Issues  *importer.GormIssues
	States  syncer.StateRepository
	Events  events.Publisher
	Engine  *syncer.Engine

	catalog    integrations.Catalog
	catalogErr error
	redis      *redis.Client
}

// DefaultDir - katalog danych aplikacji (logi, config, baza)
func DefaultDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(base, AppName)
}

func Open(opts Options) (*App, error) {
	dir := opts.Dir
	if dir == "" {
		dir = DefaultDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("app dir: %w", err)
	}
	conf.LoadEnv(filepath.Join(dir, ".env"), ".env")

	cfgPath := opts.ConfigPath
	if cfgPath == "" {
		cfgPath = filepath.Join(dir, "config.json")
	}
	cfg, firstRun, err := conf.LoadOrCreate(cfgPath)
	if err != nil {
		return nil, err
	}
	level := cfg.LogLevel
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	log := logs.New(filepath.Join(dir, "app.log"), opts.Console, level)
	if firstRun {
		log.Info().Str("path", cfgPath).Msg("Utworzono domyślną konfigurację")
	}

	a := &App{Dir: dir, CfgPath: cfgPath, Cfg: cfg, Log: log}

	if cfg.Database.DSN == "" {
		a.DB, err = db.OpenAt(dir, logs.Component(log, "db"))
	} else {
		a.DB, err = db.Open(cfg.Database.DSN, logs.Component(log, "db"))
	}
	if err != nil {
		return nil, err
	}
	if err := a.DB.Migrate(); err != nil {
		a.Close()
		return nil, fmt.Errorf("db migrate: %w", err)
	}
	log.Debug().Str("db", a.DB.Path).Msg("DB ready")

	a.Store = inventory.NewGormStore(logs.Component(log, "inventory"), a.DB.DB)
	a.History = synclog.NewGormLog(logs.Component(log, "synclog"), a.DB.DB)
	a.Issues = importer.NewGormIssues(logs.Component(log, "issues"), a.DB.DB)

	if a.States, err = a.openStates(); err != nil {
		a.Close()
		return nil, err
	}
	a.Events = events.New(logs.Component(log, "events"), cfg.Events.Brokers, cfg.Events.Topic)

	// katalog opcjonalny: logs/export/progress działają bez poprawnej konfiguracji Woo
	a.catalog, a.catalogErr = integrations.Build(cfg.Integration, logs.Component(log, "catalog"), cfg.Integrations[cfg.Integration])
	if a.catalogErr != nil {
		log.Warn().Err(a.catalogErr).Str("integration", cfg.Integration).Msg("catalog not configured")
	}

	a.Engine = syncer.NewEngine(logs.Component(log, "syncer"), syncer.Deps{
		Catalog: a.catalog,
		Store:   a.Store,
		States:  a.States,
		Log:     a.History,
		Issues:  a.Issues,
		Events:  a.Events,
	}, syncer.PolicyFromConfig(cfg.Sync, cfg.MaxDuration()))
	return a, nil
}

func (a *App) openStates() (syncer.StateRepository, error) {
	switch strings.ToLower(a.Cfg.Sync.StateBackend) {
	case "memory":
		return syncer.NewMemoryStates(), nil
	case "", "db":
		return syncer.NewGormStates(a.DB.DB), nil
	case "redis":
		if a.Cfg.Redis.URL == "" {
			return nil, errors.New("state backend redis: redis.url is empty")
		}
		opt, err := redis.ParseURL(a.Cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("redis url: %w", err)
		}
		a.redis = redis.NewClient(opt)
		if err := a.redis.Ping(context.Background()).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		return syncer.NewRedisStates(a.redis, a.Cfg.Redis.KeyPrefix, a.Cfg.MaxDuration()), nil
	}
	return nil, fmt.Errorf("unknown state backend %q (memory|db|redis)", a.Cfg.Sync.StateBackend)
}

// Catalog - błąd gdy integracja nie jest skonfigurowana
func (a *App) Catalog() (integrations.Catalog, error) {
	if a.catalogErr != nil {
		return nil, fmt.Errorf("integration %q: %w", a.Cfg.Integration, a.catalogErr)
	}
	return a.catalog, nil
}

func (a *App) Close() {
	if a.Events != nil {
		if err := a.Events.Close(); err != nil {
			a.Log.Warn().Err(err).Msg("events close")
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Log.Warn().Err(err).Msg("db close")
		}
	}
}
