// Package api - JSON API (gin) nad silnikiem synchronizacji i magazynem.
package api

import (
	"context"
	"net/http"
	"time"

	conf "github.com/bartek5186/woo2mag/internal/config"
	"github.com/bartek5186/woo2mag/internal/db"
	"github.com/bartek5186/woo2mag/internal/inventory"
	"github.com/bartek5186/woo2mag/internal/syncer"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Inventory - to, czego API potrzebuje od magazynu
type Inventory interface {
	inventory.Store
	Get(ctx context.Context, id uint) (*db.InventoryItem, error)
	List(ctx context.Context, limit, offset int) ([]db.InventoryItem, error)
	All(ctx context.Context) ([]db.InventoryItem, error)
	Search(ctx context.Context, term string, limit int) ([]db.InventoryItem, error)
	LowStock(ctx context.Context, limit int) ([]db.InventoryItem, error)
	Count(ctx context.Context) (int64, error)
	TotalValue(ctx context.Context) (decimal.Decimal, error)
}

type Issues interface {
	List(ctx context.Context, reason string, limit int) ([]db.SyncIssue, error)
}

type Server struct {
	log       zerolog.Logger
	engine    *syncer.Engine
	inventory Inventory
	issues    Issues // opcjonalne
	source    string
}

func NewServer(log zerolog.Logger, engine *syncer.Engine, inv Inventory, issues Issues) *Server {
	return &Server{log: log, engine: engine, inventory: inv, issues: issues, source: "web"}
}

// Router - trasy + middleware
func (s *Server) Router(cfg conf.HTTPConfig) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.log))

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	cc := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 1 && origins[0] == "*" {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = origins
		cc.AllowCredentials = true
	}
	r.Use(cors.New(cc))

	r.GET("/health", s.health)

	api := r.Group("/api")
	{
		sync := api.Group("/sync", sessionCookie())
		sync.POST("", s.sync)
		sync.GET("/progress", s.progress)
		sync.POST("/reset", s.reset)
		sync.GET("/logs", s.logs)
		sync.GET("/last", s.last)
		sync.GET("/issues", s.listIssues)

		inv := api.Group("/inventory")
		inv.GET("", s.listInventory)
		inv.GET("/low-stock", s.lowStock)
		inv.GET("/export", s.exportInventory)
		inv.GET("/:id", s.getItem)
		inv.PATCH("/:id", s.patchItem)
	}
	return r
}

// Serve - blokuje do anulowania ctx, potem łagodne zamknięcie
func (s *Server) Serve(ctx context.Context, cfg conf.HTTPConfig) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Router(cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", cfg.Addr).Msg("http: listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info().Msg("http: shutting down")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "woo2mag",
	})
}
