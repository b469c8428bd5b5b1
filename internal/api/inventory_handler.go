package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bartek5186/woo2mag/internal/db"
	"github.com/bartek5186/woo2mag/internal/export"
	"github.com/bartek5186/woo2mag/internal/inventory"
	"github.com/gin-gonic/gin"
)

type patchRequest struct {
	Stock             *int    `json:"stock"`
	LowStockThreshold *int    `json:"lowStockThreshold"`
	Notes             *string `json:"notes"`
}

func (s *Server) listInventory(c *gin.Context) {
	ctx := c.Request.Context()
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}

	var (
		items []db.InventoryItem
		err   error
	)
	if term := strings.TrimSpace(c.Query("search")); term != "" {
		items, err = s.inventory.Search(ctx, term, limit)
	} else {
		items, err = s.inventory.List(ctx, limit, offset)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	total, err := s.inventory.Count(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	value, err := s.inventory.TotalValue(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":       items,
		"total":      total,
		"totalValue": value,
	})
}

func (s *Server) lowStock(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	items, err := s.inventory.LowStock(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) getItem(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	item, err := s.inventory.Get(c.Request.Context(), id)
	if errors.Is(err, inventory.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": item})
}

// PATCH tylko pól lokalnych: stan, próg, notatki
func (s *Server) patchItem(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req patchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if (req.Stock != nil && *req.Stock < 0) || (req.LowStockThreshold != nil && *req.LowStockThreshold < 0) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "stock and lowStockThreshold must be >= 0"})
		return
	}
	patch := inventory.Patch{Stock: req.Stock, LowStockThreshold: req.LowStockThreshold, Notes: req.Notes}
	if patch.Empty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
		return
	}

	ctx := c.Request.Context()
	if err := s.inventory.Update(ctx, id, patch); err != nil {
		if errors.Is(err, inventory.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	item, err := s.inventory.Get(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) exportInventory(c *gin.Context) {
	items, err := s.inventory.All(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	name := fmt.Sprintf("inventory-%s.xlsx", time.Now().Format("20060102-1504"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := export.WriteInventory(c.Writer, items); err != nil {
		s.log.Error().Err(err).Msg("export: cannot write workbook")
		c.Status(http.StatusInternalServerError)
	}
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}
