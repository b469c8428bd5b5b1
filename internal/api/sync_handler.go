package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/bartek5186/woo2mag/internal/syncer"
	"github.com/gin-gonic/gin"
)

type syncRequest struct {
	FullSync          bool   `json:"fullSync"`
	ContinuationToken string `json:"continuationToken"`
}

// syncResponse - płaski StepResult + ewentualny błąd
type syncResponse struct {
	*syncer.StepResult
	Error string `json:"error,omitempty"`
}

// POST /api/sync: bez tokenu kontynuacja trwającego albo nowy przebieg, z tokenem kolejna strona
func (s *Server) sync(c *gin.Context) {
	var req syncRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	session := c.GetString(sessionKey)
	ctx := c.Request.Context()

	var (
		res *syncer.StepResult
		err error
	)
	if req.ContinuationToken == "" {
		res, err = s.engine.Sync(ctx, session, req.FullSync, s.source)
	} else {
		res, err = s.engine.Continue(ctx, session, req.ContinuationToken)
	}
	if err != nil {
		code := statusFor(err)
		if res == nil {
			c.JSON(code, gin.H{"error": err.Error()})
			return
		}
		c.JSON(code, syncResponse{StepResult: res, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, syncResponse{StepResult: res})
}

func (s *Server) progress(c *gin.Context) {
	p, err := s.engine.Progress(c.Request.Context(), c.GetString(sessionKey))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) reset(c *gin.Context) {
	if err := s.engine.Reset(c.Request.Context(), c.GetString(sessionKey)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "sync state reset"})
}

func (s *Server) logs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	entries, err := s.engine.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries})
}

func (s *Server) last(c *gin.Context) {
	entry, err := s.engine.LastRun(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if entry == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no sync has run yet"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entry})
}

func (s *Server) listIssues(c *gin.Context) {
	if s.issues == nil {
		c.JSON(http.StatusOK, gin.H{"data": []any{}})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	out, err := s.issues.List(c.Request.Context(), c.Query("reason"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, syncer.ErrAlreadyRunning),
		errors.Is(err, syncer.ErrNotRunning),
		errors.Is(err, syncer.ErrStaleToken),
		errors.Is(err, syncer.ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, syncer.ErrConnectivity), errors.Is(err, syncer.ErrTransport):
		return http.StatusBadGateway
	case errors.Is(err, syncer.ErrNoCatalog):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
