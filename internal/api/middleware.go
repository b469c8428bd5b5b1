package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	SessionCookie = "woo2mag_sid"
	sessionKey    = "session"
	sessionMaxAge = 30 * 24 * 3600
)

// sessionCookie - klucz sesji synchronizacji; nowy uuid gdy brak albo śmieci
func sessionCookie() gin.HandlerFunc {
	return func(c *gin.Context) {
		sid, err := c.Cookie(SessionCookie)
		if err != nil || uuid.Validate(sid) != nil {
			sid = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(SessionCookie, sid, sessionMaxAge, "/", "", false, true)
		}
		c.Set(sessionKey, sid)
		c.Next()
	}
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		lvl := zerolog.DebugLevel
		switch {
		case status >= 500:
			lvl = zerolog.ErrorLevel
		case status >= 400:
			lvl = zerolog.WarnLevel
		}
		log.WithLevel(lvl).Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("took", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("http request")
	}
}
