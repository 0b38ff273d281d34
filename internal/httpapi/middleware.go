package httpapi

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const requestIDHeader = "X-Request-Id"

const ctxPrincipal = "principal"

// principal is the caller resolved by authMiddleware. Scanner is set for
// device tokens and empty for operators.
type principal struct {
	Scanner string
}

func (p principal) isDevice() bool {
	return p.Scanner != ""
}

func principalFrom(c *gin.Context) principal {
	v, _ := c.Get(ctxPrincipal)
	p, _ := v.(principal)
	return p
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader(requestIDHeader) == "" {
			var b [12]byte
			_, _ = rand.Read(b[:])
			c.Request.Header.Set(requestIDHeader, hex.EncodeToString(b[:]))
		}
		c.Header(requestIDHeader, c.GetHeader(requestIDHeader))
		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)
		status := c.Writer.Status()

		s.metrics.ObserveRequest(c.Request.Method, c.FullPath(), status, elapsed)

		entry := s.log.WithField("method", c.Request.Method).
			WithField("path", c.Request.URL.Path).
			WithField("status", status).
			WithField("request_id", c.GetHeader(requestIDHeader)).
			WithField("duration", elapsed.String())
		if p := principalFrom(c); p.isDevice() {
			entry = entry.WithField("scanner", p.Scanner)
		}
		switch {
		case status >= 500:
			entry.Error("request failed")
		case c.Request.URL.Path == "/health" || c.Request.URL.Path == "/metrics":
			entry.Debug("request")
		default:
			entry.Info("request")
		}
	}
}

func (s *Server) recoverMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				s.metrics.ObservePanic()
				s.log.WithField("panic", fmt.Sprint(rec)).
					WithField("stack", string(debug.Stack())).
					Error("recovered from panic")
				writeError(c, http.StatusInternalServerError, "panic", "internal server error")
			}
		}()
		c.Next()
	}
}

// authMiddleware accepts the operator API token or a scanner device token,
// from the Authorization header, X-Api-Key, or (GET only, for EventSource)
// the token query parameter. Auth is off when no API token is configured.
func (s *Server) authMiddleware() gin.HandlerFunc {
	apiToken := strings.TrimSpace(s.cfg.AuthToken)

	return func(c *gin.Context) {
		if apiToken == "" {
			c.Set(ctxPrincipal, principal{})
			c.Next()
			return
		}

		var candidates []string
		if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			candidates = append(candidates, strings.TrimSpace(strings.TrimPrefix(auth, "Bearer ")))
		}
		if key := strings.TrimSpace(c.GetHeader("X-Api-Key")); key != "" {
			candidates = append(candidates, key)
		}
		if c.Request.Method == http.MethodGet {
			if q := strings.TrimSpace(c.Query("token")); q != "" {
				candidates = append(candidates, q)
			}
		}

		for _, tok := range candidates {
			if subtle.ConstantTimeCompare([]byte(tok), []byte(apiToken)) == 1 {
				c.Set(ctxPrincipal, principal{})
				c.Next()
				return
			}
			if scanner, err := s.tokens.Parse(tok); err == nil {
				c.Set(ctxPrincipal, principal{Scanner: scanner})
				c.Next()
				return
			}
		}

		writeError(c, http.StatusUnauthorized, "unauthorized", "missing or invalid credentials")
	}
}

func operatorOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if principalFrom(c).isDevice() {
			writeError(c, http.StatusForbidden, "forbidden", "scanner tokens cannot call this route")
			return
		}
		c.Next()
	}
}

// scannerScope resolves the scanner a request acts for. Device tokens may
// only act for their own scanner; an omitted name falls back to the token.
func scannerScope(c *gin.Context, requested string) (string, bool) {
	p := principalFrom(c)
	if !p.isDevice() {
		return requested, true
	}
	if requested == "" {
		return p.Scanner, true
	}
	if requested != p.Scanner {
		writeError(c, http.StatusForbidden, "forbidden", "token is not valid for scanner "+requested)
		return "", false
	}
	return requested, true
}
