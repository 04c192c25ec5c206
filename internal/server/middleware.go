package server

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"namethat/internal/auth"
	"namethat/internal/catalog"
	"namethat/internal/game"
	"namethat/internal/session"
)

const (
	sessionKey = "session"
	catalogKey = "catalog"

	// Buckets untouched for clientIdleTTL are dropped once more than
	// pruneAbove clients are tracked.
	pruneAbove    = 500
	clientIdleTTL = 10 * time.Minute
)

type clientBucket struct {
	tokens   *rate.Limiter
	lastSeen time.Time
}

// ClientLimiter gives every client address its own token bucket. A
// non-positive rate lets everything through.
type ClientLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientBucket
	rate    rate.Limit
	burst   int
	now     func() time.Time
}

func NewClientLimiter(r rate.Limit, burst int) *ClientLimiter {
	return &ClientLimiter{
		clients: make(map[string]*clientBucket),
		rate:    r,
		burst:   burst,
		now:     time.Now,
	}
}

// Allow spends one token from addr's bucket.
func (l *ClientLimiter) Allow(addr string) bool {
	if l.rate <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if len(l.clients) > pruneAbove {
		l.prune(now)
	}

	b, ok := l.clients[addr]
	if !ok {
		b = &clientBucket{tokens: rate.NewLimiter(l.rate, l.burst)}
		l.clients[addr] = b
	}
	b.lastSeen = now
	return b.tokens.AllowN(now, 1)
}

func (l *ClientLimiter) prune(now time.Time) {
	for addr, b := range l.clients {
		if now.Sub(b.lastSeen) > clientIdleTTL {
			delete(l.clients, addr)
		}
	}
}

// rateLimit rejects clients that exceed their per-IP budget.
func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": http.StatusText(http.StatusTooManyRequests)})
			return
		}
		c.Next()
	}
}

// cors sets CORS headers for the configured origins. Credentials are
// allowed so the session cookie travels with frontend requests.
func (s *Server) cors() gin.HandlerFunc {
	origins := make(map[string]struct{})
	for _, o := range s.cfg.Origins() {
		origins[o] = struct{}{}
	}

	return func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" {
			if _, ok := origins[origin]; ok {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Access-Control-Allow-Credentials", "true")
				c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
				c.Header("Vary", "Origin")
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		elapsed := time.Since(start)
		status := c.Writer.Status()
		if s.metrics != nil {
			s.metrics.ObserveRequest(c.FullPath(), c.Request.Method, status, elapsed)
		}

		fields := []interface{}{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", elapsed,
			"client_ip", c.ClientIP(),
		}
		switch {
		case status >= http.StatusInternalServerError:
			s.log.Errorw("request", fields...)
		case status >= http.StatusBadRequest:
			s.log.Warnw("request", fields...)
		default:
			s.log.Debugw("request", fields...)
		}
	}
}

// loadSession attaches the caller's session, if the cookie names a live one.
func (s *Server) loadSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(s.cfg.SessionCookie)
		if err == nil && id != "" {
			sess, err := s.sessions.Get(c.Request.Context(), id)
			switch {
			case err == nil:
				c.Set(sessionKey, sess)
			case !errors.Is(err, session.ErrNotFound):
				s.log.Warnw("session lookup failed", "error", err)
			}
		}
		c.Next()
	}
}

// requireAuth lets through sessions that can reach a catalog. Spotify
// tokens are refreshed when expired and the refreshed token is saved back.
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := currentSession(c)
		if sess == nil || !sess.Authenticated() {
			s.respondError(c, auth.ErrNoToken)
			return
		}

		if sess.IsGuest {
			c.Set(catalogKey, catalog.Catalog(catalog.DemoCatalog{}))
			c.Next()
			return
		}

		ctx := c.Request.Context()
		token, refreshed, err := s.spotify.EnsureFresh(ctx, sess.Token)
		if err != nil {
			s.log.Infow("token refresh failed", "session_id", sess.ID, "error", err)
			s.respondError(c, auth.ErrNoToken)
			return
		}
		if refreshed {
			sess.Token = token
			if err := s.sessions.Save(ctx, sess); err != nil {
				s.respondError(c, err)
				return
			}
			s.log.Debugw("refreshed spotify token", "session_id", sess.ID)
		}

		c.Set(catalogKey, s.spotify.Catalog(ctx, token))
		c.Next()
	}
}

func currentSession(c *gin.Context) *session.Session {
	if v, ok := c.Get(sessionKey); ok {
		if sess, ok := v.(*session.Session); ok {
			return sess
		}
	}
	return nil
}

func currentCatalog(c *gin.Context) catalog.Catalog {
	return c.MustGet(catalogKey).(catalog.Catalog)
}

func currentPlayer(c *gin.Context) game.Player {
	sess := currentSession(c)
	return game.Player{ID: sess.UserID, Guest: sess.IsGuest}
}

// ensureSession returns the caller's session, creating and saving a new one
// with its cookie when there is none.
func (s *Server) ensureSession(c *gin.Context) (*session.Session, error) {
	if sess := currentSession(c); sess != nil {
		return sess, nil
	}

	sess := session.New(s.cfg.SessionTTL)
	if err := s.saveSession(c, sess); err != nil {
		return nil, err
	}
	c.Set(sessionKey, sess)
	return sess, nil
}

func (s *Server) saveSession(c *gin.Context, sess *session.Session) error {
	sess.Touch(s.cfg.SessionTTL)
	if err := s.sessions.Save(c.Request.Context(), sess); err != nil {
		return err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.cfg.SessionCookie, sess.ID, int(s.cfg.SessionTTL.Seconds()), "/", "", s.cfg.CookieSecure, true)
	return nil
}

// rotateSession saves sess under a new id, re-sets the cookie and drops the
// record stored under the old id.
func (s *Server) rotateSession(c *gin.Context, sess *session.Session) error {
	oldID := sess.Rotate()
	if err := s.saveSession(c, sess); err != nil {
		return err
	}
	if err := s.sessions.Delete(c.Request.Context(), oldID); err != nil {
		s.log.Warnw("failed to delete replaced session", "session_id", oldID, "error", err)
	}
	return nil
}

func (s *Server) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.cfg.SessionCookie, "", -1, "/", "", s.cfg.CookieSecure, true)
}

func logFields(c *gin.Context) []interface{} {
	fields := []interface{}{"path", c.Request.URL.Path}
	if sess := currentSession(c); sess != nil {
		fields = append(fields, "session_id", sess.ID)
	}
	return fields
}
