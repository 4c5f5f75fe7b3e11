package http

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sujalbistaa/careerboard/internal/apperr"
	"github.com/sujalbistaa/careerboard/internal/auth"
)

const (
	LoginPath     = "/auth/login"
	DashboardPath = "/admin/dashboard"
	adminPrefix   = "/admin"

	sessionKey   = "session"
	requestIDKey = "request_id"
	headerReqID  = "X-Request-ID"
)

// ungatedPrefixes are never checked by the session gate. API routes carry
// their own upstream credentials.
var ungatedPrefixes = []string{"/_next", "/favicon", "/api", "/static", "/healthz"}

// SessionGate protects everything under /admin with the session cookie and
// bounces signed-in operators away from the login page. Every verification
// failure looks the same to the visitor: a redirect to the login page.
func SessionGate(codec *auth.Codec, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, p := range ungatedPrefixes {
			if strings.HasPrefix(path, p) {
				c.Next()
				return
			}
		}

		switch {
		case path == LoginPath:
			if s := sessionFromCookie(c, codec); s != nil {
				c.Redirect(http.StatusFound, DashboardPath)
				c.Abort()
				return
			}

		case path == adminPrefix || strings.HasPrefix(path, adminPrefix+"/"):
			s, err := verifyCookie(c, codec)
			if err != nil {
				logger.Debug("session rejected", zap.String("path", path), zap.Error(err))
				c.Redirect(http.StatusFound, LoginPath+"?next="+url.QueryEscape(path))
				c.Abort()
				return
			}
			c.Set(sessionKey, s)
		}

		c.Next()
	}
}

func verifyCookie(c *gin.Context, codec *auth.Codec) (*auth.Session, error) {
	token, err := c.Cookie(auth.CookieName)
	if err != nil || token == "" {
		return nil, apperr.SessionInvalid(http.ErrNoCookie)
	}
	s, err := codec.Verify(token)
	if err != nil {
		return nil, apperr.SessionInvalid(err)
	}
	return s, nil
}

func sessionFromCookie(c *gin.Context, codec *auth.Codec) *auth.Session {
	s, _ := verifyCookie(c, codec)
	return s
}

// currentSession returns the session set by the gate, or verifies the cookie
// directly on ungated routes.
func currentSession(c *gin.Context, codec *auth.Codec) *auth.Session {
	if v, ok := c.Get(sessionKey); ok {
		if s, ok := v.(*auth.Session); ok {
			return s
		}
	}
	return sessionFromCookie(c, codec)
}

// SecurityHeadersMiddleware adds basic security headers. Posters are served
// from the image host, so images may come from any https origin.
func SecurityHeadersMiddleware() gin.HandlerFunc {
	csp := "default-src 'self';" +
		" img-src 'self' https: data:;" +
		" style-src 'self' 'unsafe-inline';" +
		" script-src 'self' 'unsafe-inline';" +
		" connect-src 'self' ws: wss:;" +
		" frame-ancestors 'none'"

	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "same-origin")
		c.Header("Content-Security-Policy", csp)
		c.Next()
	}
}

// MaxBodyMiddleware caps the request body at limit bytes.
func MaxBodyMiddleware(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}

// RequestIDMiddleware reuses an incoming X-Request-ID or assigns a new one.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerReqID)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(headerReqID, id)
		c.Next()
	}
}

// RequestLogger writes one line per request.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.String("ip", c.ClientIP()),
			zap.String("request_id", c.GetString(requestIDKey)),
		}
		switch {
		case status >= 500:
			logger.Error("request", fields...)
		case status >= 400:
			logger.Warn("request", fields...)
		default:
			logger.Info("request", fields...)
		}
	}
}

// Recovery turns a panic into a 500 and logs it.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("panic recovered",
			zap.Any("panic", recovered),
			zap.String("path", c.Request.URL.Path),
			zap.String("request_id", c.GetString(requestIDKey)))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
	})
}
