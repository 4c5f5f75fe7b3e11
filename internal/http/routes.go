package http

import (
	"context"
	"embed"
	"html/template"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/sujalbistaa/careerboard/internal/ws"
)

//go:embed templates/*.html
var templatesFS embed.FS

// bodySlack is the room left on top of the poster limit for the other form
// fields and multipart framing.
const bodySlack = 1 << 20

func loadTemplates() *template.Template {
	return template.Must(template.New("").ParseFS(templatesFS, "templates/*.html"))
}

// SetupRoutes configures all application routes and middleware. Background
// work started here stops when ctx is done.
func SetupRoutes(ctx context.Context, router *gin.Engine, env *Env) {

	// --- Middleware ---
	router.Use(RequestIDMiddleware())
	router.Use(RequestLogger(env.Logger))
	router.Use(Recovery(env.Logger))
	router.Use(SecurityHeadersMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{env.Config.CORSOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", headerReqID},
		ExposeHeaders:    []string{"Content-Length", headerReqID},
		AllowCredentials: env.Config.CORSOrigin != "*",
	}))
	router.Use(SessionGate(env.Codec, env.Logger))

	router.SetHTMLTemplate(loadTemplates())

	// --- Rate Limiter Setup ---
	loginLimiter := NewIPRateLimiter(rate.Limit(env.Config.LoginRateRPS), rateLimitBurst)
	writeLimiter := NewIPRateLimiter(rate.Limit(env.Config.WriteRateRPS), rateLimitBurst)
	go loginLimiter.Sweep(ctx, limiterSweepTick)
	go writeLimiter.Sweep(ctx, limiterSweepTick)

	limitBody := MaxBodyMiddleware(env.Relay.MaxImageBytes() + bodySlack)

	// --- API Routes ---
	api := router.Group("/api")
	{
		api.POST("/auth/login", RateLimitMiddleware(loginLimiter), env.Login)
		api.POST("/auth/logout", env.Logout)

		api.GET("/career", env.ListCareers)
		api.GET("/career/:id", env.GetCareer)
		api.POST("/career", RateLimitMiddleware(writeLimiter), limitBody, env.CreateCareer)
		api.PUT("/career/:id", RateLimitMiddleware(writeLimiter), limitBody, env.UpdateCareer)
		api.DELETE("/career/:id", RateLimitMiddleware(writeLimiter), env.DeleteCareer)
	}

	// --- Pages ---
	router.GET("/", env.CareersPage)
	router.GET(LoginPath, env.LoginPage)
	router.POST(LoginPath, RateLimitMiddleware(loginLimiter), env.LoginForm)
	router.POST("/auth/logout", env.LogoutForm)

	admin := router.Group(adminPrefix)
	{
		admin.GET("", func(c *gin.Context) { c.Redirect(http.StatusFound, DashboardPath) })
		admin.GET("/dashboard", env.Dashboard)
		admin.POST("/dashboard/postings", limitBody, env.DashboardCreate)
		admin.POST("/dashboard/postings/:id", limitBody, env.DashboardUpdate)
		admin.POST("/dashboard/postings/:id/delete", env.DashboardDelete)

		// --- WebSocket Route ---
		admin.GET("/ws", func(c *gin.Context) {
			ws.ServeWs(env.Hub, c.Writer, c.Request)
		})
	}

	router.GET("/healthz", env.Healthz)
}
