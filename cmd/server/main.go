package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/sujalbistaa/careerboard/internal/audit"
	"github.com/sujalbistaa/careerboard/internal/auth"
	"github.com/sujalbistaa/careerboard/internal/config"
	"github.com/sujalbistaa/careerboard/internal/db"
	routes "github.com/sujalbistaa/careerboard/internal/http"
	"github.com/sujalbistaa/careerboard/internal/imagehost"
	"github.com/sujalbistaa/careerboard/internal/logging"
	"github.com/sujalbistaa/careerboard/internal/relay"
	"github.com/sujalbistaa/careerboard/internal/telemetry"
	"github.com/sujalbistaa/careerboard/internal/upstream"
	"github.com/sujalbistaa/careerboard/internal/ws"
)

const serviceName = "careerboard"

func main() {
	// .env is optional; production sets the environment directly.
	envErr := godotenv.Load()

	cfg, cfgErr := config.Load()
	logger, err := logging.New(cfg != nil && cfg.Production())
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if envErr != nil {
		logger.Info("no .env file found, reading from environment")
	}
	if cfgErr != nil {
		logger.Fatal("invalid configuration", zap.Error(cfgErr))
	}
	if cfg.AuthSecret == "" {
		logger.Warn("AUTH_SECRET is not set; logins will fail and the dashboard stays locked")
	}
	logger.Info("configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("upstream", cfg.UpstreamBase),
		zap.String("upstream_token", logging.Redact(cfg.UpstreamToken)),
		zap.String("image_host", cfg.ImageHost))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. Tracing
	shutdownTracer, err := telemetry.InitTracer(ctx, serviceName, cfg.OTelCollectorURL)
	if err != nil {
		logger.Fatal("failed to initialize tracing", zap.Error(err))
	}

	// 2. Database and migrations
	database, err := db.Open(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	recorder := audit.NewRecorder(database, logger)
	logger.Info("running database migrations")
	if err := recorder.Migrate(); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	// 3. WebSocket hub
	hub := ws.NewHub(logger)
	go hub.Run(ctx)

	// 4. Upstream and image host
	client := upstream.NewClient(cfg.UpstreamBase, cfg.UpstreamToken, cfg.UpstreamTimeout, logger)
	uploader, err := newUploader(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize image host", zap.Error(err))
	}

	env := &routes.Env{
		Config:      cfg,
		Codec:       auth.NewCodec(cfg.AuthSecret),
		Credentials: auth.Credentials{Email: cfg.AdminEmail, Password: cfg.AdminPassword},
		Upstream:    client,
		Relay:       relay.New(client, uploader, cfg.MaxImageBytes, logger),
		Audit:       recorder,
		Hub:         hub,
		Logger:      logger,
	}

	// 5. Router
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	routes.SetupRoutes(ctx, router, env)

	// 6. Start server with graceful shutdown
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	cancel()
	shutdownTracer(shutdownCtx)

	logger.Info("server exiting")
}

// newUploader picks the image host for IMAGE_HOST. The upstream mode has no
// separate host; posters go to the upstream API with the record.
func newUploader(ctx context.Context, cfg *config.Config, logger *zap.Logger) (imagehost.Uploader, error) {
	switch cfg.ImageHost {
	case config.ImageHostImageKit:
		return imagehost.NewImageKit(cfg.ImageKitUploadURL, cfg.ImageKitPrivateKey, cfg.ImageKitFolder,
			cfg.UpstreamTimeout, logger), nil
	case config.ImageHostS3:
		return imagehost.NewS3(ctx, imagehost.S3Options{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			PublicURL: cfg.S3PublicURL,
			Folder:    cfg.ImageKitFolder,
		}, logger)
	default:
		return nil, nil
	}
}
