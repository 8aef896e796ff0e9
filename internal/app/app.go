package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"imagetag/internal/config"
	"imagetag/internal/logger"
	"imagetag/internal/middleware"
	"imagetag/internal/repository/sqlite"
	"imagetag/internal/route"
	"imagetag/internal/service/ai"
	"imagetag/internal/service/auth"
	"imagetag/internal/service/gallery"
	"imagetag/internal/service/storage"
	"imagetag/internal/service/websocket"
)

const shutdownTimeout = 10 * time.Second

// App is the application context: every collaborator is built once here and injected.
type App struct {
	config   *config.Config
	logger   *logger.Logger
	db       *sqlite.DB
	files    *storage.FileStore
	detector *ai.DetectorService
	hub      *websocket.HubService
	gallery  *gallery.Service
	auth     *auth.Service
	limiter  *middleware.RateLimiter
}

func NewApp(cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	files, err := storage.NewFileStore(cfg)
	if err != nil {
		db.Close()
		log.Close()
		return nil, err
	}

	labels, err := gallery.LoadLabelsFile(cfg.LabelsPath)
	if err != nil {
		db.Close()
		log.Close()
		return nil, err
	}

	proxies, err := middleware.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		db.Close()
		log.Close()
		return nil, err
	}

	detector := ai.NewDetectorService(cfg, log)
	hub := websocket.NewHubService(log)

	return &App{
		config:   cfg,
		logger:   log,
		db:       db,
		files:    files,
		detector: detector,
		hub:      hub,
		gallery:  gallery.NewService(cfg, log, db, files, detector, labels, hub),
		auth:     auth.NewService(cfg, log, db.Users()),
		limiter:  middleware.NewLoginRateLimiter(proxies),
	}, nil
}

// Handler returns the routed HTTP handler.
func (a *App) Handler() http.Handler {
	return route.SetupRoutes(a.config, a.logger, route.Services{
		Gallery:     a.gallery,
		Auth:        a.auth,
		Files:       a.files,
		Events:      a.hub,
		LoginLimits: a.limiter,
	})
}

// Run serves HTTP until ctx is done, then shuts the server down gracefully.
func (a *App) Run(ctx context.Context) error {
	go a.hub.Run(ctx)
	go a.limiter.Cleanup(ctx)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.logger.Info("Image tagging server listening on http://localhost:%d", a.config.Port)
	a.logger.Info("Images: %s, database: %s, model ready: %v", a.config.ImageDirectory, a.config.DatabasePath, a.detector.Ready())

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	a.logger.Info("Shutting down")
	return server.Shutdown(shutdownCtx)
}

// Close releases the network, the database and the log files.
func (a *App) Close() error {
	return errors.Join(a.detector.Close(), a.db.Close(), a.logger.Close())
}
