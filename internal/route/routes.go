package route

import (
	"net/http"

	"imagetag/internal/config"
	"imagetag/internal/handler"
	"imagetag/internal/logger"
	"imagetag/internal/middleware"
	"imagetag/internal/service/storage"
	hub "imagetag/internal/service/websocket"
)

// Services bundles what the routes dispatch to.
type Services struct {
	Gallery handler.GalleryService
	Auth    interface {
		handler.AuthService
		middleware.TokenParser
	}
	Files       *storage.FileStore
	Events      *hub.HubService
	LoginLimits *middleware.RateLimiter
}

// SetupRoutes registers the gallery API, image files, live events, auth and log endpoints,
// and wraps the mux with the authentication middleware.
func SetupRoutes(cfg *config.Config, logger *logger.Logger, svc Services) http.Handler {
	mux := http.NewServeMux()

	// Gallery
	mux.HandleFunc("GET /api/images", handler.GetImagesHandler(svc.Gallery))
	mux.HandleFunc("POST /api/images", handler.UploadImageHandler(cfg, logger, svc.Gallery))
	mux.HandleFunc("POST /api/images/{id}/detect", handler.DetectImageHandler(logger, svc.Gallery))
	mux.HandleFunc("POST /api/images/{id}/delete", handler.DeleteImageHandler(logger, svc.Gallery))
	mux.HandleFunc("GET /images/{filename}", handler.ViewImageHandler(svc.Files))
	mux.HandleFunc("GET /api/events", handler.EventsWebsocketHandler(svc.Events, logger))

	// Auth endpoints
	mux.HandleFunc("POST /auth/signup", svc.LoginLimits.Limit(handler.SignupHandler(logger, svc.Auth)))
	mux.HandleFunc("POST /auth/login", svc.LoginLimits.Limit(handler.LoginHandler(logger, svc.Auth)))
	mux.HandleFunc("GET /auth/logout", handler.LogoutHandler)

	// Log endpoints
	mux.HandleFunc("GET /logs/{level}", handler.ShowLogsHandler(logger))
	mux.HandleFunc("POST /logs/{level}/clear", handler.ClearLogsHandler(logger))

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, handler.GalleryPath, http.StatusSeeOther)
	})

	return middleware.AuthMiddleware(svc.Auth, mux)
}
