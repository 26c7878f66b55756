package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	pairAuth "github.com/MrEthical07/pairAuth"
	"github.com/MrEthical07/pairAuth/internal/rate"
	authmw "github.com/MrEthical07/pairAuth/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Options configure NewRouter.
type Options struct {
	Engine *pairAuth.Engine
	Logger *slog.Logger

	// BasePath prefixes the API routes, "/api" when empty. /healthz and /metrics stay at
	// the root.
	BasePath string
	// ClientOrigin is the single browser origin allowed to send credentialed requests.
	// Empty disables CORS handling.
	ClientOrigin string
	// TrustProxy takes the client IP from X-Forwarded-For / X-Real-IP.
	TrustProxy bool
	Timeout    time.Duration
	Limiter    *rate.Limiter

	// Metrics serves GET /metrics when set.
	Metrics http.Handler
	// Ready backs GET /healthz, typically the store's Ping.
	Ready func(context.Context) error
}

// NewRouter builds the server's http.Handler.
func NewRouter(opts Options) http.Handler {
	root := chi.NewRouter()
	root.NotFound(notFound)
	root.MethodNotAllowed(methodNotAllowed)

	if opts.TrustProxy {
		root.Use(chimw.RealIP)
	}
	root.Use(
		RequestID(),
		Logging(opts.Logger),
		Recover(),
		ClientIP(),
		SecurityHeaders(),
	)
	if opts.ClientOrigin != "" {
		root.Use(cors.Handler(corsOptions(opts.ClientOrigin)))
	}
	root.Use(RateLimit(opts.Limiter))
	if opts.Timeout > 0 {
		root.Use(Timeout(opts.Timeout))
	}

	h := NewHandlers(opts.Engine, opts.Ready)

	root.Get("/healthz", h.Health)
	if opts.Metrics != nil {
		root.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	basePath := opts.BasePath
	if basePath == "" {
		basePath = "/api"
	}
	api := chi.NewRouter()
	api.NotFound(notFound)
	api.MethodNotAllowed(methodNotAllowed)
	registerRoutes(api, h, opts.Engine)
	root.Mount(basePath, api)

	return root
}

func registerRoutes(r chi.Router, h *Handlers, engine *pairAuth.Engine) {
	// auth
	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)
	r.Post("/auth/logout", h.Logout)

	// users
	r.Group(func(r chi.Router) {
		r.Use(authmw.Authenticate(engine))
		r.Get("/users/me", h.Me)
		r.Patch("/users/me", h.UpdateMe)
	})
}

func corsOptions(origin string) cors.Options {
	return cors.Options{
		AllowedOrigins:   []string{origin},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           600,
	}
}
