package server

import (
	"context"
	"net/http"
	"os"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/rankshop/rankshop/internal/appid"
	"github.com/rankshop/rankshop/internal/observability"
	"github.com/rankshop/rankshop/internal/server/handlers"
	servermw "github.com/rankshop/rankshop/internal/server/middleware"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	health := s.deps.Health
	s.router.Get("/health", health.HealthHandler)
	s.router.Get("/health/live", health.LivenessHandler)
	s.router.Get("/health/ready", health.ReadinessHandler)
	s.router.Get("/health/startup", health.StartupHandler)

	s.router.Get("/version", handlers.VersionHandler)
	s.router.Get("/metrics", MetricsHandler)

	if api := s.deps.API; api != nil {
		s.registerStorefront(api)
		if s.deps.Sessions != nil {
			s.registerAdmin(api)
		}
	}

	if s.deps.Profiling {
		s.router.Mount("/debug", middleware.Profiler())
	}

	s.registerSignalEndpoint()
}

func (s *Server) throttled(kind string, h http.HandlerFunc) http.Handler {
	store := s.deps.Throttles[kind]
	if store == nil {
		return h
	}
	return servermw.Throttle(store, kind)(h)
}

func (s *Server) registerStorefront(api *handlers.API) {
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/products", api.ListProducts)
		r.Get("/site-config", api.PublicSiteConfig)
		r.Post("/orders", api.CreateOrder)
		r.Method(http.MethodPost, "/webhook", s.throttled("webhook", api.ProxyWebhook))
		r.Method(http.MethodGet, "/image-proxy", s.throttled("image", api.ProxyImage))
	})

	if api.Media != nil {
		s.router.Get("/media/{bucket}/*", api.ServeMedia)
	}
}

func (s *Server) registerAdmin(api *handlers.API) {
	s.router.Route("/api/admin", func(r chi.Router) {
		r.Post("/login", api.Login)
		r.Post("/logout", api.Logout)

		r.Group(func(r chi.Router) {
			r.Use(servermw.RequireAdmin(s.deps.Sessions, api.SessionCookieName()))
			r.Get("/session", api.Session)
			r.Get("/orders", api.ListOrders)
			r.Patch("/orders/{id}", api.UpdateOrderStatus)
			r.Get("/products", api.ListAllProducts)
			r.Patch("/products/{id}", api.UpdateProduct)
			r.Post("/products/{id}/image", api.UploadProductImage)
			r.Put("/site-config/{key}", api.SetSiteConfig)
		})
	})
}

// registerSignalEndpoint exposes process signals over HTTP when
// <PREFIX>ADMIN_TOKEN is set.
func (s *Server) registerSignalEndpoint() {
	identity, _ := appid.Get(context.Background())
	envPrefix := "RANKSHOP_"
	if identity != nil && identity.EnvPrefix != "" {
		envPrefix = identity.EnvPrefix
	}

	adminToken := os.Getenv(envPrefix + "ADMIN_TOKEN")
	logger := observability.ServerLogger

	if adminToken == "" {
		if logger != nil {
			logger.Debug("Signal endpoint disabled (no " + envPrefix + "ADMIN_TOKEN set)")
		}
		return
	}

	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: adminToken,
		RateLimit: 10,
		RateBurst: 5,
	})
	s.router.Post("/admin/signal", handler.ServeHTTP)

	if logger != nil {
		logger.Info("Signal endpoint enabled",
			zap.String("path", "/admin/signal"),
			zap.String("rate_limit", "10/min, burst 5"))
	}
}
