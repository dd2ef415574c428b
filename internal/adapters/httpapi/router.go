// Package httpapi is the HTTP adapter: chi routing, middleware, and the
// request/response DTOs that wrap the application services.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/traveal-app/traveal-api/internal/domain"
	"github.com/traveal-app/traveal-api/internal/platform/config"
)

// NewRouter assembles the full API surface. Trip routes sit behind the
// onboarding gate and the location tracking consent; account routes only
// require authentication so users can always manage consent and deletion.
func NewRouter(
	cfg *config.Config,
	authMW *AuthMiddleware,
	authH *AuthHandlers,
	tripH *TripHandlers,
	notifH *NotificationHandlers,
) http.Handler {
	r := chi.NewRouter()
	rateLimit := NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger)
	r.Use(corsHandler(cfg.CORSOrigins))
	r.Use(rateLimit.Handler)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/register", authH.Register)
			auth.Post("/login", authH.Login)
			auth.Post("/refresh", authH.Refresh)
			auth.Get("/status", authH.Status)
		})

		api.Route("/users/me", func(me chi.Router) {
			me.Use(authMW.Authenticate)
			me.Get("/", authH.Me)
			me.Put("/consent", authH.UpdateConsent)
			me.Put("/preferences", authH.UpdatePreferences)
			me.Delete("/", authH.DeleteAccount)
		})

		api.Route("/trips", func(tr chi.Router) {
			tr.Use(authMW.Authenticate)
			tr.Use(RequireOnboarded)
			tr.Use(RequireConsent(domain.ConsentLocationAllowTracking))
			tr.Post("/", tripH.Start)
			tr.Get("/", tripH.List)
			tr.Get("/active", tripH.Active)
			tr.Get("/stats", tripH.Stats)
			tr.Get("/{tripID}", tripH.Get)
			tr.Delete("/{tripID}", tripH.Delete)
			tr.Post("/{tripID}/location", tripH.AddPoint)
			tr.Post("/{tripID}/end", tripH.End)
			tr.Post("/{tripID}/validate", tripH.Validate)
		})

		api.Route("/notifications", func(nt chi.Router) {
			nt.Use(authMW.Authenticate)
			nt.Use(RequireOnboarded)
			nt.Get("/", notifH.List)
			nt.Get("/unread-count", notifH.UnreadCount)
			nt.Post("/read-all", notifH.MarkAllRead)
			nt.Post("/{notificationID}/read", notifH.MarkRead)
		})
	})

	return r
}

func corsHandler(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	handler := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		MaxAge:           3600,
		AllowCredentials: false,
	})
	return handler.Handler
}
