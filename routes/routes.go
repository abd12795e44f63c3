package routes

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/Dosada05/tournament-matchroom/handlers"
	"github.com/Dosada05/tournament-matchroom/middleware"
)

type Handlers struct {
	Auth      *handlers.AuthHandler
	Match     *handlers.MatchHandler
	Phase     *handlers.PhaseTemplateHandler
	WebSocket *handlers.WebSocketHandler
	Health    *handlers.HealthHandler
}

type Options struct {
	JWTSecret      string
	AllowedOrigins []string
	Logger         *slog.Logger
}

func SetupRoutes(h Handlers, opts Options) http.Handler {
	router := chi.NewRouter()

	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(middleware.RequestLogger(opts.Logger))
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.AccessTokenHeader},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/healthz", h.Health.Check)
	router.Get("/openapi.json", handlers.OpenAPIHandler())
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/openapi.json")))

	router.Post("/auth/login", h.Auth.Login)

	// Сессия необязательна: матч открывается и по токену доступа, и публично.
	router.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(opts.JWTSecret))

		r.Get("/ws/matches/{matchID}", h.WebSocket.ServeWs)

		r.Route("/matches/{matchID}", func(r chi.Router) {
			r.Get("/", h.Match.GetMatchState)
			r.Post("/start", h.Match.StartMatch)
			r.Post("/ready", h.Match.SetReady)
			r.Post("/phases/{phaseID}/selections", h.Match.MakeSelection)
			r.Post("/phases/{phaseID}/skip", h.Match.SkipPhase)
			r.Post("/scores", h.Match.SubmitScore)
			r.Post("/scores/{submissionID}/verify", h.Match.VerifyScore)
			r.Post("/access-links", h.Match.GenerateAccessLinks)
			r.Post("/participants/{participantID}/access-email", h.Match.SendAccessEmail)
		})

		r.Route("/tournaments/{tournamentID}/phases", func(r chi.Router) {
			r.Get("/", h.Phase.ListTemplates)
			r.Post("/", h.Phase.CreateTemplate)
			r.Delete("/{phaseID}", h.Phase.DeleteTemplate)
		})
	})

	return router
}
