package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/padelhub/tournament-engine/handlers"
	"github.com/padelhub/tournament-engine/middleware"
)

// SetupRoutes wires the HTTP surface. Result submission is open to
// players; the authoritative result endpoint requires an operator
// token.
func SetupRoutes(
	matchHandler *handlers.MatchHandler,
	wsHandler *handlers.WebSocketHandler,
	jwtSecret string,
) *chi.Mux {
	router := chi.NewRouter()

	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Route("/tournaments/{tournamentID}", func(r chi.Router) {
		r.Get("/matches", matchHandler.ListTournamentMatchesHandler)
		r.Get("/bracket", matchHandler.GetBracketHandler)
		r.Post("/matches/{matchID}/result", matchHandler.SubmitResultHandler)
		r.Get("/matches/{matchID}/submissions", matchHandler.ListSubmissionsHandler)
	})

	router.Route("/matches/{matchID}", func(r chi.Router) {
		r.Get("/", matchHandler.GetMatchHandler)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(jwtSecret))
			r.Use(middleware.Authorize("admin", "organizer"))

			r.Post("/result", matchHandler.RecordResultHandler)
		})
	})

	router.Get("/ws/tournaments/{tournamentID}", wsHandler.ServeWs)

	return router
}
