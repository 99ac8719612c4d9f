package server

import (
	"database/sql"
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/swaggest/swgui/v5emb"

	"github.com/GoQuestly/backend-sub000/internal/session"
)

func addRoutes(r chi.Router, logger *slog.Logger, rt *session.Runtime, broker *Broker, db *sql.DB, rdb *redis.Client, organizerToken string) {
	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("GoQuestly API", "/openapi.json", "/docs"))
	r.Get("/healthz", handleHealth(logger, db, rdb))

	// Participant routes — bearer token from join.
	r.Route("/api", func(r chi.Router) {
		r.Post("/sessions/{sessionID}/join", handleJoin(rt))
		r.Post("/leave", handleLeave(rt))
		r.Post("/location", handleLocation(rt))
		r.Post("/tasks/{taskID}/start", handleTaskStart(rt))
		r.Post("/tasks/{taskID}/quiz", handleQuizSubmit(rt))
		r.Post("/tasks/{taskID}/codeword", handleCodeWordSubmit(rt))
		r.Post("/tasks/{taskID}/photo", handlePhotoSubmit(rt))
		r.Get("/session/state", handleState(rt))
		r.Get("/sessions/{sessionID}/leaderboard", handleLeaderboard(rt))
		r.Get("/session/events", handleEvents(rt, broker))
	})

	// Organizer routes — static runtime token; identity proper is external.
	r.Route("/api/organizer", func(r chi.Router) {
		r.Use(organizerAuth(organizerToken))
		r.Post("/sessions", handleScheduleSession(rt))
		r.Get("/sessions/{sessionID}", handleGetSession(rt))
		r.Post("/sessions/{sessionID}/cancel", handleCancelSession(rt))
		r.Get("/sessions/{sessionID}/stats", handleSessionStats(rt))
		r.Get("/sessions/{sessionID}/events", handleOrganizerEvents(broker))
		r.Post("/attempts/{attemptID}/moderate", handleModeratePhoto(rt))
	})
}
