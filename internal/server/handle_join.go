package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/GoQuestly/backend-sub000/internal/session"
)

type JoinRequest struct {
	UserID string `json:"userId"`
}

type JoinResponse struct {
	Token         string `json:"token"`
	ParticipantID string `json:"participantId"`
	SessionID     string `json:"sessionId"`
	Status        string `json:"status"`
}

func handleJoin(rt *session.Runtime) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req JoinRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.UserID = strings.TrimSpace(req.UserID)

		p, err := rt.Join(r.Context(), chi.URLParam(r, "sessionID"), req.UserID)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, JoinResponse{
			Token:         p.Token,
			ParticipantID: p.ID,
			SessionID:     p.SessionID,
			Status:        string(p.Status),
		})
	}
}

func handleLeave(rt *session.Runtime) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or missing session token")
			return
		}
		if err := rt.Leave(r.Context(), token); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"left": true})
	}
}
