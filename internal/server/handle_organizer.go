package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/GoQuestly/backend-sub000/internal/session"
)

type ScheduleSessionRequest struct {
	QuestID   string    `json:"questId"`
	StartDate time.Time `json:"startDate"`
}

type SessionResponse struct {
	SessionID string     `json:"sessionId"`
	QuestID   string     `json:"questId"`
	StartDate time.Time  `json:"startDate"`
	EndDate   *time.Time `json:"endDate,omitempty"`
	EndReason *string    `json:"endReason,omitempty"`
}

func sessionResponse(sess session.Session) SessionResponse {
	resp := SessionResponse{
		SessionID: sess.ID,
		QuestID:   sess.QuestID,
		StartDate: sess.StartDate,
		EndDate:   sess.EndDate,
	}
	if sess.EndReason != nil {
		reason := string(*sess.EndReason)
		resp.EndReason = &reason
	}
	return resp
}

func handleScheduleSession(rt *session.Runtime) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ScheduleSessionRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		sess, err := rt.ScheduleSession(r.Context(), req.QuestID, req.StartDate)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, sessionResponse(sess))
	}
}

func handleGetSession(rt *session.Runtime) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := rt.Session(r.Context(), chi.URLParam(r, "sessionID"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionResponse(sess))
	}
}

func handleCancelSession(rt *session.Runtime) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := rt.Cancel(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
	}
}

type ModerateRequest struct {
	Approved        bool   `json:"approved"`
	RejectionReason string `json:"rejectionReason,omitempty"`
}

func handleModeratePhoto(rt *session.Runtime) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ModerateRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		err := rt.ModeratePhoto(r.Context(), chi.URLParam(r, "attemptID"), req.Approved, req.RejectionReason)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"moderated": true})
	}
}

func handleSessionStats(rt *session.Runtime) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := rt.SessionStats(r.Context(), chi.URLParam(r, "sessionID"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}
