package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/GoQuestly/backend-sub000/internal/session"
)

type AttemptView struct {
	AttemptID   string     `json:"attemptId"`
	TaskID      string     `json:"taskId"`
	OrderNum    int        `json:"orderNum"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	ScoreEarned int        `json:"scoreEarned"`
	Moderation  *string    `json:"moderation,omitempty"`
}

type StateResponse struct {
	ParticipantID   string        `json:"participantId"`
	Status          string        `json:"status"`
	RejectionReason *string       `json:"rejectionReason,omitempty"`
	FinishDate      *time.Time    `json:"finishDate,omitempty"`
	SessionID       string        `json:"sessionId"`
	SessionStart    time.Time     `json:"sessionStart"`
	SessionEnd      *time.Time    `json:"sessionEnd,omitempty"`
	EndReason       *string       `json:"endReason,omitempty"`
	PassedOrderNums []int         `json:"passedOrderNums"`
	NextOrderNum    *int          `json:"nextOrderNum,omitempty"`
	TotalScore      int           `json:"totalScore"`
	Attempts        []AttemptView `json:"attempts"`
}

func handleState(rt *session.Runtime) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or missing session token")
			return
		}

		st, err := rt.ParticipantState(r.Context(), token)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		resp := StateResponse{
			ParticipantID:   st.Participant.ID,
			Status:          string(st.Participant.Status),
			RejectionReason: st.Participant.RejectionReason,
			FinishDate:      st.Participant.FinishDate,
			SessionID:       st.Session.ID,
			SessionStart:    st.Session.StartDate,
			SessionEnd:      st.Session.EndDate,
			PassedOrderNums: []int{},
			NextOrderNum:    st.NextOrderNum,
			TotalScore:      st.TotalScore,
			Attempts:        []AttemptView{},
		}
		if st.Session.EndReason != nil {
			reason := string(*st.Session.EndReason)
			resp.EndReason = &reason
		}
		for _, p := range st.Passages {
			resp.PassedOrderNums = append(resp.PassedOrderNums, p.OrderNum)
		}
		for _, a := range st.Attempts {
			view := AttemptView{
				AttemptID:   a.ID,
				TaskID:      a.TaskID,
				OrderNum:    a.OrderNum,
				StartedAt:   a.StartedAt,
				ExpiresAt:   a.ExpiresAt,
				CompletedAt: a.CompletedAt,
				ScoreEarned: a.ScoreEarned,
			}
			if a.Moderation != nil {
				m := string(*a.Moderation)
				view.Moderation = &m
			}
			resp.Attempts = append(resp.Attempts, view)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleLeaderboard(rt *session.Runtime) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := rt.Leaderboard(r.Context(), chi.URLParam(r, "sessionID"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if entries == nil {
			entries = []session.LeaderboardEntry{}
		}
		writeJSON(w, http.StatusOK, entries)
	}
}
