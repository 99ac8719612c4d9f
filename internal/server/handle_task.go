package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/GoQuestly/backend-sub000/internal/session"
)

type TaskStartResponse struct {
	AttemptID string     `json:"attemptId"`
	StartedAt time.Time  `json:"startedAt"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

func handleTaskStart(rt *session.Runtime) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or missing session token")
			return
		}

		attempt, err := rt.StartTask(r.Context(), token, chi.URLParam(r, "taskID"))
		if err != nil {
			writeDomainError(w, err)
			return
		}

		resp := TaskStartResponse{AttemptID: attempt.ID, ExpiresAt: attempt.ExpiresAt}
		if attempt.StartedAt != nil {
			resp.StartedAt = *attempt.StartedAt
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type QuizSubmitRequest struct {
	QuestionID string   `json:"questionId"`
	AnswerIDs  []string `json:"answerIds"`
}

type QuizSubmitResponse struct {
	AnsweredCount int  `json:"answeredCount"`
	TotalCount    int  `json:"totalCount"`
	Completed     bool `json:"completed"`
	ScoreEarned   int  `json:"scoreEarned,omitempty"`
	Passed        bool `json:"passed,omitempty"`
	Disqualified  bool `json:"disqualified,omitempty"`
}

func handleQuizSubmit(rt *session.Runtime) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or missing session token")
			return
		}

		var req QuizSubmitRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		progress, err := rt.SubmitQuizAnswer(r.Context(), token, chi.URLParam(r, "taskID"), req.QuestionID, req.AnswerIDs)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, QuizSubmitResponse{
			AnsweredCount: progress.AnsweredCount,
			TotalCount:    progress.TotalCount,
			Completed:     progress.Completed,
			ScoreEarned:   progress.ScoreEarned,
			Passed:        progress.Passed,
			Disqualified:  progress.Disqualified,
		})
	}
}

type CodeWordSubmitRequest struct {
	CodeWord string `json:"codeWord"`
}

type TaskSubmitResponse struct {
	AttemptID    string `json:"attemptId"`
	ScoreEarned  int    `json:"scoreEarned"`
	Passed       bool   `json:"passed"`
	Disqualified bool   `json:"disqualified,omitempty"`
}

func handleCodeWordSubmit(rt *session.Runtime) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or missing session token")
			return
		}

		var req CodeWordSubmitRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		result, err := rt.SubmitCodeWord(r.Context(), token, chi.URLParam(r, "taskID"), req.CodeWord)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, TaskSubmitResponse{
			AttemptID:    result.AttemptID,
			ScoreEarned:  result.ScoreEarned,
			Passed:       result.Passed,
			Disqualified: result.Disqualified,
		})
	}
}

type PhotoSubmitRequest struct {
	PhotoReference string `json:"photoReference"`
}

func handlePhotoSubmit(rt *session.Runtime) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or missing session token")
			return
		}

		var req PhotoSubmitRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		result, err := rt.SubmitPhoto(r.Context(), token, chi.URLParam(r, "taskID"), req.PhotoReference)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, TaskSubmitResponse{
			AttemptID:    result.AttemptID,
			ScoreEarned:  result.ScoreEarned,
			Passed:       result.Passed,
			Disqualified: result.Disqualified,
		})
	}
}
