package server

import (
	"net/http"

	"github.com/GoQuestly/backend-sub000/internal/session"
)

type LocationRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type LocationResponse struct {
	Status          string  `json:"status"`
	RejectionReason *string `json:"rejectionReason,omitempty"`
	PassedOrderNum  *int    `json:"passedOrderNum,omitempty"`
	Disqualified    bool    `json:"disqualified,omitempty"`
}

func handleLocation(rt *session.Runtime) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or missing session token")
			return
		}

		var req LocationRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		update, err := rt.RecordLocation(r.Context(), token, req.Latitude, req.Longitude)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, LocationResponse{
			Status:          string(update.Status),
			RejectionReason: update.RejectionReason,
			PassedOrderNum:  update.PassedOrderNum,
			Disqualified:    update.Disqualified,
		})
	}
}
