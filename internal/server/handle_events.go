package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/GoQuestly/backend-sub000/internal/session"
)

// handleEvents streams a participant's private event channel over SSE. The
// token rides in a query parameter because EventSource cannot set headers.
func handleEvents(rt *session.Runtime, broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			writeError(w, http.StatusUnauthorized, "token query parameter required")
			return
		}

		p, err := rt.Authenticate(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid session token")
			return
		}

		streamChannel(w, r, broker, session.ParticipantChannel(p.ID))
	}
}

// handleOrganizerEvents streams a session's organizer channel. Guarded by
// organizerAuth in the route tree.
func handleOrganizerEvents(broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		streamChannel(w, r, broker, session.OrganizerChannel(chi.URLParam(r, "sessionID")))
	}
}

func streamChannel(w http.ResponseWriter, r *http.Request, broker *Broker, channel string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	flusher.Flush()

	ch := broker.Subscribe(channel)
	defer broker.Unsubscribe(channel, ch)

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case data := <-ch:
			fmt.Fprintf(w, "event: state\ndata: %s\n\n", data)
			flusher.Flush()
		case <-ping.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}
