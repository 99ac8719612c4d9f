package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/GoQuestly/backend-sub000/internal/session"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "GoQuestly API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Session runtime for location-based scavenger hunts.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the health status of backend dependencies.")
	getHealthz.AddRespStructure(map[string]any{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(map[string]any{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// POST /api/sessions/{sessionID}/join
	postJoin, _ := r.NewOperationContext(http.MethodPost, "/api/sessions/{sessionID}/join")
	postJoin.SetSummary("Join a session")
	postJoin.SetDescription("Attaches a user to a session as a pending participant. Returns the bearer token used for all further calls.")
	postJoin.AddReqStructure(JoinRequest{})
	postJoin.AddRespStructure(JoinResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postJoin.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	postJoin.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(postJoin)

	// POST /api/leave
	postLeave, _ := r.NewOperationContext(http.MethodPost, "/api/leave")
	postLeave.SetSummary("Leave a session")
	postLeave.AddRespStructure(map[string]bool{}, openapi.WithHTTPStatus(http.StatusOK))
	postLeave.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postLeave)

	// POST /api/location
	postLocation, _ := r.NewOperationContext(http.MethodPost, "/api/location")
	postLocation.SetSummary("Submit a location ping")
	postLocation.SetDescription("Feeds admission on the first ping and waypoint progression afterwards. Requires Bearer token.")
	postLocation.AddReqStructure(LocationRequest{})
	postLocation.AddRespStructure(LocationResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postLocation.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postLocation.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	postLocation.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(postLocation)

	// POST /api/tasks/{taskID}/start
	postStart, _ := r.NewOperationContext(http.MethodPost, "/api/tasks/{taskID}/start")
	postStart.SetSummary("Start a task attempt")
	postStart.SetDescription("Idempotent for a running attempt; conflicts once completed.")
	postStart.AddRespStructure(TaskStartResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postStart.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(postStart)

	// POST /api/tasks/{taskID}/quiz
	postQuiz, _ := r.NewOperationContext(http.MethodPost, "/api/tasks/{taskID}/quiz")
	postQuiz.SetSummary("Answer one quiz question")
	postQuiz.AddReqStructure(QuizSubmitRequest{})
	postQuiz.AddRespStructure(QuizSubmitResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postQuiz.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postQuiz.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(postQuiz)

	// POST /api/tasks/{taskID}/codeword
	postWord, _ := r.NewOperationContext(http.MethodPost, "/api/tasks/{taskID}/codeword")
	postWord.SetSummary("Submit a code word")
	postWord.AddReqStructure(CodeWordSubmitRequest{})
	postWord.AddRespStructure(TaskSubmitResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postWord.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(postWord)

	// POST /api/tasks/{taskID}/photo
	postPhoto, _ := r.NewOperationContext(http.MethodPost, "/api/tasks/{taskID}/photo")
	postPhoto.SetSummary("Submit a photo reference")
	postPhoto.AddReqStructure(PhotoSubmitRequest{})
	postPhoto.AddRespStructure(TaskSubmitResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postPhoto.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(postPhoto)

	// GET /api/session/state
	getState, _ := r.NewOperationContext(http.MethodGet, "/api/session/state")
	getState.SetSummary("Get participant run state")
	getState.AddRespStructure(StateResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getState.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(getState)

	// GET /api/sessions/{sessionID}/leaderboard
	getBoard, _ := r.NewOperationContext(http.MethodGet, "/api/sessions/{sessionID}/leaderboard")
	getBoard.SetSummary("Session leaderboard")
	getBoard.AddRespStructure([]session.LeaderboardEntry{}, openapi.WithHTTPStatus(http.StatusOK))
	getBoard.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getBoard)

	// GET /api/session/events
	getEvents, _ := r.NewOperationContext(http.MethodGet, "/api/session/events")
	getEvents.SetSummary("SSE event stream")
	getEvents.SetDescription("Server-Sent Events stream for the participant's channel. Pass token as query parameter.")
	getEvents.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	_ = r.AddOperation(getEvents)

	// POST /api/organizer/sessions
	postSession, _ := r.NewOperationContext(http.MethodPost, "/api/organizer/sessions")
	postSession.SetSummary("Schedule a session")
	postSession.AddReqStructure(ScheduleSessionRequest{})
	postSession.AddRespStructure(SessionResponse{}, openapi.WithHTTPStatus(http.StatusCreated))
	postSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(postSession)

	// POST /api/organizer/sessions/{sessionID}/cancel
	postCancel, _ := r.NewOperationContext(http.MethodPost, "/api/organizer/sessions/{sessionID}/cancel")
	postCancel.SetSummary("Cancel a session")
	postCancel.SetDescription("Ends the session as CANCELLED and blocks all further progression.")
	postCancel.AddRespStructure(map[string]bool{}, openapi.WithHTTPStatus(http.StatusOK))
	postCancel.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(postCancel)

	// POST /api/organizer/attempts/{attemptID}/moderate
	postModerate, _ := r.NewOperationContext(http.MethodPost, "/api/organizer/attempts/{attemptID}/moderate")
	postModerate.SetSummary("Moderate a submitted photo")
	postModerate.AddReqStructure(ModerateRequest{})
	postModerate.AddRespStructure(map[string]bool{}, openapi.WithHTTPStatus(http.StatusOK))
	postModerate.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(postModerate)

	// GET /api/organizer/sessions/{sessionID}/stats
	getStats, _ := r.NewOperationContext(http.MethodGet, "/api/organizer/sessions/{sessionID}/stats")
	getStats.SetSummary("Session statistics")
	getStats.AddRespStructure(session.Stats{}, openapi.WithHTTPStatus(http.StatusOK))
	getStats.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getStats)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	}
}
