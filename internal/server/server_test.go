package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/GoQuestly/backend-sub000/internal/database"
	"github.com/GoQuestly/backend-sub000/internal/migrations"
	"github.com/GoQuestly/backend-sub000/internal/session"
)

const testOrganizerToken = "test-organizer-token"

// Demo quest geometry, used by the HTTP tests below.
const (
	demoStartLat, demoStartLon = -12.0464, -77.0428
	demoWP1Lat, demoWP1Lon     = -12.0464, -77.0301
	demoWP2Lat, demoWP2Lon     = -12.0453, -77.0311
	demoWP3Lat, demoWP3Lon     = -12.0432, -77.0306
)

func newTestServer(t *testing.T) (http.Handler, *session.Runtime, *session.SQLiteStore) {
	t.Helper()
	db, err := database.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := migrations.Run(context.Background(), db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := session.NewSQLiteStore(db)
	broker := NewBroker()
	rt := session.NewRuntime(store, logger, broker, nil)

	if err := SeedDemo(context.Background(), logger, store); err != nil {
		t.Fatalf("seeding demo data: %v", err)
	}

	r := chi.NewRouter()
	addRoutes(r, logger, rt, broker, db, nil, testOrganizerToken)
	return r, rt, store
}

// do issues a JSON request and decodes the response body into out (when
// non-nil).
func do(t *testing.T, h http.Handler, method, path, token string, body, out any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if out != nil && rec.Code < 300 {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
		}
	}
	return rec
}

// startActiveSession schedules a session for the demo quest that is already
// running.
func startActiveSession(t *testing.T, rt *session.Runtime) session.Session {
	t.Helper()
	sess, err := rt.ScheduleSession(context.Background(), "demo-quest", time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("scheduling session: %v", err)
	}
	return sess
}

// joinAndApprove joins the session over HTTP and approves via a first ping at
// the start area.
func joinAndApprove(t *testing.T, h http.Handler, sessionID, userID string) string {
	t.Helper()
	var join JoinResponse
	rec := do(t, h, http.MethodPost, "/api/sessions/"+sessionID+"/join", "", JoinRequest{UserID: userID}, &join)
	if rec.Code != http.StatusOK {
		t.Fatalf("join status = %d, body %s", rec.Code, rec.Body.String())
	}

	var loc LocationResponse
	rec = do(t, h, http.MethodPost, "/api/location", join.Token,
		LocationRequest{Latitude: demoStartLat, Longitude: demoStartLon}, &loc)
	if rec.Code != http.StatusOK {
		t.Fatalf("location status = %d, body %s", rec.Code, rec.Body.String())
	}
	if loc.Status != "APPROVED" {
		t.Fatalf("status after first ping = %s, want APPROVED", loc.Status)
	}
	return join.Token
}

func TestSeedDemoIdempotent(t *testing.T) {
	_, _, store := newTestServer(t)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := SeedDemo(context.Background(), logger, store); err != nil {
		t.Fatalf("second seed: %v", err)
	}
	if _, err := store.QuestByID(context.Background(), "demo-quest"); err != nil {
		t.Fatalf("demo quest missing after seed: %v", err)
	}
}

func TestJoinEndpoint(t *testing.T) {
	h, rt, _ := newTestServer(t)
	sess := startActiveSession(t, rt)

	var join JoinResponse
	rec := do(t, h, http.MethodPost, "/api/sessions/"+sess.ID+"/join", "", JoinRequest{UserID: "user-1"}, &join)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if join.Token == "" || join.Status != "PENDING" || join.SessionID != sess.ID {
		t.Errorf("join response = %+v", join)
	}

	rec = do(t, h, http.MethodPost, "/api/sessions/no-such/join", "", JoinRequest{UserID: "user-1"}, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown session status = %d, want 404", rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/api/sessions/"+sess.ID+"/join", "", JoinRequest{UserID: "  "}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("blank userId status = %d, want 400", rec.Code)
	}
}

func TestLocationEndpointAuth(t *testing.T) {
	h, rt, _ := newTestServer(t)
	startActiveSession(t, rt)

	rec := do(t, h, http.MethodPost, "/api/location", "",
		LocationRequest{Latitude: demoStartLat, Longitude: demoStartLon}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token status = %d, want 401", rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/api/location", "bogus",
		LocationRequest{Latitude: demoStartLat, Longitude: demoStartLon}, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("bogus token status = %d, want 403", rec.Code)
	}
}

func TestLocationValidationStatus(t *testing.T) {
	h, rt, _ := newTestServer(t)
	sess := startActiveSession(t, rt)
	token := joinAndApprove(t, h, sess.ID, "user-1")

	rec := do(t, h, http.MethodPost, "/api/location", token,
		LocationRequest{Latitude: 120, Longitude: 0}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("out-of-range status = %d, want 400", rec.Code)
	}
}

func TestQuizFlowOverHTTP(t *testing.T) {
	h, rt, _ := newTestServer(t)
	sess := startActiveSession(t, rt)
	token := joinAndApprove(t, h, sess.ID, "user-1")

	// Walk to the first waypoint.
	var loc LocationResponse
	rec := do(t, h, http.MethodPost, "/api/location", token,
		LocationRequest{Latitude: demoWP1Lat, Longitude: demoWP1Lon}, &loc)
	if rec.Code != http.StatusOK {
		t.Fatalf("location status = %d, body %s", rec.Code, rec.Body.String())
	}
	if loc.PassedOrderNum == nil || *loc.PassedOrderNum != 1 {
		t.Fatalf("passed = %v, want 1", loc.PassedOrderNum)
	}

	// Starting the quiz before answering is mandatory.
	rec = do(t, h, http.MethodPost, "/api/tasks/demo-task-quiz/quiz", token,
		QuizSubmitRequest{QuestionID: "demo-q1", AnswerIDs: []string{"demo-q1-a"}}, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("answer before start status = %d, want 409", rec.Code)
	}

	var start TaskStartResponse
	rec = do(t, h, http.MethodPost, "/api/tasks/demo-task-quiz/start", token, nil, &start)
	if rec.Code != http.StatusOK {
		t.Fatalf("start status = %d, body %s", rec.Code, rec.Body.String())
	}
	if start.AttemptID == "" || start.ExpiresAt == nil {
		t.Errorf("start response = %+v", start)
	}

	var progress QuizSubmitResponse
	rec = do(t, h, http.MethodPost, "/api/tasks/demo-task-quiz/quiz", token,
		QuizSubmitRequest{QuestionID: "demo-q1", AnswerIDs: []string{"demo-q1-a"}}, &progress)
	if rec.Code != http.StatusOK {
		t.Fatalf("quiz submit status = %d, body %s", rec.Code, rec.Body.String())
	}
	if progress.Completed || progress.AnsweredCount != 1 {
		t.Errorf("progress = %+v, want 1 of 2 incomplete", progress)
	}

	rec = do(t, h, http.MethodPost, "/api/tasks/demo-task-quiz/quiz", token,
		QuizSubmitRequest{QuestionID: "demo-q2", AnswerIDs: []string{"demo-q2-a", "demo-q2-b"}}, &progress)
	if rec.Code != http.StatusOK {
		t.Fatalf("quiz submit status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !progress.Completed || progress.ScoreEarned != 20 || !progress.Passed {
		t.Errorf("final progress = %+v, want completed with 20 points", progress)
	}

	// The participant's state view reflects the run.
	var state StateResponse
	rec = do(t, h, http.MethodGet, "/api/session/state", token, nil, &state)
	if rec.Code != http.StatusOK {
		t.Fatalf("state status = %d, body %s", rec.Code, rec.Body.String())
	}
	if state.TotalScore != 20 {
		t.Errorf("total score = %d, want 20", state.TotalScore)
	}
	if len(state.PassedOrderNums) != 1 || state.PassedOrderNums[0] != 1 {
		t.Errorf("passed orders = %v, want [1]", state.PassedOrderNums)
	}
	if state.NextOrderNum == nil || *state.NextOrderNum != 2 {
		t.Errorf("next order = %v, want 2", state.NextOrderNum)
	}
}

func TestOrganizerAuth(t *testing.T) {
	h, _, _ := newTestServer(t)
	body := ScheduleSessionRequest{QuestID: "demo-quest", StartDate: time.Now()}

	rec := do(t, h, http.MethodPost, "/api/organizer/sessions", "", body, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token status = %d, want 401", rec.Code)
	}
	rec = do(t, h, http.MethodPost, "/api/organizer/sessions", "wrong-token", body, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong token status = %d, want 401", rec.Code)
	}
}

func TestOrganizerSessionLifecycle(t *testing.T) {
	h, _, _ := newTestServer(t)

	var created SessionResponse
	rec := do(t, h, http.MethodPost, "/api/organizer/sessions", testOrganizerToken,
		ScheduleSessionRequest{QuestID: "demo-quest", StartDate: time.Now().Add(time.Hour)}, &created)
	if rec.Code != http.StatusCreated {
		t.Fatalf("schedule status = %d, body %s", rec.Code, rec.Body.String())
	}
	if created.SessionID == "" || created.QuestID != "demo-quest" {
		t.Errorf("created = %+v", created)
	}

	var fetched SessionResponse
	rec = do(t, h, http.MethodGet, "/api/organizer/sessions/"+created.SessionID, testOrganizerToken, nil, &fetched)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d, body %s", rec.Code, rec.Body.String())
	}
	if fetched.SessionID != created.SessionID || fetched.EndReason != nil {
		t.Errorf("fetched = %+v", fetched)
	}

	rec = do(t, h, http.MethodPost, "/api/organizer/sessions/"+created.SessionID+"/cancel", testOrganizerToken, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel status = %d, body %s", rec.Code, rec.Body.String())
	}
	rec = do(t, h, http.MethodPost, "/api/organizer/sessions/"+created.SessionID+"/cancel", testOrganizerToken, nil, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("second cancel status = %d, want 409", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/api/organizer/sessions/"+created.SessionID, testOrganizerToken, nil, &fetched)
	if rec.Code != http.StatusOK {
		t.Fatalf("get after cancel status = %d", rec.Code)
	}
	if fetched.EndReason == nil || *fetched.EndReason != "CANCELLED" {
		t.Errorf("end reason = %v, want CANCELLED", fetched.EndReason)
	}
}

func TestModerateEndpoint(t *testing.T) {
	h, _, _ := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/api/organizer/attempts/no-such/moderate", testOrganizerToken,
		ModerateRequest{Approved: true}, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown attempt status = %d, want 404", rec.Code)
	}
}

func TestLeaderboardEndpoint(t *testing.T) {
	h, rt, _ := newTestServer(t)
	sess := startActiveSession(t, rt)
	joinAndApprove(t, h, sess.ID, "user-1")

	var entries []session.LeaderboardEntry
	rec := do(t, h, http.MethodGet, "/api/sessions/"+sess.ID+"/leaderboard", "", nil, &entries)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(entries) != 1 || entries[0].Rank != 1 || entries[0].UserID != "user-1" {
		t.Errorf("entries = %+v", entries)
	}

	rec = do(t, h, http.MethodGet, "/api/sessions/no-such/leaderboard", "", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown session status = %d, want 404", rec.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	h, rt, _ := newTestServer(t)
	sess := startActiveSession(t, rt)
	joinAndApprove(t, h, sess.ID, "user-1")

	var stats session.Stats
	rec := do(t, h, http.MethodGet, "/api/organizer/sessions/"+sess.ID+"/stats", testOrganizerToken, nil, &stats)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if stats.ParticipantsNum != 1 || stats.TotalPings != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestLeaveEndpoint(t *testing.T) {
	h, rt, _ := newTestServer(t)
	sess := startActiveSession(t, rt)
	token := joinAndApprove(t, h, sess.ID, "user-1")

	rec := do(t, h, http.MethodPost, "/api/leave", token, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("leave status = %d, body %s", rec.Code, rec.Body.String())
	}
	rec = do(t, h, http.MethodGet, "/api/session/state", token, nil, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("state after leave status = %d, want 403", rec.Code)
	}
}

func TestEventsEndpointAuth(t *testing.T) {
	h, _, _ := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/api/session/events", "", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token status = %d, want 401", rec.Code)
	}
	rec = do(t, h, http.MethodGet, "/api/session/events?token=bogus", "", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bogus token status = %d, want 401", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	h, _, _ := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/healthz", "", nil, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "sqlite") {
		t.Errorf("body = %s, want sqlite check", rec.Body.String())
	}
}

func TestOpenAPIDocument(t *testing.T) {
	h, _, _ := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/openapi.json", "", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var doc struct {
		Info struct {
			Title string `json:"title"`
		} `json:"info"`
		Paths map[string]any `json:"paths"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decoding document: %v", err)
	}
	if doc.Info.Title != "GoQuestly API" {
		t.Errorf("title = %q", doc.Info.Title)
	}
	for _, path := range []string{"/api/sessions/{sessionID}/join", "/api/location", "/api/organizer/sessions"} {
		if _, ok := doc.Paths[path]; !ok {
			t.Errorf("path %s missing from the document", path)
		}
	}
}
