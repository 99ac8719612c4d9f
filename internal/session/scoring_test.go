package session

import (
	"context"
	"testing"
	"time"
)

func TestLeaderboardOrdering(t *testing.T) {
	rt, clock := newTestRuntime(t)
	mustCreateQuest(t, rt, testQuest())
	sess := activeSession(t, rt, clock)
	ctx := context.Background()

	// Join order fixes the tiebreak baseline.
	var participants []Participant
	for _, userID := range []string{"user-a", "user-b", "user-c", "user-d"} {
		p, err := rt.Join(ctx, sess.ID, userID)
		if err != nil {
			t.Fatalf("joining %s: %v", userID, err)
		}
		participants = append(participants, p)
	}

	now := clock.Now()
	seed := func(p Participant, passed int, score int, finished bool) {
		t.Helper()
		for order := 1; order <= passed; order++ {
			if _, err := rt.store.InsertPassage(ctx, Passage{
				ParticipantID: p.ID, OrderNum: order, PassedAt: now,
			}); err != nil {
				t.Fatalf("inserting passage: %v", err)
			}
		}
		if score > 0 {
			a := Attempt{
				ID: p.ID + "-attempt", ParticipantID: p.ID, TaskID: "task-quiz",
				OrderNum: 1, StartedAt: &now,
			}
			if err := rt.store.CreateAttempt(ctx, a); err != nil {
				t.Fatalf("creating attempt: %v", err)
			}
			if _, err := rt.store.CompleteAttempt(ctx, a.ID, score, now); err != nil {
				t.Fatalf("completing attempt: %v", err)
			}
		}
		if finished {
			if err := rt.store.SetFinishDate(ctx, p.ID, now); err != nil {
				t.Fatalf("setting finish date: %v", err)
			}
		}
	}

	// user-a: finisher, modest progress. user-b: most waypoints, no finish.
	// user-c: same waypoints as user-d but higher score.
	seed(participants[0], 2, 10, true)
	seed(participants[1], 3, 5, false)
	seed(participants[2], 1, 20, false)
	seed(participants[3], 1, 15, false)

	entries, err := rt.Leaderboard(ctx, sess.ID)
	if err != nil {
		t.Fatalf("building leaderboard: %v", err)
	}

	wantOrder := []string{"user-a", "user-b", "user-c", "user-d"}
	if len(entries) != len(wantOrder) {
		t.Fatalf("entries = %d, want %d", len(entries), len(wantOrder))
	}
	for i, want := range wantOrder {
		if entries[i].UserID != want {
			t.Errorf("rank %d = %s, want %s", i+1, entries[i].UserID, want)
		}
		if entries[i].Rank != i+1 {
			t.Errorf("entry %d rank = %d, want %d", i, entries[i].Rank, i+1)
		}
	}
}

func TestLeaderboardStableOnFullTie(t *testing.T) {
	rt, clock := newTestRuntime(t)
	mustCreateQuest(t, rt, testQuest())
	sess := activeSession(t, rt, clock)
	ctx := context.Background()

	for _, userID := range []string{"user-a", "user-b"} {
		if _, err := rt.Join(ctx, sess.ID, userID); err != nil {
			t.Fatalf("joining %s: %v", userID, err)
		}
	}

	entries, err := rt.Leaderboard(ctx, sess.ID)
	if err != nil {
		t.Fatalf("building leaderboard: %v", err)
	}
	if entries[0].UserID != "user-a" || entries[1].UserID != "user-b" {
		t.Errorf("tie broke join order: %s, %s", entries[0].UserID, entries[1].UserID)
	}
}

func TestUncompletedAttemptsDoNotScore(t *testing.T) {
	rt, clock := newTestRuntime(t)
	mustCreateQuest(t, rt, testQuest())
	sess := activeSession(t, rt, clock)
	ctx := context.Background()

	p := joinApproved(t, rt, sess.ID, "user-1")
	if _, err := rt.RecordLocation(ctx, p.Token, wp1Lat, wp1Lon); err != nil {
		t.Fatalf("ping at waypoint 1: %v", err)
	}
	if _, err := rt.StartTask(ctx, p.Token, "task-quiz"); err != nil {
		t.Fatalf("starting quiz: %v", err)
	}
	if _, err := rt.SubmitQuizAnswer(ctx, p.Token, "task-quiz", "q1", []string{"q1-a"}); err != nil {
		t.Fatalf("answering q1: %v", err)
	}

	st, err := rt.ParticipantState(ctx, p.Token)
	if err != nil {
		t.Fatalf("loading state: %v", err)
	}
	if st.TotalScore != 0 {
		t.Errorf("total score with an open attempt = %d, want 0", st.TotalScore)
	}
}

func TestParticipantState(t *testing.T) {
	rt, clock := newTestRuntime(t)
	mustCreateQuest(t, rt, testQuest())
	sess := activeSession(t, rt, clock)
	ctx := context.Background()

	p := joinApproved(t, rt, sess.ID, "user-1")
	if _, err := rt.RecordLocation(ctx, p.Token, wp1Lat, wp1Lon); err != nil {
		t.Fatalf("ping at waypoint 1: %v", err)
	}
	completeQuiz(t, rt, p.Token, [][2]any{
		{"q1", []string{"q1-a"}},
		{"q2", []string{"q2-a", "q2-b"}},
	})

	st, err := rt.ParticipantState(ctx, p.Token)
	if err != nil {
		t.Fatalf("loading state: %v", err)
	}
	if st.Participant.ID != p.ID {
		t.Errorf("participant = %s, want %s", st.Participant.ID, p.ID)
	}
	if len(st.Passages) != 1 || st.Passages[0].OrderNum != 1 {
		t.Errorf("passages = %+v, want only order 1", st.Passages)
	}
	if st.TotalScore != 20 {
		t.Errorf("total score = %d, want 20", st.TotalScore)
	}
	if st.NextOrderNum == nil || *st.NextOrderNum != 2 {
		t.Errorf("next order = %v, want 2", st.NextOrderNum)
	}
}

func TestParticipantStateGatesNextWaypoint(t *testing.T) {
	rt, clock := newTestRuntime(t)
	mustCreateQuest(t, rt, testQuest())
	sess := activeSession(t, rt, clock)
	ctx := context.Background()

	p := joinApproved(t, rt, sess.ID, "user-1")
	if _, err := rt.RecordLocation(ctx, p.Token, wp1Lat, wp1Lon); err != nil {
		t.Fatalf("ping at waypoint 1: %v", err)
	}

	// Waypoint 1 is passed but its quiz is untouched, so no waypoint is
	// reachable yet.
	st, err := rt.ParticipantState(ctx, p.Token)
	if err != nil {
		t.Fatalf("loading state: %v", err)
	}
	if st.NextOrderNum != nil {
		t.Errorf("next order with the gate shut = %d, want nil", *st.NextOrderNum)
	}

	completeQuiz(t, rt, p.Token, [][2]any{
		{"q1", []string{"q1-a"}},
		{"q2", []string{"q2-a", "q2-b"}},
	})
	st, err = rt.ParticipantState(ctx, p.Token)
	if err != nil {
		t.Fatalf("reloading state: %v", err)
	}
	if st.NextOrderNum == nil || *st.NextOrderNum != 2 {
		t.Errorf("next order after the quiz = %v, want 2", st.NextOrderNum)
	}
}

func TestSessionStats(t *testing.T) {
	rt, clock := newTestRuntime(t)
	mustCreateQuest(t, rt, testQuest())
	sess := activeSession(t, rt, clock)
	ctx := context.Background()

	joinApproved(t, rt, sess.ID, "user-1")
	if _, err := rt.Join(ctx, sess.ID, "user-2"); err != nil {
		t.Fatalf("joining: %v", err)
	}

	clock.Advance(10 * time.Minute)
	stats, err := rt.SessionStats(ctx, sess.ID)
	if err != nil {
		t.Fatalf("building stats: %v", err)
	}

	if stats.ParticipantsNum != 2 {
		t.Errorf("participants = %d, want 2", stats.ParticipantsNum)
	}
	if stats.ParticipantsBy[string(StatusApproved)] != 1 {
		t.Errorf("approved = %d, want 1", stats.ParticipantsBy[string(StatusApproved)])
	}
	if stats.ParticipantsBy[string(StatusPending)] != 1 {
		t.Errorf("pending = %d, want 1", stats.ParticipantsBy[string(StatusPending)])
	}
	if stats.TotalPings != 1 {
		t.Errorf("pings = %d, want 1", stats.TotalPings)
	}
	if stats.ActiveSessions != 1 {
		t.Errorf("active sessions = %d, want 1", stats.ActiveSessions)
	}
	if stats.Duration != 10*time.Minute {
		t.Errorf("duration = %v, want 10m", stats.Duration)
	}
	if stats.FinishedCount != 0 || stats.CompletionRate != 0 {
		t.Errorf("finished = %d rate = %v, want zero", stats.FinishedCount, stats.CompletionRate)
	}
}
