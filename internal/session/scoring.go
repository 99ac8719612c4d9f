package session

import (
	"context"
	"sort"
	"time"
)

// LeaderboardEntry is one participant's ranked standing.
type LeaderboardEntry struct {
	Rank          int        `json:"rank"`
	ParticipantID string     `json:"participantId"`
	UserID        string     `json:"userId"`
	Status        string     `json:"status"`
	PassedCount   int        `json:"passedCount"`
	TotalScore    int        `json:"totalScore"`
	FinishDate    *time.Time `json:"finishDate,omitempty"`
}

// Stats is a point-in-time summary of one session.
type Stats struct {
	SessionID       string         `json:"sessionId"`
	Duration        time.Duration  `json:"durationSeconds"`
	ParticipantsBy  map[string]int `json:"participantsByStatus"`
	FinishedCount   int            `json:"finishedCount"`
	CompletionRate  float64        `json:"completionRate"`
	ActiveSessions  int            `json:"activeSessions"`
	EndReason       *EndReason     `json:"endReason,omitempty"`
	TotalPings      int            `json:"totalPings"`
	ParticipantsNum int            `json:"participants"`
}

// totalScore sums earned points over completed attempts. Moderation-adjusted
// scores are already reflected in ScoreEarned.
func totalScore(attempts []Attempt) int {
	sum := 0
	for _, a := range attempts {
		if a.Completed() {
			sum += a.ScoreEarned
		}
	}
	return sum
}

// Leaderboard ranks the session's participants: finishers above everyone
// else, then more waypoints passed, then higher score. Remaining ties keep
// the original join order.
func (r *Runtime) Leaderboard(ctx context.Context, sessionID string) ([]LeaderboardEntry, error) {
	if _, err := r.store.SessionByID(ctx, sessionID); err != nil {
		return nil, err
	}
	participants, err := r.store.ParticipantsBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, 0, len(participants))
	for _, p := range participants {
		passages, err := r.store.PassagesByParticipant(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		attempts, err := r.store.AttemptsByParticipant(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		entries = append(entries, LeaderboardEntry{
			ParticipantID: p.ID,
			UserID:        p.UserID,
			Status:        string(p.Status),
			PassedCount:   len(passages),
			TotalScore:    totalScore(attempts),
			FinishDate:    p.FinishDate,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if (a.FinishDate != nil) != (b.FinishDate != nil) {
			return a.FinishDate != nil
		}
		if a.PassedCount != b.PassedCount {
			return a.PassedCount > b.PassedCount
		}
		return a.TotalScore > b.TotalScore
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

// SessionStats builds the organizer's statistics snapshot.
func (r *Runtime) SessionStats(ctx context.Context, sessionID string) (Stats, error) {
	sess, err := r.store.SessionByID(ctx, sessionID)
	if err != nil {
		return Stats{}, err
	}
	participants, err := r.store.ParticipantsBySession(ctx, sessionID)
	if err != nil {
		return Stats{}, err
	}
	active, err := r.store.CountActiveSessions(ctx, r.now())
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{
		SessionID:       sessionID,
		ParticipantsBy:  map[string]int{},
		ActiveSessions:  active,
		EndReason:       sess.EndReason,
		ParticipantsNum: len(participants),
	}

	end := r.now()
	if sess.EndDate != nil {
		end = *sess.EndDate
	}
	if end.After(sess.StartDate) {
		stats.Duration = end.Sub(sess.StartDate)
	}

	for _, p := range participants {
		stats.ParticipantsBy[string(p.Status)]++
		if p.FinishDate != nil {
			stats.FinishedCount++
		}
		pings, err := r.store.CountPings(ctx, p.ID)
		if err != nil {
			return Stats{}, err
		}
		stats.TotalPings += pings
	}
	if len(participants) > 0 {
		stats.CompletionRate = float64(stats.FinishedCount) / float64(len(participants))
	}
	return stats, nil
}
