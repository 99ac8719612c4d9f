package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/GoQuestly/backend-sub000/internal/notify"
	"github.com/GoQuestly/backend-sub000/internal/quest"
)

// startingSoonWindow is how far ahead of the start the reminder goes out.
const startingSoonWindow = 15 * time.Minute

// ScheduleSession creates a session for a quest. Organizer action.
func (r *Runtime) ScheduleSession(ctx context.Context, questID string, startDate time.Time) (Session, error) {
	if startDate.IsZero() {
		return Session{}, fmt.Errorf("%w: startDate is required", ErrValidation)
	}
	if _, err := r.store.QuestByID(ctx, questID); err != nil {
		return Session{}, err
	}

	sess := Session{
		ID:        uuid.NewString(),
		QuestID:   questID,
		StartDate: startDate,
	}
	if err := r.store.CreateSession(ctx, sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Session returns one session by id.
func (r *Runtime) Session(ctx context.Context, id string) (Session, error) {
	return r.store.SessionByID(ctx, id)
}

// Cancel ends a session as CANCELLED, valid before or during its run. The
// end-reason guard makes it win over any concurrently running scan; once set,
// every further mutation for the session is refused.
func (r *Runtime) Cancel(ctx context.Context, sessionID string) error {
	if _, err := r.store.SessionByID(ctx, sessionID); err != nil {
		return err
	}
	changed, err := r.store.EndSession(ctx, sessionID, EndReasonCancelled, r.now())
	if err != nil {
		return err
	}
	if !changed {
		return fmt.Errorf("%w: session already ended", ErrStateConflict)
	}
	r.purgeSessionState(sessionID)

	participants, err := r.store.ParticipantsBySession(ctx, sessionID)
	if err != nil {
		return err
	}
	r.emit(sessionID, "", Event{Type: EventSessionCancelled, Payload: map[string]any{
		"sessionId": sessionID,
	}})
	for _, p := range participants {
		if r.events != nil {
			r.events.Publish(ParticipantChannel(p.ID), Event{Type: EventSessionCancelled, Payload: map[string]any{
				"sessionId": sessionID,
			}})
		}
		r.push(ctx, notify.Notification{
			Kind:      notify.KindSessionCancelled,
			SessionID: sessionID,
			UserID:    p.UserID,
		})
	}
	return nil
}

// evaluateSession runs one lifecycle pass over a single open session. Every
// transition is idempotent and safe to re-evaluate on the next tick.
func (r *Runtime) evaluateSession(ctx context.Context, sess Session) error {
	now := r.now()
	if now.Before(sess.StartDate) {
		return nil
	}

	q, err := r.store.QuestByID(ctx, sess.QuestID)
	if err != nil {
		return err
	}

	// The session has (nominally) started: resolve participants that never
	// sent a location.
	if err := r.rejectSilentParticipants(ctx, sess.ID, now); err != nil {
		return err
	}

	participants, err := r.store.ParticipantsBySession(ctx, sess.ID)
	if err != nil {
		return err
	}

	// Empty-session end: nobody attached shortly after the intended start.
	if len(participants) == 0 {
		return r.finishSession(ctx, sess, sess.StartDate)
	}

	// Duration end.
	deadline := sess.StartDate.Add(q.Duration())
	if !now.Before(deadline) {
		return r.finishSession(ctx, sess, now)
	}

	// Completion end: every approved participant is done, or none are left.
	approved := 0
	doneApproved := 0
	var finishers []Participant
	for _, p := range participants {
		if p.Status != StatusApproved {
			continue
		}
		approved++
		done, err := r.participantDone(ctx, p, q)
		if err != nil {
			return err
		}
		if done {
			doneApproved++
			finishers = append(finishers, p)
		}
	}

	if approved == 0 || doneApproved == approved {
		for _, p := range finishers {
			if err := r.store.SetFinishDate(ctx, p.ID, now); err != nil {
				return err
			}
		}
		return r.finishSession(ctx, sess, now)
	}
	return nil
}

// participantDone reports whether an approved participant passed every
// waypoint, completed every task, and has no photo awaiting moderation.
func (r *Runtime) participantDone(ctx context.Context, p Participant, q *quest.Quest) (bool, error) {
	passages, err := r.store.PassagesByParticipant(ctx, p.ID)
	if err != nil {
		return false, err
	}
	if len(passages) < len(q.Waypoints) {
		return false, nil
	}

	attempts, err := r.store.AttemptsByParticipant(ctx, p.ID)
	if err != nil {
		return false, err
	}
	byTask := make(map[string]Attempt, len(attempts))
	for _, a := range attempts {
		byTask[a.TaskID] = a
	}

	for i := range q.Waypoints {
		t := q.Waypoints[i].Task
		if t == nil {
			continue
		}
		a, ok := byTask[t.ID]
		if !ok || !a.Completed() {
			return false, nil
		}
		if a.PhotoRef != nil && a.Moderation == nil {
			return false, nil
		}
	}
	return true, nil
}

// finishSession ends the session as FINISHED and fans out the end
// notifications, with rank and score for participants that finished.
func (r *Runtime) finishSession(ctx context.Context, sess Session, at time.Time) error {
	changed, err := r.store.EndSession(ctx, sess.ID, EndReasonFinished, at)
	if err != nil {
		return err
	}
	if !changed {
		// A concurrent scan or a cancel got here first; end date and reason
		// are immutable now.
		return nil
	}
	r.purgeSessionState(sess.ID)

	r.emit(sess.ID, "", Event{Type: EventSessionEnded, Payload: map[string]any{
		"sessionId": sess.ID,
		"reason":    string(EndReasonFinished),
	}})

	entries, err := r.Leaderboard(ctx, sess.ID)
	if err != nil {
		r.logger.Error("building final leaderboard", "session_id", sess.ID, "error", err)
		entries = nil
	}
	rankByParticipant := make(map[string]LeaderboardEntry, len(entries))
	for _, e := range entries {
		rankByParticipant[e.ParticipantID] = e
	}

	participants, err := r.store.ParticipantsBySession(ctx, sess.ID)
	if err != nil {
		return err
	}
	for _, p := range participants {
		data := map[string]any{"reason": string(EndReasonFinished)}
		if e, ok := rankByParticipant[p.ID]; ok && p.FinishDate != nil {
			data["rank"] = e.Rank
			data["score"] = e.TotalScore
		}
		r.push(ctx, notify.Notification{
			Kind:      notify.KindSessionEnded,
			SessionID: sess.ID,
			UserID:    p.UserID,
			Data:      data,
		})
	}
	return nil
}

// remindUpcoming sends the starting-soon and started pushes, each at most
// once per session. The dedup set is ephemeral by design: a restart resends
// at worst one reminder.
func (r *Runtime) remindUpcoming(ctx context.Context, sess Session) {
	now := r.now()

	switch {
	case now.Before(sess.StartDate):
		if sess.StartDate.Sub(now) > startingSoonWindow {
			return
		}
		if !r.markReminded(sess.ID, "soon") {
			return
		}
		r.pushToAll(ctx, sess.ID, notify.KindSessionStartingSoon, nil)
	default:
		if !r.markReminded(sess.ID, "started") {
			return
		}
		r.pushToAll(ctx, sess.ID, notify.KindSessionStarted, nil)
	}
}

func (r *Runtime) pushToAll(ctx context.Context, sessionID, kind string, data map[string]any) {
	participants, err := r.store.ParticipantsBySession(ctx, sessionID)
	if err != nil {
		r.logger.Error("listing participants for push", "session_id", sessionID, "error", err)
		return
	}
	for _, p := range participants {
		r.push(ctx, notify.Notification{
			Kind:      kind,
			SessionID: sessionID,
			UserID:    p.UserID,
			Data:      data,
		})
	}
}

// markReminded records the reminder in the session-scoped dedup set and
// reports whether this caller was first.
func (r *Runtime) markReminded(sessionID, kind string) bool {
	key := sessionID + "|" + kind
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, sent := r.reminded[key]; sent {
		return false
	}
	r.reminded[key] = struct{}{}
	return true
}

// purgeSessionState drops the session's ephemeral dedup entries.
func (r *Runtime) purgeSessionState(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.reminded, sessionID+"|soon")
	delete(r.reminded, sessionID+"|started")
}
