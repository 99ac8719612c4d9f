package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GoQuestly/backend-sub000/internal/geo"
	"github.com/GoQuestly/backend-sub000/internal/quest"
)

// LocationUpdate is the outcome of one location ping.
type LocationUpdate struct {
	Status          ParticipantStatus
	RejectionReason *string
	// PassedOrderNum is set when this ping recorded a new waypoint passage.
	PassedOrderNum *int
	Disqualified   bool
}

// RecordLocation ingests one location ping: appends it to the log, runs
// first-ping admission for PENDING participants, and feeds approved pings to
// waypoint progression while the session is active. Duplicate pings near an
// already-passed waypoint no-op rather than error.
func (r *Runtime) RecordLocation(ctx context.Context, token string, lat, lon float64) (LocationUpdate, error) {
	if !geo.ValidCoordinates(lat, lon) {
		return LocationUpdate{}, fmt.Errorf("%w: coordinates out of range", ErrValidation)
	}

	p, sess, q, err := r.participantByToken(ctx, token)
	if err != nil {
		return LocationUpdate{}, err
	}

	unlock := r.lockParticipant(p.ID)
	defer unlock()

	// Re-read under the lock so concurrent pings see each other's writes.
	if p, err = r.store.ParticipantByID(ctx, p.ID); err != nil {
		return LocationUpdate{}, err
	}
	if p.Status.Terminal() {
		return LocationUpdate{}, fmt.Errorf("%w: participant is %s", ErrAccess, p.Status)
	}
	if sess.Ended() {
		return LocationUpdate{}, fmt.Errorf("%w: session has ended", ErrStateConflict)
	}

	now := r.now()
	pingCount, err := r.store.CountPings(ctx, p.ID)
	if err != nil {
		return LocationUpdate{}, err
	}
	if err := r.store.InsertPing(ctx, Ping{
		ParticipantID: p.ID,
		Latitude:      lat,
		Longitude:     lon,
		RecordedAt:    now,
	}); err != nil {
		return LocationUpdate{}, err
	}

	if pingCount == 0 && p.Status == StatusPending {
		if p, err = r.admitOnFirstPing(ctx, p, q, lat, lon); err != nil {
			return LocationUpdate{}, err
		}
	}

	update := LocationUpdate{Status: p.Status, RejectionReason: p.RejectionReason}
	if p.Status == StatusApproved && sess.ActiveAt(now) {
		passed, disqualified, err := r.advance(ctx, p, q, lat, lon, now)
		if err != nil {
			return LocationUpdate{}, err
		}
		update.PassedOrderNum = passed
		update.Disqualified = disqualified
		if disqualified {
			update.Status = StatusDisqualified
		}
	}

	r.emit(p.SessionID, "", Event{Type: EventLocationUpdated, Payload: map[string]any{
		"participantId": p.ID,
		"latitude":      lat,
		"longitude":     lon,
	}})
	return update, nil
}

// advance runs one waypoint progression step for an approved participant:
// it finds the next reachable waypoint, verifies the gate on the preceding
// waypoint's task, and records the passage if the ping lands inside the
// completion radius. Caller holds the participant lock.
func (r *Runtime) advance(ctx context.Context, p Participant, q *quest.Quest, lat, lon float64, now time.Time) (passed *int, disqualified bool, err error) {
	passages, err := r.store.PassagesByParticipant(ctx, p.ID)
	if err != nil {
		return nil, false, err
	}

	maxPassed := -1
	for _, ps := range passages {
		if ps.OrderNum > maxPassed {
			maxPassed = ps.OrderNum
		}
	}

	target := q.MinOrder()
	if maxPassed >= 0 {
		target = maxPassed + 1
	}
	next := q.WaypointByOrder(target)
	if next == nil {
		// All passed, or the quest ordering has a gap. Nothing to do.
		return nil, false, nil
	}

	open, failedRequired, err := r.gateOpen(ctx, p.ID, q, maxPassed)
	if err != nil {
		return nil, false, err
	}
	if failedRequired {
		if _, err := r.disqualify(ctx, p); err != nil {
			return nil, false, err
		}
		return nil, true, nil
	}
	if !open {
		return nil, false, nil
	}

	d := geo.Distance(lat, lon, next.Latitude, next.Longitude)
	if !geo.WithinRadius(d, q.CompletionRadiusMeters) {
		return nil, false, nil
	}

	created, err := r.store.InsertPassage(ctx, Passage{
		ParticipantID: p.ID,
		OrderNum:      next.OrderNum,
		PassedAt:      now,
	})
	if err != nil {
		return nil, false, err
	}
	if !created {
		return nil, false, nil
	}

	r.emit(p.SessionID, p.ID, Event{Type: EventPointPassed, Payload: map[string]any{
		"participantId": p.ID,
		"orderNum":      next.OrderNum,
		"hasTask":       next.Task != nil,
	}})
	order := next.OrderNum
	return &order, false, nil
}

// gateOpen checks the task gate on the waypoint at order maxPassed: the next
// waypoint is reachable only once that task's attempt is completed.
// failedRequired is set when the attempt completed without passing a task
// that is required for the next point.
func (r *Runtime) gateOpen(ctx context.Context, participantID string, q *quest.Quest, maxPassed int) (open, failedRequired bool, err error) {
	if maxPassed < 0 {
		return true, false, nil
	}
	prev := q.WaypointByOrder(maxPassed)
	if prev == nil || prev.Task == nil {
		return true, false, nil
	}
	attempt, err := r.store.AttemptFor(ctx, participantID, prev.Task.ID)
	if errors.Is(err, ErrNotFound) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	if !attempt.Completed() {
		return false, false, nil
	}
	if prev.Task.RequiredForNextPoint && !prev.Task.Passed(attempt.ScoreEarned) {
		return false, true, nil
	}
	return true, false, nil
}
