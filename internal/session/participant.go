package session

import (
	"context"
	"time"

	"github.com/GoQuestly/backend-sub000/internal/geo"
	"github.com/GoQuestly/backend-sub000/internal/notify"
	"github.com/GoQuestly/backend-sub000/internal/quest"
)

// Participant transitions: PENDING -> APPROVED or REJECTED on the first ping
// (or a timeout scan), APPROVED -> DISQUALIFIED on a failed required task.
// REJECTED and DISQUALIFIED are sinks; the from-status guard in the store
// keeps them that way under concurrent writers.

// admitOnFirstPing resolves a PENDING participant from its first-ever
// location ping. Only the first ping is evaluated; callers never re-run
// admission for later pings.
func (r *Runtime) admitOnFirstPing(ctx context.Context, p Participant, q *quest.Quest, lat, lon float64) (Participant, error) {
	d := geo.Distance(lat, lon, q.StartingLatitude, q.StartingLongitude)
	if !geo.WithinRadius(d, q.StartingRadiusMeters) {
		return r.rejectParticipant(ctx, p, ReasonTooFarFromStart)
	}

	changed, err := r.store.TransitionParticipant(ctx, p.ID, StatusPending, StatusApproved, nil)
	if err != nil {
		return p, err
	}
	if changed {
		p.Status = StatusApproved
	}
	return p, nil
}

func (r *Runtime) rejectParticipant(ctx context.Context, p Participant, reason string) (Participant, error) {
	changed, err := r.store.TransitionParticipant(ctx, p.ID, StatusPending, StatusRejected, &reason)
	if err != nil {
		return p, err
	}
	if !changed {
		return p, nil
	}
	p.Status = StatusRejected
	p.RejectionReason = &reason

	r.emit(p.SessionID, p.ID, Event{Type: EventParticipantRejected, Payload: map[string]any{
		"participantId": p.ID,
		"reason":        reason,
	}})
	r.push(ctx, notify.Notification{
		Kind:      notify.KindParticipantRejected,
		SessionID: p.SessionID,
		UserID:    p.UserID,
		Data:      map[string]any{"reason": reason},
	})
	return p, nil
}

// disqualify moves an APPROVED participant into the DISQUALIFIED sink.
// Idempotent: a second caller finds the from-status guard already spent.
func (r *Runtime) disqualify(ctx context.Context, p Participant) (Participant, error) {
	reason := ReasonRequiredTaskNotCompleted
	changed, err := r.store.TransitionParticipant(ctx, p.ID, StatusApproved, StatusDisqualified, &reason)
	if err != nil {
		return p, err
	}
	if !changed {
		return p, nil
	}
	p.Status = StatusDisqualified
	p.RejectionReason = &reason

	r.emit(p.SessionID, p.ID, Event{Type: EventParticipantDisqualified, Payload: map[string]any{
		"participantId": p.ID,
		"reason":        reason,
	}})
	return p, nil
}

// checkRequiredTask runs after an attempt completes, by submission or by
// expiry: a required task finished below its success bar disqualifies the
// participant. Returns the refreshed participant and whether it was
// disqualified by this call or an earlier one.
func (r *Runtime) checkRequiredTask(ctx context.Context, p Participant, t *quest.Task, scoreEarned int) (Participant, bool, error) {
	if !t.RequiredForNextPoint || t.Passed(scoreEarned) {
		return p, false, nil
	}
	p, err := r.disqualify(ctx, p)
	if err != nil {
		return p, false, err
	}
	return p, p.Status == StatusDisqualified, nil
}

// rejectSilentParticipants rejects every still-PENDING participant of the
// session that has produced zero location pings. Called by the lifecycle
// scan at or after the intended start.
func (r *Runtime) rejectSilentParticipants(ctx context.Context, sessionID string, _ time.Time) error {
	participants, err := r.store.ParticipantsBySession(ctx, sessionID)
	if err != nil {
		return err
	}
	for _, p := range participants {
		if p.Status != StatusPending {
			continue
		}
		if err := func() error {
			unlock := r.lockParticipant(p.ID)
			defer unlock()

			count, err := r.store.CountPings(ctx, p.ID)
			if err != nil {
				return err
			}
			if count > 0 {
				return nil
			}
			_, err = r.rejectParticipant(ctx, p, ReasonNoLocation)
			return err
		}(); err != nil {
			// One failing participant never aborts the batch.
			r.logger.Error("no-location rejection failed",
				"session_id", sessionID, "participant_id", p.ID, "error", err)
		}
	}
	return nil
}
