package session

import "context"

// State is a participant's full view of its own run.
type State struct {
	Participant Participant
	Session     Session
	Passages    []Passage
	Attempts    []Attempt
	TotalScore  int
	// NextOrderNum is the order of the next waypoint the participant can
	// currently pass, nil when every waypoint is passed, the preceding task
	// gate is shut, or the participant cannot progress.
	NextOrderNum *int
}

// ParticipantState assembles the caller's current run state.
func (r *Runtime) ParticipantState(ctx context.Context, token string) (State, error) {
	p, sess, q, err := r.participantByToken(ctx, token)
	if err != nil {
		return State{}, err
	}

	passages, err := r.store.PassagesByParticipant(ctx, p.ID)
	if err != nil {
		return State{}, err
	}
	attempts, err := r.store.AttemptsByParticipant(ctx, p.ID)
	if err != nil {
		return State{}, err
	}

	st := State{
		Participant: p,
		Session:     sess,
		Passages:    passages,
		Attempts:    attempts,
		TotalScore:  totalScore(attempts),
	}

	if p.Status == StatusApproved && !sess.Ended() {
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
		if q.WaypointByOrder(target) != nil {
			// Progression's task gate applies here too: a waypoint whose
			// preceding task is unfinished is not reachable yet.
			open, _, err := r.gateOpen(ctx, p.ID, q, maxPassed)
			if err != nil {
				return State{}, err
			}
			if open {
				st.NextOrderNum = &target
			}
		}
	}
	return st, nil
}
