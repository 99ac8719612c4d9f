package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/GoQuestly/backend-sub000/internal/notify"
	"github.com/GoQuestly/backend-sub000/internal/quest"
)

// Runtime orchestrates the session engines over a Store. Every mutation that
// reads then writes one participant's status, passages, or attempts runs
// under that participant's lock; the store's uniqueness constraints back the
// locks up against concurrent writers from other processes.
type Runtime struct {
	store    Store
	logger   *slog.Logger
	events   EventSink
	notifier notify.Notifier
	now      func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	// reminded tracks sessions whose starting-soon reminder went out.
	// Session-scoped ephemeral state: purged when the session ends.
	reminded map[string]struct{}
}

func NewRuntime(store Store, logger *slog.Logger, events EventSink, notifier notify.Notifier) *Runtime {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &Runtime{
		store:    store,
		logger:   logger,
		events:   events,
		notifier: notifier,
		now:      time.Now,
		locks:    make(map[string]*sync.Mutex),
		reminded: make(map[string]struct{}),
	}
}

// lockParticipant acquires the named participant's critical section. Same
// double-checked map shape as the store registry it replaced.
func (r *Runtime) lockParticipant(id string) func() {
	r.mu.Lock()
	m, ok := r.locks[id]
	if !ok {
		m = &sync.Mutex{}
		r.locks[id] = m
	}
	r.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// Join attaches a user to a session as a PENDING participant and hands back
// the bearer token the client uses for all further calls.
func (r *Runtime) Join(ctx context.Context, sessionID, userID string) (Participant, error) {
	if userID == "" {
		return Participant{}, fmt.Errorf("%w: userId is required", ErrValidation)
	}

	sess, err := r.store.SessionByID(ctx, sessionID)
	if err != nil {
		return Participant{}, err
	}
	if sess.Ended() {
		return Participant{}, fmt.Errorf("%w: session has ended", ErrStateConflict)
	}

	q, err := r.store.QuestByID(ctx, sess.QuestID)
	if err != nil {
		return Participant{}, err
	}
	p := Participant{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		UserID:    userID,
		Token:     uuid.NewString(),
		Status:    StatusPending,
		CreatedAt: r.now(),
	}
	// The capacity check lives inside the insert: there is no lock to take
	// for a participant that does not exist yet.
	created, err := r.store.CreateParticipant(ctx, p, q.MaxParticipantCount)
	if err != nil {
		return Participant{}, err
	}
	if !created {
		return Participant{}, fmt.Errorf("%w: session is full", ErrStateConflict)
	}

	r.emit(sessionID, p.ID, Event{Type: EventParticipantJoined, Payload: map[string]any{
		"participantId": p.ID,
		"userId":        userID,
	}})
	return p, nil
}

// Leave detaches a participant. Only pending or approved participants can
// leave; terminal records are kept for the session's bookkeeping.
func (r *Runtime) Leave(ctx context.Context, token string) error {
	p, err := r.store.ParticipantByToken(ctx, token)
	if err != nil {
		return err
	}
	unlock := r.lockParticipant(p.ID)
	defer unlock()

	if p.Status.Terminal() {
		return fmt.Errorf("%w: participant is %s", ErrAccess, p.Status)
	}
	if err := r.store.DeleteParticipant(ctx, p.ID); err != nil {
		return err
	}
	r.emit(p.SessionID, "", Event{Type: EventParticipantLeft, Payload: map[string]any{
		"participantId": p.ID,
	}})
	return nil
}

// Authenticate resolves a participant bearer token.
func (r *Runtime) Authenticate(ctx context.Context, token string) (Participant, error) {
	p, err := r.store.ParticipantByToken(ctx, token)
	if err != nil {
		return Participant{}, fmt.Errorf("%w: unknown participant token", ErrAccess)
	}
	return p, nil
}

// participantByToken resolves the caller with its session and quest in one go.
func (r *Runtime) participantByToken(ctx context.Context, token string) (Participant, Session, *quest.Quest, error) {
	p, err := r.store.ParticipantByToken(ctx, token)
	if err != nil {
		return Participant{}, Session{}, nil, fmt.Errorf("%w: unknown participant token", ErrAccess)
	}
	sess, err := r.store.SessionByID(ctx, p.SessionID)
	if err != nil {
		return Participant{}, Session{}, nil, err
	}
	q, err := r.store.QuestByID(ctx, sess.QuestID)
	if err != nil {
		return Participant{}, Session{}, nil, err
	}
	return p, sess, q, nil
}

func (r *Runtime) push(ctx context.Context, n notify.Notification) {
	// Push delivery is delegated; a failure is the notifier's problem and is
	// logged there, never propagated to the state machine.
	r.notifier.Push(ctx, n)
}
