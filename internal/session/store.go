package session

import (
	"context"
	"time"

	"github.com/GoQuestly/backend-sub000/internal/quest"
)

// Store is the persistence boundary for the runtime. Guarded mutations
// (TransitionParticipant, InsertPassage, CompleteAttempt, EndSession,
// ModerateAttempt) report whether they changed anything so callers can treat
// duplicates as no-ops; the underlying uniqueness constraints are the
// backstop against concurrent double writes.
type Store interface {
	CreateQuest(ctx context.Context, q *quest.Quest) error
	QuestByID(ctx context.Context, id string) (*quest.Quest, error)

	CreateSession(ctx context.Context, s Session) error
	SessionByID(ctx context.Context, id string) (Session, error)
	// ListOpenSessions returns every session with no end reason yet,
	// scheduled or active.
	ListOpenSessions(ctx context.Context) ([]Session, error)
	CountActiveSessions(ctx context.Context, now time.Time) (int, error)
	// EndSession sets end date and reason if the session has not ended yet.
	EndSession(ctx context.Context, id string, reason EndReason, at time.Time) (bool, error)

	// CreateParticipant inserts a participant only while the session holds
	// fewer than maxCount; it reports false when the session is full. The
	// count check and the insert run as one statement, so two concurrent
	// joins cannot both take the last slot.
	CreateParticipant(ctx context.Context, p Participant, maxCount int) (bool, error)
	ParticipantByID(ctx context.Context, id string) (Participant, error)
	ParticipantByToken(ctx context.Context, token string) (Participant, error)
	ParticipantsBySession(ctx context.Context, sessionID string) ([]Participant, error)
	CountParticipants(ctx context.Context, sessionID string) (int, error)
	// TransitionParticipant moves a participant from one status to another;
	// the from-status guard makes terminal states sticky.
	TransitionParticipant(ctx context.Context, id string, from, to ParticipantStatus, reason *string) (bool, error)
	SetFinishDate(ctx context.Context, id string, at time.Time) error
	DeleteParticipant(ctx context.Context, id string) error

	InsertPing(ctx context.Context, p Ping) error
	CountPings(ctx context.Context, participantID string) (int, error)

	// InsertPassage records a passed waypoint; duplicates are ignored.
	InsertPassage(ctx context.Context, p Passage) (bool, error)
	PassagesByParticipant(ctx context.Context, participantID string) ([]Passage, error)

	CreateAttempt(ctx context.Context, a Attempt) error
	AttemptByID(ctx context.Context, id string) (Attempt, error)
	AttemptFor(ctx context.Context, participantID, taskID string) (Attempt, error)
	AttemptsByParticipant(ctx context.Context, participantID string) ([]Attempt, error)
	SaveAnswers(ctx context.Context, attemptID string, answers map[string][]string) error
	SetSubmittedWord(ctx context.Context, attemptID, word string) error
	SetPhotoRef(ctx context.Context, attemptID, ref string) error
	// CompleteAttempt seals an attempt with its score; a second call is a
	// no-op because completedAt is immutable once set.
	CompleteAttempt(ctx context.Context, attemptID string, score int, at time.Time) (bool, error)
	// ModerateAttempt is the single post-completion score mutation: it
	// records the moderation verdict and the adjusted score for a photo
	// attempt that has not been moderated yet.
	ModerateAttempt(ctx context.Context, attemptID string, state ModerationState, score int) (bool, error)
	// ListExpiredAttempts returns started, uncompleted attempts whose
	// deadline lies before now.
	ListExpiredAttempts(ctx context.Context, now time.Time) ([]Attempt, error)
}
