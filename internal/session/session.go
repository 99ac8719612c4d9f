// Package session implements the scavenger-hunt session runtime: participant
// admission, waypoint progression, task execution, scoring, and the session
// lifecycle. All state lives behind the Store; the Runtime serializes
// read-then-write cycles per participant.
package session

import "time"

type EndReason string

const (
	EndReasonFinished  EndReason = "FINISHED"
	EndReasonCancelled EndReason = "CANCELLED"
)

// Session is one run of a quest.
type Session struct {
	ID        string
	QuestID   string
	StartDate time.Time
	EndDate   *time.Time
	EndReason *EndReason
	CreatedAt time.Time
}

// Ended reports whether the session reached a terminal end reason.
func (s *Session) Ended() bool {
	return s.EndReason != nil
}

// ActiveAt reports whether the session is running at the given instant:
// started, not ended.
func (s *Session) ActiveAt(now time.Time) bool {
	return !s.Ended() && !now.Before(s.StartDate)
}

type ParticipantStatus string

const (
	StatusPending      ParticipantStatus = "PENDING"
	StatusApproved     ParticipantStatus = "APPROVED"
	StatusRejected     ParticipantStatus = "REJECTED"
	StatusDisqualified ParticipantStatus = "DISQUALIFIED"
)

// Terminal reports whether the status is a sink: no further transitions,
// passages, or task scoring are permitted once entered.
func (s ParticipantStatus) Terminal() bool {
	return s == StatusRejected || s == StatusDisqualified
}

// Rejection / disqualification reasons.
const (
	ReasonTooFarFromStart          = "TOO_FAR_FROM_START"
	ReasonNoLocation               = "NO_LOCATION"
	ReasonRequiredTaskNotCompleted = "REQUIRED_TASK_NOT_COMPLETED"
)

type Participant struct {
	ID              string
	SessionID       string
	UserID          string
	Token           string
	Status          ParticipantStatus
	RejectionReason *string
	FinishDate      *time.Time
	CreatedAt       time.Time
}

// Passage records that a participant reached a waypoint. At most one exists
// per (participant, waypoint) pair.
type Passage struct {
	ParticipantID string
	OrderNum      int
	PassedAt      time.Time
}

type ModerationState string

const (
	ModerationApproved ModerationState = "APPROVED"
	ModerationRejected ModerationState = "REJECTED"
)

// Attempt is a participant's instance of working on one task. completedAt,
// once set, is immutable; only moderation may adjust the score afterwards.
type Attempt struct {
	ParticipantID string
	ID            string
	TaskID        string
	OrderNum      int
	StartedAt     *time.Time
	ExpiresAt     *time.Time
	CompletedAt   *time.Time
	ScoreEarned   int
	// Answers maps quiz question ids to the submitted option ids.
	Answers       map[string][]string
	SubmittedWord *string
	PhotoRef      *string
	Moderation    *ModerationState
}

// Completed reports whether the attempt reached its immutable end state.
func (a *Attempt) Completed() bool {
	return a.CompletedAt != nil
}

// Expired reports whether the attempt's deadline has passed.
func (a *Attempt) Expired(now time.Time) bool {
	return a.ExpiresAt != nil && now.After(*a.ExpiresAt)
}

// Ping is one append-only location sample.
type Ping struct {
	ParticipantID string
	Latitude      float64
	Longitude     float64
	RecordedAt    time.Time
}
