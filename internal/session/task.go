package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/GoQuestly/backend-sub000/internal/quest"
)

// Task execution operates only on a waypoint the participant has already
// passed, and only while the session is active. Every mutating operation
// rejects with no state change when the task was never started, is already
// completed, its deadline has passed, or the waypoint is not passed yet.

// TaskResult is the outcome of a completing submission.
type TaskResult struct {
	AttemptID    string
	ScoreEarned  int
	Passed       bool
	Disqualified bool
}

// QuizProgress reports an in-flight quiz: incremental until every question
// is answered, then final.
type QuizProgress struct {
	AnsweredCount int
	TotalCount    int
	Completed     bool
	ScoreEarned   int
	Passed        bool
	Disqualified  bool
}

// StartTask begins a task attempt. Starting an attempt that is already
// running returns it unchanged; starting a completed one is a conflict.
func (r *Runtime) StartTask(ctx context.Context, token, taskID string) (Attempt, error) {
	p, sess, q, err := r.participantByToken(ctx, token)
	if err != nil {
		return Attempt{}, err
	}

	unlock := r.lockParticipant(p.ID)
	defer unlock()

	t, _, err := r.taskGuard(ctx, p, sess, q, taskID)
	if err != nil {
		return Attempt{}, err
	}

	now := r.now()
	attempt, err := r.store.AttemptFor(ctx, p.ID, taskID)
	if err == nil {
		if attempt.Completed() {
			return Attempt{}, fmt.Errorf("%w: task already completed", ErrStateConflict)
		}
		return attempt, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Attempt{}, err
	}

	expires := now.Add(time.Duration(t.MaxDurationSeconds) * time.Second)
	wp := q.WaypointByTaskID(taskID)
	attempt = Attempt{
		ID:            uuid.NewString(),
		ParticipantID: p.ID,
		TaskID:        taskID,
		OrderNum:      wp.OrderNum,
		StartedAt:     &now,
		ExpiresAt:     &expires,
		Answers:       map[string][]string{},
	}
	if err := r.store.CreateAttempt(ctx, attempt); err != nil {
		return Attempt{}, err
	}
	return attempt, nil
}

// SubmitQuizAnswer records one question's answer. The quiz completes when
// every question has been answered.
func (r *Runtime) SubmitQuizAnswer(ctx context.Context, token, taskID, questionID string, optionIDs []string) (QuizProgress, error) {
	p, sess, q, err := r.participantByToken(ctx, token)
	if err != nil {
		return QuizProgress{}, err
	}

	unlock := r.lockParticipant(p.ID)
	defer unlock()

	t, _, err := r.taskGuard(ctx, p, sess, q, taskID)
	if err != nil {
		return QuizProgress{}, err
	}
	if t.Kind != quest.TaskKindQuiz {
		return QuizProgress{}, fmt.Errorf("%w: task is not a quiz", ErrValidation)
	}

	question := t.Quiz.QuestionByID(questionID)
	if question == nil {
		return QuizProgress{}, fmt.Errorf("%w: question does not belong to this task", ErrValidation)
	}
	if len(optionIDs) == 0 {
		return QuizProgress{}, fmt.Errorf("%w: at least one answer is required", ErrValidation)
	}
	if !question.MultipleChoice && len(optionIDs) > 1 {
		return QuizProgress{}, fmt.Errorf("%w: question accepts a single answer", ErrValidation)
	}

	now := r.now()
	attempt, err := r.openAttempt(ctx, p.ID, taskID, now)
	if err != nil {
		return QuizProgress{}, err
	}
	if _, answered := attempt.Answers[questionID]; answered {
		return QuizProgress{}, fmt.Errorf("%w: question already answered", ErrStateConflict)
	}

	attempt.Answers[questionID] = optionIDs
	if err := r.store.SaveAnswers(ctx, attempt.ID, attempt.Answers); err != nil {
		return QuizProgress{}, err
	}

	progress := QuizProgress{
		AnsweredCount: len(attempt.Answers),
		TotalCount:    len(t.Quiz.Questions),
	}
	if progress.AnsweredCount < progress.TotalCount {
		return progress, nil
	}

	score := scoreQuiz(t.Quiz, attempt.Answers)
	disqualified, err := r.sealAttempt(ctx, p, t, attempt.ID, score, now)
	if err != nil {
		return QuizProgress{}, err
	}
	progress.Completed = true
	progress.ScoreEarned = score
	progress.Passed = t.Passed(score)
	progress.Disqualified = disqualified
	return progress, nil
}

// SubmitCodeWord checks the word against the task's code word. Match or not,
// the attempt completes immediately.
func (r *Runtime) SubmitCodeWord(ctx context.Context, token, taskID, word string) (TaskResult, error) {
	p, sess, q, err := r.participantByToken(ctx, token)
	if err != nil {
		return TaskResult{}, err
	}

	unlock := r.lockParticipant(p.ID)
	defer unlock()

	t, _, err := r.taskGuard(ctx, p, sess, q, taskID)
	if err != nil {
		return TaskResult{}, err
	}
	if t.Kind != quest.TaskKindCodeWord {
		return TaskResult{}, fmt.Errorf("%w: task is not a code word", ErrValidation)
	}
	word = strings.TrimSpace(word)
	if word == "" {
		return TaskResult{}, fmt.Errorf("%w: code word is required", ErrValidation)
	}

	now := r.now()
	attempt, err := r.openAttempt(ctx, p.ID, taskID, now)
	if err != nil {
		return TaskResult{}, err
	}
	if err := r.store.SetSubmittedWord(ctx, attempt.ID, word); err != nil {
		return TaskResult{}, err
	}

	score := 0
	if strings.EqualFold(word, strings.TrimSpace(t.CodeWord.CodeWord)) {
		score = t.CodeWord.ScorePoints
	}
	disqualified, err := r.sealAttempt(ctx, p, t, attempt.ID, score, now)
	if err != nil {
		return TaskResult{}, err
	}
	return TaskResult{
		AttemptID:    attempt.ID,
		ScoreEarned:  score,
		Passed:       t.Passed(score),
		Disqualified: disqualified,
	}, nil
}

// SubmitPhoto stores the photo reference and completes immediately with the
// full score. Moderation may adjust the score afterwards; this is the one
// place a completed attempt's score stays mutable.
func (r *Runtime) SubmitPhoto(ctx context.Context, token, taskID, photoRef string) (TaskResult, error) {
	p, sess, q, err := r.participantByToken(ctx, token)
	if err != nil {
		return TaskResult{}, err
	}

	unlock := r.lockParticipant(p.ID)
	defer unlock()

	t, _, err := r.taskGuard(ctx, p, sess, q, taskID)
	if err != nil {
		return TaskResult{}, err
	}
	if t.Kind != quest.TaskKindPhoto {
		return TaskResult{}, fmt.Errorf("%w: task is not a photo task", ErrValidation)
	}
	if strings.TrimSpace(photoRef) == "" {
		return TaskResult{}, fmt.Errorf("%w: photo reference is required", ErrValidation)
	}

	now := r.now()
	attempt, err := r.openAttempt(ctx, p.ID, taskID, now)
	if err != nil {
		return TaskResult{}, err
	}
	if err := r.store.SetPhotoRef(ctx, attempt.ID, photoRef); err != nil {
		return TaskResult{}, err
	}

	score := t.Photo.ScorePoints
	disqualified, err := r.sealAttempt(ctx, p, t, attempt.ID, score, now)
	if err != nil {
		return TaskResult{}, err
	}

	r.emit(p.SessionID, p.ID, Event{Type: EventPhotoSubmitted, Payload: map[string]any{
		"participantId": p.ID,
		"attemptId":     attempt.ID,
	}})
	return TaskResult{
		AttemptID:    attempt.ID,
		ScoreEarned:  score,
		Passed:       true,
		Disqualified: disqualified,
	}, nil
}

// ModeratePhoto is the organizer's verdict on a submitted photo: approval
// confirms the provisional score, rejection zeroes it.
func (r *Runtime) ModeratePhoto(ctx context.Context, attemptID string, approved bool, reason string) error {
	attempt, err := r.store.AttemptByID(ctx, attemptID)
	if err != nil {
		return err
	}
	p, err := r.store.ParticipantByID(ctx, attempt.ParticipantID)
	if err != nil {
		return err
	}
	sess, err := r.store.SessionByID(ctx, p.SessionID)
	if err != nil {
		return err
	}
	q, err := r.store.QuestByID(ctx, sess.QuestID)
	if err != nil {
		return err
	}

	unlock := r.lockParticipant(p.ID)
	defer unlock()

	if sess.Ended() {
		return fmt.Errorf("%w: session has ended", ErrStateConflict)
	}
	wp := q.WaypointByTaskID(attempt.TaskID)
	if wp == nil || wp.Task.Kind != quest.TaskKindPhoto {
		return fmt.Errorf("%w: attempt is not a photo task", ErrValidation)
	}
	if !attempt.Completed() || attempt.PhotoRef == nil {
		return fmt.Errorf("%w: no photo awaiting moderation", ErrStateConflict)
	}

	state := ModerationApproved
	score := wp.Task.Photo.ScorePoints
	if !approved {
		state = ModerationRejected
		score = 0
	}
	changed, err := r.store.ModerateAttempt(ctx, attemptID, state, score)
	if err != nil {
		return err
	}
	if !changed {
		return fmt.Errorf("%w: photo already moderated", ErrStateConflict)
	}

	r.emit(p.SessionID, p.ID, Event{Type: EventPhotoModerated, Payload: map[string]any{
		"participantId": p.ID,
		"attemptId":     attemptID,
		"approved":      approved,
		"reason":        reason,
	}})
	r.emit(p.SessionID, p.ID, Event{Type: EventScoresUpdated, Payload: map[string]any{
		"participantId": p.ID,
	}})
	return nil
}

// taskGuard performs the checks shared by all task operations: the caller is
// an approved, non-terminal participant, the session is active, the task
// exists, and its waypoint is already passed.
func (r *Runtime) taskGuard(ctx context.Context, p Participant, sess Session, q *quest.Quest, taskID string) (*quest.Task, Participant, error) {
	// Re-read under the lock; the token lookup ran outside it.
	p, err := r.store.ParticipantByID(ctx, p.ID)
	if err != nil {
		return nil, p, err
	}
	if p.Status.Terminal() {
		return nil, p, fmt.Errorf("%w: participant is %s", ErrAccess, p.Status)
	}
	if p.Status != StatusApproved {
		return nil, p, fmt.Errorf("%w: participant not approved", ErrAccess)
	}
	if !sess.ActiveAt(r.now()) {
		return nil, p, fmt.Errorf("%w: session is not active", ErrStateConflict)
	}

	wp := q.WaypointByTaskID(taskID)
	if wp == nil {
		return nil, p, fmt.Errorf("%w: unknown task", ErrNotFound)
	}

	passages, err := r.store.PassagesByParticipant(ctx, p.ID)
	if err != nil {
		return nil, p, err
	}
	passed := false
	for _, ps := range passages {
		if ps.OrderNum == wp.OrderNum {
			passed = true
			break
		}
	}
	if !passed {
		return nil, p, fmt.Errorf("%w: waypoint not yet passed", ErrStateConflict)
	}
	return wp.Task, p, nil
}

// openAttempt loads a started, uncompleted, unexpired attempt for mutation.
func (r *Runtime) openAttempt(ctx context.Context, participantID, taskID string, now time.Time) (Attempt, error) {
	attempt, err := r.store.AttemptFor(ctx, participantID, taskID)
	if errors.Is(err, ErrNotFound) {
		return Attempt{}, fmt.Errorf("%w: task not started", ErrStateConflict)
	}
	if err != nil {
		return Attempt{}, err
	}
	if attempt.StartedAt == nil {
		return Attempt{}, fmt.Errorf("%w: task not started", ErrStateConflict)
	}
	if attempt.Completed() {
		return Attempt{}, fmt.Errorf("%w: task already completed", ErrStateConflict)
	}
	if attempt.Expired(now) {
		return Attempt{}, fmt.Errorf("%w: task deadline passed", ErrStateConflict)
	}
	if attempt.Answers == nil {
		attempt.Answers = map[string][]string{}
	}
	return attempt, nil
}

// sealAttempt completes an attempt, emits the completion events, and runs
// the required-task disqualification check.
func (r *Runtime) sealAttempt(ctx context.Context, p Participant, t *quest.Task, attemptID string, score int, now time.Time) (bool, error) {
	changed, err := r.store.CompleteAttempt(ctx, attemptID, score, now)
	if err != nil {
		return false, err
	}
	if !changed {
		return false, fmt.Errorf("%w: task already completed", ErrStateConflict)
	}

	r.emit(p.SessionID, p.ID, Event{Type: EventTaskCompleted, Payload: map[string]any{
		"participantId": p.ID,
		"taskId":        t.ID,
		"scoreEarned":   score,
	}})
	r.emit(p.SessionID, p.ID, Event{Type: EventScoresUpdated, Payload: map[string]any{
		"participantId": p.ID,
	}})

	_, disqualified, err := r.checkRequiredTask(ctx, p, t, score)
	return disqualified, err
}

// scoreQuiz sums the points of questions whose submitted option set exactly
// matches the correct option set.
func scoreQuiz(qz *quest.QuizTask, answers map[string][]string) int {
	score := 0
	for i := range qz.Questions {
		qn := &qz.Questions[i]
		submitted, ok := answers[qn.ID]
		if !ok {
			continue
		}
		if sameIDSet(submitted, qn.CorrectOptionIDs()) {
			score += qn.ScorePoints
		}
	}
	return score
}

func sameIDSet(a, b []string) bool {
	if len(b) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	if len(set) != len(b) {
		return false
	}
	for _, id := range b {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}

// expireOverdueAttempts completes every started attempt whose deadline lies
// in the past: quizzes keep whatever the answered subset scores, code-word
// and photo tasks expire with zero. Completion happens at scan time, which
// is the documented bounded staleness.
func (r *Runtime) expireOverdueAttempts(ctx context.Context) {
	now := r.now()
	overdue, err := r.store.ListExpiredAttempts(ctx, now)
	if err != nil {
		r.logger.Error("listing expired attempts", "error", err)
		return
	}

	for _, stale := range overdue {
		if err := r.expireAttempt(ctx, stale.ParticipantID, stale.TaskID); err != nil {
			r.logger.Error("expiring attempt",
				"attempt_id", stale.ID, "participant_id", stale.ParticipantID, "error", err)
		}
	}
}

func (r *Runtime) expireAttempt(ctx context.Context, participantID, taskID string) error {
	p, err := r.store.ParticipantByID(ctx, participantID)
	if err != nil {
		return err
	}
	sess, err := r.store.SessionByID(ctx, p.SessionID)
	if err != nil {
		return err
	}
	q, err := r.store.QuestByID(ctx, sess.QuestID)
	if err != nil {
		return err
	}

	unlock := r.lockParticipant(p.ID)
	defer unlock()

	if sess.Ended() {
		return nil
	}
	// Re-read: a submission may have completed the attempt since the scan.
	attempt, err := r.store.AttemptFor(ctx, participantID, taskID)
	if err != nil {
		return err
	}
	if attempt.Completed() {
		return nil
	}

	wp := q.WaypointByTaskID(taskID)
	if wp == nil {
		return fmt.Errorf("%w: task %s not in quest", ErrNotFound, taskID)
	}
	t := wp.Task

	score := 0
	if t.Kind == quest.TaskKindQuiz {
		score = scoreQuiz(t.Quiz, attempt.Answers)
	}
	_, err = r.sealAttempt(ctx, p, t, attempt.ID, score, r.now())
	return err
}
