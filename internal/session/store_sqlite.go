package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/GoQuestly/backend-sub000/internal/quest"
)

// SQLiteStore implements Store on top of the libSQL connection opened by
// internal/database.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Timestamps are stored as fixed-precision UTC strings matching the
// strftime('%Y-%m-%dT%H:%M:%fZ') defaults in the schema. The precision must
// be fixed: the SQL compares these columns as strings, and a variable
// fraction would make lexicographic order disagree with chronological order
// within a second.
const timeFormat = "2006-01-02T15:04:05.000Z"

func encodeTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func encodeTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return encodeTime(*t)
}

func decodeTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

func decodeTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := decodeTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *SQLiteStore) CreateQuest(ctx context.Context, q *quest.Quest) error {
	waypoints, err := json.Marshal(q.Waypoints)
	if err != nil {
		return fmt.Errorf("encoding waypoints: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO quests (id, name, starting_latitude, starting_longitude,
			starting_radius_meters, completion_radius_meters,
			max_duration_minutes, max_participant_count, waypoints)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, q.ID, q.Name, q.StartingLatitude, q.StartingLongitude,
		q.StartingRadiusMeters, q.CompletionRadiusMeters,
		q.MaxDurationMinutes, q.MaxParticipantCount, string(waypoints))
	return err
}

func (s *SQLiteStore) QuestByID(ctx context.Context, id string) (*quest.Quest, error) {
	var q quest.Quest
	var waypoints, createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, starting_latitude, starting_longitude,
			starting_radius_meters, completion_radius_meters,
			max_duration_minutes, max_participant_count, waypoints, created_at
		FROM quests WHERE id = ?
	`, id).Scan(&q.ID, &q.Name, &q.StartingLatitude, &q.StartingLongitude,
		&q.StartingRadiusMeters, &q.CompletionRadiusMeters,
		&q.MaxDurationMinutes, &q.MaxParticipantCount, &waypoints, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(waypoints), &q.Waypoints); err != nil {
		return nil, fmt.Errorf("decoding waypoints: %w", err)
	}
	if q.CreatedAt, err = decodeTime(createdAt); err != nil {
		return nil, err
	}
	return &q, nil
}

func (s *SQLiteStore) CreateSession(ctx context.Context, sess Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO game_sessions (id, quest_id, start_date)
		VALUES (?, ?, ?)
	`, sess.ID, sess.QuestID, encodeTime(sess.StartDate))
	return err
}

func (s *SQLiteStore) scanSession(row *sql.Row) (Session, error) {
	var sess Session
	var startDate, createdAt string
	var endDate, endReason sql.NullString
	err := row.Scan(&sess.ID, &sess.QuestID, &startDate, &endDate, &endReason, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return sess, ErrNotFound
	}
	if err != nil {
		return sess, err
	}
	return decodeSession(sess, startDate, createdAt, endDate, endReason)
}

func decodeSession(sess Session, startDate, createdAt string, endDate, endReason sql.NullString) (Session, error) {
	var err error
	if sess.StartDate, err = decodeTime(startDate); err != nil {
		return sess, err
	}
	if sess.CreatedAt, err = decodeTime(createdAt); err != nil {
		return sess, err
	}
	if sess.EndDate, err = decodeTimePtr(endDate); err != nil {
		return sess, err
	}
	if endReason.Valid {
		r := EndReason(endReason.String)
		sess.EndReason = &r
	}
	return sess, nil
}

func (s *SQLiteStore) SessionByID(ctx context.Context, id string) (Session, error) {
	return s.scanSession(s.db.QueryRowContext(ctx, `
		SELECT id, quest_id, start_date, end_date, end_reason, created_at
		FROM game_sessions WHERE id = ?
	`, id))
}

func (s *SQLiteStore) ListOpenSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, quest_id, start_date, end_date, end_reason, created_at
		FROM game_sessions
		WHERE end_reason IS NULL
		ORDER BY start_date
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		var startDate, createdAt string
		var endDate, endReason sql.NullString
		if err := rows.Scan(&sess.ID, &sess.QuestID, &startDate, &endDate, &endReason, &createdAt); err != nil {
			return nil, err
		}
		sess, err = decodeSession(sess, startDate, createdAt, endDate, endReason)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *SQLiteStore) CountActiveSessions(ctx context.Context, now time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM game_sessions
		WHERE end_reason IS NULL AND start_date <= ?
	`, encodeTime(now)).Scan(&count)
	return count, err
}

func (s *SQLiteStore) EndSession(ctx context.Context, id string, reason EndReason, at time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE game_sessions SET end_date = ?, end_reason = ?
		WHERE id = ? AND end_reason IS NULL
	`, encodeTime(at), string(reason), id)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

func (s *SQLiteStore) CreateParticipant(ctx context.Context, p Participant, maxCount int) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO participants (id, session_id, user_id, token, status, created_at)
		SELECT ?, ?, ?, ?, ?, ?
		WHERE (SELECT COUNT(*) FROM participants WHERE session_id = ?) < ?
	`, p.ID, p.SessionID, p.UserID, p.Token, string(p.Status), encodeTime(p.CreatedAt),
		p.SessionID, maxCount)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return false, fmt.Errorf("%w: user already joined this session", ErrStateConflict)
		}
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

const participantColumns = `id, session_id, user_id, token, status, rejection_reason, finish_date, created_at`

func scanParticipant(scan func(dest ...any) error) (Participant, error) {
	var p Participant
	var status, createdAt string
	var reason, finishDate sql.NullString
	err := scan(&p.ID, &p.SessionID, &p.UserID, &p.Token, &status, &reason, &finishDate, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	p.Status = ParticipantStatus(status)
	if reason.Valid {
		p.RejectionReason = &reason.String
	}
	if p.FinishDate, err = decodeTimePtr(finishDate); err != nil {
		return p, err
	}
	if p.CreatedAt, err = decodeTime(createdAt); err != nil {
		return p, err
	}
	return p, nil
}

func (s *SQLiteStore) ParticipantByID(ctx context.Context, id string) (Participant, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+participantColumns+` FROM participants WHERE id = ?`, id)
	return scanParticipant(row.Scan)
}

func (s *SQLiteStore) ParticipantByToken(ctx context.Context, token string) (Participant, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+participantColumns+` FROM participants WHERE token = ?`, token)
	return scanParticipant(row.Scan)
}

func (s *SQLiteStore) ParticipantsBySession(ctx context.Context, sessionID string) ([]Participant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+participantColumns+` FROM participants
		WHERE session_id = ? ORDER BY created_at
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants []Participant
	for rows.Next() {
		p, err := scanParticipant(rows.Scan)
		if err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

func (s *SQLiteStore) CountParticipants(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM participants WHERE session_id = ?
	`, sessionID).Scan(&count)
	return count, err
}

func (s *SQLiteStore) TransitionParticipant(ctx context.Context, id string, from, to ParticipantStatus, reason *string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE participants SET status = ?, rejection_reason = ?
		WHERE id = ? AND status = ?
	`, string(to), reason, id, string(from))
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

func (s *SQLiteStore) SetFinishDate(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE participants SET finish_date = ?
		WHERE id = ? AND finish_date IS NULL
	`, encodeTime(at), id)
	return err
}

func (s *SQLiteStore) DeleteParticipant(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Child rows first; the schema references participants without cascade.
	// The ping log is append-only and stays.
	for _, q := range []string{
		`DELETE FROM waypoint_passages WHERE participant_id = ?`,
		`DELETE FROM task_attempts WHERE participant_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return err
		}
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM participants WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

func (s *SQLiteStore) InsertPing(ctx context.Context, p Ping) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO location_pings (participant_id, latitude, longitude, recorded_at)
		VALUES (?, ?, ?, ?)
	`, p.ParticipantID, p.Latitude, p.Longitude, encodeTime(p.RecordedAt))
	return err
}

func (s *SQLiteStore) CountPings(ctx context.Context, participantID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM location_pings WHERE participant_id = ?
	`, participantID).Scan(&count)
	return count, err
}

func (s *SQLiteStore) InsertPassage(ctx context.Context, p Passage) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO waypoint_passages (participant_id, order_num, passed_at)
		VALUES (?, ?, ?)
	`, p.ParticipantID, p.OrderNum, encodeTime(p.PassedAt))
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

func (s *SQLiteStore) PassagesByParticipant(ctx context.Context, participantID string) ([]Passage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT participant_id, order_num, passed_at
		FROM waypoint_passages WHERE participant_id = ?
		ORDER BY order_num
	`, participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var passages []Passage
	for rows.Next() {
		var p Passage
		var passedAt string
		if err := rows.Scan(&p.ParticipantID, &p.OrderNum, &passedAt); err != nil {
			return nil, err
		}
		if p.PassedAt, err = decodeTime(passedAt); err != nil {
			return nil, err
		}
		passages = append(passages, p)
	}
	return passages, rows.Err()
}

func (s *SQLiteStore) CreateAttempt(ctx context.Context, a Attempt) error {
	answers, err := json.Marshal(a.Answers)
	if err != nil {
		return fmt.Errorf("encoding answers: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO task_attempts (id, participant_id, task_id, order_num,
			started_at, expires_at, answers)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.ParticipantID, a.TaskID, a.OrderNum,
		encodeTimePtr(a.StartedAt), encodeTimePtr(a.ExpiresAt), string(answers))
	if err != nil && strings.Contains(err.Error(), "UNIQUE") {
		return fmt.Errorf("%w: attempt already exists", ErrStateConflict)
	}
	return err
}

const attemptColumns = `id, participant_id, task_id, order_num, started_at,
	expires_at, completed_at, score_earned, answers, submitted_word, photo_ref, moderation`

func scanAttempt(scan func(dest ...any) error) (Attempt, error) {
	var a Attempt
	var answers string
	var startedAt, expiresAt, completedAt, word, photoRef, moderation sql.NullString
	err := scan(&a.ID, &a.ParticipantID, &a.TaskID, &a.OrderNum, &startedAt,
		&expiresAt, &completedAt, &a.ScoreEarned, &answers, &word, &photoRef, &moderation)
	if errors.Is(err, sql.ErrNoRows) {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	if a.StartedAt, err = decodeTimePtr(startedAt); err != nil {
		return a, err
	}
	if a.ExpiresAt, err = decodeTimePtr(expiresAt); err != nil {
		return a, err
	}
	if a.CompletedAt, err = decodeTimePtr(completedAt); err != nil {
		return a, err
	}
	if err := json.Unmarshal([]byte(answers), &a.Answers); err != nil {
		return a, fmt.Errorf("decoding answers: %w", err)
	}
	if word.Valid {
		a.SubmittedWord = &word.String
	}
	if photoRef.Valid {
		a.PhotoRef = &photoRef.String
	}
	if moderation.Valid {
		m := ModerationState(moderation.String)
		a.Moderation = &m
	}
	return a, nil
}

func (s *SQLiteStore) AttemptByID(ctx context.Context, id string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+attemptColumns+` FROM task_attempts WHERE id = ?`, id)
	return scanAttempt(row.Scan)
}

func (s *SQLiteStore) AttemptFor(ctx context.Context, participantID, taskID string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+attemptColumns+` FROM task_attempts
		WHERE participant_id = ? AND task_id = ?
	`, participantID, taskID)
	return scanAttempt(row.Scan)
}

func (s *SQLiteStore) AttemptsByParticipant(ctx context.Context, participantID string) ([]Attempt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+attemptColumns+` FROM task_attempts
		WHERE participant_id = ? ORDER BY order_num
	`, participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows.Scan)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

func (s *SQLiteStore) SaveAnswers(ctx context.Context, attemptID string, answers map[string][]string) error {
	data, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("encoding answers: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE task_attempts SET answers = ?
		WHERE id = ? AND completed_at IS NULL
	`, string(data), attemptID)
	return err
}

func (s *SQLiteStore) SetSubmittedWord(ctx context.Context, attemptID, word string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE task_attempts SET submitted_word = ?
		WHERE id = ? AND completed_at IS NULL
	`, word, attemptID)
	return err
}

func (s *SQLiteStore) SetPhotoRef(ctx context.Context, attemptID, ref string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE task_attempts SET photo_ref = ?
		WHERE id = ? AND completed_at IS NULL
	`, ref, attemptID)
	return err
}

func (s *SQLiteStore) CompleteAttempt(ctx context.Context, attemptID string, score int, at time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE task_attempts SET completed_at = ?, score_earned = ?
		WHERE id = ? AND completed_at IS NULL
	`, encodeTime(at), score, attemptID)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

func (s *SQLiteStore) ModerateAttempt(ctx context.Context, attemptID string, state ModerationState, score int) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE task_attempts SET moderation = ?, score_earned = ?
		WHERE id = ? AND moderation IS NULL AND photo_ref IS NOT NULL
	`, string(state), score, attemptID)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

func (s *SQLiteStore) ListExpiredAttempts(ctx context.Context, now time.Time) ([]Attempt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+attemptColumns+` FROM task_attempts
		WHERE started_at IS NOT NULL AND completed_at IS NULL AND expires_at < ?
	`, encodeTime(now))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows.Scan)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
