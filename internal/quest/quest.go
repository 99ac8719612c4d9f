// Package quest defines the core domain types for quests, waypoints, and
// tasks. It has zero external dependencies — everything here is pure Go.
package quest

import "time"

// Quest is the immutable-during-session route definition a session runs on.
type Quest struct {
	ID                     string
	Name                   string
	StartingLatitude       float64
	StartingLongitude      float64
	StartingRadiusMeters   float64
	CompletionRadiusMeters float64
	MaxDurationMinutes     int
	MaxParticipantCount    int
	Waypoints              []Waypoint // ordered by OrderNum
	CreatedAt              time.Time
}

// Waypoint is an ordered, geolocated checkpoint. At most one task hangs off
// each waypoint.
type Waypoint struct {
	OrderNum  int     `json:"orderNum"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Hint      string  `json:"hint,omitempty"`
	Task      *Task   `json:"task,omitempty"`
}

type TaskKind string

const (
	TaskKindQuiz     TaskKind = "QUIZ"
	TaskKindCodeWord TaskKind = "CODE_WORD"
	TaskKindPhoto    TaskKind = "PHOTO"
)

// Task is a tagged union keyed by Kind: exactly one of Quiz, CodeWord, Photo
// is set, each variant holding only its own fields.
type Task struct {
	ID                   string        `json:"id"`
	Kind                 TaskKind      `json:"kind"`
	Description          string        `json:"description"`
	MaxDurationSeconds   int           `json:"maxDurationSeconds"`
	RequiredForNextPoint bool          `json:"requiredForNextPoint"`
	Quiz                 *QuizTask     `json:"quiz,omitempty"`
	CodeWord             *CodeWordTask `json:"codeWord,omitempty"`
	Photo                *PhotoTask    `json:"photo,omitempty"`
}

type QuizTask struct {
	Questions           []Question `json:"questions"`
	MaxScorePoints      int        `json:"maxScorePoints"`
	SuccessScorePercent int        `json:"successScorePercent"`
}

type Question struct {
	ID             string   `json:"id"`
	Text           string   `json:"text"`
	ScorePoints    int      `json:"scorePoints"`
	MultipleChoice bool     `json:"multipleChoice"`
	Options        []Option `json:"options"`
}

type Option struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

type CodeWordTask struct {
	CodeWord    string `json:"codeWord"`
	ScorePoints int    `json:"scorePoints"`
}

type PhotoTask struct {
	ScorePoints int `json:"scorePoints"`
}

// MaxScore returns the variant's total obtainable score.
func (t *Task) MaxScore() int {
	switch t.Kind {
	case TaskKindQuiz:
		return t.Quiz.MaxScorePoints
	case TaskKindCodeWord:
		return t.CodeWord.ScorePoints
	case TaskKindPhoto:
		return t.Photo.ScorePoints
	}
	return 0
}

// Passed reports whether scoreEarned satisfies the variant's success bar.
// Quiz tasks compare the score percentage against the configured threshold;
// code-word tasks pass only on a full-score match; photo tasks always pass
// because the score is granted provisionally and adjusted by moderation.
func (t *Task) Passed(scoreEarned int) bool {
	switch t.Kind {
	case TaskKindQuiz:
		max := t.Quiz.MaxScorePoints
		if max <= 0 {
			return true
		}
		return float64(scoreEarned)/float64(max)*100 >= float64(t.Quiz.SuccessScorePercent)
	case TaskKindCodeWord:
		return scoreEarned >= t.CodeWord.ScorePoints
	case TaskKindPhoto:
		return true
	}
	return false
}

// QuestionByID returns the quiz question with the given id, or nil.
func (q *QuizTask) QuestionByID(id string) *Question {
	for i := range q.Questions {
		if q.Questions[i].ID == id {
			return &q.Questions[i]
		}
	}
	return nil
}

// CorrectOptionIDs returns the ids of the question's correct options.
func (qn *Question) CorrectOptionIDs() []string {
	var ids []string
	for _, o := range qn.Options {
		if o.Correct {
			ids = append(ids, o.ID)
		}
	}
	return ids
}

// MinOrder returns the lowest waypoint order number, or -1 for an empty quest.
func (q *Quest) MinOrder() int {
	if len(q.Waypoints) == 0 {
		return -1
	}
	min := q.Waypoints[0].OrderNum
	for _, w := range q.Waypoints[1:] {
		if w.OrderNum < min {
			min = w.OrderNum
		}
	}
	return min
}

// WaypointByOrder returns the waypoint with the given order number, or nil.
func (q *Quest) WaypointByOrder(order int) *Waypoint {
	for i := range q.Waypoints {
		if q.Waypoints[i].OrderNum == order {
			return &q.Waypoints[i]
		}
	}
	return nil
}

// WaypointByTaskID returns the waypoint owning the task with the given id,
// or nil if no waypoint carries it.
func (q *Quest) WaypointByTaskID(taskID string) *Waypoint {
	for i := range q.Waypoints {
		if t := q.Waypoints[i].Task; t != nil && t.ID == taskID {
			return &q.Waypoints[i]
		}
	}
	return nil
}

// Duration returns the quest's maximum session duration.
func (q *Quest) Duration() time.Duration {
	return time.Duration(q.MaxDurationMinutes) * time.Minute
}
