package quest

import "testing"

func quizTask(maxScore, successPercent int) *Task {
	return &Task{
		ID:   "t1",
		Kind: TaskKindQuiz,
		Quiz: &QuizTask{MaxScorePoints: maxScore, SuccessScorePercent: successPercent},
	}
}

func TestTaskPassed(t *testing.T) {
	cases := []struct {
		name  string
		task  *Task
		score int
		want  bool
	}{
		{"quiz at threshold", quizTask(20, 50), 10, true},
		{"quiz below threshold", quizTask(20, 50), 9, false},
		{"quiz full score", quizTask(20, 100), 20, true},
		{"quiz zero max always passes", quizTask(0, 50), 0, true},
		{"code word full score", &Task{Kind: TaskKindCodeWord, CodeWord: &CodeWordTask{ScorePoints: 15}}, 15, true},
		{"code word miss", &Task{Kind: TaskKindCodeWord, CodeWord: &CodeWordTask{ScorePoints: 15}}, 0, false},
		{"photo always passes", &Task{Kind: TaskKindPhoto, Photo: &PhotoTask{ScorePoints: 10}}, 0, true},
	}
	for _, tc := range cases {
		if got := tc.task.Passed(tc.score); got != tc.want {
			t.Errorf("%s: Passed(%d) = %v, want %v", tc.name, tc.score, got, tc.want)
		}
	}
}

func TestTaskMaxScore(t *testing.T) {
	if got := quizTask(20, 50).MaxScore(); got != 20 {
		t.Errorf("quiz MaxScore = %d, want 20", got)
	}
	word := &Task{Kind: TaskKindCodeWord, CodeWord: &CodeWordTask{ScorePoints: 15}}
	if got := word.MaxScore(); got != 15 {
		t.Errorf("code word MaxScore = %d, want 15", got)
	}
}

func TestQuestLookups(t *testing.T) {
	q := &Quest{
		Waypoints: []Waypoint{
			{OrderNum: 2, Task: &Task{ID: "t2"}},
			{OrderNum: 1, Task: &Task{ID: "t1"}},
			{OrderNum: 3},
		},
	}

	if got := q.MinOrder(); got != 1 {
		t.Errorf("MinOrder = %d, want 1", got)
	}
	if wp := q.WaypointByOrder(2); wp == nil || wp.Task.ID != "t2" {
		t.Errorf("WaypointByOrder(2) = %+v", wp)
	}
	if wp := q.WaypointByOrder(9); wp != nil {
		t.Errorf("WaypointByOrder(9) = %+v, want nil", wp)
	}
	if wp := q.WaypointByTaskID("t1"); wp == nil || wp.OrderNum != 1 {
		t.Errorf("WaypointByTaskID(t1) = %+v", wp)
	}
	if wp := q.WaypointByTaskID("missing"); wp != nil {
		t.Errorf("WaypointByTaskID(missing) = %+v, want nil", wp)
	}

	empty := &Quest{}
	if got := empty.MinOrder(); got != -1 {
		t.Errorf("empty MinOrder = %d, want -1", got)
	}
}

func TestCorrectOptionIDs(t *testing.T) {
	qn := &Question{Options: []Option{
		{ID: "a", Correct: true},
		{ID: "b"},
		{ID: "c", Correct: true},
	}}
	got := qn.CorrectOptionIDs()
	if len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Errorf("CorrectOptionIDs = %v, want [a c]", got)
	}
}
