package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/GoQuestly/backend-sub000/internal/quest"
	"github.com/GoQuestly/backend-sub000/internal/session"
)

const demoQuestID = "demo-quest"

// SeedDemo creates a small demo quest and one upcoming session for it, so a
// fresh database is immediately playable. Safe to call on every boot: it
// does nothing once the demo quest exists.
func SeedDemo(ctx context.Context, logger *slog.Logger, store session.Store) error {
	if _, err := store.QuestByID(ctx, demoQuestID); err == nil {
		return nil
	} else if !errors.Is(err, session.ErrNotFound) {
		return fmt.Errorf("checking demo quest: %w", err)
	}

	q := demoQuest()
	if err := store.CreateQuest(ctx, q); err != nil {
		return fmt.Errorf("creating demo quest: %w", err)
	}

	sess := session.Session{
		ID:        "demo-session",
		QuestID:   q.ID,
		StartDate: time.Now().Add(10 * time.Minute).UTC(),
	}
	if err := store.CreateSession(ctx, sess); err != nil {
		return fmt.Errorf("creating demo session: %w", err)
	}

	logger.Info("seeded demo data", "quest_id", q.ID, "session_id", sess.ID)
	return nil
}

// demoQuest is a three-waypoint walk around central Lima with one task of
// each kind.
func demoQuest() *quest.Quest {
	return &quest.Quest{
		ID:                     demoQuestID,
		Name:                   "Centro Histórico Demo",
		StartingLatitude:       -12.0464,
		StartingLongitude:      -77.0428,
		StartingRadiusMeters:   150,
		CompletionRadiusMeters: 30,
		MaxDurationMinutes:     90,
		MaxParticipantCount:    20,
		Waypoints: []quest.Waypoint{
			{
				OrderNum:  1,
				Latitude:  -12.0464,
				Longitude: -77.0301,
				Hint:      "Where the fountain has stood since 1651.",
				Task: &quest.Task{
					ID:                   "demo-task-quiz",
					Kind:                 quest.TaskKindQuiz,
					Description:          "Two quick questions about the plaza.",
					MaxDurationSeconds:   300,
					RequiredForNextPoint: true,
					Quiz: &quest.QuizTask{
						MaxScorePoints:      20,
						SuccessScorePercent: 50,
						Questions: []quest.Question{
							{
								ID:          "demo-q1",
								Text:        "What year was the bronze fountain installed?",
								ScorePoints: 10,
								Options: []quest.Option{
									{ID: "demo-q1-a", Text: "1651", Correct: true},
									{ID: "demo-q1-b", Text: "1821"},
									{ID: "demo-q1-c", Text: "1535"},
								},
							},
							{
								ID:             "demo-q2",
								Text:           "Which buildings face the plaza?",
								ScorePoints:    10,
								MultipleChoice: true,
								Options: []quest.Option{
									{ID: "demo-q2-a", Text: "The cathedral", Correct: true},
									{ID: "demo-q2-b", Text: "The government palace", Correct: true},
									{ID: "demo-q2-c", Text: "The national stadium"},
								},
							},
						},
					},
				},
			},
			{
				OrderNum:  2,
				Latitude:  -12.0453,
				Longitude: -77.0311,
				Hint:      "Read the inscription above the monastery door.",
				Task: &quest.Task{
					ID:                 "demo-task-word",
					Kind:               quest.TaskKindCodeWord,
					Description:        "Enter the word carved above the entrance.",
					MaxDurationSeconds: 180,
					CodeWord: &quest.CodeWordTask{
						CodeWord:    "san francisco",
						ScorePoints: 15,
					},
				},
			},
			{
				OrderNum:  3,
				Latitude:  -12.0432,
				Longitude: -77.0306,
				Hint:      "The yellow balconies make a good backdrop.",
				Task: &quest.Task{
					ID:                 "demo-task-photo",
					Kind:               quest.TaskKindPhoto,
					Description:        "Take a team photo in front of the balconies.",
					MaxDurationSeconds: 240,
					Photo: &quest.PhotoTask{
						ScorePoints: 10,
					},
				},
			},
		},
	}
}
