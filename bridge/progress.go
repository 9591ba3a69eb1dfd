package bridge

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Progress is a user's lesson completion within one course.
type Progress struct {
	CourseID  CourseID        `json:"course_id"`
	UserID    UserID          `json:"user_id"`
	Completed int             `json:"completed"`
	Total     int             `json:"total"`
	Percent   decimal.Decimal `json:"percent"`
	Lessons   []LessonState   `json:"lessons"`
}

// LessonState is one lesson of a course and whether the user completed it.
type LessonState struct {
	LessonID  LessonID `json:"lesson_id"`
	Title     string   `json:"title"`
	Position  int      `json:"position"`
	Completed bool     `json:"completed"`
}

var hundred = decimal.NewFromInt(100)

// CourseProgress walks the course's lessons in order and reports which ones
// the user has completed. Percent is rounded to one decimal place; a course
// without lessons reports 0.
func CourseProgress(ctx context.Context, ix *LessonIndex, courses CourseSystem, course CourseID, user UserID) (Progress, error) {
	items, err := ix.Lessons(ctx, course)
	if err != nil {
		return Progress{}, err
	}

	p := Progress{CourseID: course, UserID: user, Total: len(items), Percent: decimal.Zero}
	p.Lessons = make([]LessonState, 0, len(items))
	for i, it := range items {
		done, err := courses.IsLessonCompleted(ctx, it.ID, user)
		if err != nil {
			return Progress{}, fmt.Errorf("failed to check lesson %d: %w", it.ID, err)
		}
		if done {
			p.Completed++
		}
		p.Lessons = append(p.Lessons, LessonState{
			LessonID:  it.ID,
			Title:     it.Title,
			Position:  i + 1,
			Completed: done,
		})
	}

	if p.Total > 0 {
		p.Percent = decimal.NewFromInt(int64(p.Completed)).
			Mul(hundred).
			DivRound(decimal.NewFromInt(int64(p.Total)), 1)
	}
	return p, nil
}
