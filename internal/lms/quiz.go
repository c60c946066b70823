package lms

import (
	"context"
	"math"

	"github.com/eugenetaranov/wpbolt/internal/command"
	"github.com/eugenetaranov/wpbolt/internal/validate"
)

// DefaultPassingScore is used when QuizInput.PassingScore is nil.
const DefaultPassingScore = 80

// QuizInput describes a quiz to create.
type QuizInput struct {
	CourseID int

	// LessonID optionally attaches the quiz to a lesson.
	LessonID int

	Title       string
	Description string

	// PassingScore is a percentage in 0..100.
	PassingScore *int

	CertificateID int

	// Attempts limits retakes; 0 means unlimited.
	Attempts int
}

// QuizRecord is a created quiz.
type QuizRecord struct {
	ID            int    `json:"id"`
	CourseID      int    `json:"course_id"`
	LessonID      int    `json:"lesson_id,omitempty"`
	Title         string `json:"title"`
	PassingScore  int    `json:"passing_score"`
	Attempts      int    `json:"attempts"`
	CertificateID int    `json:"certificate_id,omitempty"`
}

// CreateQuiz creates a published quiz for a course.
func (m *Manager) CreateQuiz(ctx context.Context, in QuizInput) (*QuizRecord, error) {
	courseID, err := validate.PositiveInt(in.CourseID, "course_id")
	if err != nil {
		return nil, err
	}
	if in.LessonID != 0 {
		if _, err := validate.PositiveInt(in.LessonID, "lesson_id"); err != nil {
			return nil, err
		}
	}
	title, err := validate.String(in.Title, "title", MaxTitleLen)
	if err != nil {
		return nil, err
	}
	description, err := validate.OptionalString(in.Description, "description", MaxContentLen)
	if err != nil {
		return nil, err
	}
	score := DefaultPassingScore
	if in.PassingScore != nil {
		if score, err = validate.IntRange(*in.PassingScore, "passing_score", 0, 100); err != nil {
			return nil, err
		}
	}
	if in.CertificateID != 0 {
		if _, err := validate.PositiveInt(in.CertificateID, "certificate_id"); err != nil {
			return nil, err
		}
	}
	attempts, err := validate.IntRange(in.Attempts, "attempts", 0, math.MaxInt32)
	if err != nil {
		return nil, err
	}

	id, err := m.createPost(ctx, "quiz.create", PostTypeQuiz, title, description, "publish")
	if err != nil {
		return nil, err
	}

	if err := m.setMeta(ctx, id, "course_id", command.Int(courseID)); err != nil {
		return nil, unfinished("quiz", id, err)
	}
	if in.LessonID != 0 {
		if err := m.setMeta(ctx, id, "lesson_id", command.Int(in.LessonID)); err != nil {
			return nil, unfinished("quiz", id, err)
		}
	}

	settings := map[string]any{
		"sfwd-quiz_course":            courseID,
		"sfwd-quiz_passingpercentage": score,
		"sfwd-quiz_repeats":           attempts,
	}
	if in.LessonID != 0 {
		settings["sfwd-quiz_lesson"] = in.LessonID
	}
	if in.CertificateID != 0 {
		settings["sfwd-quiz_certificate"] = in.CertificateID
	}
	if err := m.setSettings(ctx, id, "_sfwd-quiz", settings); err != nil {
		return nil, unfinished("quiz", id, err)
	}

	m.logger.Info().Int("quiz_id", id).Int("course_id", courseID).Msg("quiz created")

	return &QuizRecord{
		ID:            id,
		CourseID:      courseID,
		LessonID:      in.LessonID,
		Title:         title,
		PassingScore:  score,
		Attempts:      attempts,
		CertificateID: in.CertificateID,
	}, nil
}
