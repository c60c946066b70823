package lms

import (
	"context"
	"fmt"
	"math"

	"github.com/eugenetaranov/wpbolt/internal/command"
	"github.com/eugenetaranov/wpbolt/internal/validate"
	"github.com/eugenetaranov/wpbolt/internal/wpcli"
)

// LessonInput describes a lesson to create inside a course.
type LessonInput struct {
	CourseID int
	Title    string
	Content  string

	// Status is publish or draft (default draft).
	Status string

	Order *int

	// Sample makes the lesson a free preview.
	Sample bool
}

// LessonRecord is a created or listed lesson.
type LessonRecord struct {
	ID       int    `json:"id"`
	CourseID int    `json:"course_id"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	Order    *int   `json:"order,omitempty"`
	Sample   bool   `json:"sample,omitempty"`
}

// CreateLesson creates a lesson and attaches it to its course.
func (m *Manager) CreateLesson(ctx context.Context, in LessonInput) (*LessonRecord, error) {
	courseID, err := validate.PositiveInt(in.CourseID, "course_id")
	if err != nil {
		return nil, err
	}
	title, err := validate.String(in.Title, "title", MaxTitleLen)
	if err != nil {
		return nil, err
	}
	content, err := validate.OptionalString(in.Content, "content", MaxContentLen)
	if err != nil {
		return nil, err
	}
	status, err := validate.Literal(statusOrDefault(in.Status, "draft"), "status", "publish", "draft")
	if err != nil {
		return nil, err
	}
	if in.Order != nil {
		if _, err := validate.IntRange(*in.Order, "order", 0, math.MaxInt32); err != nil {
			return nil, err
		}
	}

	id, err := m.createPost(ctx, "lesson.create", PostTypeLesson, title, content, status)
	if err != nil {
		return nil, err
	}

	if err := m.setMeta(ctx, id, "course_id", command.Int(courseID)); err != nil {
		return nil, unfinished("lesson", id, err)
	}
	if err := m.setMeta(ctx, id, fmt.Sprintf("ld_course_%d", courseID), command.Int(courseID)); err != nil {
		return nil, unfinished("lesson", id, err)
	}

	settings := map[string]any{"sfwd-lessons_course": courseID}
	if in.Sample {
		settings["sfwd-lessons_sample_lesson"] = "on"
	}
	if err := m.setSettings(ctx, id, "_sfwd-lessons", settings); err != nil {
		return nil, unfinished("lesson", id, err)
	}

	if in.Order != nil {
		d := command.New("lesson.order", "post", "update").
			Arg(command.Int(id)).
			Flag("menu_order", command.Int(*in.Order))
		if _, err := m.run.Run(ctx, d, wpcli.FormatNone); err != nil {
			return nil, unfinished("lesson", id, err)
		}
	}

	m.logger.Info().Int("lesson_id", id).Int("course_id", courseID).Msg("lesson created")

	return &LessonRecord{
		ID:       id,
		CourseID: courseID,
		Title:    title,
		Status:   status,
		Order:    in.Order,
		Sample:   in.Sample,
	}, nil
}

// ListLessons returns a course's lessons in menu order.
func (m *Manager) ListLessons(ctx context.Context, courseID any) ([]LessonRecord, error) {
	id, err := validate.PositiveInt(courseID, "course_id")
	if err != nil {
		return nil, err
	}

	d := command.New("lesson.list", "post", "list").
		Flag("post_type", command.Enum(PostTypeLesson)).
		Flag("post_status", command.Enum("any")).
		Flag("meta_key", command.Enum("course_id")).
		Flag("meta_value", command.Int(id)).
		Flag("orderby", command.Enum("menu_order")).
		Flag("order", command.Enum("ASC")).
		Flag("posts_per_page", command.Int(-1)).
		Flag("fields", command.String("ID,post_title,post_status,menu_order"))

	out, err := m.run.Run(ctx, d, wpcli.FormatJSON)
	if err != nil {
		return nil, err
	}

	var lessons []LessonRecord
	for _, row := range out.Array() {
		order := int(row.Get("menu_order").Int())
		lessons = append(lessons, LessonRecord{
			ID:       int(row.Get("ID").Int()),
			CourseID: id,
			Title:    row.Get("post_title").String(),
			Status:   row.Get("post_status").String(),
			Order:    &order,
		})
	}
	return lessons, nil
}
