package lms

import (
	"context"
	"math"

	"github.com/eugenetaranov/wpbolt/internal/command"
	"github.com/eugenetaranov/wpbolt/internal/validate"
	"github.com/eugenetaranov/wpbolt/internal/wpcli"
)

const courseSettingsKey = "_sfwd-courses"

// CourseInput describes a course to create.
type CourseInput struct {
	Title   string
	Content string

	// Status defaults to draft.
	Status string

	// PriceType defaults to open.
	PriceType string

	Price         *float64
	CertificateID int

	// Prerequisites lists course IDs that must be completed first.
	Prerequisites []int

	Points *int
}

// CourseUpdate lists the fields to change; nil fields are left alone.
type CourseUpdate struct {
	Title     *string
	Content   *string
	Status    *string
	Price     *float64
	PriceType *string
}

// CourseRecord is a created, updated or listed course.
type CourseRecord struct {
	ID            int      `json:"id"`
	Title         string   `json:"title,omitempty"`
	Status        string   `json:"status,omitempty"`
	PriceType     string   `json:"price_type,omitempty"`
	Price         *float64 `json:"price,omitempty"`
	CertificateID int      `json:"certificate_id,omitempty"`
	Prerequisites []int    `json:"prerequisites,omitempty"`
	Points        *int     `json:"points,omitempty"`
	Date          string   `json:"date,omitempty"`
}

// DeleteOutcome reports a deleted post.
type DeleteOutcome struct {
	ID        int  `json:"id"`
	Permanent bool `json:"permanent"`
}

type courseSettings struct {
	priceType     string
	price         *float64
	certificateID int
	prerequisites []int
	points        *int
}

func (in CourseInput) validate() (CourseInput, error) {
	var err error
	if in.Title, err = validate.String(in.Title, "title", MaxTitleLen); err != nil {
		return in, err
	}
	if in.Content, err = validate.OptionalString(in.Content, "content", MaxContentLen); err != nil {
		return in, err
	}
	if in.Status, err = validate.Literal(statusOrDefault(in.Status, "draft"), "status", Statuses...); err != nil {
		return in, err
	}
	if in.PriceType, err = validate.Literal(statusOrDefault(in.PriceType, "open"), "price_type", PriceTypes...); err != nil {
		return in, err
	}
	if in.Price != nil {
		if _, err := validate.Float(*in.Price, "price", 0); err != nil {
			return in, err
		}
	}
	if in.CertificateID != 0 {
		if _, err := validate.PositiveInt(in.CertificateID, "certificate_id"); err != nil {
			return in, err
		}
	}
	if len(in.Prerequisites) > 0 {
		if _, err := validate.PositiveInts(validate.Ints(in.Prerequisites), "prerequisites"); err != nil {
			return in, err
		}
	}
	if in.Points != nil {
		if _, err := validate.IntRange(*in.Points, "points", 0, math.MaxInt32); err != nil {
			return in, err
		}
	}
	return in, nil
}

// CreateCourse creates a course post and writes its LearnDash settings.
func (m *Manager) CreateCourse(ctx context.Context, in CourseInput) (*CourseRecord, error) {
	in, err := in.validate()
	if err != nil {
		return nil, err
	}

	id, err := m.createPost(ctx, "course.create", PostTypeCourse, in.Title, in.Content, in.Status)
	if err != nil {
		return nil, err
	}

	settings := courseSettings{
		priceType:     in.PriceType,
		price:         in.Price,
		certificateID: in.CertificateID,
		prerequisites: in.Prerequisites,
		points:        in.Points,
	}
	if err := m.setSettings(ctx, id, courseSettingsKey, settings.apply(map[string]any{})); err != nil {
		return nil, unfinished("course", id, err)
	}

	m.logger.Info().Int("course_id", id).Str("status", in.Status).Msg("course created")

	return &CourseRecord{
		ID:            id,
		Title:         in.Title,
		Status:        in.Status,
		PriceType:     in.PriceType,
		Price:         in.Price,
		CertificateID: in.CertificateID,
		Prerequisites: in.Prerequisites,
		Points:        in.Points,
	}, nil
}

// apply merges the non-empty settings into an existing settings array.
func (s courseSettings) apply(dst map[string]any) map[string]any {
	if s.priceType != "" {
		dst["sfwd-courses_course_price_type"] = s.priceType
	}
	if s.price != nil {
		dst["sfwd-courses_course_price"] = *s.price
	}
	if s.certificateID != 0 {
		dst["sfwd-courses_certificate"] = s.certificateID
	}
	if len(s.prerequisites) > 0 {
		dst["sfwd-courses_course_prerequisite_enabled"] = "on"
		dst["sfwd-courses_course_prerequisite"] = s.prerequisites
	}
	if s.points != nil {
		dst["sfwd-courses_course_points_enabled"] = "on"
		dst["sfwd-courses_course_points"] = *s.points
	}
	return dst
}

// UpdateCourse changes the given fields of an existing course.
func (m *Manager) UpdateCourse(ctx context.Context, courseID any, up CourseUpdate) (*CourseRecord, error) {
	id, err := validate.PositiveInt(courseID, "course_id")
	if err != nil {
		return nil, err
	}
	if err := requireAny("course update", up.Title != nil, up.Content != nil, up.Status != nil, up.Price != nil, up.PriceType != nil); err != nil {
		return nil, err
	}

	rec := &CourseRecord{ID: id, Price: up.Price}
	d := command.New("course.update", "post", "update").Arg(command.Int(id))
	postFields := false

	if up.Title != nil {
		if rec.Title, err = validate.String(*up.Title, "title", MaxTitleLen); err != nil {
			return nil, err
		}
		d.Flag("post_title", command.String(rec.Title))
		postFields = true
	}
	if up.Content != nil {
		content, err := validate.OptionalString(*up.Content, "content", MaxContentLen)
		if err != nil {
			return nil, err
		}
		d.Flag("post_content", command.String(content))
		postFields = true
	}
	if up.Status != nil {
		if rec.Status, err = validate.Literal(*up.Status, "status", Statuses...); err != nil {
			return nil, err
		}
		d.Flag("post_status", command.Enum(rec.Status))
		postFields = true
	}
	if up.PriceType != nil {
		if rec.PriceType, err = validate.Literal(*up.PriceType, "price_type", PriceTypes...); err != nil {
			return nil, err
		}
	}
	if up.Price != nil {
		if _, err := validate.Float(*up.Price, "price", 0); err != nil {
			return nil, err
		}
	}

	if postFields {
		if _, err := m.run.Run(ctx, d, wpcli.FormatNone); err != nil {
			return nil, err
		}
	}

	if up.Price != nil || up.PriceType != nil {
		current, err := m.getSettings(ctx, id, courseSettingsKey)
		if err != nil {
			return nil, err
		}
		merged := courseSettings{priceType: rec.PriceType, price: up.Price}.apply(current)
		if err := m.setSettings(ctx, id, courseSettingsKey, merged); err != nil {
			return nil, err
		}
	}

	m.logger.Info().Int("course_id", id).Msg("course updated")
	return rec, nil
}

// DeleteCourse trashes a course, or removes it permanently with force.
func (m *Manager) DeleteCourse(ctx context.Context, courseID any, force bool) (*DeleteOutcome, error) {
	id, err := validate.PositiveInt(courseID, "course_id")
	if err != nil {
		return nil, err
	}

	d := command.New("course.delete", "post", "delete").
		Arg(command.Int(id)).
		Switch("force", force)
	if _, err := m.run.Run(ctx, d, wpcli.FormatNone); err != nil {
		return nil, err
	}

	m.logger.Info().Int("course_id", id).Bool("force", force).Msg("course deleted")
	return &DeleteOutcome{ID: id, Permanent: force}, nil
}

// ListCourses lists courses by status ("any" for all) up to limit.
func (m *Manager) ListCourses(ctx context.Context, status string, limit any) ([]CourseRecord, error) {
	status, err := validate.Literal(statusOrDefault(status, "any"), "status", append([]string{"any"}, Statuses...)...)
	if err != nil {
		return nil, err
	}
	n, err := validate.IntRange(limit, "limit", 1, MaxListLimit)
	if err != nil {
		return nil, err
	}

	d := command.New("course.list", "post", "list").
		Flag("post_type", command.Enum(PostTypeCourse)).
		Flag("post_status", command.Enum(status)).
		Flag("posts_per_page", command.Int(n)).
		Flag("fields", command.String("ID,post_title,post_status,post_date"))

	out, err := m.run.Run(ctx, d, wpcli.FormatJSON)
	if err != nil {
		return nil, err
	}

	var courses []CourseRecord
	for _, row := range out.Array() {
		courses = append(courses, CourseRecord{
			ID:     int(row.Get("ID").Int()),
			Title:  row.Get("post_title").String(),
			Status: row.Get("post_status").String(),
			Date:   row.Get("post_date").String(),
		})
	}
	return courses, nil
}
