package lms

import (
	"context"
	"fmt"
	"time"

	"github.com/eugenetaranov/wpbolt/internal/bulk"
	"github.com/eugenetaranov/wpbolt/internal/command"
	"github.com/eugenetaranov/wpbolt/internal/validate"
	"github.com/eugenetaranov/wpbolt/internal/wpcli"
)

// EnrollmentOutcome reports a single enrollment change.
type EnrollmentOutcome struct {
	UserID    int       `json:"user_id"`
	CourseID  int       `json:"course_id"`
	Enrolled  bool      `json:"enrolled"`
	ChangedAt time.Time `json:"changed_at"`
}

// Student is a user with access to a course.
type Student struct {
	UserID      int    `json:"user_id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// EnrollUser grants userID access to courseID.
func (m *Manager) EnrollUser(ctx context.Context, userID, courseID any) (*EnrollmentOutcome, error) {
	return m.setCourseAccess(ctx, userID, courseID, true)
}

// UnenrollUser removes userID's access to courseID.
func (m *Manager) UnenrollUser(ctx context.Context, userID, courseID any) (*EnrollmentOutcome, error) {
	return m.setCourseAccess(ctx, userID, courseID, false)
}

func (m *Manager) setCourseAccess(ctx context.Context, userID, courseID any, enroll bool) (*EnrollmentOutcome, error) {
	uid, err := validate.PositiveInt(userID, "user_id")
	if err != nil {
		return nil, err
	}
	cid, err := validate.PositiveInt(courseID, "course_id")
	if err != nil {
		return nil, err
	}

	label := "course.enroll"
	if !enroll {
		label = "course.unenroll"
	}
	// The third argument removes access when true.
	php := fmt.Sprintf("ld_update_course_access(%d, %d, %t);", uid, cid, !enroll)
	if _, err := m.eval(ctx, label, php); err != nil {
		return nil, err
	}

	m.logger.Debug().Int("user_id", uid).Int("course_id", cid).Bool("enrolled", enroll).Msg("course access changed")

	return &EnrollmentOutcome{
		UserID:    uid,
		CourseID:  cid,
		Enrolled:  enroll,
		ChangedAt: time.Now().UTC(),
	}, nil
}

// BulkEnroll enrolls every user in courseID under the circuit breaker.
// The course ID is checked once before any target is attempted.
func (m *Manager) BulkEnroll(ctx context.Context, userIDs []any, courseID any) (*bulk.Report, error) {
	cid, err := validate.PositiveInt(courseID, "course_id")
	if err != nil {
		return nil, err
	}
	return m.bulkRunner("enroll", "user_id").Run(ctx, userIDs, func(ctx context.Context, uid int) error {
		_, err := m.EnrollUser(ctx, uid, cid)
		return err
	})
}

// CourseStudents lists users with access to courseID.
func (m *Manager) CourseStudents(ctx context.Context, courseID any) ([]Student, error) {
	cid, err := validate.PositiveInt(courseID, "course_id")
	if err != nil {
		return nil, err
	}

	php := fmt.Sprintf(`$q = learndash_get_users_for_course(%d, array("fields" => "ID"), false); `+
		`echo wp_json_encode(array_map("intval", $q instanceof WP_User_Query ? $q->get_results() : (array) $q));`, cid)
	out, err := m.eval(ctx, "course.students", php)
	if err != nil {
		return nil, err
	}

	ids := wpcli.Decode(out.Raw)
	if !ids.Decoded {
		return nil, fmt.Errorf("course.students: unexpected output %q", out.Raw)
	}

	var students []Student
	for _, id := range ids.Array() {
		d := command.New("user.get", "user", "get").
			Arg(command.Int(int(id.Int()))).
			Flag("fields", command.String("ID,user_login,user_email,display_name"))
		user, err := m.run.Run(ctx, d, wpcli.FormatJSON)
		if err != nil {
			return nil, fmt.Errorf("user %d: %w", id.Int(), err)
		}
		students = append(students, Student{
			UserID:      int(user.Get("ID").Int()),
			Username:    user.Get("user_login").String(),
			Email:       user.Get("user_email").String(),
			DisplayName: user.Get("display_name").String(),
		})
	}
	return students, nil
}
