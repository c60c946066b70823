package lms

import (
	"context"
	"fmt"

	"github.com/eugenetaranov/wpbolt/internal/bulk"
	"github.com/eugenetaranov/wpbolt/internal/validate"
)

// GroupInput describes a group to create.
type GroupInput struct {
	Title       string
	Description string

	// CourseIDs are enrolled into the group; every entry is validated and
	// all violations are reported together.
	CourseIDs []any
}

// GroupRecord is a created group.
type GroupRecord struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	CourseIDs []int  `json:"course_ids"`
}

// GroupMembership reports a user added to a group.
type GroupMembership struct {
	UserID  int `json:"user_id"`
	GroupID int `json:"group_id"`
}

// CreateGroup creates a published group and associates its courses.
func (m *Manager) CreateGroup(ctx context.Context, in GroupInput) (*GroupRecord, error) {
	title, err := validate.String(in.Title, "title", MaxTitleLen)
	if err != nil {
		return nil, err
	}
	description, err := validate.OptionalString(in.Description, "description", MaxContentLen)
	if err != nil {
		return nil, err
	}
	courseIDs := []int{}
	if len(in.CourseIDs) > 0 {
		if courseIDs, err = validate.PositiveInts(in.CourseIDs, "course_ids"); err != nil {
			return nil, err
		}
	}

	id, err := m.createPost(ctx, "group.create", PostTypeGroup, title, description, "publish")
	if err != nil {
		return nil, err
	}

	if len(courseIDs) > 0 {
		php := fmt.Sprintf("learndash_set_group_enrolled_courses(%d, %s);", id, phpIntArray(courseIDs))
		if _, err := m.eval(ctx, "group.courses", php); err != nil {
			return nil, unfinished("group", id, err)
		}
	}

	m.logger.Info().Int("group_id", id).Ints("course_ids", courseIDs).Msg("group created")
	return &GroupRecord{ID: id, Title: title, CourseIDs: courseIDs}, nil
}

// AddUserToGroup adds userID to groupID.
func (m *Manager) AddUserToGroup(ctx context.Context, userID, groupID any) (*GroupMembership, error) {
	uid, err := validate.PositiveInt(userID, "user_id")
	if err != nil {
		return nil, err
	}
	gid, err := validate.PositiveInt(groupID, "group_id")
	if err != nil {
		return nil, err
	}

	php := fmt.Sprintf("ld_update_group_access(%d, %d, false);", uid, gid)
	if _, err := m.eval(ctx, "group.add", php); err != nil {
		return nil, err
	}
	return &GroupMembership{UserID: uid, GroupID: gid}, nil
}

// BulkAddToGroup adds every user to groupID under the circuit breaker.
func (m *Manager) BulkAddToGroup(ctx context.Context, userIDs []any, groupID any) (*bulk.Report, error) {
	gid, err := validate.PositiveInt(groupID, "group_id")
	if err != nil {
		return nil, err
	}
	return m.bulkRunner("group-add", "user_id").Run(ctx, userIDs, func(ctx context.Context, uid int) error {
		_, err := m.AddUserToGroup(ctx, uid, gid)
		return err
	})
}
