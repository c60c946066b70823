// Package enroll grants course access to each target user.
package enroll

import (
	"context"

	"github.com/eugenetaranov/wpbolt/internal/bulk"
	"github.com/eugenetaranov/wpbolt/internal/lms"
	"github.com/eugenetaranov/wpbolt/internal/operation"
	"github.com/eugenetaranov/wpbolt/internal/validate"
)

func init() {
	operation.Register(&Operation{})
}

// Operation implements the "enroll" bulk operation.
type Operation struct{}

// Name returns the operation identifier.
func (o *Operation) Name() string {
	return "enroll"
}

// Description returns a one-line summary.
func (o *Operation) Description() string {
	return "Enroll users in a course"
}

// Params lists the required parameters.
func (o *Operation) Params() []string {
	return []string{"course_id"}
}

// Prepare validates course_id once for the whole run.
func (o *Operation) Prepare(m *lms.Manager, params map[string]any) (bulk.TargetFunc, error) {
	id, err := validate.PositiveInt(params["course_id"], "course_id")
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, userID int) error {
		_, err := m.EnrollUser(ctx, userID, id)
		return err
	}, nil
}
