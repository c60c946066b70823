// Package groupadd adds each target user to a LearnDash group.
package groupadd

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

// Operation implements the "group-add" bulk operation.
type Operation struct{}

// Name returns the operation identifier.
func (o *Operation) Name() string {
	return "group-add"
}

// Description returns a one-line summary.
func (o *Operation) Description() string {
	return "Add users to a group"
}

// Params lists the required parameters.
func (o *Operation) Params() []string {
	return []string{"group_id"}
}

// Prepare validates group_id once for the whole run.
func (o *Operation) Prepare(m *lms.Manager, params map[string]any) (bulk.TargetFunc, error) {
	id, err := validate.PositiveInt(params["group_id"], "group_id")
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, userID int) error {
		_, err := m.AddUserToGroup(ctx, userID, id)
		return err
	}, nil
}
