package operation_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eugenetaranov/wpbolt/internal/bulk"
	"github.com/eugenetaranov/wpbolt/internal/lms"
	"github.com/eugenetaranov/wpbolt/internal/logging"
	"github.com/eugenetaranov/wpbolt/internal/operation"
	_ "github.com/eugenetaranov/wpbolt/internal/operation/enroll"
	_ "github.com/eugenetaranov/wpbolt/internal/operation/groupadd"
	_ "github.com/eugenetaranov/wpbolt/internal/operation/unenroll"
	"github.com/eugenetaranov/wpbolt/internal/testutil/fakeconn"
	"github.com/eugenetaranov/wpbolt/internal/validate"
	"github.com/eugenetaranov/wpbolt/internal/wpcli"
)

type mockOperation struct {
	name string
}

func (m *mockOperation) Name() string        { return m.name }
func (m *mockOperation) Description() string { return "mock" }
func (m *mockOperation) Params() []string    { return nil }
func (m *mockOperation) Prepare(*lms.Manager, map[string]any) (bulk.TargetFunc, error) {
	return func(context.Context, int) error { return nil }, nil
}

func manager() (*lms.Manager, *fakeconn.Conn) {
	conn := fakeconn.New()
	exec := wpcli.New(conn, wpcli.WithLogger(logging.Nop()))
	return lms.New(exec, lms.WithLogger(logging.Nop())), conn
}

func TestRegisterAndGet(t *testing.T) {
	operation.Register(&mockOperation{name: "test_mock_operation"})

	got := operation.Get("test_mock_operation")
	require.NotNil(t, got)
	assert.Equal(t, "test_mock_operation", got.Name())
	assert.Nil(t, operation.Get("nonexistent_operation"))
}

func TestRegisterDuplicatePanics(t *testing.T) {
	operation.Register(&mockOperation{name: "test_duplicate"})
	assert.Panics(t, func() {
		operation.Register(&mockOperation{name: "test_duplicate"})
	})
}

func TestBuiltinsRegistered(t *testing.T) {
	names := operation.List()
	assert.Contains(t, names, "enroll")
	assert.Contains(t, names, "unenroll")
	assert.Contains(t, names, "group-add")
	assert.IsNonDecreasing(t, names)
}

func TestLookupUnknown(t *testing.T) {
	_, err := operation.Lookup("purge")
	var verr *validate.Error
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, err.Error(), "enroll")
	assert.Contains(t, err.Error(), `"purge"`)
}

func TestRunEnroll(t *testing.T) {
	m, conn := manager()

	report, err := operation.Run(context.Background(), m, "enroll", map[string]any{"course_id": 12}, []any{1, 2, -3, 4, "x"})
	require.NoError(t, err)

	assert.Equal(t, "enroll", report.Operation)
	assert.Equal(t, 3, report.Succeeded)
	assert.Equal(t, 2, report.Failed)
	assert.False(t, report.Aborted)
	assert.Len(t, conn.Commands(), 3)
	assert.Contains(t, conn.Commands()[0], "ld_update_course_access(1, 12, false);")
}

func TestRunUnenrollAndGroupAdd(t *testing.T) {
	m, conn := manager()

	_, err := operation.Run(context.Background(), m, "unenroll", map[string]any{"course_id": float64(12)}, []any{7})
	require.NoError(t, err)
	assert.Contains(t, conn.Last(), "ld_update_course_access(7, 12, true);")

	_, err = operation.Run(context.Background(), m, "group-add", map[string]any{"group_id": 900}, []any{7})
	require.NoError(t, err)
	assert.Contains(t, conn.Last(), "ld_update_group_access(7, 900, false);")
}

func TestRunRejectsBadParams(t *testing.T) {
	m, conn := manager()
	ctx := context.Background()

	_, err := operation.Run(ctx, m, "enroll", map[string]any{}, []any{1})
	assert.ErrorContains(t, err, "course_id must be a positive integer, got nil")

	_, err = operation.Run(ctx, m, "enroll", map[string]any{"course_id": 1, "group_id": 2}, []any{1})
	assert.ErrorContains(t, err, "accepts only [course_id]")

	_, err = operation.Run(ctx, m, "group-add", map[string]any{"group_id": "abc"}, []any{1})
	assert.ErrorContains(t, err, `group_id must be a positive integer, got "abc" (string)`)

	assert.Empty(t, conn.Commands())
}
