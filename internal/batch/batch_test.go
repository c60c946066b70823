package batch

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eugenetaranov/wpbolt/internal/lms"
	"github.com/eugenetaranov/wpbolt/internal/logging"
	_ "github.com/eugenetaranov/wpbolt/internal/operation/enroll"
	_ "github.com/eugenetaranov/wpbolt/internal/operation/groupadd"
	"github.com/eugenetaranov/wpbolt/internal/testutil/fakeconn"
	"github.com/eugenetaranov/wpbolt/internal/wpcli"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		wantJobs int
		wantErr  string
	}{
		{
			name: "single job",
			yaml: `
name: spring cohort
operation: enroll
params:
  course_id: 12
targets: [1, 2, 3]
`,
			wantJobs: 1,
		},
		{
			name: "list of jobs",
			yaml: `
- operation: enroll
  params: {course_id: 12}
  targets: [1, 2]
- operation: group-add
  params: {group_id: 900}
  targets: [1, 2]
`,
			wantJobs: 2,
		},
		{
			name:    "invalid yaml",
			yaml:    `{{{invalid`,
			wantErr: "invalid job file format",
		},
		{
			name:    "empty",
			yaml:    "",
			wantErr: "empty",
		},
		{
			name:    "unknown field",
			yaml:    "operation: enroll\nparams: {course_id: 1}\ntargets: [1]\nretries: 3\n",
			wantErr: "field retries not found",
		},
		{
			name:    "missing operation",
			yaml:    "targets: [1]\n",
			wantErr: "operation is required",
		},
		{
			name:    "unknown operation",
			yaml:    "operation: purge\ntargets: [1]\n",
			wantErr: "operation must be one of",
		},
		{
			name:    "no targets",
			yaml:    "operation: enroll\nparams: {course_id: 1}\ntargets: []\n",
			wantErr: "targets cannot be empty",
		},
		{
			name:    "wrong param",
			yaml:    "operation: enroll\nparams: {group_id: 1}\ntargets: [1]\n",
			wantErr: "accepts only [course_id]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Parse([]byte(tt.yaml))
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, b.Jobs, tt.wantJobs)
		})
	}
}

func TestParseKeepsTargetsRaw(t *testing.T) {
	b, err := Parse([]byte("operation: enroll\nparams: {course_id: 12}\ntargets: [1, -3, x, 4.5]\n"))
	require.NoError(t, err)

	job := b.Jobs[0]
	assert.Equal(t, []any{1, -3, "x", 4.5}, job.Targets)
	assert.Equal(t, 12, job.Params["course_id"])
	assert.Equal(t, "enroll", job.Label())
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cohort.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: cohort\noperation: enroll\nparams: {course_id: 1}\ntargets: [5]\n"), 0o600))

	b, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, b.Path)
	assert.Equal(t, "cohort", b.Jobs[0].Label())

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read job file")
}

func TestRun(t *testing.T) {
	conn := fakeconn.New()
	m := lms.New(wpcli.New(conn, wpcli.WithLogger(logging.Nop())), lms.WithLogger(logging.Nop()))

	b, err := Parse([]byte(`
- name: enroll
  operation: enroll
  params: {course_id: 12}
  targets: [1, 2, -3, 4, x]
- name: group
  operation: group-add
  params: {group_id: 900}
  targets: [1]
`))
	require.NoError(t, err)

	results, err := Run(context.Background(), m, b)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, 3, results[0].Report.Succeeded)
	assert.Equal(t, 2, results[0].Report.Failed)
	assert.Equal(t, 1, results[1].Report.Succeeded)
	assert.Len(t, conn.Commands(), 4)
}

func TestRunStopsAfterAbortedJob(t *testing.T) {
	conn := fakeconn.New().OnFail("eval", "Error: broken")
	m := lms.New(wpcli.New(conn, wpcli.WithLogger(logging.Nop())), lms.WithLogger(logging.Nop()))

	b, err := Parse([]byte(`
- operation: enroll
  params: {course_id: 12}
  targets: [1, 2, 3, 4, 5, 6, 7]
- operation: group-add
  params: {group_id: 900}
  targets: [1]
`))
	require.NoError(t, err)

	results, err := Run(context.Background(), m, b)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Report.Aborted)
	assert.Equal(t, 2, results[0].Report.NotAttempted)
	assert.Len(t, conn.Commands(), 5)
}

func TestRunTagsLogsWithJob(t *testing.T) {
	conn := fakeconn.New().OnFail("eval", "Error: broken")
	m := lms.New(wpcli.New(conn, wpcli.WithLogger(logging.Nop())), lms.WithLogger(logging.Nop()))

	b, err := Parse([]byte(`
name: spring cohort
operation: enroll
params: {course_id: 12}
targets: [1]
`))
	require.NoError(t, err)

	var buf bytes.Buffer
	ctx := logging.WithContext(context.Background(), zerolog.New(&buf))

	_, err = Run(ctx, m, b)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"job":"spring cohort"`)
	assert.Contains(t, out, `"operation":"enroll"`)
}
