package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterpolateString(t *testing.T) {
	t.Setenv("WPBOLT_TEST_COURSE", "77")

	vars := Vars{
		"name":   "Spring",
		"course": 42,
		"cohort": []any{7, 8, 9},
		"site": map[string]any{
			"group": 900,
		},
	}

	tests := []struct {
		name    string
		input   string
		want    any
		wantErr string
	}{
		{name: "simple variable", input: "{{ name }}", want: "Spring"},
		{name: "keeps integer type", input: "{{ course }}", want: 42},
		{name: "surrounding spaces", input: "  {{course}} ", want: 42},
		{name: "variable in text", input: "{{ name }} cohort", want: "Spring cohort"},
		{name: "multiple variables", input: "{{ name }}-{{ course }}", want: "Spring-42"},
		{name: "dotted path", input: "{{ site.group }}", want: 900},
		{name: "environment", input: "{{ env.WPBOLT_TEST_COURSE }}", want: "77"},
		{name: "list", input: "{{ cohort }}", want: []any{7, 8, 9}},
		{name: "no variables", input: "plain text", want: "plain text"},
		{name: "undefined variable", input: "{{ missing }}", wantErr: `undefined variable "missing"`},
		{name: "undefined in text", input: "x {{ missing }}", wantErr: `undefined variable "missing"`},
		{name: "undefined env", input: "{{ env.WPBOLT_TEST_UNSET }}", wantErr: "undefined variable"},
		{name: "undefined path", input: "{{ site.nope }}", wantErr: "undefined variable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := vars.interpolateString(tt.input)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilters(t *testing.T) {
	vars := Vars{
		"name":   "  Spring Cohort ",
		"course": 42,
		"cohort": []any{7, 8, 9},
		"empty":  "",
	}

	tests := []struct {
		expr    string
		want    any
		wantErr string
	}{
		{expr: "missing | default('12')", want: "12"},
		{expr: "empty | default(5)", want: "5"},
		{expr: "course | default(1)", want: 42},
		{expr: "name | trim", want: "Spring Cohort"},
		{expr: "name | lower", want: "  spring cohort "},
		{expr: "name | upper", want: "  SPRING COHORT "},
		{expr: "course | string", want: "42"},
		{expr: "cohort | first", want: 7},
		{expr: "cohort | last", want: 9},
		{expr: "cohort | length", want: 3},
		{expr: "cohort | join", want: "7,8,9"},
		{expr: "cohort | join(' ')", want: "7 8 9"},
		{expr: "course | nope", wantErr: "unknown filter: nope"},
		{expr: "missing | lower", wantErr: "undefined variable"},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := vars.resolve(tt.expr)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInterpolateJobSplicesLists(t *testing.T) {
	job := &Job{
		Operation: "enroll",
		Params:    map[string]any{"course_id": "{{ course }}"},
		Targets:   []any{1, "{{ cohort }}", "x", "{{ late }}"},
	}
	vars := Vars{"course": 42, "cohort": []any{7, 8}, "late": 11}

	require.NoError(t, interpolateJob(job, vars))
	assert.Equal(t, 42, job.Params["course_id"])
	assert.Equal(t, []any{1, 7, 8, "x", 11}, job.Targets)
}

func TestParseWithVars(t *testing.T) {
	b, err := Parse([]byte(`
vars:
  course: 12
  spring: [1, 2, 3]
  group: 900
jobs:
  - name: enroll spring
    operation: enroll
    params: {course_id: "{{ course }}"}
    targets: ["{{ spring }}", 4]
  - operation: group-add
    params: {group_id: "{{ group }}"}
    targets: ["{{ spring | first }}"]
`))
	require.NoError(t, err)
	require.Len(t, b.Jobs, 2)

	assert.Equal(t, 12, b.Jobs[0].Params["course_id"])
	assert.Equal(t, []any{1, 2, 3, 4}, b.Jobs[0].Targets)
	assert.Equal(t, 900, b.Jobs[1].Params["group_id"])
	assert.Equal(t, []any{1}, b.Jobs[1].Targets)
	assert.Equal(t, 12, b.Vars["course"])
}

func TestParseUndefinedVar(t *testing.T) {
	_, err := Parse([]byte(`
jobs:
  - operation: enroll
    params: {course_id: "{{ course }}"}
    targets: [1]
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `param course_id: undefined variable "course"`)
}
