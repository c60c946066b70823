package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eugenetaranov/wpbolt/internal/bulk"
)

func TestColor(t *testing.T) {
	var buf bytes.Buffer
	o := New(&buf)

	assert.Equal(t, colorGreen+"ok"+colorReset, o.color(colorGreen, "ok"), "color is on by default")

	o.SetColor(false)
	assert.Equal(t, "ok", o.color(colorGreen, "ok"))

	o.BulkStart("enroll", 3)
	assert.NotContains(t, buf.String(), "\033[")
}

func TestMessages(t *testing.T) {
	tests := []struct {
		name  string
		debug bool
		emit  func(o *Output)
		want  string
	}{
		{name: "info", emit: func(o *Output) { o.Info("connected to %s", "ssh://deploy@lms:22") }, want: "INFO connected to ssh://deploy@lms:22\n"},
		{name: "warn", emit: func(o *Output) { o.Warn("%d job(s) not run after abort", 2) }, want: "WARN 2 job(s) not run after abort\n"},
		{name: "error", emit: func(o *Output) { o.Error("%v", "course_id must be a positive integer, got 0") }, want: "ERROR course_id must be a positive integer, got 0\n"},
		{name: "debug hidden", emit: func(o *Output) { o.Debug("line %d", 1) }, want: ""},
		{name: "debug shown", debug: true, emit: func(o *Output) { o.Debug("line %d", 1) }, want: "DEBUG line 1\n"},
		{name: "section", emit: func(o *Output) { o.Section("ssh://deploy@lms:22:/var/www") }, want: "\nssh://deploy@lms:22:/var/www\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			o := New(&buf)
			o.SetColor(false)
			o.SetDebug(tt.debug)

			tt.emit(o)
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestTargetResult(t *testing.T) {
	tests := []struct {
		name   string
		res    bulk.TargetResult
		debug  bool
		wantIn []string
		notIn  []string
	}{
		{
			name:   "succeeded",
			res:    bulk.TargetResult{Target: 7, ID: 7, Status: bulk.StatusSucceeded},
			wantIn: []string{"✓", "7"},
			notIn:  []string{"→"},
		},
		{
			name:   "failed",
			res:    bulk.TargetResult{Target: -3, Status: bulk.StatusFailed, Error: "user_id[2] must be a positive integer, got -3"},
			wantIn: []string{"✗", "-3", "→", "must be a positive integer"},
		},
		{
			name:   "not attempted hides reason",
			res:    bulk.TargetResult{Target: 9, Status: bulk.StatusNotAttempted, Error: bulk.AbortReason},
			wantIn: []string{"○", "9"},
			notIn:  []string{"aborted after"},
		},
		{
			name:   "not attempted in debug",
			res:    bulk.TargetResult{Target: 9, Status: bulk.StatusNotAttempted, Error: bulk.AbortReason},
			debug:  true,
			wantIn: []string{"○", "9", "aborted after 5 consecutive failures"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			o := New(&buf)
			o.SetColor(false)
			o.SetDebug(tt.debug)

			o.TargetResult(tt.res)

			output := buf.String()
			for _, want := range tt.wantIn {
				if !strings.Contains(output, want) {
					t.Errorf("expected output to contain %q, got %q", want, output)
				}
			}
			for _, unwanted := range tt.notIn {
				if strings.Contains(output, unwanted) {
					t.Errorf("expected output not to contain %q, got %q", unwanted, output)
				}
			}
		})
	}
}

func TestBulkEnd(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	report := &bulk.Report{
		ID:           uuid.MustParse("6f1c2a4e-9b1d-4c7e-8a55-2f0e3d9c1b77"),
		Operation:    "enroll",
		Total:        7,
		Succeeded:    1,
		Failed:       5,
		NotAttempted: 1,
		Aborted:      true,
		Results: []bulk.TargetResult{
			{Index: 0, Target: 4, ID: 4, Status: bulk.StatusSucceeded},
			{Index: 1, Target: "x", Status: bulk.StatusFailed, Error: "user_id[1] must be a positive integer"},
			{Index: 6, Target: 11, Status: bulk.StatusNotAttempted, Error: bulk.AbortReason},
		},
		StartedAt:  start,
		FinishedAt: start.Add(2500 * time.Millisecond),
	}

	var buf bytes.Buffer
	o := New(&buf)
	o.SetColor(false)
	o.BulkEnd(report)

	out := buf.String()
	for _, want := range []string{"✓ 4\n", "✗ x → user_id[1]", "○ 11\n", "RECAP succeeded=1 failed=5 not-attempted=1 (2.50s)", "ABORTED " + bulk.AbortReason} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "6f1c2a4e")
	assert.Less(t, strings.Index(out, "✓ 4"), strings.Index(out, "RECAP"))

	buf.Reset()
	o.SetDebug(true)
	o.BulkEnd(report)
	assert.Contains(t, buf.String(), "run: 6f1c2a4e-9b1d-4c7e-8a55-2f0e3d9c1b77")
}

func TestBulkStart(t *testing.T) {
	var buf bytes.Buffer
	o := New(&buf)
	o.SetColor(false)

	o.BulkStart("enroll", 20)
	assert.Equal(t, "\nBULK enroll (20 targets)\n", buf.String())
}

func TestRecord(t *testing.T) {
	var buf bytes.Buffer
	o := New(&buf)

	require.NoError(t, o.Record(map[string]int{"id": 101}))
	assert.Equal(t, "{\n  \"id\": 101\n}\n", buf.String())

	err := o.Record(make(chan int))
	assert.ErrorContains(t, err, "encode output")
}

func TestFields(t *testing.T) {
	var buf bytes.Buffer
	o := New(&buf)
	o.SetColor(false)

	o.Fields(map[string]string{"version": "6.6.2", "url": "https://example.com"})
	assert.Equal(t, "  url:     https://example.com\n  version: 6.6.2\n", buf.String())
}
