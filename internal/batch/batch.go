// Package batch reads bulk job files and runs them through the operation
// registry.
package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/eugenetaranov/wpbolt/internal/bulk"
	"github.com/eugenetaranov/wpbolt/internal/lms"
	"github.com/eugenetaranov/wpbolt/internal/logging"
	"github.com/eugenetaranov/wpbolt/internal/operation"
	"github.com/eugenetaranov/wpbolt/internal/validate"
)

// Job applies one operation to a list of targets.
type Job struct {
	Name      string         `yaml:"name"`
	Operation string         `yaml:"operation"`
	Params    map[string]any `yaml:"params"`

	// Targets are kept as written so malformed entries are reported per
	// target by the runner instead of failing the whole file.
	Targets []any `yaml:"targets"`
}

// Batch is the parsed contents of a job file.
type Batch struct {
	Path string
	Vars Vars
	Jobs []*Job
}

// document is the long form of a job file: shared variables plus a job list.
type document struct {
	Vars Vars   `yaml:"vars"`
	Jobs []*Job `yaml:"jobs"`
}

// Validate checks that the job is runnable before anything is sent.
func (j *Job) Validate() error {
	if j.Operation == "" {
		return errors.New("operation is required")
	}
	op, err := operation.Lookup(j.Operation)
	if err != nil {
		return err
	}
	if err := operation.CheckParams(op, j.Params); err != nil {
		return err
	}
	return validate.NonEmpty(j.Targets, "targets")
}

// Label returns the job name, or the operation when unnamed.
func (j *Job) Label() string {
	if j.Name != "" {
		return j.Name
	}
	return j.Operation
}

// ParseFile parses a job file from disk.
func ParseFile(path string) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read job file: %w", err)
	}

	b, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse job file %s: %w", path, err)
	}

	b.Path = path
	return b, nil
}

// Parse parses YAML holding a single job, a list of jobs, or a mapping with
// vars and jobs keys. {{ name }} references in params and targets are
// resolved against vars. Unknown fields are rejected.
func Parse(data []byte) (*Batch, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("invalid job file format: %w", err)
	}
	if len(root.Content) == 0 {
		return nil, errors.New("job file is empty")
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var (
		jobs []*Job
		vars Vars
	)
	switch top := root.Content[0]; {
	case top.Kind == yaml.SequenceNode:
		if err := dec.Decode(&jobs); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("invalid job file format: %w", err)
		}
	case hasKey(top, "jobs"):
		var doc document
		if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("invalid job file format: %w", err)
		}
		jobs, vars = doc.Jobs, doc.Vars
	default:
		var job Job
		if err := dec.Decode(&job); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("invalid job file format: %w", err)
		}
		jobs = []*Job{&job}
	}

	if len(jobs) == 0 {
		return nil, errors.New("job file is empty")
	}

	for i, job := range jobs {
		if job == nil {
			return nil, fmt.Errorf("job %d: empty entry", i+1)
		}
		if err := interpolateJob(job, vars); err != nil {
			return nil, fmt.Errorf("job %d (%s): %w", i+1, job.Label(), err)
		}
		if err := job.Validate(); err != nil {
			return nil, fmt.Errorf("job %d (%s): %w", i+1, job.Label(), err)
		}
	}

	return &Batch{Vars: vars, Jobs: jobs}, nil
}

func hasKey(node *yaml.Node, key string) bool {
	if node.Kind != yaml.MappingNode {
		return false
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return true
		}
	}
	return false
}

// Result pairs a job with its report.
type Result struct {
	Job    *Job
	Report *bulk.Report
}

// Run executes the jobs in order. A job whose circuit breaker tripped stops
// the batch: the remaining jobs would hit the same broken remote side.
// Each job logs through the context logger tagged with the job label.
func Run(ctx context.Context, m *lms.Manager, b *Batch) ([]Result, error) {
	results := make([]Result, 0, len(b.Jobs))
	logger := logging.FromContext(ctx)

	for i, job := range b.Jobs {
		jobLogger := logger.With().Str("job", job.Label()).Logger()

		report, err := operation.Run(logging.WithContext(ctx, jobLogger), m, job.Operation, job.Params, job.Targets)
		if err != nil {
			return results, fmt.Errorf("job %d (%s): %w", i+1, job.Label(), err)
		}
		results = append(results, Result{Job: job, Report: report})

		if report.Aborted {
			if skipped := len(b.Jobs) - i - 1; skipped > 0 {
				jobLogger.Warn().Int("skipped_jobs", skipped).Msg("batch stopped after aborted job")
			}
			break
		}
	}

	return results, nil
}
