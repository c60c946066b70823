package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/eugenetaranov/wpbolt/internal/batch"
	"github.com/eugenetaranov/wpbolt/internal/bulk"
	"github.com/eugenetaranov/wpbolt/internal/operation"
)

var bulkParams []string

var bulkCmd = &cobra.Command{
	Use:   "bulk <operation> <target-id> [target-id ...]",
	Short: "Apply an operation to many users",
	Long: `Apply a registered operation to each target user ID in order.

Malformed IDs are reported per target without stopping the run. After 5
consecutive failures the remaining targets are not attempted.

Examples:
  wpbolt bulk enroll --param course_id=42 7 8 9
  wpbolt bulk group-add --param group_id=3 7 8 9`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := parseParams(bulkParams)
		if err != nil {
			return err
		}
		op, err := operation.Lookup(args[0])
		if err != nil {
			return err
		}
		if err := operation.CheckParams(op, params); err != nil {
			return err
		}

		return withSession(func(ctx context.Context, s *session) error {
			targets := parseScalars(args[1:])
			s.out.BulkStart(op.Name(), len(targets))
			report, err := operation.Run(ctx, s.lms, op.Name(), params, targets)
			return finishBulk(s, "", report, err)
		})
	},
}

var runCmd = &cobra.Command{
	Use:   "run <jobs.yaml>",
	Short: "Run a job file",
	Long: `Run every job in a YAML job file. A job that trips the circuit
breaker stops the remaining jobs.

Example job file:
  - name: spring cohort
    operation: enroll
    params:
      course_id: 42
    targets: [7, 8, 9]`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return fmt.Errorf("job file not found: %s", path)
		}
		b, err := batch.ParseFile(path)
		if err != nil {
			return err
		}

		return withSession(func(ctx context.Context, s *session) error {
			results, err := batch.Run(ctx, s.lms, b)
			failed := false
			for _, res := range results {
				s.out.BulkStart(res.Job.Label(), res.Report.Total)
				s.out.BulkEnd(res.Report)
				if !res.Report.OK() {
					failed = true
				}
			}
			if err != nil {
				return err
			}
			if skipped := len(b.Jobs) - len(results); skipped > 0 {
				s.out.Warn("%d job(s) not run after abort", skipped)
				failed = true
			}
			if failed {
				return errFailed
			}
			return nil
		})
	},
}

var operationsCmd = &cobra.Command{
	Use:   "operations",
	Short: "List available bulk operations",
	Run: func(cmd *cobra.Command, args []string) {
		names := operation.List()
		if len(names) == 0 {
			fmt.Println("No operations registered.")
			return
		}

		fmt.Println("Available operations:")
		fmt.Println()
		for _, name := range names {
			op := operation.Get(name)
			fmt.Printf("  - %-10s %s (params: %s)\n", name, op.Description(), strings.Join(op.Params(), ", "))
		}
	},
}

func init() {
	bulkCmd.Flags().StringArrayVarP(&bulkParams, "param", "p", nil, "Operation parameter as key=value (repeatable)")
}

// finishBulk prints a report and turns failures into a non-zero exit.
func finishBulk(s *session, name string, report *bulk.Report, err error) error {
	if err != nil {
		return err
	}
	if name != "" {
		s.out.BulkStart(name, report.Total)
	}
	s.out.BulkEnd(report)
	if !report.OK() {
		return errFailed
	}
	return nil
}

// parseScalar reads a command line word as a YAML scalar so "12" becomes an
// integer while malformed IDs such as "x" or "1.5" stay as typed and are
// rejected by validation with their original spelling.
func parseScalar(s string) any {
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	switch v.(type) {
	case int, float64, string:
		return v
	default:
		return s
	}
}

func parseScalars(words []string) []any {
	out := make([]any, len(words))
	for i, w := range words {
		out[i] = parseScalar(w)
	}
	return out
}

func parseParams(pairs []string) (map[string]any, error) {
	params := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, val, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --param %q (want key=value)", pair)
		}
		params[key] = parseScalar(val)
	}
	return params, nil
}
