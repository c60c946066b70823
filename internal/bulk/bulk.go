// Package bulk applies one operation to an ordered list of targets and stops
// the batch when failures stop looking isolated.
package bulk

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/eugenetaranov/wpbolt/internal/logging"
	"github.com/eugenetaranov/wpbolt/internal/validate"
)

// Threshold is the number of consecutive failures that aborts a run.
const Threshold = 5

// ErrNilOperation is returned when Run is called without a TargetFunc.
var ErrNilOperation = errors.New("bulk: nil operation")

// TargetFunc performs the operation for one validated target ID.
type TargetFunc func(ctx context.Context, id int) error

// Runner applies a TargetFunc across targets with a consecutive-failure
// circuit breaker. The zero value is usable.
type Runner struct {
	// Name labels the operation in the report and logs.
	Name string

	// Param names the target identifier in validation messages
	// (default "target").
	Param string

	// Logger overrides the logger carried by the context.
	Logger *zerolog.Logger
}

// Run processes targets in order and returns the report.
//
// Per-target failures never surface as the returned error: they are
// recorded in the report. The error is reserved for unusable calls
// (no targets, no operation), which are rejected before any attempt.
func (r *Runner) Run(ctx context.Context, targets []any, fn TargetFunc) (*Report, error) {
	param := r.Param
	if param == "" {
		param = "target"
	}
	if err := validate.NonEmpty(targets, param+"s"); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, ErrNilOperation
	}

	report := &Report{
		ID:        uuid.New(),
		Operation: r.Name,
		Total:     len(targets),
		Results:   make([]TargetResult, 0, len(targets)),
		StartedAt: time.Now(),
	}
	logger := r.logger(ctx).With().
		Str("run", report.ID.String()).
		Str("operation", r.Name).
		Logger()

	logger.Info().
		Int("targets", len(targets)).
		Msg("bulk run started")

	consecutive := 0
	for i, target := range targets {
		if err := ctx.Err(); err != nil {
			report.skipRemaining(targets[i:], i, fmt.Sprintf("not attempted: %v", err))
			break
		}

		res := TargetResult{Index: i, Target: target}

		id, err := validate.PositiveInt(target, fmt.Sprintf("%s[%d]", param, i))
		if err == nil {
			res.ID = id
			err = invoke(ctx, logger, fn, id)
		}

		if err != nil {
			consecutive++
			res.Status = StatusFailed
			res.Error = err.Error()
			logger.Warn().
				Int("index", i).
				Interface("target", target).
				Int("consecutive", consecutive).
				Msg(res.Error)
		} else {
			consecutive = 0
			res.Status = StatusSucceeded
		}
		report.add(res)

		if consecutive >= Threshold {
			report.Aborted = true
			report.skipRemaining(targets[i+1:], i+1, AbortReason)
			logger.Error().
				Int("failed", report.Failed).
				Int("not_attempted", report.NotAttempted).
				Msg("bulk run aborted")
			break
		}
	}

	report.FinishedAt = time.Now()

	logger.Info().
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Int("not_attempted", report.NotAttempted).
		Bool("aborted", report.Aborted).
		Dur("took", report.Duration()).
		Msg("bulk run finished")

	return report, nil
}

// logger prefers the injected Logger, then the one carried by ctx.
func (r *Runner) logger(ctx context.Context) zerolog.Logger {
	if r.Logger != nil {
		return *r.Logger
	}
	return logging.FromContext(ctx)
}

// invoke runs fn and turns a panic into a failure for that target.
func invoke(ctx context.Context, logger zerolog.Logger, fn TargetFunc, id int) (err error) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error().Int("id", id).Bytes("stack", debug.Stack()).Msgf("panic in bulk operation: %v", p)
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn(ctx, id)
}
