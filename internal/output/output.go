// Package output provides formatted terminal output for commands and bulk runs.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/eugenetaranov/wpbolt/internal/bulk"
)

// Colors for terminal output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

// Output handles formatted output.
type Output struct {
	w        io.Writer
	useColor bool
	debug    bool
}

// New creates a new output handler.
func New(w io.Writer) *Output {
	return &Output{
		w:        w,
		useColor: true,
	}
}

// SetColor enables or disables color output.
func (o *Output) SetColor(enabled bool) {
	o.useColor = enabled
}

// SetDebug enables or disables debug output.
func (o *Output) SetDebug(enabled bool) {
	o.debug = enabled
}

// color returns the string wrapped in color codes if enabled.
func (o *Output) color(c, s string) string {
	if !o.useColor {
		return s
	}
	return c + s + colorReset
}

// BulkStart prints the run banner.
func (o *Output) BulkStart(name string, total int) {
	o.printf("\n%s %s %s\n", o.color(colorBold, "BULK"), name, o.color(colorGray, fmt.Sprintf("(%d targets)", total)))
}

// TargetResult prints one target outcome in a single line.
// Format: [indicator] target → error
func (o *Output) TargetResult(res bulk.TargetResult) {
	var indicator, statusColor string

	switch res.Status {
	case bulk.StatusSucceeded:
		indicator = "✓"
		statusColor = colorGreen
	case bulk.StatusFailed:
		indicator = "✗"
		statusColor = colorRed
	case bulk.StatusNotAttempted:
		indicator = "○"
		statusColor = colorCyan
	default:
		indicator = "?"
		statusColor = colorGray
	}

	// Skipped targets share one reason; only show it in debug mode.
	if res.Status == bulk.StatusNotAttempted && !o.debug {
		o.printf("  %s %v\n", o.color(statusColor, indicator), res.Target)
		return
	}

	o.printf("  %s %v", o.color(statusColor, indicator), res.Target)
	if res.Error != "" {
		o.printf(" %s %s", o.color(colorGray, "→"), res.Error)
	}
	o.printf("\n")
}

// BulkEnd prints every target and the recap line.
func (o *Output) BulkEnd(report *bulk.Report) {
	for _, res := range report.Results {
		o.TargetResult(res)
	}

	o.printf("\n%s ", o.color(colorBold, "RECAP"))

	succeeded := o.color(colorGreen, fmt.Sprintf("succeeded=%d", report.Succeeded))
	failed := o.color(colorRed, fmt.Sprintf("failed=%d", report.Failed))
	skipped := o.color(colorCyan, fmt.Sprintf("not-attempted=%d", report.NotAttempted))

	o.printf("%s %s %s", succeeded, failed, skipped)
	o.printf(" %s\n", o.color(colorGray, fmt.Sprintf("(%.2fs)", report.Duration().Seconds())))

	if report.Aborted {
		o.printf("%s %s\n", o.color(colorRed, "ABORTED"), bulk.AbortReason)
	}
	if o.debug {
		o.printf("%s %s\n", o.color(colorGray, "run:"), report.ID)
	}
}

// Record prints a value as indented JSON.
func (o *Output) Record(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	o.printf("%s\n", data)
	return nil
}

// Fields prints key/value pairs sorted by key.
func (o *Output) Fields(fields map[string]string) {
	keys := make([]string, 0, len(fields))
	width := 0
	for k := range fields {
		keys = append(keys, k)
		if len(k) > width {
			width = len(k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		o.printf("  %s %s\n", o.color(colorGray, k+":"+strings.Repeat(" ", width-len(k))), fields[k])
	}
}

// Section prints a section header.
func (o *Output) Section(name string) {
	o.printf("\n%s\n", o.color(colorBold, name))
}

// Info prints an informational message.
func (o *Output) Info(format string, args ...any) {
	o.printf("%s %s\n", o.color(colorBlue, "INFO"), fmt.Sprintf(format, args...))
}

// Warn prints a warning message.
func (o *Output) Warn(format string, args ...any) {
	o.printf("%s %s\n", o.color(colorYellow, "WARN"), fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (o *Output) Error(format string, args ...any) {
	o.printf("%s %s\n", o.color(colorRed, "ERROR"), fmt.Sprintf(format, args...))
}

// Debug prints a debug message (only in debug mode).
func (o *Output) Debug(format string, args ...any) {
	if o.debug {
		o.printf("%s %s\n", o.color(colorGray, "DEBUG"), fmt.Sprintf(format, args...))
	}
}

func (o *Output) printf(format string, args ...any) {
	fmt.Fprintf(o.w, format, args...)
}
