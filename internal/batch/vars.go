package batch

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// varPattern matches {{ variable }} syntax.
var varPattern = regexp.MustCompile(`\{\{\s*([^}]+?)\s*\}\}`)

// Vars holds the values a job file can reference. Names under "env." read
// the process environment.
type Vars map[string]any

// interpolateJob resolves references in the job's params and targets.
// A target that resolves to a list is spliced in place.
func interpolateJob(job *Job, vars Vars) error {
	if len(job.Params) > 0 {
		params := make(map[string]any, len(job.Params))
		for k, v := range job.Params {
			val, err := vars.interpolate(v)
			if err != nil {
				return fmt.Errorf("param %s: %w", k, err)
			}
			params[k] = val
		}
		job.Params = params
	}

	targets := make([]any, 0, len(job.Targets))
	for i, t := range job.Targets {
		val, err := vars.interpolate(t)
		if err != nil {
			return fmt.Errorf("targets[%d]: %w", i, err)
		}
		if list, ok := val.([]any); ok {
			targets = append(targets, list...)
			continue
		}
		targets = append(targets, val)
	}
	job.Targets = targets

	return nil
}

func (vars Vars) interpolate(v any) (any, error) {
	switch val := v.(type) {
	case string:
		return vars.interpolateString(val)

	case []any:
		result := make([]any, len(val))
		for i, item := range val {
			interpolated, err := vars.interpolate(item)
			if err != nil {
				return nil, err
			}
			result[i] = interpolated
		}
		return result, nil

	case map[string]any:
		result := make(map[string]any, len(val))
		for k, item := range val {
			interpolated, err := vars.interpolate(item)
			if err != nil {
				return nil, err
			}
			result[k] = interpolated
		}
		return result, nil

	default:
		return v, nil
	}
}

// interpolateString replaces {{ var }} patterns. A string that is exactly one
// reference keeps the referenced value's type, so IDs stay integers.
func (vars Vars) interpolateString(s string) (any, error) {
	trimmed := strings.TrimSpace(s)
	if m := varPattern.FindStringSubmatchIndex(trimmed); m != nil && m[0] == 0 && m[1] == len(trimmed) {
		return vars.resolve(trimmed[m[2]:m[3]])
	}

	var firstErr error
	result := varPattern.ReplaceAllStringFunc(s, func(match string) string {
		inner := varPattern.FindStringSubmatch(match)
		val, err := vars.resolve(inner[1])
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return match
		}
		return fmt.Sprintf("%v", val)
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return result, nil
}

// resolve evaluates "name" or "name | filter(arg)".
func (vars Vars) resolve(expr string) (any, error) {
	expr = strings.TrimSpace(expr)

	if idx := strings.Index(expr, "|"); idx > 0 {
		name := strings.TrimSpace(expr[:idx])
		filter := strings.TrimSpace(expr[idx+1:])
		return vars.applyFilter(name, filter)
	}

	val, ok := vars.lookup(expr)
	if !ok {
		return nil, fmt.Errorf("undefined variable %q", expr)
	}
	return val, nil
}

// lookup finds a variable by name or dotted path.
func (vars Vars) lookup(name string) (any, bool) {
	if val, ok := vars[name]; ok {
		return val, true
	}

	if key, ok := strings.CutPrefix(name, "env."); ok {
		return os.LookupEnv(key)
	}

	if !strings.Contains(name, ".") {
		return nil, false
	}

	var current any = map[string]any(vars)
	for _, part := range strings.Split(name, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		if current, ok = m[part]; !ok {
			return nil, false
		}
	}
	return current, true
}

func (vars Vars) applyFilter(name, filter string) (any, error) {
	val, found := vars.lookup(name)

	filterName := filter
	var filterArg string
	if idx := strings.Index(filter, "("); idx > 0 {
		filterName = strings.TrimSpace(filter[:idx])
		argPart := filter[idx+1:]
		if endIdx := strings.LastIndex(argPart, ")"); endIdx >= 0 {
			filterArg = strings.Trim(strings.TrimSpace(argPart[:endIdx]), `'"`)
		}
	}

	if filterName == "default" {
		if !found || val == nil || val == "" {
			return filterArg, nil
		}
		return val, nil
	}
	if !found {
		return nil, fmt.Errorf("undefined variable %q", name)
	}

	switch filterName {
	case "lower":
		if s, ok := val.(string); ok {
			return strings.ToLower(s), nil
		}
		return val, nil

	case "upper":
		if s, ok := val.(string); ok {
			return strings.ToUpper(s), nil
		}
		return val, nil

	case "trim":
		if s, ok := val.(string); ok {
			return strings.TrimSpace(s), nil
		}
		return val, nil

	case "string":
		return fmt.Sprintf("%v", val), nil

	case "first":
		if slice, ok := val.([]any); ok && len(slice) > 0 {
			return slice[0], nil
		}
		return nil, nil

	case "last":
		if slice, ok := val.([]any); ok && len(slice) > 0 {
			return slice[len(slice)-1], nil
		}
		return nil, nil

	case "length", "count":
		switch v := val.(type) {
		case string:
			return len(v), nil
		case []any:
			return len(v), nil
		case map[string]any:
			return len(v), nil
		}
		return 0, nil

	case "join":
		if slice, ok := val.([]any); ok {
			sep := filterArg
			if sep == "" {
				sep = ","
			}
			parts := make([]string, len(slice))
			for i, item := range slice {
				parts[i] = fmt.Sprintf("%v", item)
			}
			return strings.Join(parts, sep), nil
		}
		return val, nil

	default:
		return nil, fmt.Errorf("unknown filter: %s", filterName)
	}
}
