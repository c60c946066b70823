package validate

import "fmt"

// NonEmpty rejects an empty collection.
func NonEmpty[T any](values []T, name string) error {
	if len(values) == 0 {
		return &Error{Param: name, Constraint: "cannot be empty"}
	}
	return nil
}

// PositiveInts validates every element and reports all violations at once.
// On success the converted values are returned in input order.
func PositiveInts(values []any, name string) ([]int, error) {
	if err := NonEmpty(values, name); err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(values))
	var bad []*Error
	for i, v := range values {
		id, err := PositiveInt(v, fmt.Sprintf("%s[%d]", name, i))
		if err != nil {
			bad = append(bad, err.(*Error))
			continue
		}
		ids = append(ids, id)
	}

	if len(bad) > 0 {
		return nil, &Errors{Param: name, Items: bad}
	}
	return ids, nil
}

// Ints widens a typed slice so it can go through PositiveInts.
func Ints(values []int) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
