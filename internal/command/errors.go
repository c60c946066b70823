package command

import "fmt"

// BuildError reports a descriptor that cannot be rendered safely. It points
// at a defect in the calling code, not at bad user input.
type BuildError struct {
	Command string
	Arg     string
	Reason  string
}

func (e *BuildError) Error() string {
	if e.Arg == "" {
		return fmt.Sprintf("build %s: %s", e.Command, e.Reason)
	}
	return fmt.Sprintf("build %s: argument %s: %s", e.Command, e.Arg, e.Reason)
}
