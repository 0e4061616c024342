package provision

import "strings"

// ConfigurationError reports problems found before any installation starts.
// It is the only error that aborts a run.
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	if len(e.Problems) == 1 {
		return "configuration error: " + e.Problems[0]
	}
	return "configuration errors: " + strings.Join(e.Problems, "; ")
}

func (e *ConfigurationError) add(problem string) {
	e.Problems = append(e.Problems, problem)
}

func (e *ConfigurationError) orNil() error {
	if len(e.Problems) == 0 {
		return nil
	}
	return e
}
