package cli

import (
	"strings"

	"devsetup/internal/config"
)

// configError is a problem detected before any installer runs.
type configError struct {
	problems []string
}

func (e *configError) Error() string {
	if len(e.problems) == 1 {
		return e.problems[0]
	}
	return "invalid configuration:\n  " + strings.Join(e.problems, "\n  ")
}

func newConfigError(problems ...string) *configError {
	return &configError{problems: problems}
}

func fromValidation(results []config.ValidationResult) *configError {
	var problems []string
	for _, r := range results {
		if r.Level == config.LevelError {
			problems = append(problems, r.Message)
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return &configError{problems: problems}
}
