package tools

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"

	"devsetup/internal/runner"
)

var versionPattern = regexp.MustCompile(`v?[0-9]+(?:\.[0-9]+){0,2}`)

// ReadVersion runs path with args (default --version) and extracts the first
// version-looking token from the first line of output.
func ReadVersion(ctx context.Context, r runner.Runner, path string, args []string, opts runner.RunOptions) (string, error) {
	if len(args) == 0 {
		args = []string{"--version"}
	}
	result, err := r.Run(ctx, path, args, opts)
	if err != nil {
		return "", fmt.Errorf("%s version: %w", path, err)
	}
	output := strings.TrimSpace(string(result.Stdout))
	if output == "" {
		output = strings.TrimSpace(string(result.Stderr))
	}
	version := ExtractVersion(output)
	if version == "" {
		return "", fmt.Errorf("%s version: no version in %q", path, firstLine(output))
	}
	return version, nil
}

// ExtractVersion returns the first version token in the first line of text.
func ExtractVersion(text string) string {
	return versionPattern.FindString(firstLine(strings.TrimSpace(text)))
}

// MeetsMinimum reports whether version >= minimum.
func MeetsMinimum(version, minimum string) (bool, error) {
	if strings.TrimSpace(minimum) == "" {
		return true, nil
	}
	v, err := semver.NewVersion(strings.TrimSpace(version))
	if err != nil {
		return false, fmt.Errorf("parse version %q: %w", version, err)
	}
	m, err := semver.NewVersion(strings.TrimSpace(minimum))
	if err != nil {
		return false, fmt.Errorf("parse minimum version %q: %w", minimum, err)
	}
	return v.Compare(m) >= 0, nil
}

func firstLine(text string) string {
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		return strings.TrimSpace(text[:idx])
	}
	return text
}
