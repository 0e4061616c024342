//go:build !windows

package envstore

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var etcEnvironment = "/etc/environment"

// persistedEnv reads the pam_env file that seeds every login session.
func persistedEnv(context.Context) (map[string]string, error) {
	f, err := os.Open(etcEnvironment)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", etcEnvironment, err)
	}
	defer f.Close()

	vars, err := parseEnvironmentFile(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", etcEnvironment, err)
	}
	return vars, nil
}

// parseEnvironmentFile reads pam_env style KEY=VALUE lines.
func parseEnvironmentFile(r io.Reader) (map[string]string, error) {
	vars := map[string]string{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if len(value) >= 2 && (value[0] == '"' || value[0] == '\'') && value[len(value)-1] == value[0] {
			value = value[1 : len(value)-1]
		}
		vars[strings.TrimSpace(key)] = value
	}
	return vars, scanner.Err()
}
