//go:build windows

package envstore

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sys/windows/registry"
)

const (
	machineEnvKey = `SYSTEM\CurrentControlSet\Control\Session Manager\Environment`
	userEnvKey    = `Environment`
)

// persistedEnv reads every machine and user variable, which is what a new
// Explorer-launched process would see.
func persistedEnv(context.Context) (map[string]string, error) {
	machine, err := readEnvironmentKey(registry.LOCAL_MACHINE, machineEnvKey)
	if err != nil {
		return nil, err
	}
	user, err := readEnvironmentKey(registry.CURRENT_USER, userEnvKey)
	if err != nil {
		return nil, err
	}
	return mergeScopes(machine, user, Current()), nil
}

func readEnvironmentKey(root registry.Key, path string) (map[string]storedVar, error) {
	k, err := registry.OpenKey(root, path, registry.QUERY_VALUE)
	if err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open registry key %s: %w", path, err)
	}
	defer k.Close()

	names, err := k.ReadValueNames(0)
	if err != nil {
		return nil, fmt.Errorf("list values of %s: %w", path, err)
	}
	vars := make(map[string]storedVar, len(names))
	for _, name := range names {
		value, valType, err := k.GetStringValue(name)
		if err != nil {
			// Not a string value.
			continue
		}
		vars[name] = storedVar{Value: value, Expand: valType == registry.EXPAND_SZ}
	}
	return vars, nil
}
