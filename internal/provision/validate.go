package provision

import "fmt"

// Validate checks the tool list before anything runs. Every DependsOn entry
// must name a spec that appears earlier in the list, which rules out cycles.
func Validate(specs []Spec) error {
	cfgErr := &ConfigurationError{}
	seen := make(map[string]bool, len(specs))
	declared := make(map[string]bool, len(specs))
	for _, spec := range specs {
		if spec.ID != "" {
			declared[spec.ID] = true
		}
	}

	for i, spec := range specs {
		if spec.ID == "" {
			cfgErr.add(fmt.Sprintf("tool #%d has an empty id", i+1))
			continue
		}
		if seen[spec.ID] {
			cfgErr.add(fmt.Sprintf("duplicate tool id %q", spec.ID))
		}
		if spec.Check == nil {
			cfgErr.add(fmt.Sprintf("tool %q has no presence check", spec.ID))
		}
		if spec.Install == nil {
			cfgErr.add(fmt.Sprintf("tool %q has no install action", spec.ID))
		}
		for _, dep := range spec.DependsOn {
			switch {
			case dep == spec.ID:
				cfgErr.add(fmt.Sprintf("tool %q depends on itself", spec.ID))
			case seen[dep]:
			case declared[dep]:
				cfgErr.add(fmt.Sprintf("tool %q depends on %q which is declared later (dependency cycle or wrong order)", spec.ID, dep))
			default:
				cfgErr.add(fmt.Sprintf("tool %q depends on unknown tool %q", spec.ID, dep))
			}
		}
		seen[spec.ID] = true
	}
	return cfgErr.orNil()
}
