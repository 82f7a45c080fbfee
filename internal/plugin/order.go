package plugin

import (
	"fmt"
	"slices"
	"strings"
)

// CycleError lists the manifests that could not be ordered because they
// sit on, or depend on, a dependency cycle.
type CycleError struct {
	IDs []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%v: %s", ErrCyclicDependency, strings.Join(e.IDs, ", "))
}

func (e *CycleError) Unwrap() error {
	return ErrCyclicDependency
}

// SortManifests orders manifests so every plugin follows the plugins it
// depends on. Manifests without ordering constraints keep their input
// order. Dependencies outside the set are ignored; loading reports them.
//
// When a cycle exists the orderable manifests are still returned, together
// with a *CycleError naming the rest.
func SortManifests(manifests []*Manifest) ([]*Manifest, error) {
	byID := make(map[string]*Manifest, len(manifests))
	for _, m := range manifests {
		if m == nil {
			return nil, ErrNilManifest
		}
		if _, dup := byID[m.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, m.ID)
		}
		byID[m.ID] = m
	}

	indegree := make(map[string]int, len(manifests))
	dependents := make(map[string][]string)
	for _, m := range manifests {
		for _, dep := range m.Dependencies {
			if _, ok := byID[dep]; !ok {
				continue
			}
			indegree[m.ID]++
			dependents[dep] = append(dependents[dep], m.ID)
		}
	}

	sorted := make([]*Manifest, 0, len(manifests))
	done := make(map[string]bool, len(manifests))
	for len(sorted) < len(manifests) {
		progressed := false
		for _, m := range manifests {
			if done[m.ID] || indegree[m.ID] > 0 {
				continue
			}
			done[m.ID] = true
			sorted = append(sorted, m)
			for _, d := range dependents[m.ID] {
				indegree[d]--
			}
			progressed = true
			break
		}
		if !progressed {
			var stuck []string
			for _, m := range manifests {
				if !done[m.ID] {
					stuck = append(stuck, m.ID)
				}
			}
			slices.Sort(stuck)
			return sorted, &CycleError{IDs: stuck}
		}
	}
	return sorted, nil
}
