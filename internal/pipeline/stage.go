// Package pipeline runs the rebuild as an explicit graph of stages. Each
// stage declares the tables and files it needs and produces; Order derives
// the execution order from those declarations.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCycle is returned when stage dependencies form a cycle.
	ErrCycle = errors.New("stage dependency cycle")
	// ErrUnknownDependency is returned when a stage needs something no stage produces.
	ErrUnknownDependency = errors.New("unknown stage dependency")
)

// Stage is one step of the rebuild. Run returns the number of rows the
// stage wrote, for logging and metrics.
type Stage struct {
	Name     string
	Needs    []string
	Produces []string
	Run      func(ctx context.Context, r *Run) (int64, error)
}

// Order returns the stages sorted so that every stage runs after the
// producers of everything it needs. Among ready stages the input order is
// kept.
func Order(stages []Stage) ([]Stage, error) {
	producer := make(map[string]int)
	for i, s := range stages {
		for _, p := range s.Produces {
			if j, dup := producer[p]; dup {
				return nil, fmt.Errorf("%q produced by both %s and %s", p, stages[j].Name, s.Name)
			}
			producer[p] = i
		}
	}

	for _, s := range stages {
		for _, n := range s.Needs {
			if _, ok := producer[n]; !ok {
				return nil, fmt.Errorf("%w: stage %s needs %q", ErrUnknownDependency, s.Name, n)
			}
		}
	}

	done := make([]bool, len(stages))
	ordered := make([]Stage, 0, len(stages))
	for len(ordered) < len(stages) {
		progressed := false
		for i, s := range stages {
			if done[i] || !ready(s, producer, done) {
				continue
			}
			done[i] = true
			ordered = append(ordered, s)
			progressed = true
			break
		}
		if !progressed {
			var blocked []string
			for i, s := range stages {
				if !done[i] {
					blocked = append(blocked, s.Name)
				}
			}
			return nil, fmt.Errorf("%w: %s", ErrCycle, strings.Join(blocked, ", "))
		}
	}
	return ordered, nil
}

func ready(s Stage, producer map[string]int, done []bool) bool {
	for _, n := range s.Needs {
		if !done[producer[n]] {
			return false
		}
	}
	return true
}

// Find returns the stage with the given name.
func Find(stages []Stage, name string) (Stage, bool) {
	for _, s := range stages {
		if s.Name == name {
			return s, true
		}
	}
	return Stage{}, false
}
