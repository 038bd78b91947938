package flows

import (
	"fmt"
	"sort"
)

// Set holds the compiled graphs of every known flow. It is immutable
// after construction and safe for concurrent reads.
type Set struct {
	graphs map[string]*Graph
}

// CompileAll compiles every flow in the definitions and cross-checks
// call/link targets against the resulting set.
func CompileAll(defs Definitions) (*Set, error) {
	set := &Set{graphs: make(map[string]*Graph, len(defs))}

	for _, name := range defs.Names() {
		graph, err := Compile(name, defs[name])
		if err != nil {
			return nil, err
		}
		set.graphs[name] = graph
	}

	// Call and Link reference other flows by name; those references can
	// only be checked once the whole set exists.
	for _, name := range set.Names() {
		graph := set.graphs[name]
		for _, id := range graph.order {
			node := graph.nodes[id]
			if node.Kind != StepCall && node.Kind != StepLink {
				continue
			}
			if _, ok := set.graphs[node.Target]; !ok {
				return nil, &CompilationError{Flow: name, Step: id,
					Reason: fmt.Sprintf("%s target flow %q is not defined", node.Kind, node.Target)}
			}
		}
	}

	return set, nil
}

// Get returns the compiled graph for a flow name.
func (s *Set) Get(name string) (*Graph, error) {
	graph, ok := s.graphs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return graph, nil
}

// Has reports whether the flow name is defined.
func (s *Set) Has(name string) bool {
	_, ok := s.graphs[name]
	return ok
}

// Names returns the compiled flow names, sorted.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.graphs))
	for name := range s.graphs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
