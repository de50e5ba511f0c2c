package provisioning

import (
	"fmt"
	"slices"
)

// Stage is a step of a workflow.
type Stage string

// Stages shared by every workflow.
const (
	StageMock   Stage = "MOCK"
	StageClient Stage = "CLIENT"
	StageDone   Stage = "DONE"
	StageError  Stage = "ERROR"
)

// Terminal reports whether s ends a workflow.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageError
}

// Graph is the ordered stage set of one workflow. Transitions only move
// forward; ERROR is reachable from every non-terminal stage. MOCK, when
// present, must come first and is the entry point of mock requests.
type Graph struct {
	name   string
	order  []Stage
	index  map[Stage]int
	mocked bool
}

// NewGraph builds a graph from stages in execution order. The last stage
// must be DONE.
func NewGraph(name string, stages ...Stage) (*Graph, error) {
	if len(stages) == 0 || stages[len(stages)-1] != StageDone {
		return nil, fmt.Errorf("graph %s must end with %s", name, StageDone)
	}
	g := &Graph{name: name, order: slices.Clone(stages), index: make(map[Stage]int, len(stages))}
	for i, s := range stages {
		if s == StageError {
			return nil, fmt.Errorf("graph %s lists %s explicitly", name, StageError)
		}
		if _, dup := g.index[s]; dup {
			return nil, fmt.Errorf("graph %s lists stage %s twice", name, s)
		}
		if s == StageMock && i != 0 {
			return nil, fmt.Errorf("graph %s must list %s first", name, StageMock)
		}
		g.index[s] = i
	}
	g.mocked = stages[0] == StageMock
	if g.mocked && len(stages) < 3 {
		return nil, fmt.Errorf("graph %s has no real entry stage", name)
	}
	return g, nil
}

// MustGraph is NewGraph that panics on error, for package-level graphs.
func MustGraph(name string, stages ...Stage) *Graph {
	g, err := NewGraph(name, stages...)
	if err != nil {
		panic(err)
	}
	return g
}

// Name returns the graph name.
func (g *Graph) Name() string {
	return g.name
}

// Stages returns the stages in order.
func (g *Graph) Stages() []Stage {
	return slices.Clone(g.order)
}

// Contains reports whether s belongs to the graph. ERROR always does.
func (g *Graph) Contains(s Stage) bool {
	if s == StageError {
		return true
	}
	_, ok := g.index[s]
	return ok
}

// Entry returns the first stage for a request.
func (g *Graph) Entry(mock bool) Stage {
	if mock && g.mocked {
		return StageMock
	}
	if g.mocked {
		return g.order[1]
	}
	return g.order[0]
}

// Allows reports whether from → to is a legal transition.
func (g *Graph) Allows(from, to Stage) bool {
	if from.Terminal() {
		return false
	}
	if to == StageError {
		return g.Contains(from)
	}
	fi, ok := g.index[from]
	if !ok {
		return false
	}
	ti, ok := g.index[to]
	if !ok {
		return false
	}
	if from == StageMock {
		return to == StageDone
	}
	return ti > fi
}

// ValidPath reports whether path is a walk of the graph from an entry stage
// to a terminal stage.
func (g *Graph) ValidPath(path []Stage, mock bool) bool {
	if len(path) == 0 || path[0] != g.Entry(mock) || !path[len(path)-1].Terminal() {
		return false
	}
	for i := 1; i < len(path); i++ {
		if !g.Allows(path[i-1], path[i]) {
			return false
		}
	}
	return true
}
