package provisioning

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/imamik/hcprov/internal/descriptor"
	"github.com/imamik/hcprov/internal/task"
)

// Handler runs one stage and returns the next stage. A returned error sends
// the workflow to ERROR regardless of the returned stage.
type Handler[P any] func(ctx context.Context, st *State[P]) (Stage, error)

// Dispatcher advances a State through a Graph using a handler table.
type Dispatcher[P any] struct {
	graph    *Graph
	handlers map[Stage]Handler[P]
}

// NewDispatcher checks that handlers cover exactly the non-terminal stages
// of graph.
func NewDispatcher[P any](graph *Graph, handlers map[Stage]Handler[P]) (*Dispatcher[P], error) {
	var missing, extra []string
	for _, s := range graph.order {
		if s.Terminal() {
			continue
		}
		if handlers[s] == nil {
			missing = append(missing, string(s))
		}
	}
	for s := range handlers {
		if s.Terminal() || !graph.Contains(s) {
			extra = append(extra, string(s))
		}
	}
	sort.Strings(extra)
	if len(missing) > 0 {
		return nil, fmt.Errorf("graph %s: no handler for %s", graph.name, strings.Join(missing, ", "))
	}
	if len(extra) > 0 {
		return nil, fmt.Errorf("graph %s: handler for stage outside the graph: %s", graph.name, strings.Join(extra, ", "))
	}
	return &Dispatcher[P]{graph: graph, handlers: handlers}, nil
}

// MustDispatcher is NewDispatcher that panics on error.
func MustDispatcher[P any](graph *Graph, handlers map[Stage]Handler[P]) *Dispatcher[P] {
	d, err := NewDispatcher(graph, handlers)
	if err != nil {
		panic(err)
	}
	return d
}

// Graph returns the dispatcher's graph.
func (d *Dispatcher[P]) Graph() *Graph {
	return d.graph
}

// Run drives st from its entry stage to DONE or ERROR and sends exactly one
// notification through the runtime's notifier. It returns the terminal error.
func (d *Dispatcher[P]) Run(ctx context.Context, st *State[P]) error {
	rt := st.Runtime
	notifier := &task.Once{Next: rt.Notifier, Logger: st.Logger}

	st.Stage = d.graph.Entry(st.Request.IsMock)
	for {
		st.Path = append(st.Path, st.Stage)

		switch st.Stage {
		case StageDone:
			rt.Metrics.RecordWorkflow(string(st.Kind), string(st.Request.Operation), "success")
			if st.Cleanup.HasErrors() {
				st.Logger.Info("workflow finished with tolerated cleanup failures", "failures", len(st.Cleanup.Errors))
			}
			Emit(st.Logger, EventWorkflowFinished, "", nil, "elapsed", rt.now().Sub(st.Started).String())
			if err := notifier.Finish(ctx, st.Request.TaskRef); err != nil {
				st.Logger.Error(err, "failed to notify task", "task", st.Request.TaskRef)
			}
			return nil
		case StageError:
			err := st.Err()
			if err == nil {
				err = errors.New("workflow failed without an error")
			}
			st.invalidateClient(err)
			rt.Metrics.RecordWorkflow(string(st.Kind), string(st.Request.Operation), "failure")
			Emit(st.Logger, EventWorkflowFailed, "", err)
			if nerr := notifier.Fail(ctx, st.Request.TaskRef, err); nerr != nil {
				st.Logger.Error(nerr, "failed to notify task", "task", st.Request.TaskRef)
			}
			return err
		}

		handler, ok := d.handlers[st.Stage]
		if !ok {
			st.Fail(fmt.Errorf("%w %s in graph %s", ErrUnknownStage, st.Stage, d.graph.name))
			st.Stage = StageError
			continue
		}

		next, err := d.invoke(ctx, handler, st)
		if err != nil {
			st.Fail(fmt.Errorf("stage %s: %w", st.Stage, err))
		}
		if st.Err() != nil {
			st.Stage = StageError
			continue
		}
		if !d.graph.Allows(st.Stage, next) {
			st.Fail(fmt.Errorf("illegal transition %s -> %s in graph %s", st.Stage, next, d.graph.name))
			st.Stage = StageError
			continue
		}
		st.Stage = next
	}
}

// invoke runs one handler, converting a panic into an error.
func (d *Dispatcher[P]) invoke(ctx context.Context, handler Handler[P], st *State[P]) (next Stage, err error) {
	stage := st.Stage
	start := time.Now()
	Emit(st.Logger, EventStageStarted, "", nil, "stage", string(stage))

	defer func() {
		if r := recover(); r != nil {
			err = &panicError{stage: stage, value: r}
		}
		st.Runtime.Metrics.ObserveStage(string(st.Kind), stage, time.Since(start))
		if err != nil {
			Emit(st.Logger, EventStageFailed, "", err, "stage", string(stage))
			return
		}
		Emit(st.Logger, EventStageCompleted, "", nil, "stage", string(stage), "next", string(next))
	}()

	return handler(ctx, st)
}

// Workflow runs requests for one descriptor kind.
type Workflow interface {
	Kind() descriptor.Kind
	Supports(op Operation) bool
	Run(ctx context.Context, rt *Runtime, req Request) error
}

// Definition is a Workflow made of one dispatcher per operation, all sharing
// the payload type P.
type Definition[P any] struct {
	ResourceKind descriptor.Kind
	Dispatchers  map[Operation]*Dispatcher[P]
	// Observe, when set, is called with the final state of every run.
	Observe func(st *State[P])
}

// Kind implements Workflow.
func (d *Definition[P]) Kind() descriptor.Kind {
	return d.ResourceKind
}

// Supports implements Workflow.
func (d *Definition[P]) Supports(op Operation) bool {
	_, ok := d.Dispatchers[op]
	return ok
}

// Run implements Workflow.
func (d *Definition[P]) Run(ctx context.Context, rt *Runtime, req Request) error {
	dispatcher, ok := d.Dispatchers[req.Operation]
	if !ok {
		return ValidationError{Field: "operation", Message: fmt.Sprintf("%s does not support %s", d.ResourceKind, req.Operation)}
	}
	st := NewState[P](rt, d.ResourceKind, req)
	err := dispatcher.Run(ctx, st)
	if d.Observe != nil {
		d.Observe(st)
	}
	return err
}
