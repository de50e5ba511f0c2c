package orchestration

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/go-logr/logr"
	"golang.org/x/sync/semaphore"

	"github.com/imamik/hcprov/internal/descriptor"
	"github.com/imamik/hcprov/internal/provisioning"
)

// Service runs workflows on a bounded pool.
type Service struct {
	rt  *provisioning.Runtime
	log logr.Logger
	sem *semaphore.Weighted

	mu        sync.RWMutex
	workflows map[descriptor.Kind]provisioning.Workflow

	wg sync.WaitGroup
}

// NewService returns a Service that runs at most rt.Settings.MaxWorkflows
// workflows at a time.
func NewService(rt *provisioning.Runtime, workflows ...provisioning.Workflow) *Service {
	limit := int64(rt.Settings.MaxWorkflows)
	if limit <= 0 {
		limit = 1
	}
	s := &Service{
		rt:        rt,
		log:       rt.Logger.WithName("orchestration"),
		sem:       semaphore.NewWeighted(limit),
		workflows: make(map[descriptor.Kind]provisioning.Workflow, len(workflows)),
	}
	for _, wf := range workflows {
		s.workflows[wf.Kind()] = wf
	}
	return s
}

// Register adds wf. A kind can only be registered once.
func (s *Service) Register(wf provisioning.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.workflows[wf.Kind()]; dup {
		return fmt.Errorf("workflow for %s is already registered", wf.Kind())
	}
	s.workflows[wf.Kind()] = wf
	return nil
}

// Kinds lists the registered kinds in order.
func (s *Service) Kinds() []descriptor.Kind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	kinds := make([]descriptor.Kind, 0, len(s.workflows))
	for k := range s.workflows {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Submit validates req and starts its workflow. It blocks while the pool is
// full. An error means the workflow never started; the task has then
// already been failed through the notifier.
func (s *Service) Submit(ctx context.Context, req provisioning.Request) error {
	wf, err := s.route(req)
	if err == nil {
		err = s.sem.Acquire(ctx, 1)
	}
	if err != nil {
		s.reject(ctx, req, err)
		return err
	}

	log := s.log.WithValues("task", req.TaskRef, "ref", req.ResourceRef.String(), "operation", string(req.Operation))
	log.V(1).Info("workflow accepted", "mock", req.IsMock)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.sem.Release(1)
		if err := wf.Run(ctx, s.rt, req); err != nil {
			log.V(1).Info("workflow failed", "error", err.Error())
			return
		}
		log.V(1).Info("workflow finished")
	}()
	return nil
}

// Wait blocks until every submitted workflow has returned.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) route(req provisioning.Request) (provisioning.Workflow, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	kind := req.ResourceRef.Kind()
	s.mu.RLock()
	wf, ok := s.workflows[kind]
	s.mu.RUnlock()
	if !ok {
		return nil, provisioning.ValidationError{Field: "resourceReference", Message: fmt.Sprintf("no workflow handles %s", kind)}
	}
	if !wf.Supports(req.Operation) {
		return nil, provisioning.ValidationError{Field: "operation", Message: fmt.Sprintf("%s does not support %s", kind, req.Operation)}
	}
	return wf, nil
}

func (s *Service) reject(ctx context.Context, req provisioning.Request, cause error) {
	s.log.Info("request rejected", "task", req.TaskRef, "ref", req.ResourceRef.String(), "reason", cause.Error())
	if req.TaskRef == "" {
		return
	}
	if err := s.rt.Notifier.Fail(context.WithoutCancel(ctx), req.TaskRef, cause); err != nil {
		s.log.Error(err, "failed to report rejected request", "task", req.TaskRef)
	}
}
