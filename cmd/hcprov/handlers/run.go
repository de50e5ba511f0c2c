package handlers

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/segmentio/ksuid"
	"gopkg.in/yaml.v3"

	"github.com/imamik/hcprov/internal/descriptor"
	"github.com/imamik/hcprov/internal/orchestration"
	"github.com/imamik/hcprov/internal/provisioning"
	"github.com/imamik/hcprov/internal/provisioning/instance"
	"github.com/imamik/hcprov/internal/provisioning/loadbalancer"
	"github.com/imamik/hcprov/internal/store"
	"github.com/imamik/hcprov/internal/task"
)

// RunOptions are the inputs of the run command.
type RunOptions struct {
	GlobalOptions
	Operation      string
	Ref            string
	TaskRef        string
	Mock           bool
	Properties     map[string]string
	DescriptorFile string
}

// Run handles the run command.
//
// It submits one request, waits for the workflow, and prints the outcome to
// out. A failed task is returned as an error.
func Run(ctx context.Context, out io.Writer, opts RunOptions) error {
	settings, err := loadSettings(opts.ConfigPath)
	if err != nil {
		return err
	}
	log := newLogger(logOutput, opts.GlobalOptions)

	recorder := task.NewRecorder()
	notifier := task.Multi{task.LogNotifier{Logger: log.WithName("task")}, recorder}
	rt, reg, err := buildRuntime(ctx, settings, log, notifier)
	if err != nil {
		return err
	}

	if opts.DescriptorFile != "" {
		n, err := importDescriptors(ctx, rt.Store, opts.DescriptorFile)
		if err != nil {
			return err
		}
		log.Info("imported descriptors", "count", n, "file", opts.DescriptorFile)
	}

	req := provisioning.Request{
		Operation:        provisioning.Operation(opts.Operation),
		ResourceRef:      descriptor.Reference(opts.Ref),
		TaskRef:          opts.TaskRef,
		IsMock:           opts.Mock,
		CustomProperties: opts.Properties,
	}
	if req.TaskRef == "" {
		req.TaskRef = "tasks/" + ksuid.New().String()
	}

	svc := orchestration.NewService(rt, instance.Workflow(), loadbalancer.Workflow())
	submitErr := svc.Submit(ctx, req)
	svc.Wait()
	logMetrics(log, reg)

	outcomes := recorder.Outcomes()
	if len(outcomes) == 0 {
		if submitErr != nil {
			return submitErr
		}
		return fmt.Errorf("task %s ended without an outcome", req.TaskRef)
	}
	outcome := outcomes[0]
	fmt.Fprint(out, renderOutcome(req, outcome, isTerminal(out)))
	if !outcome.Succeeded() {
		return fmt.Errorf("task %s failed: %w", req.TaskRef, outcome.Err)
	}
	return nil
}

// importDescriptors writes every document of the YAML file at path into st.
// The file maps references to documents.
func importDescriptors(ctx context.Context, st store.Store, path string) (int, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied path
	if err != nil {
		return 0, fmt.Errorf("failed to read descriptors: %w", err)
	}
	var docs map[string]map[string]any
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return 0, fmt.Errorf("failed to parse descriptors: %w", err)
	}

	refs := make([]string, 0, len(docs))
	for k := range docs {
		ref := descriptor.Reference(k)
		if err := ref.Validate(); err != nil {
			return 0, fmt.Errorf("descriptor %q: %w", k, err)
		}
		refs = append(refs, k)
	}
	sort.Strings(refs)

	for _, k := range refs {
		doc := store.Document(docs[k])
		if doc == nil {
			doc = store.Document{}
		}
		doc["ref"] = k
		if err := st.Put(ctx, descriptor.Reference(k), doc); err != nil {
			return 0, fmt.Errorf("failed to store %s: %w", k, err)
		}
	}
	return len(refs), nil
}
