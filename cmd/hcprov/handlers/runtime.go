// Package handlers implements the business logic for CLI commands.
//
// Every collaborator that reaches outside the process is created through a
// package-level factory variable so tests can replace it.
package handlers

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/go-logr/logr"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/imamik/hcprov/internal/config"
	hcloud_internal "github.com/imamik/hcprov/internal/platform/hcloud"
	s3_internal "github.com/imamik/hcprov/internal/platform/s3"
	"github.com/imamik/hcprov/internal/provisioning"
	"github.com/imamik/hcprov/internal/provisioning/poll"
	"github.com/imamik/hcprov/internal/store"
	"github.com/imamik/hcprov/internal/task"
)

// GlobalOptions are the flags shared by every command.
type GlobalOptions struct {
	ConfigPath string
	Verbosity  int
	JSONLogs   bool
}

// Factory function variables, replaced in tests.
var (
	loadSettings = func(path string) (*config.Settings, error) {
		base := config.LoadSettings()
		if path == "" {
			if err := base.Validate(); err != nil {
				return nil, fmt.Errorf("configuration validation failed: %w", err)
			}
			return base, nil
		}
		return config.LoadFile(path, base)
	}

	openStore = func(ctx context.Context, s config.StoreSettings) (store.Store, error) {
		if s.Kind != config.StoreS3 {
			return store.OpenFile(s.Path)
		}
		client, err := s3_internal.NewClient(ctx, s.Bucket, s3_internal.Options{
			Endpoint:  s.Endpoint,
			Region:    s.Region,
			AccessKey: s.AccessKey,
			SecretKey: s.SecretKey,
			PathStyle: s.PathStyle,
		})
		if err != nil {
			return nil, err
		}
		if err := client.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return store.NewS3(client, s.Prefix), nil
	}

	newClientSource = func(size int) (provisioning.ClientSource, error) {
		return hcloud_internal.NewClientCache(size, hcloud_internal.NewTokenFactory(hcloud_internal.EnvTokens))
	}

	logOutput io.Writer = os.Stderr
)

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// buildRuntime wires settings, store, clients and metrics into a Runtime.
// The returned registry holds the runtime's metrics.
func buildRuntime(ctx context.Context, settings *config.Settings, log logr.Logger, notifier task.Notifier) (*provisioning.Runtime, *prometheus.Registry, error) {
	st, err := openStore(ctx, settings.Store)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s store: %w", settings.Store.Kind, err)
	}
	clients, err := newClientSource(settings.ClientCacheSize)
	if err != nil {
		return nil, nil, err
	}
	reg := prometheus.NewRegistry()
	metrics := provisioning.NewMetrics(reg)

	rt := &provisioning.Runtime{
		Store:    st,
		Clients:  clients,
		Notifier: notifier,
		Poller: &poll.Poller{
			Interval:    settings.PollInterval,
			IsTransient: hcloud_internal.IsNotYetVisible,
			Recorder:    metrics,
		},
		Settings: settings,
		Metrics:  metrics,
		Logger:   log,
		Clock:    poll.RealClock,
	}
	if err := rt.Validate(); err != nil {
		return nil, nil, err
	}
	return rt, reg, nil
}
