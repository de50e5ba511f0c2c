package hcloud

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/hcprov/internal/util/async"
)

// TokenLookup resolves a credential name to an API token.
type TokenLookup func(credential string) (string, bool)

// EnvTokens resolves credential "prod" from HCPROV_TOKEN_PROD and falls back to
// HCLOUD_TOKEN for the empty or "default" credential.
func EnvTokens(credential string) (string, bool) {
	if credential != "" && credential != "default" {
		name := "HCPROV_TOKEN_" + strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(credential))
		token := os.Getenv(name)
		return token, token != ""
	}
	token := os.Getenv("HCLOUD_TOKEN")
	return token, token != ""
}

// NewTokenFactory returns a Factory that builds RealClients from tokens.
func NewTokenFactory(lookup TokenLookup, opts ...ClientOption) Factory {
	return func(credential, region string) (Cloud, error) {
		token, ok := lookup(credential)
		if !ok {
			return nil, fmt.Errorf("no token configured for credential %q", credential)
		}
		return NewRealClient(token, append([]ClientOption{WithRegion(region)}, opts...)...), nil
	}
}

// ValidateCredentials checks that the credential behind client can read
// every location it can see. Locations are read concurrently and a shared
// countdown completes the check once every lookup has returned.
func ValidateCredentials(ctx context.Context, client LocationClient) ([]*hcloud.Location, error) {
	locations, err := client.ListLocations(ctx)
	if err != nil {
		return nil, fmt.Errorf("credential rejected: %w", err)
	}

	var (
		mu   sync.Mutex
		errs []error
		seen = make([]*hcloud.Location, 0, len(locations))
	)
	done := make(chan struct{})
	countdown := async.NewCountdown(len(locations), func() { close(done) })

	for _, loc := range locations {
		go func() {
			defer countdown.Done()
			_, err := client.GetLocation(ctx, loc.ID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("location %s: %w", loc.Name, err))
				return
			}
			seen = append(seen, loc)
		}()
	}

	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	mu.Lock()
	defer mu.Unlock()
	if len(errs) > 0 {
		return nil, fmt.Errorf("credential validation failed: %w", errors.Join(errs...))
	}
	return seen, nil
}
