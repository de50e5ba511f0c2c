// Package main is the entry point for the hcprov CLI.
//
// hcprov provisions Hetzner Cloud servers and load balancers from
// descriptors kept in a file or S3 store. Each invocation submits one
// request and waits for its outcome.
//
// Commands: run, validate, version.
//
// For detailed usage information, run:
//
//	hcprov --help
package main

import (
	"fmt"
	"os"

	"github.com/imamik/hcprov/cmd/hcprov/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
