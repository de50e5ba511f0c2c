// Package commands defines the CLI command structure and flag bindings.
//
// Command execution is delegated to handler functions in the handlers
// package.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/hcprov/cmd/hcprov/handlers"
)

// Root returns the root command for the hcprov CLI.
func Root() *cobra.Command {
	var global handlers.GlobalOptions

	cmd := &cobra.Command{
		Use:           "hcprov",
		Short:         "Provision Hetzner Cloud resources from descriptors",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&global.ConfigPath, "config", "c", "", "Path to a settings file (defaults plus HCPROV_* environment when unset)")
	cmd.PersistentFlags().IntVarP(&global.Verbosity, "verbosity", "v", 0, "Log verbosity")
	cmd.PersistentFlags().BoolVar(&global.JSONLogs, "json-logs", false, "Always log JSON, even on a terminal")

	cmd.AddCommand(Run(&global))
	cmd.AddCommand(Validate(&global))
	cmd.AddCommand(Version())

	return cmd
}
