package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/hcprov/cmd/hcprov/handlers"
)

// Validate returns the validate command.
//
// It checks the settings and, given an instance reference, the credential
// the instance uses.
func Validate(global *handlers.GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [instances/name]",
		Short: "Check settings and the credential of an instance",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := ""
			if len(args) == 1 {
				ref = args[0]
			}
			return handlers.Validate(cmd.Context(), cmd.OutOrStdout(), *global, ref)
		},
	}
}
