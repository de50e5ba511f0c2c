package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imamik/hcprov/cmd/hcprov/handlers"
)

// Run returns the run command.
func Run(global *handlers.GlobalOptions) *cobra.Command {
	var (
		opts  handlers.RunOptions
		props []string
	)

	cmd := &cobra.Command{
		Use:   "run <create|update|delete|validate> <kind/name>",
		Short: "Run one provisioning request and wait for it",
		Long: `Run submits a single request for a descriptor and waits until the
workflow finishes.

Descriptors are read from the configured store. Pass --file to import
descriptors into the store first; the file maps references to documents:

  networks/web:
    name: web
    ipRange: 10.0.0.0/16
  instances/web-1:
    name: web-1
    ...

Example:
  hcprov run create instances/web-1 -f descriptors.yaml
  hcprov run delete load-balancers/api --mock`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			properties, err := parseProperties(props)
			if err != nil {
				return err
			}
			opts.GlobalOptions = *global
			opts.Operation = strings.ToUpper(args[0])
			opts.Ref = args[1]
			opts.Properties = properties
			return handlers.Run(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.DescriptorFile, "file", "f", "", "Import descriptors from this YAML file before running")
	cmd.Flags().StringVar(&opts.TaskRef, "task", "", "Task reference to report the outcome under (generated when unset)")
	cmd.Flags().BoolVar(&opts.Mock, "mock", false, "Record synthetic results without calling the provider")
	cmd.Flags().StringArrayVarP(&props, "property", "p", nil, "Custom request property as key=value (repeatable)")

	return cmd
}

func parseProperties(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid property %q, want key=value", p)
		}
		out[k] = v
	}
	return out, nil
}
