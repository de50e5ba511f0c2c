package handlers

import (
	"context"
	"fmt"
	"io"

	"github.com/imamik/hcprov/internal/provisioning"
)

// Validate handles the validate command. Settings are checked first; when
// ref is set, the credential of that instance is checked too.
func Validate(ctx context.Context, out io.Writer, global GlobalOptions, ref string) error {
	styled := isTerminal(out)
	settings, err := loadSettings(global.ConfigPath)
	if err != nil {
		fmt.Fprint(out, renderCheck(false, "settings: "+err.Error(), styled))
		return err
	}
	fmt.Fprint(out, renderCheck(true, fmt.Sprintf("settings valid (%s store, %d workflows, timeout %s)",
		settings.Store.Kind, settings.MaxWorkflows, settings.WorkflowTimeout), styled))

	if ref == "" {
		return nil
	}
	return Run(ctx, out, RunOptions{
		GlobalOptions: global,
		Operation:     string(provisioning.OperationValidate),
		Ref:           ref,
	})
}
