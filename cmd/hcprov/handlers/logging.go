package handlers

import (
	"fmt"
	"io"
	"log"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/go-logr/stdr"
)

// newLogger logs plain lines to a terminal and JSON everywhere else.
func newLogger(w io.Writer, opts GlobalOptions) logr.Logger {
	if isTerminal(w) && !opts.JSONLogs {
		stdr.SetVerbosity(opts.Verbosity)
		return stdr.New(log.New(w, "", log.LstdFlags)).WithName("hcprov")
	}
	return funcr.NewJSON(func(obj string) {
		fmt.Fprintln(w, obj)
	}, funcr.Options{
		LogTimestamp: true,
		Verbosity:    opts.Verbosity,
	}).WithName("hcprov")
}
