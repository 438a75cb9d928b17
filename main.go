package main

import (
	"errors"
	"os"

	"github.com/bgdnvk/fargo/cmd"
	"github.com/bgdnvk/fargo/internal/logging"
	"github.com/bgdnvk/fargo/internal/output"
)

func main() {
	err := cmd.Execute()
	logging.Sync()
	if err == nil {
		return
	}

	// All error output goes to stderr so JSON on stdout stays parseable.
	printer := output.NewPrinterWithWriters(os.Stderr, os.Stderr, output.ResolveColors(output.ColorAuto))
	os.Exit(reportError(printer, err))
}

// reportError prints err and returns the process exit code for it.
// Structured errors carry their own code; anything else is a general
// failure.
func reportError(printer *output.Printer, err error) int {
	var cliErr *output.CLIError
	if errors.As(err, &cliErr) {
		printer.FormatError(cliErr)
		return cliErr.ExitCode
	}
	printer.Error("%v", err)
	return output.ExitGeneral
}
