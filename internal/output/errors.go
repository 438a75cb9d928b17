package output

import "fmt"

// Exit codes are part of the CLI contract: automation callers branch on
// them, so each terminal state keeps a distinct, stable value.
const (
	// ExitSuccess means the command completed without failures.
	ExitSuccess = 0
	// ExitGeneral covers unexpected internal failures.
	ExitGeneral = 1
	// ExitUsageError means invalid flags or arguments; nothing was called.
	ExitUsageError = 2
	// ExitCloudError means an AWS call failed before any mutation,
	// including a missing cluster, service or log group.
	ExitCloudError = 3
	// ExitCredentialError means no usable AWS identity was found.
	ExitCredentialError = 4
	// ExitDeployFailed means the deployment failed after the service was
	// updated and was rolled back to the previous task definition.
	ExitDeployFailed = 5
	// ExitHealthFailed means the service stabilized but tasks failed the
	// post-deployment health check; the service was rolled back.
	ExitHealthFailed = 6
	// ExitRollbackFailed means the rollback itself failed and the service
	// needs manual intervention.
	ExitRollbackFailed = 7
	// ExitCriticalIssues means the monitor's final iteration found
	// critical issues.
	ExitCriticalIssues = 8
)

// CLIError is an error with operator-facing context and a process exit
// code. Every terminal failure surfaces as one of these.
type CLIError struct {
	Summary    string
	Detail     string
	Suggestion string
	ExitCode   int
}

func (e *CLIError) Error() string {
	return e.Summary
}

func (e *CLIError) Unwrap() error {
	return nil
}

// NewCLIError creates a CLIError with the given exit code.
func NewCLIError(exitCode int, summary, detail, suggestion string) *CLIError {
	return &CLIError{
		Summary:    summary,
		Detail:     detail,
		Suggestion: suggestion,
		ExitCode:   exitCode,
	}
}

// UsageError builds an invalid-input error.
func UsageError(format string, args ...interface{}) *CLIError {
	return &CLIError{
		Summary:  fmt.Sprintf(format, args...),
		ExitCode: ExitUsageError,
	}
}

// FormatError renders a CLIError with its detail and suggestion lines.
func (p *Printer) FormatError(e *CLIError) {
	p.Error("%s", e.Summary)
	if e.Detail != "" {
		p.Print("  %s", e.Detail)
	}
	if e.Suggestion != "" {
		p.Print("")
		p.Info("Suggestion: %s", e.Suggestion)
	}
}
