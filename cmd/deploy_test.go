package cmd

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/bgdnvk/fargo/internal/deploy"
	"github.com/bgdnvk/fargo/internal/output"
)

func TestDeployErrorExitCodes(t *testing.T) {
	req := deploy.Request{Cluster: "prod", Service: "web"}

	cases := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"invalid input", &deploy.Error{Kind: deploy.KindInvalidInput, Op: "cluster name is required"}, output.ExitUsageError},
		{"cloud failure", &deploy.Error{Kind: deploy.KindCloud, Op: "resolve service", Err: errors.New("ClusterNotFoundException")}, output.ExitCloudError},
		{"deploy failed", &deploy.Error{Kind: deploy.KindDeployFailed, Op: "wait for stability", Err: errors.New("stability timeout")}, output.ExitDeployFailed},
		{"health check failed", &deploy.Error{Kind: deploy.KindHealthCheck, Op: "task health"}, output.ExitHealthFailed},
		{"rollback failed", &deploy.Error{Kind: deploy.KindRollbackFailed, Op: "rollback"}, output.ExitRollbackFailed},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := deployError(req, deploy.Result{}, c.err)
			var cliErr *output.CLIError
			if !errors.As(got, &cliErr) {
				t.Fatalf("deployError() = %T, want *output.CLIError", got)
			}
			if cliErr.ExitCode != c.wantCode {
				t.Errorf("ExitCode = %d, want %d", cliErr.ExitCode, c.wantCode)
			}
		})
	}
}

func TestDeployErrorNilPassesThrough(t *testing.T) {
	if got := deployError(deploy.Request{}, deploy.Result{}, nil); got != nil {
		t.Errorf("deployError(nil) = %v, want nil", got)
	}
}

func TestDeployErrorKeepsForeignErrors(t *testing.T) {
	plain := errors.New("encoder broke")
	if got := deployError(deploy.Request{}, deploy.Result{}, plain); !errors.Is(got, plain) {
		t.Errorf("deployError() = %v, want the original error", got)
	}
}

func TestDeployErrorRollbackSuggestsManualCommand(t *testing.T) {
	req := deploy.Request{Cluster: "prod", Service: "web"}
	res := deploy.Result{PreviousTaskDef: "arn:aws:ecs:us-east-1:123456789012:task-definition/web:7"}
	err := &deploy.Error{Kind: deploy.KindRollbackFailed, Op: "rollback", Err: errors.New("throttled")}

	got := deployError(req, res, err)
	var cliErr *output.CLIError
	if !errors.As(got, &cliErr) {
		t.Fatalf("deployError() = %T, want *output.CLIError", got)
	}
	for _, want := range []string{"aws ecs update-service", "--cluster prod", "--service web", "task-definition/web:7"} {
		if !strings.Contains(cliErr.Suggestion, want) {
			t.Errorf("Suggestion missing %q: %s", want, cliErr.Suggestion)
		}
	}
}

func TestPrintDeploySummary(t *testing.T) {
	var buf bytes.Buffer
	p := output.NewPrinterWithWriters(&buf, &buf, false)

	printDeploySummary(p, deploy.Result{
		Outcome:         deploy.OutcomeDeployed,
		Cluster:         "prod",
		Service:         "web",
		Image:           "web:v42",
		PreviousTaskDef: "arn:aws:ecs:us-east-1:123456789012:task-definition/web:7",
		NewTaskDef:      "arn:aws:ecs:us-east-1:123456789012:task-definition/web:8",
		DeploymentID:    "ecs-svc/9021733650544987716",
		ElapsedSeconds:  42.5,
	})

	got := buf.String()
	for _, want := range []string{"deployed web:v42", "web:7 -> web:8", "ecs-svc/9021733650544987716", "42.5s"} {
		if !strings.Contains(got, want) {
			t.Errorf("summary missing %q:\n%s", want, got)
		}
	}
}

func TestPrintDeploySummaryRolledBack(t *testing.T) {
	var buf bytes.Buffer
	p := output.NewPrinterWithWriters(&buf, &buf, false)

	printDeploySummary(p, deploy.Result{
		Outcome:            deploy.OutcomeRolledBack,
		PreviousTaskDef:    "arn:aws:ecs:us-east-1:123456789012:task-definition/web:7",
		NewTaskDef:         "arn:aws:ecs:us-east-1:123456789012:task-definition/web:8",
		Reason:             "service did not stabilize within 10m0s",
		RolledBackToTarget: true,
	})

	got := buf.String()
	for _, want := range []string{"rolled back to web:7", "service did not stabilize"} {
		if !strings.Contains(got, want) {
			t.Errorf("summary missing %q:\n%s", want, got)
		}
	}
}
