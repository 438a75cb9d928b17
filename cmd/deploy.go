package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/bgdnvk/fargo/internal/aws"
	"github.com/bgdnvk/fargo/internal/clock"
	"github.com/bgdnvk/fargo/internal/deploy"
	"github.com/bgdnvk/fargo/internal/output"
	"github.com/spf13/cobra"
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Roll a new container image onto a Fargate service",
	Long: `Clone the service's current task definition, register a copy that
points at the new image, and flip the service over with a forced
deployment. With waiting enabled (the default) the rollout is watched
until every task is running and healthy; any failure rolls the service
back to the task definition it was running before.

Examples:
  fargo deploy --cluster prod --service web --image 123456789012.dkr.ecr.us-east-1.amazonaws.com/web:v42
  fargo deploy --cluster prod --service web --image web:v42 --timeout 15m
  fargo deploy --cluster prod --service web --image web:v42 --no-wait
  fargo deploy --cluster prod --service web --image web:v42 --json > result.json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cluster, _ := cmd.Flags().GetString("cluster")
		service, _ := cmd.Flags().GetString("service")
		image, _ := cmd.Flags().GetString("image")
		timeout, _ := cmd.Flags().GetDuration("timeout")
		noWait, _ := cmd.Flags().GetBool("no-wait")
		jsonOut, _ := cmd.Flags().GetBool("json")

		printer, err := newPrinter()
		if err != nil {
			return err
		}

		req := deploy.Request{
			Cluster:       cluster,
			Service:       service,
			Image:         image,
			Timeout:       timeout,
			WaitForStable: !noWait,
		}
		if err := req.Validate(); err != nil {
			return output.UsageError("%v", err)
		}

		client, err := newClient(cmd.Context())
		if err != nil {
			return err
		}

		// In JSON mode stdout carries only the summary document; progress
		// moves to stderr so the output stays parseable.
		progress := printer
		if jsonOut {
			progress = output.NewPrinterWithWriters(os.Stderr, os.Stderr, false)
		}

		controller := deploy.NewController(client, clock.New(), progress)
		res, deployErr := controller.Deploy(cmd.Context(), req)

		if jsonOut {
			if err := printJSON(os.Stdout, res); err != nil {
				return err
			}
		} else {
			printDeploySummary(printer, res)
		}
		return deployError(req, res, deployErr)
	},
}

func init() {
	rootCmd.AddCommand(deployCmd)

	deployCmd.Flags().String("cluster", "", "ECS cluster name (required)")
	deployCmd.Flags().String("service", "", "ECS service name (required)")
	deployCmd.Flags().String("image", "", "container image URI to deploy (required)")
	deployCmd.Flags().Duration("timeout", 10*time.Minute, "how long to wait for the rollout to stabilize (minimum 1m)")
	deployCmd.Flags().Bool("no-wait", false, "update the service and exit without waiting for stability")
	deployCmd.Flags().Bool("json", false, "print the deployment summary as JSON on stdout")
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printDeploySummary(p *output.Printer, res deploy.Result) {
	p.Print("")
	p.Header("deployment summary")
	switch res.Outcome {
	case deploy.OutcomeDeployed:
		p.Success("deployed %s", res.Image)
	case deploy.OutcomeUnconfirmed:
		p.Warning("service updated; rollout not confirmed")
	case deploy.OutcomeRolledBack:
		p.Error("deployment failed; rolled back to %s", aws.FamilyRevision(res.PreviousTaskDef))
	case deploy.OutcomeRollbackFailed:
		p.Error("deployment failed and the rollback failed; manual intervention required")
	case deploy.OutcomeFailed:
		p.Error("deployment failed before the service changed")
	}
	if res.PreviousTaskDef != "" && res.NewTaskDef != "" {
		p.Print("  %s -> %s", aws.FamilyRevision(res.PreviousTaskDef), aws.FamilyRevision(res.NewTaskDef))
	}
	if res.DeploymentID != "" {
		p.Print("  deployment: %s", res.DeploymentID)
	}
	if res.Reason != "" {
		p.Print("  reason: %s", res.Reason)
	}
	p.Print("  elapsed: %.1fs", res.ElapsedSeconds)
}

// deployError maps a controller failure onto the CLI's exit-code
// contract. The raw error stays attached as the detail line.
func deployError(req deploy.Request, res deploy.Result, err error) error {
	if err == nil {
		return nil
	}
	kind, ok := deploy.KindOf(err)
	if !ok {
		return err
	}
	switch kind {
	case deploy.KindInvalidInput:
		return output.UsageError("%v", err)
	case deploy.KindCloud:
		suggestion := "verify the cluster and service names, the image URI, and your IAM permissions"
		switch {
		case aws.IsNotFound(err):
			suggestion = "verify the cluster and service names; list services with 'aws ecs list-services'"
		case aws.IsAccessDenied(err):
			suggestion = "the active identity lacks ECS permissions; check it with 'fargo whoami'"
		}
		return output.NewCLIError(output.ExitCloudError,
			"deployment aborted before any service change",
			err.Error(),
			suggestion)
	case deploy.KindDeployFailed:
		suggestion := "check the service events in the ECS console for the failing task reason"
		if res.RolledBackToTarget {
			suggestion = fmt.Sprintf("the service is back on %s; check the service events for why the new tasks failed",
				aws.FamilyRevision(res.PreviousTaskDef))
		}
		return output.NewCLIError(output.ExitDeployFailed,
			"deployment failed", err.Error(), suggestion)
	case deploy.KindHealthCheck:
		return output.NewCLIError(output.ExitHealthFailed,
			"tasks failed the post-deployment health check",
			err.Error(),
			fmt.Sprintf("the service is back on %s; inspect container output with 'fargo logs'",
				aws.FamilyRevision(res.PreviousTaskDef)))
	case deploy.KindRollbackFailed:
		return output.NewCLIError(output.ExitRollbackFailed,
			"rollback failed; the service needs manual intervention",
			err.Error(),
			fmt.Sprintf("run: aws ecs update-service --cluster %s --service %s --task-definition %s --force-new-deployment",
				req.Cluster, req.Service, res.PreviousTaskDef))
	}
	return err
}
