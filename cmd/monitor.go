package cmd

import (
	"os"
	"strings"
	"time"

	"github.com/bgdnvk/fargo/internal/clock"
	"github.com/bgdnvk/fargo/internal/monitor"
	"github.com/bgdnvk/fargo/internal/output"
	"github.com/spf13/cobra"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch the health of a Fargate service",
	Long: `Check the service, its running tasks and optionally its load balancer
targets on an interval. Each iteration is judged on its own; the exit
code reflects only the final iteration, so a service that recovered
while you watched exits clean. Stop an unbounded run with Ctrl-C.

Examples:
  fargo monitor --cluster prod --service web
  fargo monitor --cluster prod --service web --target-group arn:aws:elasticloadbalancing:...:targetgroup/web/abc
  fargo monitor --cluster prod --service web --once
  fargo monitor --cluster prod --service web --iterations 10 --interval 30s
  fargo monitor --cluster prod --service web --once --output json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cluster, _ := cmd.Flags().GetString("cluster")
		service, _ := cmd.Flags().GetString("service")
		targetGroup, _ := cmd.Flags().GetString("target-group")
		interval, _ := cmd.Flags().GetDuration("interval")
		iterations, _ := cmd.Flags().GetInt("iterations")
		once, _ := cmd.Flags().GetBool("once")
		format, _ := cmd.Flags().GetString("output")
		noMetrics, _ := cmd.Flags().GetBool("no-metrics")

		printer, err := newPrinter()
		if err != nil {
			return err
		}
		if once {
			iterations = 1
		}

		cfg := monitor.Config{
			Cluster:        cluster,
			Service:        service,
			TargetGroupARN: targetGroup,
			Interval:       interval,
			MaxIterations:  iterations,
			WithMetrics:    !noMetrics,
		}
		if err := cfg.Validate(); err != nil {
			return output.UsageError("%v", err)
		}

		var renderer monitor.Renderer
		switch format {
		case "dashboard":
			// The live view repaints the screen between iterations; a
			// single-shot check just prints once.
			renderer = monitor.NewDashboard(printer, iterations != 1)
		case "json":
			renderer = monitor.NewJSONRenderer(os.Stdout)
		case "yaml":
			renderer = monitor.NewYAMLRenderer(os.Stdout)
		default:
			return output.UsageError("invalid output format %q: must be dashboard, json, or yaml", format)
		}

		client, err := newClient(cmd.Context())
		if err != nil {
			return err
		}

		m := monitor.NewMonitor(client, clock.New(), renderer)
		verdict, err := m.Run(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		if verdict.HasCriticalIssues {
			return output.NewCLIError(output.ExitCriticalIssues,
				"critical issues detected on the final check",
				"failing checks: "+criticalChecks(verdict),
				"inspect recent task output with 'fargo logs'")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd)

	monitorCmd.Flags().String("cluster", "", "ECS cluster name (required)")
	monitorCmd.Flags().String("service", "", "ECS service name (required)")
	monitorCmd.Flags().String("target-group", "", "ALB target group ARN to include in the check")
	monitorCmd.Flags().Duration("interval", 15*time.Second, "time between iterations (minimum 5s)")
	monitorCmd.Flags().Int("iterations", 0, "stop after this many iterations (0 = run until interrupted)")
	monitorCmd.Flags().Bool("once", false, "run a single iteration and exit")
	monitorCmd.Flags().String("output", "dashboard", "output format: dashboard, json, or yaml")
	monitorCmd.Flags().Bool("no-metrics", false, "skip the CloudWatch utilization lookup")
}

// criticalChecks names the checks that failed in a verdict, for the
// exit error's detail line.
func criticalChecks(v monitor.Verdict) string {
	var failing []string
	if v.ServiceCheck.Critical {
		failing = append(failing, "service")
	}
	if v.TaskCheck.Critical {
		failing = append(failing, "tasks")
	}
	if v.TargetCheck.Critical {
		failing = append(failing, "load balancer targets")
	}
	if len(failing) == 0 {
		return "none"
	}
	return strings.Join(failing, ", ")
}
