package cmd

import (
	"time"

	"github.com/bgdnvk/fargo/internal/aws"
	"github.com/bgdnvk/fargo/internal/clock"
	"github.com/bgdnvk/fargo/internal/logs"
	"github.com/bgdnvk/fargo/internal/output"
	"github.com/spf13/cobra"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Fetch or tail CloudWatch logs for a service",
	Long: `Print recent events from a CloudWatch log group, or keep tailing it
with --follow. Filter patterns use the CloudWatch filter syntax.

Examples:
  fargo logs --group /ecs/web
  fargo logs --group /ecs/web --since 1h --filter ERROR
  fargo logs --group /ecs/web --follow`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		group, _ := cmd.Flags().GetString("group")
		since, _ := cmd.Flags().GetDuration("since")
		filter, _ := cmd.Flags().GetString("filter")
		limit, _ := cmd.Flags().GetInt32("limit")
		follow, _ := cmd.Flags().GetBool("follow")
		interval, _ := cmd.Flags().GetDuration("interval")

		printer, err := newPrinter()
		if err != nil {
			return err
		}

		opts := logs.Options{
			Group:    group,
			Since:    since,
			Pattern:  filter,
			Limit:    limit,
			Interval: interval,
		}
		if err := opts.Validate(); err != nil {
			return output.UsageError("%v", err)
		}

		client, err := newClient(cmd.Context())
		if err != nil {
			return err
		}

		fetcher := logs.NewFetcher(client, clock.New(), printer)
		if follow {
			err = fetcher.Follow(cmd.Context(), opts)
		} else {
			err = fetcher.Fetch(cmd.Context(), opts)
		}
		if err == nil {
			return nil
		}
		if aws.IsNotFound(err) {
			return output.NewCLIError(output.ExitCloudError,
				"log group not found", err.Error(),
				"list available groups with 'aws logs describe-log-groups'")
		}
		return output.NewCLIError(output.ExitCloudError,
			"could not fetch log events", err.Error(), "")
	},
}

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().String("group", "", "CloudWatch log group name (required)")
	logsCmd.Flags().Duration("since", 15*time.Minute, "how far back to fetch")
	logsCmd.Flags().String("filter", "", "CloudWatch filter pattern")
	logsCmd.Flags().Int32("limit", 0, "maximum events to fetch (0 = API default)")
	logsCmd.Flags().Bool("follow", false, "keep polling for new events until interrupted")
	logsCmd.Flags().Duration("interval", 5*time.Second, "poll interval for --follow")
}
