package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bgdnvk/fargo/internal/aws"
	"github.com/bgdnvk/fargo/internal/logging"
	"github.com/bgdnvk/fargo/internal/output"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fargo",
	Short: "Deploy and watch ECS Fargate services",
	Long: `Fargo rolls new container images onto ECS Fargate services and keeps
an eye on them afterwards. A deploy clones the live task definition,
swaps the image, waits for the rollout to stabilize and rolls back on
failure. The monitor re-checks service, task and load balancer health
on an interval until you stop it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. SIGINT and SIGTERM cancel the command context so polls
// stop cleanly instead of dying mid-iteration.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.fargo.yaml)")
	rootCmd.PersistentFlags().String("profile", "", "AWS profile to use")
	rootCmd.PersistentFlags().String("region", "", "AWS region (defaults to the profile's region)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug output (shows every AWS call)")
	rootCmd.PersistentFlags().String("color", "auto", "colorize output: auto, always, or never")

	// TODO: add error return here
	viper.BindPFlag("profile", rootCmd.PersistentFlags().Lookup("profile"))
	viper.BindPFlag("region", rootCmd.PersistentFlags().Lookup("region"))
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("color", rootCmd.PersistentFlags().Lookup("color"))

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return output.UsageError("%v", err)
	})
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			os.Exit(1)
		}

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".fargo")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("debug") {
			fmt.Println("Using config file:", viper.ConfigFileUsed())
		}
	}

	logging.Init(viper.GetBool("debug"))
}

// newPrinter builds the shared printer from the persistent color flag.
func newPrinter() (*output.Printer, error) {
	mode, err := output.ParseColorMode(viper.GetString("color"))
	if err != nil {
		return nil, output.UsageError("%v", err)
	}
	return output.NewPrinter(output.ResolveColors(mode)), nil
}

// newClient builds the AWS facade and verifies the caller identity
// before any command logic runs, so credential problems surface as one
// clear error instead of failing halfway through a deployment.
func newClient(ctx context.Context) (*aws.Client, error) {
	client, err := aws.New(ctx, aws.Options{
		Profile: viper.GetString("profile"),
		Region:  viper.GetString("region"),
		Debug:   viper.GetBool("debug"),
	})
	if err != nil {
		return nil, output.NewCLIError(output.ExitCredentialError,
			"could not initialize an AWS session",
			err.Error(),
			"check the profile with 'aws configure list-profiles' and retry")
	}

	identity, err := client.VerifyCredentials(ctx)
	if err != nil {
		return nil, output.NewCLIError(output.ExitCredentialError,
			"AWS credentials are missing or expired",
			err.Error(),
			"run 'aws sso login' for SSO profiles, or set AWS_PROFILE to a valid profile")
	}
	logging.Debug("verified caller identity",
		zap.String("account", identity.Account),
		zap.String("arn", identity.ARN),
		zap.String("region", client.Region()))
	return client, nil
}
