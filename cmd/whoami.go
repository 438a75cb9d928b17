package cmd

import (
	"github.com/bgdnvk/fargo/internal/aws"
	"github.com/bgdnvk/fargo/internal/output"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the AWS identity fargo would act as",
	Long: `Resolve credentials the same way every other command does and print
the caller identity. Use this to confirm which account a deploy would
touch before running one.

Examples:
  fargo whoami
  fargo whoami --profile prod`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		printer, err := newPrinter()
		if err != nil {
			return err
		}

		client, err := aws.New(cmd.Context(), aws.Options{
			Profile: viper.GetString("profile"),
			Region:  viper.GetString("region"),
			Debug:   viper.GetBool("debug"),
		})
		if err != nil {
			return output.NewCLIError(output.ExitCredentialError,
				"could not initialize an AWS session", err.Error(),
				"check the profile with 'fargo profiles' and retry")
		}

		identity, err := client.VerifyCredentials(cmd.Context())
		if err != nil {
			return output.NewCLIError(output.ExitCredentialError,
				"AWS credentials are missing or expired", err.Error(),
				"run 'aws sso login' for SSO profiles, or pick a profile from 'fargo profiles'")
		}

		printer.Success("credentials are valid")
		table := output.NewTableWithWriter(printer.Out(), []string{"FIELD", "VALUE"})
		table.AddRow([]string{"Account", identity.Account})
		table.AddRow([]string{"ARN", identity.ARN})
		table.AddRow([]string{"User ID", identity.UserID})
		table.AddRow([]string{"Region", client.Region()})
		table.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}
