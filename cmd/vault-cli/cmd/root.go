package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/deadman-vault/internal/config"
	"github.com/oshokin/deadman-vault/internal/service/client"
	"github.com/oshokin/deadman-vault/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// serverAddress overrides server_addr from the configuration.
	serverAddress string
	// token overrides auth.token from the configuration.
	token string

	// rootCmd represents the base command of the vault client.
	rootCmd = &cobra.Command{
		Use:   "vault-cli",
		Short: "Operate dead-man's-switch vaults.",
		Long: `Client for the vault ledger server.

Mutating commands authenticate with the caller token from auth.token in the configuration
or from --token. Use "vault-cli token <address>" on the server host to issue one.
Read commands (show, records) need no token.`,
		SilenceUsage: true,
	}
)

// Execute runs the vault-cli CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// withRunner opens a runner for the duration of one command.
func withRunner(
	fn func(ctx context.Context, runner *client.Runner, args []string) error,
) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		runner, err := client.Open(ctx, &client.Options{
			ConfigPath:    configPath,
			ServerAddress: serverAddress,
			Token:         token,
			Output:        cmd.OutOrStdout(),
		})
		if err != nil {
			return err
		}

		defer func() {
			_ = runner.Close()
		}()

		return fn(ctx, runner, args)
	}
}

func newTokenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "token <address>",
		Short: "Issue a caller token for an address using the server secret.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			issued, err := client.IssueToken(&client.Options{ConfigPath: configPath}, args[0])
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), issued)

			return err
		},
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	flags.StringVarP(&serverAddress, "server", "s", "", "server address override")
	flags.StringVarP(&token, "token", "t", "", "caller token override")

	rootCmd.AddCommand(
		newTokenCommand(),
		newCreateCommand(),
		newDepositCommand(),
		newTransferCommand(),
		newWithdrawCommand(),
		newBeneficiaryCommand(),
		newHeartbeatCommand(),
		newUnlockPeriodCommand(),
		newPayoutCommand(),
		newShowCommand(),
		newRecordsCommand(),
	)
}
