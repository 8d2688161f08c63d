package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/deadman-vault/internal/config"
	"github.com/oshokin/deadman-vault/internal/service/heartbeat"
	"github.com/oshokin/deadman-vault/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// vault overrides heartbeat.vault from the configuration.
	vault string
	// once sends a single heartbeat.
	once bool

	// rootCmd represents the base command for the liveness agent.
	rootCmd = &cobra.Command{
		Use:   "vault-heartbeat [server-address]",
		Short: "Keep a vault alive by refreshing its activity timer.",
		Long: `Periodically signals owner activity to the ledger so the vault does not unlock.

Uses the owner token from auth.token and the vault from heartbeat.vault in the configuration.
Warns when refreshes keep failing and the unlock deadline gets close.
Exits once the vault has been sealed by a final payout.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			var serverAddress string
			if len(args) > 0 {
				serverAddress = args[0]
			}

			return heartbeat.Run(ctx, &heartbeat.Options{
				ConfigPath:    configPath,
				ServerAddress: serverAddress,
				Vault:         vault,
				Once:          once,
			})
		},
	}
)

// Execute runs the vault-heartbeat CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVar(&vault, "vault", "", "vault address override")
	rootCmd.Flags().BoolVar(&once, "once", false, "send a single heartbeat and exit")
}
