package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/deadman-vault/internal/config"
	"github.com/oshokin/deadman-vault/internal/service/server"
	"github.com/oshokin/deadman-vault/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// stateFile overrides the JSON ledger path of the file driver.
	stateFile string
	// httpAddress overrides the observer listen address.
	httpAddress string

	// rootCmd represents the base command for running the ledger server.
	rootCmd = &cobra.Command{
		Use:   "vault-server [listen-address]",
		Short: "Run the dead-man's-switch vault ledger.",
		Long: `Starts the gRPC ledger server that owns every vault and serializes all operations.

Only the port from server_addr in the configuration is used for listening (e.g., :50051).
Listen address can be provided as argument to override config (e.g., :9090, 0.0.0.0:50051).
When http_addr is configured, a read-only observer API is served as well.
Vault state and the record journal are persisted in the configured storage.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			return server.Run(ctx, &server.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
				HTTPAddress:   httpAddress,
				StateFile:     stateFile,
			})
		},
	}
)

// Execute runs the vault-server CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&stateFile, "state-file", "s", "", "path to the JSON ledger (file storage only)")
	rootCmd.Flags().StringVar(&httpAddress, "http-addr", "", "observer listen address override")
}
