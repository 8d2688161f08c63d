package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"

	api "github.com/oshokin/deadman-vault/internal/api/grpc/vault"
	"github.com/oshokin/deadman-vault/internal/api/http/observer"
	"github.com/oshokin/deadman-vault/internal/auth"
	"github.com/oshokin/deadman-vault/internal/clock"
	"github.com/oshokin/deadman-vault/internal/config"
	"github.com/oshokin/deadman-vault/internal/logger"
	repository "github.com/oshokin/deadman-vault/internal/repository/ledger"
	rpc "github.com/oshokin/deadman-vault/internal/rpc/v1"
	"github.com/oshokin/deadman-vault/internal/service/ledger"
)

// Options controls the vault-server process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress provides an optional listen address override for the gRPC server.
	ListenAddress string
	// HTTPAddress overrides the observer listen address; empty keeps the configured one.
	HTTPAddress string
	// StateFile overrides the JSON ledger path of the file driver.
	StateFile string
}

// shutdownTimeout bounds the graceful stop of the observer.
const shutdownTimeout = 5 * time.Second

// ErrNoServerAddress indicates missing server configuration.
var ErrNoServerAddress = errors.New("no server address configured")

// Run starts the gRPC ledger server and the optional HTTP observer,
// and blocks until the context is canceled or a server stops.
//
//nolint:funlen // Linear start-up wiring reads better in one place.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "vault-server")

	// Load configuration first to get server settings.
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if err = logger.Setup(settings.LogLevel, settings.LogFormat); err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}

	if opts.StateFile != "" && settings.Storage.Driver == config.DriverFile {
		settings.Storage.StateFile = opts.StateFile
	}

	// Determine listen address: CLI argument overrides config port extraction.
	listenAddress, err := resolveListenAddress(settings.ServerAddress, opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("resolve listen address: %w", err)
	}

	httpAddress := settings.HTTPAddress
	if opts.HTTPAddress != "" {
		httpAddress = opts.HTTPAddress
	}

	authority, err := auth.NewAuthority(settings.Auth.Secret, settings.Auth.Issuer, settings.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("initialise auth: %w", err)
	}

	ledgerClock, err := newClock(ctx, &settings.Clock)
	if err != nil {
		return fmt.Errorf("initialise clock: %w", err)
	}

	repo, err := repository.Open(ctx, &settings.Storage)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			logger.ErrorKV(ctx, "Close storage failed", "error", closeErr)
		}
	}()

	svc, err := ledger.New(ctx, repo, common.HexToAddress(settings.FactoryAddress), ledger.WithClock(ledgerClock))
	if err != nil {
		return fmt.Errorf("initialise ledger: %w", err)
	}

	// Setup TCP listener for gRPC server.
	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", listenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddress, err)
	}

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(auth.UnaryServerInterceptor(authority)),
	)
	rpc.RegisterVaultServiceServer(grpcServer, api.NewServer(svc))

	logger.InfoKV(ctx, "Vault server listening",
		"listen_address", listenAddress,
		"storage", settings.Storage.Driver,
		"factory", settings.FactoryAddress)

	// Done channel is closed after both servers stop to ensure we block
	// until they fully stop before returning.
	done := make(chan struct{})

	var httpServer *http.Server

	if httpAddress != "" {
		httpServer = &http.Server{
			Addr:              httpAddress,
			Handler:           observer.NewRouter(svc),
			ReadHeaderTimeout: settings.Timeout,
		}

		go func() {
			logger.InfoKV(ctx, "Observer listening", "http_address", httpAddress)

			if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
				logger.ErrorKV(ctx, "Observer stopped", "error", serveErr)
			}
		}()
	}

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down servers")

		if httpServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
				logger.ErrorKV(ctx, "Observer shutdown failed", "error", shutdownErr)
			}

			cancel()
		}

		grpcServer.GracefulStop()
		close(done)
	}()

	if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done
	logger.Info(ctx, "Vault server stopped")

	return nil
}

// newClock returns the NTP-corrected clock when a server is configured, otherwise the system clock.
// The NTP clock is synced once before use and refreshed until ctx is canceled.
func newClock(ctx context.Context, settings *config.Clock) (clock.Clock, error) {
	if settings.NTPServer == "" {
		return clock.System{}, nil
	}

	ntpClock, err := clock.NewNTP(settings.NTPServer,
		clock.WithInterval(settings.NTPInterval),
		clock.WithMaxOffset(settings.MaxOffset))
	if err != nil {
		return nil, err
	}

	if err = ntpClock.Sync(ctx); err != nil {
		return nil, err
	}

	go ntpClock.Run(ctx)

	return ntpClock, nil
}

// resolveListenAddress determines the listen address for the gRPC server.
// If override is provided, uses it directly. Otherwise extracts port from configAddr.
// Returns appropriate listen address (e.g., ":8080" for port-only binding).
func resolveListenAddress(configAddr, override string) (string, error) {
	if override != "" {
		return override, nil
	}

	if configAddr == "" {
		return "", ErrNoServerAddress
	}

	_, port, err := net.SplitHostPort(configAddr)
	if err != nil {
		return "", fmt.Errorf("invalid server address format %q: %w", configAddr, err)
	}

	return ":" + port, nil
}
