package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// Storage drivers understood by the repository layer.
const (
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds the settings shared by the vault binaries.
type Config struct {
	// ServerAddress is the gRPC address of the ledger server.
	ServerAddress string `yaml:"server_addr"`
	// HTTPAddress is the optional listen address of the read-only observer API.
	HTTPAddress string `yaml:"http_addr,omitempty"`
	// Timeout is the duration for network operations and RPC calls.
	Timeout time.Duration `yaml:"timeout"`
	// LogLevel is the minimum log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level,omitempty"`
	// LogFormat selects console or json log output.
	LogFormat string `yaml:"log_format,omitempty"`
	// FactoryAddress is the base address new vault addresses are derived from.
	FactoryAddress string `yaml:"factory_address"`
	// Storage selects and configures the ledger persistence.
	Storage Storage `yaml:"storage"`
	// Auth configures caller authentication.
	Auth Auth `yaml:"auth"`
	// Clock configures the ledger time source.
	Clock Clock `yaml:"clock,omitempty"`
	// Heartbeat configures the owner-side liveness agent.
	Heartbeat Heartbeat `yaml:"heartbeat,omitempty"`
}

// Storage configures the repository backend.
type Storage struct {
	// Driver is one of file, sqlite or postgres.
	Driver string `yaml:"driver"`
	// DSN is the database connection string for sqlite and postgres.
	DSN string `yaml:"dsn,omitempty"`
	// StateFile is the JSON ledger path for the file driver.
	StateFile string `yaml:"state_file,omitempty"`
}

// Auth configures JWT caller tokens.
type Auth struct {
	// Secret is the HMAC key used to sign and verify tokens. Server side only.
	Secret string `yaml:"secret,omitempty"`
	// Issuer is the expected token issuer.
	Issuer string `yaml:"issuer,omitempty"`
	// TokenTTL is the lifetime of issued tokens.
	TokenTTL time.Duration `yaml:"token_ttl,omitempty"`
	// Token is the caller token presented by clients.
	Token string `yaml:"token,omitempty"`
}

// Clock configures the trusted time source.
type Clock struct {
	// NTPServer enables NTP offset correction when set.
	NTPServer string `yaml:"ntp_server,omitempty"`
	// NTPInterval is the offset refresh period.
	NTPInterval time.Duration `yaml:"ntp_interval,omitempty"`
	// MaxOffset is the drift above which a warning is logged.
	MaxOffset time.Duration `yaml:"max_offset,omitempty"`
}

// Heartbeat configures the liveness agent.
type Heartbeat struct {
	// Vault is the address of the vault to keep alive.
	Vault string `yaml:"vault,omitempty"`
	// Interval is the period between activity refreshes.
	Interval time.Duration `yaml:"interval,omitempty"`
	// WarnBefore logs a warning when the unlock deadline is closer than this.
	WarnBefore time.Duration `yaml:"warn_before,omitempty"`
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "vault-settings.yaml"

	// DefaultStateFilename is the default filename for the JSON ledger.
	DefaultStateFilename = "vault-ledger.json"

	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 5 * time.Second

	// DefaultFactoryAddress is the factory address used when none is configured.
	DefaultFactoryAddress = "0x000000000000000000000000000000000000fAc7"

	// DefaultIssuer is the default JWT issuer.
	DefaultIssuer = "deadman-vault"

	// DefaultTokenTTL is the default lifetime of issued tokens.
	DefaultTokenTTL = 30 * 24 * time.Hour

	// DefaultHeartbeatInterval is the default period between activity refreshes.
	DefaultHeartbeatInterval = 24 * time.Hour

	// DefaultWarnBefore is the default deadline warning window.
	DefaultWarnBefore = 30 * 24 * time.Hour

	// DefaultFilePermissions is the default file permission for config and state files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errServerSocketRequired is returned when server address is missing.
	errServerSocketRequired = errors.New("server address must be provided")
	// errUnknownDriver is returned for an unsupported storage driver.
	errUnknownDriver = errors.New("unknown storage driver")
	// errDSNRequired is returned when a SQL driver has no DSN.
	errDSNRequired = errors.New("storage dsn must be provided")
	// errInvalidFactoryAddress is returned for a malformed factory address.
	errInvalidFactoryAddress = errors.New("factory address must be a hex address")
	// errInvalidHeartbeatVault is returned for a malformed heartbeat vault address.
	errInvalidHeartbeatVault = errors.New("heartbeat vault must be a hex address")
)

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions, the file may hold the signing secret.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings for required fields and fills in defaults.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if settings.ServerAddress == "" {
		return errServerSocketRequired
	}

	if _, err := net.ResolveTCPAddr("tcp", settings.ServerAddress); err != nil {
		return fmt.Errorf("invalid server socket: %w", err)
	}

	if settings.HTTPAddress != "" {
		if _, err := net.ResolveTCPAddr("tcp", settings.HTTPAddress); err != nil {
			return fmt.Errorf("invalid http socket: %w", err)
		}
	}

	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}

	if settings.FactoryAddress == "" {
		settings.FactoryAddress = DefaultFactoryAddress
	}

	if !common.IsHexAddress(settings.FactoryAddress) {
		return errInvalidFactoryAddress
	}

	if err := validateStorage(&settings.Storage); err != nil {
		return err
	}

	if settings.Auth.Issuer == "" {
		settings.Auth.Issuer = DefaultIssuer
	}

	if settings.Auth.TokenTTL <= 0 {
		settings.Auth.TokenTTL = DefaultTokenTTL
	}

	if settings.Heartbeat.Vault != "" && !common.IsHexAddress(settings.Heartbeat.Vault) {
		return errInvalidHeartbeatVault
	}

	if settings.Heartbeat.Interval <= 0 {
		settings.Heartbeat.Interval = DefaultHeartbeatInterval
	}

	if settings.Heartbeat.WarnBefore <= 0 {
		settings.Heartbeat.WarnBefore = DefaultWarnBefore
	}

	return nil
}

// validateStorage defaults to the file driver and checks driver-specific settings.
func validateStorage(storage *Storage) error {
	storage.Driver = strings.ToLower(strings.TrimSpace(storage.Driver))

	switch storage.Driver {
	case "", DriverFile:
		storage.Driver = DriverFile

		if storage.StateFile == "" {
			storage.StateFile = DefaultStateFilename
		}
	case DriverSQLite, DriverPostgres:
		if storage.DSN == "" {
			return fmt.Errorf("%s: %w", storage.Driver, errDSNRequired)
		}
	default:
		return fmt.Errorf("%w: %q", errUnknownDriver, storage.Driver)
	}

	return nil
}
