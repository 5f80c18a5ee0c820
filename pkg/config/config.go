// Package config loads and validates the redeploy configuration file. The
// file is YAML; field constraints are declared with validator tags and a
// watcher can hot-reload the file on change.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for redeploy.
type Config struct {
	// Repo configures the local working tree and the remote it publishes to.
	Repo RepoConfig `yaml:"repo" validate:"required"`

	// Pipeline configures the CI control plane client.
	Pipeline PipelineConfig `yaml:"pipeline" validate:"required"`

	// Deploy configures orchestration timing and identity.
	Deploy DeployConfig `yaml:"deploy"`

	// Store configures session persistence.
	Store StoreConfig `yaml:"store"`

	// Telemetry configures logging, metrics, and tracing.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// RepoConfig describes the git repository holding deployable configuration.
type RepoConfig struct {
	// Path is the local working tree path.
	Path string `yaml:"path" validate:"required"`

	// Remote is the git remote name. Defaults to origin.
	Remote string `yaml:"remote"`

	// TargetBranch is the deployment target branch.
	TargetBranch string `yaml:"target_branch" validate:"required"`

	// CredentialService is the keyring service name for stored credentials.
	CredentialService string `yaml:"credential_service"`
}

// PipelineConfig describes the CI control plane endpoint.
type PipelineConfig struct {
	// BaseURL is the control plane API base URL.
	BaseURL string `yaml:"base_url" validate:"required,url"`

	// AppID identifies the application within the control plane.
	AppID string `yaml:"app_id" validate:"required"`

	// Token authenticates API requests. May be empty for unauthenticated
	// control planes.
	Token string `yaml:"token"`
}

// DeployConfig tunes the orchestration engine.
type DeployConfig struct {
	// Identity names the operator, used in ephemeral branch names.
	Identity string `yaml:"identity"`

	// CommitMessage is the default message for published commits.
	CommitMessage string `yaml:"commit_message"`

	// PollInterval is the job status refresh cadence.
	PollInterval time.Duration `yaml:"poll_interval" validate:"min=0"`

	// DiscoveryAttempts bounds the job discovery retry loop.
	DiscoveryAttempts int `yaml:"discovery_attempts" validate:"min=0"`

	// DiscoveryBaseDelay is the discovery delay multiplier: attempt n
	// waits n times this before querying.
	DiscoveryBaseDelay time.Duration `yaml:"discovery_base_delay" validate:"min=0"`
}

// StoreConfig configures session persistence.
type StoreConfig struct {
	// Path is the SQLite database file path.
	Path string `yaml:"path"`
}

// TelemetryConfig configures observability.
type TelemetryConfig struct {
	// LogLevel sets the minimum log level.
	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=trace debug info warn error fatal"`

	// LogFormat selects console or json output.
	LogFormat string `yaml:"log_format" validate:"omitempty,oneof=console json"`

	// MetricsEnabled exposes Prometheus metrics over HTTP.
	MetricsEnabled bool `yaml:"metrics_enabled"`

	// MetricsListen is the metrics endpoint listen address.
	MetricsListen string `yaml:"metrics_listen"`

	// TracingEnabled turns on OpenTelemetry tracing.
	TracingEnabled bool `yaml:"tracing_enabled"`

	// TracingExporter selects the trace exporter (otlp, stdout, none).
	TracingExporter string `yaml:"tracing_exporter" validate:"omitempty,oneof=otlp stdout none"`

	// TracingEndpoint is the OTLP collector endpoint.
	TracingEndpoint string `yaml:"tracing_endpoint"`
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	return &Config{
		Repo: RepoConfig{
			Remote:            "origin",
			CredentialService: "redeploy",
		},
		Deploy: DeployConfig{
			CommitMessage:      "Update runtime configuration",
			PollInterval:       10 * time.Second,
			DiscoveryAttempts:  3,
			DiscoveryBaseDelay: 5 * time.Second,
		},
		Store: StoreConfig{
			Path: "redeploy.db",
		},
		Telemetry: TelemetryConfig{
			LogLevel:        "info",
			LogFormat:       "console",
			MetricsListen:   ":9090",
			TracingExporter: "stdout",
		},
	}
}

// Load reads, parses, and validates the configuration file at path. Defaults
// fill any omitted fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// applyDefaults restores defaults for fields an explicit empty value wiped
// out during unmarshaling.
func (c *Config) applyDefaults() {
	if c.Repo.Remote == "" {
		c.Repo.Remote = "origin"
	}
	if c.Repo.CredentialService == "" {
		c.Repo.CredentialService = "redeploy"
	}
	if c.Deploy.CommitMessage == "" {
		c.Deploy.CommitMessage = "Update runtime configuration"
	}
	if c.Deploy.PollInterval <= 0 {
		c.Deploy.PollInterval = 10 * time.Second
	}
	if c.Deploy.DiscoveryAttempts <= 0 {
		c.Deploy.DiscoveryAttempts = 3
	}
	if c.Deploy.DiscoveryBaseDelay <= 0 {
		c.Deploy.DiscoveryBaseDelay = 5 * time.Second
	}
	if c.Store.Path == "" {
		c.Store.Path = "redeploy.db"
	}
	if c.Telemetry.LogLevel == "" {
		c.Telemetry.LogLevel = "info"
	}
	if c.Telemetry.LogFormat == "" {
		c.Telemetry.LogFormat = "console"
	}
	if c.Telemetry.MetricsListen == "" {
		c.Telemetry.MetricsListen = ":9090"
	}
	if c.Telemetry.TracingExporter == "" {
		c.Telemetry.TracingExporter = "stdout"
	}
}

// Validate checks the configuration against its declared constraints.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			e := errs[0]
			return fmt.Errorf("field %s failed %s validation", e.Namespace(), e.Tag())
		}
		return err
	}
	return nil
}
