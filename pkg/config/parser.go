package config

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Environment variables carrying the externally supplied values.
const (
	EnvResourceGroupName = "AZTOPO_RG_NAME"
	EnvAdminPassword     = "AZTOPO_ADMIN_PASSWORD"
	EnvSubscriptionID    = "AZTOPO_SUBSCRIPTION_ID"
)

// ParseConfig parses a topology file. Only YAML syntax is checked here;
// semantic validation happens when the graph is built.
func ParseConfig(ctx context.Context, filePath string) (*Config, error) {
	tracer := otel.Tracer("azure-topology")
	_, span := tracer.Start(ctx, "config.ParseConfig")
	defer span.End()

	span.SetAttributes(attribute.String("config.file", filePath))

	data, err := os.ReadFile(filePath)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read config file %s: %w", filePath, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to parse config file %s: %w", filePath, err)
	}

	span.SetAttributes(
		attribute.Int("config.vnets", len(cfg.VNets)),
		attribute.Int("config.vms", len(cfg.VMs)+len(cfg.VMsNoPublicIP)),
	)

	return cfg, nil
}

// Parse decodes a topology document and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.VNets) == 0 {
		return nil, fmt.Errorf("vnets table is required")
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// Load returns the file at filePath, or the built-in tables when filePath is
// empty, with the environment overlay applied.
func Load(ctx context.Context, filePath string) (*Config, error) {
	var (
		cfg *Config
		err error
	)
	if filePath == "" {
		cfg = Default()
	} else {
		cfg, err = ParseConfig(ctx, filePath)
		if err != nil {
			return nil, err
		}
	}
	ApplyEnv(cfg, os.Getenv)
	return cfg, nil
}

// ApplyEnv overlays values from the environment onto cfg. A variable that is
// unset or empty leaves the existing value in place.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv(EnvResourceGroupName); v != "" {
		cfg.ResourceGroupName = v
	}
	if v := getenv(EnvAdminPassword); v != "" {
		cfg.AdminPassword = v
	}
	if v := getenv(EnvSubscriptionID); v != "" {
		cfg.SubscriptionID = v
	}
}

// Marshal renders cfg as YAML. The admin password is never included.
func Marshal(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}
