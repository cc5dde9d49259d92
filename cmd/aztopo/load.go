package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/netlab-dev/azure-topology/pkg/config"
	"github.com/netlab-dev/azure-topology/pkg/topology"
)

// addFileFlag registers the optional --file flag shared by every command
// that builds a topology.
func addFileFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVarP(target, "file", "f", "", "Path to a topology YAML file (built-in tables when omitted)")
}

// loadGraph loads the configuration, overlays the environment and builds the
// graph. Errors are recorded on span.
func loadGraph(ctx context.Context, span trace.Span, file string) (*config.Config, *topology.Graph, error) {
	source := file
	if source == "" {
		source = "built-in tables"
	}

	cfg, err := config.Load(ctx, file)
	if err != nil {
		span.RecordError(err)
		slog.Error("Failed to load configuration", "error", err, "source", source)
		return nil, nil, err
	}

	slog.Info("Configuration loaded successfully",
		"source", source,
		"resource_group", cfg.ResourceGroupName,
		"vnets", len(cfg.VNets),
	)

	g, _, err := topology.Build(ctx, cfg)
	if err != nil {
		span.RecordError(err)
		slog.Error("Failed to build topology", "error", err, "source", source)
		return nil, nil, err
	}

	return cfg, g, nil
}
