package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/netlab-dev/azure-topology/pkg/status"
)

var (
	validateConfigFile string

	validateCmd = &cobra.Command{
		Use:   "validate",
		Short: "Validate the topology without declaring anything",
		Long: `Load the topology tables, build the resource graph and check that every
cross-reference resolves to a resource declared earlier in the same pass.
Nothing is sent to the engine.`,
		RunE: runValidate,
	}
)

func init() {
	addFileFlag(validateCmd, &validateConfigFile)
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	tracer := otel.Tracer("azure-topology")
	ctx, span := tracer.Start(ctx, "cmd.validate")
	defer span.End()

	span.SetAttributes(attribute.String("config.file", validateConfigFile))

	ctx, cleanupStatus := status.StartHandler(ctx, statusLogHandler())
	defer cleanupStatus()

	cfg, g, err := loadGraph(ctx, span, validateConfigFile)
	if err != nil {
		return err
	}

	if err := g.Validate(); err != nil {
		span.RecordError(err)
		slog.Error("Graph validation failed", "error", err)
		return err
	}

	out := cmd.OutOrStdout()
	printSuccess(out, "Topology is valid")
	fmt.Fprintf(out, "  %s %s\n", boldStyle.Render("Resource group:"), cfg.ResourceGroupName)
	printCountTable(out, "Kind", g.Counts())

	return nil
}
