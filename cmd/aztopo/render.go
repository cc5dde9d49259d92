package main

import (
	"log/slog"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/netlab-dev/azure-topology/pkg/manifest"
	"github.com/netlab-dev/azure-topology/pkg/status"
)

var (
	renderConfigFile string
	renderFormat     string
	renderOutput     string
	renderSummary    bool

	renderCmd = &cobra.Command{
		Use:   "render",
		Short: "Render the resource graph as a manifest or diagram",
		Long: `Build the resource graph and write it as a YAML or JSON manifest or as a D2
diagram, either to stdout or to --output. With --summary a human-readable
tree of what would be declared is printed instead.`,
		RunE: runRender,
	}
)

func init() {
	addFileFlag(renderCmd, &renderConfigFile)
	renderCmd.Flags().StringVar(&renderFormat, "format", "", "Output format: yaml, json or d2 (inferred from --output when omitted)")
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "", "Write the manifest to this path instead of stdout")
	renderCmd.Flags().BoolVar(&renderSummary, "summary", false, "Print a human-readable summary instead of a manifest")
	renderCmd.MarkFlagsMutuallyExclusive("summary", "output")
}

func runRender(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	tracer := otel.Tracer("azure-topology")
	ctx, span := tracer.Start(ctx, "cmd.render")
	defer span.End()

	span.SetAttributes(
		attribute.String("config.file", renderConfigFile),
		attribute.String("output", renderOutput),
		attribute.Bool("summary", renderSummary),
	)

	format := manifest.FormatFromPath(renderOutput)
	if renderFormat != "" {
		f, err := manifest.ParseFormat(renderFormat)
		if err != nil {
			span.RecordError(err)
			return err
		}
		format = f
	}

	ctx, cleanupStatus := status.StartHandler(ctx, statusLogHandler())
	defer cleanupStatus()

	_, g, err := loadGraph(ctx, span, renderConfigFile)
	if err != nil {
		return err
	}

	if renderSummary {
		return manifest.PrintSummary(cmd.OutOrStdout(), g)
	}

	if renderOutput == "" {
		data, err := manifest.Encode(g, format)
		if err != nil {
			span.RecordError(err)
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}

	if err := manifest.Write(ctx, appFs, renderOutput, g, format); err != nil {
		span.RecordError(err)
		slog.Error("Failed to write manifest", "error", err, "path", renderOutput)
		return err
	}

	slog.Info("Manifest written", "path", renderOutput, "format", format)
	printSuccess(cmd.OutOrStdout(), "Wrote %s manifest to %s", format, renderOutput)
	return nil
}
