package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/netlab-dev/azure-topology/pkg/topology"
)

const (
	version = topology.Version
	commit  = "dev"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE:  runVersion,
}

func runVersion(cmd *cobra.Command, args []string) error {
	tracer := otel.Tracer("azure-topology")
	_, span := tracer.Start(cmd.Context(), "cmd.version")
	defer span.End()

	slog.Info("Version command executed", "version", version, "commit", commit)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "aztopo\n")
	fmt.Fprintf(out, "Version: %s\n", version)
	fmt.Fprintf(out, "Commit: %s\n", commit)

	return nil
}
