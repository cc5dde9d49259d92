package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/netlab-dev/azure-topology/pkg/stack"
	"github.com/netlab-dev/azure-topology/pkg/status"
	"github.com/netlab-dev/azure-topology/pkg/topology"
)

var (
	destroyConfigFile  string
	destroyAutoApprove bool
	destroyTimeout     string
	destroyStack       string
	destroyProject     string

	destroyCmd = &cobra.Command{
		Use:   "destroy",
		Short: "Destroy everything the stack manages",
		Long: `Run a Pulumi destroy on the stack holding the topology.

WARNING: This operation is destructive and cannot be undone.

By default, you will be prompted to confirm before destruction begins.
Use --auto-approve to skip the confirmation prompt.`,
		RunE: runDestroy,
	}
)

func init() {
	addFileFlag(destroyCmd, &destroyConfigFile)
	destroyCmd.Flags().BoolVar(&destroyAutoApprove, "auto-approve", false, "Skip confirmation prompt and destroy immediately")
	destroyCmd.Flags().StringVar(&destroyTimeout, "timeout", "", "Abort the engine operation after this duration (e.g., '45m', '1h')")
	addStackFlags(destroyCmd, &destroyProject, &destroyStack)
}

func runDestroy(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	tracer := otel.Tracer("azure-topology")
	ctx, span := tracer.Start(ctx, "cmd.destroy")
	defer span.End()

	span.SetAttributes(
		attribute.String("config.file", destroyConfigFile),
		attribute.Bool("auto_approve", destroyAutoApprove),
		attribute.String("pulumi.stack", destroyStack),
	)

	slog.Info("Starting infrastructure destruction", "config_file", destroyConfigFile)

	cfg, g, err := loadGraph(ctx, span, destroyConfigFile)
	if err != nil {
		return err
	}

	if !destroyAutoApprove {
		if err := confirmDestruction(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), g, destroyStack); err != nil {
			span.RecordError(err)
			slog.Info("Destruction cancelled by user")
			return err
		}
	}

	ctx, cancel, err := withTimeout(ctx, destroyTimeout)
	if err != nil {
		span.RecordError(err)
		return err
	}
	defer cancel()

	ctx, cleanupStatus := status.StartHandler(ctx, statusLogHandler())
	defer cleanupStatus()

	defer func() {
		if ctx.Err() == context.Canceled {
			slog.Warn("Destruction interrupted by user")
		}
	}()

	ws, err := stack.NewWorkspace(g, stack.Options{
		ProjectName:   destroyProject,
		StackName:     destroyStack,
		AdminPassword: cfg.AdminPassword,
		Progress:      cmd.ErrOrStderr(),
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	summary, err := ws.Destroy(ctx)
	if err != nil {
		span.RecordError(err)
		slog.Error("Destruction failed", "error", err, "stack", destroyStack)
		return err
	}

	printChanges(cmd.OutOrStdout(), summary)
	slog.Info("Destruction completed successfully", "stack", destroyStack)
	return nil
}

// confirmDestruction prompts the user to confirm before destroying infrastructure
func confirmDestruction(ctx context.Context, in io.Reader, out io.Writer, g *topology.Graph, stackName string) error {
	tracer := otel.Tracer("azure-topology")
	_, span := tracer.Start(ctx, "cmd.confirmDestruction")
	defer span.End()

	counts := g.Counts()

	fmt.Fprintln(out, "\n⚠️  WARNING: You are about to destroy the following infrastructure:")
	fmt.Fprintf(out, "   Stack:            %s\n", stackName)
	fmt.Fprintf(out, "   Resource group:   %s\n", g.ResourceGroup.Name)
	fmt.Fprintf(out, "   Virtual networks: %d\n", counts[topology.KindVirtualNetwork])
	fmt.Fprintf(out, "   Virtual machines: %d\n", counts[topology.KindVirtualMachine])

	fmt.Fprintln(out, "\n❌ This will permanently delete all resources and data.")
	fmt.Fprintln(out, "   This action cannot be undone.")
	fmt.Fprint(out, "\nDo you want to continue? Type 'yes' to confirm: ")

	reader := bufio.NewReader(in)
	response, err := reader.ReadString('\n')
	if err != nil && response == "" {
		span.RecordError(err)
		return fmt.Errorf("failed to read user input: %w", err)
	}

	response = strings.TrimSpace(response)

	if response != "yes" {
		span.SetAttributes(attribute.String("user_response", response))
		return fmt.Errorf("destruction cancelled (user did not type 'yes')")
	}

	span.SetAttributes(attribute.Bool("confirmed", true))
	fmt.Fprintln(out)
	return nil
}
