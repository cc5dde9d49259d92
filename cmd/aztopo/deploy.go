package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/netlab-dev/azure-topology/pkg/manifest"
	"github.com/netlab-dev/azure-topology/pkg/stack"
	"github.com/netlab-dev/azure-topology/pkg/status"
)

var (
	deployConfigFile string
	deployDryRun     bool
	deployTimeout    string
	deployStack      string
	deployProject    string

	deployCmd = &cobra.Command{
		Use:   "deploy",
		Short: "Declare the topology through the Pulumi engine",
		Long: `Build the resource graph and run it through the Pulumi engine as an inline
program. The engine owns diffing and state; aztopo only declares.

Use --dry-run to run an engine preview without making changes.`,
		RunE: runDeploy,
	}
)

func init() {
	addFileFlag(deployCmd, &deployConfigFile)
	deployCmd.Flags().BoolVar(&deployDryRun, "dry-run", false, "Preview the changes without applying them")
	deployCmd.Flags().StringVar(&deployTimeout, "timeout", "", "Abort the engine operation after this duration (e.g., '45m', '1h')")
	addStackFlags(deployCmd, &deployProject, &deployStack)
}

func addStackFlags(cmd *cobra.Command, project, stackName *string) {
	cmd.Flags().StringVar(project, "project", stack.DefaultProjectName, "Pulumi project name")
	cmd.Flags().StringVar(stackName, "stack", stack.DefaultStackName, "Pulumi stack name")
}

// withTimeout applies a --timeout value to ctx.
func withTimeout(ctx context.Context, timeout string) (context.Context, context.CancelFunc, error) {
	if timeout == "" {
		ctx, cancel := context.WithCancel(ctx)
		return ctx, cancel, nil
	}
	d, err := time.ParseDuration(timeout)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid timeout duration %q: %w", timeout, err)
	}
	slog.Info("Using custom timeout", "timeout", d)
	ctx, cancel := context.WithTimeout(ctx, d)
	return ctx, cancel, nil
}

func runDeploy(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	tracer := otel.Tracer("azure-topology")
	ctx, span := tracer.Start(ctx, "cmd.deploy")
	defer span.End()

	span.SetAttributes(
		attribute.String("config.file", deployConfigFile),
		attribute.Bool("dry_run", deployDryRun),
		attribute.String("pulumi.stack", deployStack),
	)

	if deployDryRun {
		slog.Info("Starting deployment (dry-run)", "config_file", deployConfigFile)
	} else {
		slog.Info("Starting deployment", "config_file", deployConfigFile)
	}

	ctx, cancel, err := withTimeout(ctx, deployTimeout)
	if err != nil {
		span.RecordError(err)
		return err
	}
	defer cancel()

	ctx, cleanupStatus := status.StartHandler(ctx, statusLogHandler())
	defer cleanupStatus()

	defer func() {
		if ctx.Err() == context.Canceled {
			slog.Warn("Deployment interrupted by user")
		}
	}()

	cfg, g, err := loadGraph(ctx, span, deployConfigFile)
	if err != nil {
		return err
	}

	ws, err := stack.NewWorkspace(g, stack.Options{
		ProjectName:   deployProject,
		StackName:     deployStack,
		AdminPassword: cfg.AdminPassword,
		Progress:      cmd.ErrOrStderr(),
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	var summary *stack.Summary
	if deployDryRun {
		if err := manifest.PrintSummary(cmd.OutOrStdout(), g); err != nil {
			return err
		}
		summary, err = ws.Preview(ctx)
	} else {
		summary, err = ws.Up(ctx)
	}
	if err != nil {
		span.RecordError(err)
		slog.Error("Deployment failed", "error", err, "stack", deployStack)
		return err
	}

	printChanges(cmd.OutOrStdout(), summary)
	slog.Info("Deployment completed successfully", "stack", deployStack, "dry_run", deployDryRun)
	return nil
}

func printChanges(w io.Writer, s *stack.Summary) {
	fmt.Fprintln(w)
	printSuccess(w, "%s finished", s.Operation)
	if len(s.Changes) == 0 {
		printWarning(w, "engine reported no resource changes")
		return
	}
	printCountTable(w, "Operation", s.Changes)
}
