package stack

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/pulumi/pulumi/sdk/v3/go/auto"
	"github.com/pulumi/pulumi/sdk/v3/go/auto/optdestroy"
	"github.com/pulumi/pulumi/sdk/v3/go/auto/optpreview"
	"github.com/pulumi/pulumi/sdk/v3/go/auto/optup"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/netlab-dev/azure-topology/pkg/status"
	"github.com/netlab-dev/azure-topology/pkg/topology"
)

const (
	DefaultProjectName = "azure-topology"
	DefaultStackName   = "dev"

	// ConfigKeyLocation is the provider-level default region.
	ConfigKeyLocation = "azure-native:location"
)

// Options configure a Workspace.
type Options struct {
	ProjectName string
	StackName   string

	// Location defaults to the resource group location.
	Location      string
	AdminPassword string

	// Progress receives the engine's streamed output. Nil discards it.
	Progress io.Writer
}

// Summary is the outcome of one engine operation, as resource counts per
// operation kind ("create", "same", "delete", ...).
type Summary struct {
	Operation string
	Changes   map[string]int
}

// engine is the subset of the Automation API a Workspace drives.
type engine interface {
	SetConfig(ctx context.Context, key, value string, secret bool) error
	Preview(ctx context.Context, progress io.Writer) (map[string]int, error)
	Up(ctx context.Context, progress io.Writer) (map[string]int, error)
	Destroy(ctx context.Context, progress io.Writer) (map[string]int, error)
}

type openFunc func(ctx context.Context, project, stack string, program pulumi.RunFunc) (engine, error)

// Workspace runs a topology graph through the Pulumi engine with an inline
// program.
type Workspace struct {
	graph *topology.Graph
	opts  Options
	open  openFunc
}

// NewWorkspace validates opts and returns a Workspace for g.
func NewWorkspace(g *topology.Graph, opts Options) (*Workspace, error) {
	if opts.AdminPassword == "" {
		return nil, errors.New("admin password is required")
	}
	if opts.ProjectName == "" {
		opts.ProjectName = DefaultProjectName
	}
	if opts.StackName == "" {
		opts.StackName = DefaultStackName
	}
	if opts.Location == "" {
		opts.Location = g.ResourceGroup.Location
	}
	if opts.Progress == nil {
		opts.Progress = io.Discard
	}
	return &Workspace{graph: g, opts: opts, open: openAutoStack}, nil
}

// Preview runs a dry-run against the stack.
func (w *Workspace) Preview(ctx context.Context) (*Summary, error) {
	return w.run(ctx, status.ActionPreview, engine.Preview)
}

// Up applies the topology.
func (w *Workspace) Up(ctx context.Context) (*Summary, error) {
	return w.run(ctx, status.ActionApply, engine.Up)
}

// Destroy tears down everything the stack manages.
func (w *Workspace) Destroy(ctx context.Context) (*Summary, error) {
	return w.run(ctx, status.ActionDestroy, engine.Destroy)
}

func (w *Workspace) run(ctx context.Context, action string, op func(engine, context.Context, io.Writer) (map[string]int, error)) (*Summary, error) {
	tracer := otel.Tracer("azure-topology")
	ctx, span := tracer.Start(ctx, "stack."+action, trace.WithAttributes(
		attribute.String("pulumi.project", w.opts.ProjectName),
		attribute.String("pulumi.stack", w.opts.StackName),
		attribute.String("azure.resource_group", w.graph.ResourceGroup.Name),
	))
	defer span.End()

	status.Send(ctx, status.NewUpdate(status.LevelInfo, fmt.Sprintf("Opening stack %s/%s", w.opts.ProjectName, w.opts.StackName)).
		WithAction(action))

	prog := program(w.graph, func(*pulumi.Context) context.Context { return ctx })

	eng, err := w.open(ctx, w.opts.ProjectName, w.opts.StackName, prog)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to open stack %s: %w", w.opts.StackName, err)
	}

	if err := w.configure(ctx, eng); err != nil {
		span.RecordError(err)
		return nil, err
	}

	slog.Info("Running engine operation", "action", action, "stack", w.opts.StackName)
	status.Send(ctx, status.NewUpdate(status.LevelProgress, "Running "+action).WithAction(action))

	changes, err := op(eng, ctx, w.opts.Progress)
	if err != nil {
		span.RecordError(err)
		status.Send(ctx, status.NewUpdate(status.LevelError, fmt.Sprintf("%s failed: %v", action, err)).WithAction(action))
		return nil, fmt.Errorf("%s of stack %s failed: %w", action, w.opts.StackName, err)
	}

	for kind, n := range changes {
		span.SetAttributes(attribute.Int("pulumi.changes."+kind, n))
	}
	status.Send(ctx, status.NewUpdate(status.LevelSuccess, action+" completed").
		WithAction(action).
		WithMetadata("changes", changes))

	return &Summary{Operation: action, Changes: changes}, nil
}

func (w *Workspace) configure(ctx context.Context, eng engine) error {
	settings := []struct {
		key    string
		value  string
		secret bool
	}{
		{ConfigKeyLocation, w.opts.Location, false},
		{ConfigKeyResourceGroup, w.graph.ResourceGroup.Name, false},
		{ConfigKeyPassword, w.opts.AdminPassword, true},
	}
	for _, s := range settings {
		if err := eng.SetConfig(ctx, s.key, s.value, s.secret); err != nil {
			return fmt.Errorf("failed to set stack config %s: %w", s.key, err)
		}
	}
	return nil
}

// autoStack adapts auto.Stack to engine.
type autoStack struct {
	stack auto.Stack
}

func openAutoStack(ctx context.Context, project, stackName string, program pulumi.RunFunc) (engine, error) {
	s, err := auto.UpsertStackInlineSource(ctx, stackName, project, program)
	if err != nil {
		return nil, err
	}
	return &autoStack{stack: s}, nil
}

func (a *autoStack) SetConfig(ctx context.Context, key, value string, secret bool) error {
	return a.stack.SetConfig(ctx, key, auto.ConfigValue{Value: value, Secret: secret})
}

func (a *autoStack) Preview(ctx context.Context, progress io.Writer) (map[string]int, error) {
	res, err := a.stack.Preview(ctx, optpreview.ProgressStreams(progress))
	if err != nil {
		return nil, err
	}
	changes := make(map[string]int, len(res.ChangeSummary))
	for op, n := range res.ChangeSummary {
		changes[string(op)] = n
	}
	return changes, nil
}

func (a *autoStack) Up(ctx context.Context, progress io.Writer) (map[string]int, error) {
	res, err := a.stack.Up(ctx, optup.ProgressStreams(progress))
	if err != nil {
		return nil, err
	}
	return resourceChanges(res.Summary), nil
}

func (a *autoStack) Destroy(ctx context.Context, progress io.Writer) (map[string]int, error) {
	res, err := a.stack.Destroy(ctx, optdestroy.ProgressStreams(progress))
	if err != nil {
		return nil, err
	}
	return resourceChanges(res.Summary), nil
}

func resourceChanges(s auto.UpdateSummary) map[string]int {
	if s.ResourceChanges == nil {
		return map[string]int{}
	}
	changes := make(map[string]int, len(*s.ResourceChanges))
	for op, n := range *s.ResourceChanges {
		changes[op] = n
	}
	return changes
}
