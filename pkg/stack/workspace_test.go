package stack

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/netlab-dev/azure-topology/pkg/status"
)

type configValue struct {
	value  string
	secret bool
}

type fakeEngine struct {
	program pulumi.RunFunc
	config  map[string]configValue
	calls   []string
	changes map[string]int
	err     error
	cfgErr  error
}

func (f *fakeEngine) SetConfig(_ context.Context, key, value string, secret bool) error {
	if f.cfgErr != nil {
		return f.cfgErr
	}
	f.config[key] = configValue{value, secret}
	return nil
}

func (f *fakeEngine) record(op string) (map[string]int, error) {
	f.calls = append(f.calls, op)
	return f.changes, f.err
}

func (f *fakeEngine) Preview(context.Context, io.Writer) (map[string]int, error) {
	return f.record("preview")
}

// Up runs the inline program against mocks, the way the engine would.
func (f *fakeEngine) Up(context.Context, io.Writer) (map[string]int, error) {
	if err := pulumi.RunErr(f.program, pulumi.WithMocks("project", "stack", newMocks())); err != nil {
		return nil, err
	}
	return f.record("up")
}

func (f *fakeEngine) Destroy(context.Context, io.Writer) (map[string]int, error) {
	return f.record("destroy")
}

func newTestWorkspace(t *testing.T, eng *fakeEngine, opts Options) *Workspace {
	t.Helper()
	if eng.config == nil {
		eng.config = make(map[string]configValue)
	}
	w, err := NewWorkspace(defaultGraph(t), opts)
	if err != nil {
		t.Fatalf("NewWorkspace() error = %v", err)
	}
	w.open = func(_ context.Context, project, stack string, program pulumi.RunFunc) (engine, error) {
		if project == "" || stack == "" {
			t.Errorf("open(%q, %q), want non-empty project and stack", project, stack)
		}
		eng.program = program
		return eng, nil
	}
	return w
}

func TestNewWorkspace(t *testing.T) {
	g := defaultGraph(t)

	if _, err := NewWorkspace(g, Options{}); err == nil {
		t.Error("NewWorkspace() without password error = nil, want error")
	}

	w, err := NewWorkspace(g, Options{AdminPassword: "pw"})
	if err != nil {
		t.Fatalf("NewWorkspace() error = %v", err)
	}
	if w.opts.ProjectName != DefaultProjectName || w.opts.StackName != DefaultStackName {
		t.Errorf("defaults = %s/%s, want %s/%s", w.opts.ProjectName, w.opts.StackName, DefaultProjectName, DefaultStackName)
	}
	if w.opts.Location != g.ResourceGroup.Location {
		t.Errorf("Location = %q, want resource group location %q", w.opts.Location, g.ResourceGroup.Location)
	}
}

func TestWorkspace_Preview_SetsConfig(t *testing.T) {
	eng := &fakeEngine{changes: map[string]int{"create": 27}}
	w := newTestWorkspace(t, eng, Options{AdminPassword: "pw", Location: "westeurope"})

	sum, err := w.Preview(context.Background())
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}

	wantConfig := map[string]configValue{
		ConfigKeyLocation:      {"westeurope", false},
		ConfigKeyResourceGroup: {"rg-stack", false},
		ConfigKeyPassword:      {"pw", true},
	}
	if diff := cmp.Diff(wantConfig, eng.config, cmp.AllowUnexported(configValue{})); diff != "" {
		t.Errorf("stack config mismatch (-want +got):\n%s", diff)
	}
	if sum.Operation != status.ActionPreview || sum.Changes["create"] != 27 {
		t.Errorf("Summary = %+v, want preview with 27 creates", sum)
	}
}

func TestWorkspace_Operations(t *testing.T) {
	t.Setenv("PULUMI_CONFIG", `{"project:passwd":"pw"}`)

	tests := []struct {
		name string
		run  func(*Workspace, context.Context) (*Summary, error)
		call string
	}{
		{"preview", (*Workspace).Preview, "preview"},
		{"up", (*Workspace).Up, "up"},
		{"destroy", (*Workspace).Destroy, "destroy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := &fakeEngine{changes: map[string]int{}}
			w := newTestWorkspace(t, eng, Options{AdminPassword: "pw"})

			if _, err := tt.run(w, context.Background()); err != nil {
				t.Fatalf("%s() error = %v", tt.name, err)
			}
			if diff := cmp.Diff([]string{tt.call}, eng.calls); diff != "" {
				t.Errorf("engine calls mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWorkspace_Errors(t *testing.T) {
	t.Run("engine failure", func(t *testing.T) {
		boom := errors.New("boom")
		w := newTestWorkspace(t, &fakeEngine{err: boom}, Options{AdminPassword: "pw"})

		_, err := w.Destroy(context.Background())
		if !errors.Is(err, boom) {
			t.Fatalf("Destroy() error = %v, want wrapped boom", err)
		}
		if !strings.Contains(err.Error(), "destroy of stack dev failed") {
			t.Errorf("Destroy() error = %v, want operation context", err)
		}
	})

	t.Run("config failure", func(t *testing.T) {
		eng := &fakeEngine{cfgErr: errors.New("locked")}
		w := newTestWorkspace(t, eng, Options{AdminPassword: "pw"})

		if _, err := w.Preview(context.Background()); err == nil {
			t.Fatal("Preview() error = nil, want config error")
		}
		if len(eng.calls) != 0 {
			t.Errorf("engine calls = %v, want none after config failure", eng.calls)
		}
	})

	t.Run("open failure", func(t *testing.T) {
		w := newTestWorkspace(t, &fakeEngine{}, Options{AdminPassword: "pw"})
		w.open = func(context.Context, string, string, pulumi.RunFunc) (engine, error) {
			return nil, errors.New("no backend")
		}

		if _, err := w.Up(context.Background()); err == nil {
			t.Fatal("Up() error = nil, want open error")
		}
	})
}

func TestWorkspace_StatusUpdates(t *testing.T) {
	t.Setenv("PULUMI_CONFIG", `{"project:passwd":"pw"}`)

	ch := make(chan status.Update, 128)
	ctx := status.WithChannel(context.Background(), ch)
	w := newTestWorkspace(t, &fakeEngine{changes: map[string]int{"create": 27}}, Options{AdminPassword: "pw"})

	if _, err := w.Up(ctx); err != nil {
		t.Fatalf("Up() error = %v", err)
	}
	close(ch)

	var registered, applied int
	for u := range ch {
		switch u.Action {
		case status.ActionRegister:
			registered++
		case status.ActionApply:
			applied++
		}
	}
	// One progress update per resource plus the final registration summary.
	if want := len(w.graph.Resources()) + 1; registered != want {
		t.Errorf("register updates = %d, want %d", registered, want)
	}
	if applied != 3 {
		t.Errorf("apply updates = %d, want 3", applied)
	}
}
