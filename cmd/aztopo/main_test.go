package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"

	"github.com/netlab-dev/azure-topology/pkg/config"
	"github.com/netlab-dev/azure-topology/pkg/manifest"
	"github.com/netlab-dev/azure-topology/pkg/stack"
	"github.com/netlab-dev/azure-topology/pkg/status"
	"github.com/netlab-dev/azure-topology/pkg/topology"
)

// resetFlags puts every subcommand flag back to its default so commands can
// be executed repeatedly in one process.
func resetFlags(t *testing.T) {
	t.Helper()
	for _, cmd := range rootCmd.Commands() {
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			if err := f.Value.Set(f.DefValue); err != nil {
				t.Fatalf("reset flag %s: %v", f.Name, err)
			}
			f.Changed = false
		})
	}
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(t)

	var out, errOut bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(stdin))
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		slog.SetDefault(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	})

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func setTopologyEnv(t *testing.T) {
	t.Helper()
	t.Setenv(config.EnvResourceGroupName, "rg-cli")
	t.Setenv(config.EnvAdminPassword, "cli-Passw0rd")
}

func TestValidateCommand(t *testing.T) {
	setTopologyEnv(t)

	out, err := execute(t, "", "validate")
	if err != nil {
		t.Fatalf("validate error = %v", err)
	}
	for _, want := range []string{"Topology is valid", "rg-cli"} {
		if !strings.Contains(out, want) {
			t.Errorf("validate output missing %q:\n%s", want, out)
		}
	}
	for _, row := range []string{`virtual-machine\s*\|\s*4\s*\|`, `subnet\s*\|\s*9\s*\|`, `TOTAL\s*\|\s*27\s*\|`} {
		if !regexp.MustCompile(row).MatchString(out) {
			t.Errorf("validate table has no row matching %s:\n%s", row, out)
		}
	}
}

func TestValidateCommand_MissingPassword(t *testing.T) {
	t.Setenv(config.EnvResourceGroupName, "rg-cli")
	t.Setenv(config.EnvAdminPassword, "")

	if _, err := execute(t, "", "validate"); err == nil {
		t.Fatal("validate error = nil, want configuration error")
	}
}

func TestRenderCommand(t *testing.T) {
	setTopologyEnv(t)

	t.Run("json to stdout", func(t *testing.T) {
		out, err := execute(t, "", "render", "--format", "json")
		if err != nil {
			t.Fatalf("render error = %v", err)
		}
		var doc map[string]any
		if err := json.Unmarshal([]byte(out), &doc); err != nil {
			t.Fatalf("render output is not JSON: %v\n%s", err, out)
		}
		if strings.Contains(out, "cli-Passw0rd") {
			t.Error("rendered manifest contains the admin password")
		}
	})

	t.Run("to file", func(t *testing.T) {
		old := appFs
		appFs = afero.NewMemMapFs()
		t.Cleanup(func() { appFs = old })

		if _, err := execute(t, "", "render", "--output", "out/topology.yaml"); err != nil {
			t.Fatalf("render error = %v", err)
		}
		g, err := manifest.Read(appFs, "out/topology.yaml")
		if err != nil {
			t.Fatalf("manifest.Read() error = %v", err)
		}
		if g.ResourceGroup.Name != "rg-cli" {
			t.Errorf("manifest resource group = %q, want rg-cli", g.ResourceGroup.Name)
		}
	})

	t.Run("summary", func(t *testing.T) {
		out, err := execute(t, "", "render", "--summary")
		if err != nil {
			t.Fatalf("render error = %v", err)
		}
		if !strings.Contains(out, "WILL DECLARE") {
			t.Errorf("summary output missing WILL DECLARE:\n%s", out)
		}
	})

	t.Run("bad format", func(t *testing.T) {
		if _, err := execute(t, "", "render", "--format", "toml"); err == nil {
			t.Fatal("render error = nil, want format error")
		}
	})
}

func TestDefaultsCommand(t *testing.T) {
	out, err := execute(t, "", "defaults")
	if err != nil {
		t.Fatalf("defaults error = %v", err)
	}
	cfg, err := config.Parse([]byte(out))
	if err != nil {
		t.Fatalf("defaults output does not parse: %v", err)
	}
	if len(cfg.VNets) != 3 {
		t.Errorf("defaults vnets = %d, want 3", len(cfg.VNets))
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "", "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.Contains(out, "Version: "+version) {
		t.Errorf("version output = %q", out)
	}
}

func TestConfirmDestruction(t *testing.T) {
	cfg := config.Default()
	cfg.ResourceGroupName = "rg-cli"
	cfg.AdminPassword = "pw"
	g, _, err := topology.Build(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"confirmed", "yes\n", false},
		{"confirmed without newline", "yes", false},
		{"declined", "no\n", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := confirmDestruction(context.Background(), strings.NewReader(tt.input), &out, g, "dev")
			if (err != nil) != tt.wantErr {
				t.Fatalf("confirmDestruction() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !strings.Contains(out.String(), "Resource group:   rg-cli") {
				t.Errorf("prompt does not name the resource group:\n%s", out.String())
			}
		})
	}
}

func TestDestroyCommand_Declined(t *testing.T) {
	setTopologyEnv(t)

	_, err := execute(t, "no\n", "destroy")
	if err == nil || !strings.Contains(err.Error(), "cancelled") {
		t.Fatalf("destroy error = %v, want cancellation", err)
	}
}

func TestPrintChanges(t *testing.T) {
	var buf bytes.Buffer
	printChanges(&buf, &stack.Summary{Operation: "preview", Changes: map[string]int{"create": 27}})
	if !regexp.MustCompile(`create\s*\|\s*27\s*\|`).MatchString(buf.String()) {
		t.Errorf("changes table missing create row:\n%s", buf.String())
	}

	buf.Reset()
	printChanges(&buf, &stack.Summary{Operation: "destroy"})
	if !strings.Contains(buf.String(), "no resource changes") {
		t.Errorf("empty summary output = %q, want no-changes warning", buf.String())
	}
}

func TestWithTimeout(t *testing.T) {
	if _, _, err := withTimeout(context.Background(), "soon"); err == nil {
		t.Error("withTimeout(soon) error = nil, want parse error")
	}

	ctx, cancel, err := withTimeout(context.Background(), "1h")
	if err != nil {
		t.Fatalf("withTimeout(1h) error = %v", err)
	}
	defer cancel()
	if _, ok := ctx.Deadline(); !ok {
		t.Error("withTimeout(1h) context has no deadline")
	}
}

func TestStatusLogHandler(t *testing.T) {
	var buf bytes.Buffer
	old := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(old) })

	handler := statusLogHandler()
	handler(status.NewUpdate(status.LevelWarning, "region mismatch").
		WithResource(topology.KindVirtualMachine, "vm1").
		WithID("/subscriptions/x/vm1").
		WithAction(status.ActionDeclare).
		WithMetadata("region", "eastus"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log entry is not JSON: %v\n%s", err, buf.String())
	}

	want := map[string]string{
		"level":   "WARN",
		"msg":     "Warning",
		"message": "region mismatch",
		"kind":    topology.KindVirtualMachine,
		"name":    "vm1",
		"id":      "/subscriptions/x/vm1",
		"action":  status.ActionDeclare,
		"region":  "eastus",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("log field %s = %v, want %q", k, entry[k], v)
		}
	}
}
