package manifest

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/spf13/afero"

	"github.com/netlab-dev/azure-topology/pkg/config"
	"github.com/netlab-dev/azure-topology/pkg/topology"
)

func buildDefault(t *testing.T) *topology.Graph {
	t.Helper()
	cfg := config.Default()
	cfg.ResourceGroupName = "rg-manifest"
	cfg.AdminPassword = "s3cret-Passw0rd"
	g, _, err := topology.Build(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return g
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"yaml", FormatYAML, false},
		{"YML", FormatYAML, false},
		{"json", FormatJSON, false},
		{"d2", FormatD2, false},
		{"toml", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := map[string]Format{
		"out/topology.json": FormatJSON,
		"TOPOLOGY.JSON":     FormatJSON,
		"diagram.d2":        FormatD2,
		"topology.yaml":     FormatYAML,
		"topology":          FormatYAML,
	}
	for path, want := range tests {
		if got := FormatFromPath(path); got != want {
			t.Errorf("FormatFromPath(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestEncode_JSONEnvelope(t *testing.T) {
	g := buildDefault(t)

	data, err := Encode(g, FormatJSON)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	var doc struct {
		APIVersion string         `json:"apiVersion"`
		Kind       string         `json:"kind"`
		Summary    map[string]int `json:"summary"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if doc.APIVersion != apiVersion || doc.Kind != documentKind {
		t.Errorf("envelope = %s/%s, want %s/%s", doc.APIVersion, doc.Kind, apiVersion, documentKind)
	}
	if diff := cmp.Diff(g.Counts(), doc.Summary); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestEncode_NeverContainsPassword(t *testing.T) {
	g := buildDefault(t)

	for _, f := range Formats {
		data, err := Encode(g, f)
		if err != nil {
			t.Fatalf("Encode(%s) error = %v", f, err)
		}
		if bytes.Contains(data, []byte("s3cret-Passw0rd")) {
			t.Errorf("Encode(%s) output contains the admin password", f)
		}
	}
}

func TestEncode_UnsupportedFormat(t *testing.T) {
	if _, err := Encode(buildDefault(t), Format("xml")); err == nil {
		t.Error("Encode(xml) error = nil, want error")
	}
}

func TestWriteRead(t *testing.T) {
	g := buildDefault(t)

	for _, path := range []string{"out/nested/topology.yaml", "topology.json"} {
		t.Run(path, func(t *testing.T) {
			appFs := afero.NewMemMapFs()

			if err := Write(context.Background(), appFs, path, g, FormatFromPath(path)); err != nil {
				t.Fatalf("Write() error = %v", err)
			}

			got, err := Read(appFs, path)
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if diff := cmp.Diff(g, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("graph mismatch after write/read (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWrite_ReadOnlyFs(t *testing.T) {
	appFs := afero.NewReadOnlyFs(afero.NewMemMapFs())

	err := Write(context.Background(), appFs, "topology.yaml", buildDefault(t), FormatYAML)
	if err == nil {
		t.Fatal("Write() error = nil, want error on read-only fs")
	}
	if !strings.Contains(err.Error(), "failed to write manifest") {
		t.Errorf("Write() error = %v, want write failure", err)
	}
}

func TestRead_RejectsForeignDocument(t *testing.T) {
	appFs := afero.NewMemMapFs()
	if err := afero.WriteFile(appFs, "other.yaml", []byte("kind: Something\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Read(appFs, "other.yaml"); err == nil {
		t.Error("Read() error = nil, want error for foreign document")
	}
	if _, err := Read(appFs, "missing.yaml"); err == nil {
		t.Error("Read() error = nil, want error for missing file")
	}
}
