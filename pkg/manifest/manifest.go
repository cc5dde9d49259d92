// Package manifest renders a topology graph for humans and for tooling.
package manifest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/netlab-dev/azure-topology/pkg/topology"
)

// Format selects the manifest encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"

	// FormatD2 is a diagram, write-only.
	FormatD2 Format = "d2"
)

// Formats lists the supported encodings.
var Formats = []Format{FormatYAML, FormatJSON, FormatD2}

// ParseFormat accepts a format name, case-insensitively. "yml" is an alias
// for YAML.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	case "d2":
		return FormatD2, nil
	}
	return "", fmt.Errorf("unsupported manifest format %q, must be one of: %v", s, Formats)
}

// FormatFromPath infers the format from a file extension, defaulting to YAML.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".d2":
		return FormatD2
	}
	return FormatYAML
}

// document is the envelope written to disk.
type document struct {
	APIVersion string          `json:"apiVersion" yaml:"api_version"`
	Kind       string          `json:"kind" yaml:"kind"`
	Summary    map[string]int  `json:"summary" yaml:"summary"`
	Graph      *topology.Graph `json:"graph" yaml:"graph"`
}

const (
	apiVersion   = "aztopo.netlab.dev/v1"
	documentKind = "TopologyManifest"
)

// Encode renders g in the requested format.
func Encode(g *topology.Graph, format Format) ([]byte, error) {
	if format == FormatD2 {
		var b bytes.Buffer
		if err := RenderD2(&b, g); err != nil {
			return nil, err
		}
		return b.Bytes(), nil
	}

	doc := document{
		APIVersion: apiVersion,
		Kind:       documentKind,
		Summary:    g.Counts(),
		Graph:      g,
	}

	switch format {
	case FormatYAML:
		return yaml.Marshal(doc)
	case FormatJSON:
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	}
	return nil, fmt.Errorf("unsupported manifest format %q", format)
}

// Write encodes g and writes it to path on appFs, creating parent
// directories as needed.
func Write(ctx context.Context, appFs afero.Fs, path string, g *topology.Graph, format Format) error {
	tracer := otel.Tracer("azure-topology")
	_, span := tracer.Start(ctx, "manifest.Write")
	defer span.End()

	span.SetAttributes(
		attribute.String("manifest.path", path),
		attribute.String("manifest.format", string(format)),
	)

	data, err := Encode(g, format)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := appFs.MkdirAll(dir, 0o755); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to create manifest directory %s: %w", dir, err)
		}
	}

	if err := afero.WriteFile(appFs, path, data, 0o644); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to write manifest %s: %w", path, err)
	}

	span.SetAttributes(attribute.Int("manifest.bytes", len(data)))
	return nil
}

// Read decodes a manifest previously produced by Write.
func Read(appFs afero.Fs, path string) (*topology.Graph, error) {
	format := FormatFromPath(path)
	if format == FormatD2 {
		return nil, fmt.Errorf("%s: d2 diagrams cannot be read back", path)
	}

	data, err := afero.ReadFile(appFs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}

	var doc document
	if format == FormatJSON {
		err = json.Unmarshal(data, &doc)
	} else {
		err = yaml.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	if doc.Kind != documentKind || doc.Graph == nil {
		return nil, fmt.Errorf("%s is not a %s", path, documentKind)
	}
	return doc.Graph, nil
}
