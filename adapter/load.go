package adapter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Format identifies the on-disk encoding of an adapter document.
type Format string

const (
	// FormatJSON accepts plain JSON and JSONC (comments, trailing commas).
	FormatJSON Format = "json"

	// FormatYAML accepts YAML 1.2.
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the document format from a file extension.
// ".yaml" and ".yml" select YAML; everything else is read as JSONC.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Load reads and validates the adapter document at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("adapter: reading %s: %w", path, err)
	}
	cfg, err := Decode(data, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Decode normalizes data from the given format to JSON and parses it.
func Decode(data []byte, format Format) (*Config, error) {
	switch format {
	case FormatYAML:
		normalized, err := yamlToJSON(data)
		if err != nil {
			return nil, err
		}
		return Parse(normalized)
	case FormatJSON, "":
		return Parse(jsonc.ToJSON(data))
	default:
		return nil, fmt.Errorf("adapter: unknown format %q", format)
	}
}

// yamlToJSON re-encodes a YAML document as JSON so that a single set of
// struct tags and one validation path serve every format.
func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("adapter: decode yaml: %w", err)
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("adapter: yaml to json: %w", err)
	}
	return out, nil
}
