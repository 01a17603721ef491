package adapter

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// ErrUnknownBuiltin indicates no built-in document has the requested name.
var ErrUnknownBuiltin = errors.New("adapter: unknown built-in")

//go:embed builtin/*.json builtin/*.yaml
var builtinFS embed.FS

// Builtin returns the embedded document for name ("claude", "gemini").
func Builtin(name string) (*Config, error) {
	entries, err := fs.ReadDir(builtinFS, "builtin")
	if err != nil {
		return nil, fmt.Errorf("adapter: built-ins: %w", err)
	}
	for _, e := range entries {
		if builtinName(e.Name()) != name {
			continue
		}
		p := path.Join("builtin", e.Name())
		data, err := builtinFS.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("adapter: built-in %s: %w", name, err)
		}
		cfg, err := Decode(data, FormatFromPath(p))
		if err != nil {
			return nil, fmt.Errorf("adapter: built-in %s: %w", name, err)
		}
		return cfg, nil
	}
	return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownBuiltin, name, strings.Join(BuiltinNames(), ", "))
}

// BuiltinNames lists the embedded document names in sorted order.
func BuiltinNames() []string {
	entries, _ := fs.ReadDir(builtinFS, "builtin") // embedded: cannot fail
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, builtinName(e.Name()))
	}
	sort.Strings(names)
	return names
}

func builtinName(file string) string {
	return strings.TrimSuffix(file, path.Ext(file))
}
