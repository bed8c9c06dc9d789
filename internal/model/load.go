package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LoadDir reads every *.json model definition document in dir, attaches
// statically registered function bindings by model name, and builds the
// registry. Files are read in sorted name order so registration failures
// are deterministic.
func LoadDir(dir string, bindings map[string]*Bindings) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading models directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	defs := make([]*Definition, 0, len(files))
	for _, name := range files {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}

		def := &Definition{}
		if err := json.Unmarshal(data, def); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		if b, ok := bindings[def.Name]; ok {
			def.Functions = b
		}
		defs = append(defs, def)
	}

	return NewRegistry(defs...)
}
