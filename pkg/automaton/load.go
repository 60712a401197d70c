package automaton

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Load reads an automaton file, choosing the reader by extension: .dot and
// .gv are parsed as ltlf2dfa/MONA output and expanded over alphabet, .yaml
// and .yml are read as hand-authored documents.
func Load(path string, alphabet []string) (*DFA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open automaton %q: %w", path, err)
	}
	defer f.Close()

	var d *DFA
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".dot", ".gv":
		d, err = ParseDOT(f, alphabet)
	case ".yaml", ".yml":
		d, err = ParseYAML(f)
	default:
		return nil, fmt.Errorf("automaton %q: unsupported extension %q", path, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("load automaton %q: %w", path, err)
	}
	return d, nil
}

// Find returns the first existing automaton file for base, trying the DOT
// extensions before YAML. It returns "" when none exists.
func Find(base string) string {
	for _, ext := range []string{".dot", ".gv", ".yaml", ".yml"} {
		if _, err := os.Stat(base + ext); err == nil {
			return base + ext
		}
	}
	return ""
}
