package importer

import (
	"os"
	"strings"

	"github.com/hazyhaar/medrecon/pkg/sourcefile"
)

// readTable loads, decodes and parses one source file.
func readTable(path string) (*sourcefile.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text, err := sourcefile.Decode(data)
	if err != nil {
		return nil, err
	}
	return sourcefile.Parse(text), nil
}

// pick returns the first non-empty value among the given header aliases.
// Exports from different systems name the same column differently.
func pick(row sourcefile.Row, aliases ...string) string {
	for _, a := range aliases {
		if v, ok := row[a]; ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// joinNonEmpty concatenates parts with sep, skipping empties.
func joinNonEmpty(sep string, parts ...string) string {
	var kept []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, strings.TrimSpace(p))
		}
	}
	return strings.Join(kept, sep)
}
