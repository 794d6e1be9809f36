package source

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/sift/internal/ir"
)

// File reads a YAML catalog: a document whose top level is a `records`
// list of flat field maps.
type File struct {
	Path string
	Map  MapFunc
}

type catalogDoc struct {
	Records []map[string]any `yaml:"records"`
}

// Fetch loads and maps the catalog file.
func (f File) Fetch(ctx context.Context) ([]ir.Fact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var doc catalogDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", f.Path, err)
	}

	out := make([]ir.Fact, 0, len(doc.Records))
	for i, rec := range doc.Records {
		fact, err := f.Map(rec)
		if err != nil {
			return nil, fmt.Errorf("catalog %s record %d: %w", f.Path, i, err)
		}
		out = append(out, fact)
	}
	return out, nil
}
