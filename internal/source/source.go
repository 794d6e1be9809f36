// Package source supplies candidate records to the query façade.
//
// Sources are the external-data collaborators of the core: they fetch raw
// records (in-memory catalog, file, upstream HTTP API), map them to record
// facts, and fail fast on malformed input. The core never receives a
// partially-formed record - a mapping error aborts the whole fetch.
package source

import (
	"context"
	"fmt"

	"github.com/roach88/sift/internal/ir"
)

// MapFunc maps one raw record to a record fact. The domain packages
// provide these (domain.VacancyFromRecord and friends).
type MapFunc func(map[string]any) (ir.Fact, error)

// FilterFunc optionally pre-filters raw records before mapping.
//
// Pre-filtering is an optimization only: dropping records the rules would
// reject anyway. It MUST NOT change the result set - "declare all records
// then let rules filter" and "declare only records already equal to the
// criteria" are equivalent policies, and the equivalence is tested.
type FilterFunc func(map[string]any) bool

// Static serves a fixed in-memory record slice.
type Static struct {
	Records []map[string]any
	Map     MapFunc
	Filter  FilterFunc // Optional
}

// Fetch maps the records to facts, applying the pre-filter if set.
func (s Static) Fetch(ctx context.Context) ([]ir.Fact, error) {
	out := make([]ir.Fact, 0, len(s.Records))
	for i, rec := range s.Records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.Filter != nil && !s.Filter(rec) {
			continue
		}
		f, err := s.Map(rec)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, f)
	}
	return out, nil
}

// Facts serves already-built record facts verbatim. Used when replaying a
// recorded run, where the records were mapped once at capture time.
type Facts []ir.Fact

// Fetch returns the facts unchanged.
func (f Facts) Fetch(ctx context.Context) ([]ir.Fact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f, nil
}
