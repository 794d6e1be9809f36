package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/sift/internal/ir"
	"github.com/roach88/sift/internal/query"
)

// RecordRun writes one completed run trace atomically.
//
// The run row, its facts, and its firings land in a single transaction:
// a trace is either fully present or absent, never partial. Re-recording
// an existing token is rejected - run tokens are unique per run.
//
// Criteria facts and fact fields are serialized to canonical JSON per
// RFC 8785 for deterministic replay comparison.
func (s *Store) RecordRun(ctx context.Context, run query.RunRecord) error {
	criteriaJSON, err := marshalFacts(run.Criteria)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record run: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (token, rule_set, criteria, status, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		run.Token,
		run.RuleSet,
		criteriaJSON,
		run.Status,
		run.Error,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.Token, err)
	}

	for _, f := range run.Facts {
		fieldsJSON, err := ir.MarshalCanonical(f.Fields)
		if err != nil {
			return fmt.Errorf("record run %s: fact seq %d: %w", run.Token, f.Seq, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_facts (run_token, seq, kind, hash, fields, origin)
			VALUES (?, ?, ?, ?, ?, ?)
		`, run.Token, f.Seq, f.Kind, f.Hash, string(fieldsJSON), f.Origin)
		if err != nil {
			return fmt.Errorf("record run %s: fact seq %d: %w", run.Token, f.Seq, err)
		}
	}

	for _, fr := range run.Firings {
		seqsJSON, err := marshalSeqs(fr.FactSeqs)
		if err != nil {
			return fmt.Errorf("record run %s: firing %d: %w", run.Token, fr.Seq, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_firings (run_token, seq, pass, rule_id, combo_hash, fact_seqs, binding_hash)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, run.Token, fr.Seq, fr.Pass, fr.RuleID, fr.ComboHash, seqsJSON, fr.BindingHash)
		if err != nil {
			return fmt.Errorf("record run %s: firing %d: %w", run.Token, fr.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record run %s: commit: %w", run.Token, err)
	}
	return nil
}

// marshalFacts serializes facts to a canonical JSON array.
func marshalFacts(fs []ir.Fact) (string, error) {
	arr := make(ir.Array, len(fs))
	for i, f := range fs {
		arr[i] = ir.Object{
			"kind":   ir.String(f.Kind),
			"fields": f.Fields,
		}
	}
	data, err := ir.MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("marshal facts: %w", err)
	}
	return string(data), nil
}

// marshalSeqs serializes fact handles to a canonical JSON array.
func marshalSeqs(seqs []int64) (string, error) {
	arr := make(ir.Array, len(seqs))
	for i, s := range seqs {
		arr[i] = ir.Int(s)
	}
	data, err := ir.MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("marshal seqs: %w", err)
	}
	return string(data), nil
}
