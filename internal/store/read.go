package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/sift/internal/ir"
	"github.com/roach88/sift/internal/query"
)

// ErrRunNotFound is returned when no run exists for a token.
var ErrRunNotFound = errors.New("run not found")

// ReadRun returns the full trace for a run token.
// Facts and firings are ordered by seq ASC for deterministic comparison.
func (s *Store) ReadRun(ctx context.Context, token string) (query.RunRecord, error) {
	var (
		run           query.RunRecord
		criteriaJSON  string
		startedAtRaw  string
		finishedAtRaw string
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT token, rule_set, criteria, status, error, started_at, finished_at
		FROM runs WHERE token = ?
	`, token).Scan(
		&run.Token,
		&run.RuleSet,
		&criteriaJSON,
		&run.Status,
		&run.Error,
		&startedAtRaw,
		&finishedAtRaw,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return query.RunRecord{}, fmt.Errorf("%w: %s", ErrRunNotFound, token)
	}
	if err != nil {
		return query.RunRecord{}, fmt.Errorf("read run %s: %w", token, err)
	}

	run.Criteria, err = unmarshalFacts(criteriaJSON)
	if err != nil {
		return query.RunRecord{}, fmt.Errorf("read run %s: criteria: %w", token, err)
	}
	if t, perr := time.Parse(time.RFC3339Nano, startedAtRaw); perr == nil {
		run.StartedAt = t
	}
	if t, perr := time.Parse(time.RFC3339Nano, finishedAtRaw); perr == nil {
		run.FinishedAt = t
	}

	run.Facts, err = s.readRunFacts(ctx, token)
	if err != nil {
		return query.RunRecord{}, err
	}

	run.Firings, err = s.readRunFirings(ctx, token)
	if err != nil {
		return query.RunRecord{}, err
	}

	return run, nil
}

// ListRuns returns run tokens with status, most recent first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]query.RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT token, rule_set, status, error, started_at
		FROM runs ORDER BY started_at DESC, token ASC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []query.RunRecord
	for rows.Next() {
		var (
			run        query.RunRecord
			startedRaw string
		)
		if err := rows.Scan(&run.Token, &run.RuleSet, &run.Status, &run.Error, &startedRaw); err != nil {
			return nil, fmt.Errorf("list runs: scan: %w", err)
		}
		if t, perr := time.Parse(time.RFC3339Nano, startedRaw); perr == nil {
			run.StartedAt = t
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: iterate: %w", err)
	}

	if runs == nil {
		runs = []query.RunRecord{}
	}
	return runs, nil
}

func (s *Store) readRunFacts(ctx context.Context, token string) ([]query.FactRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, kind, hash, fields, origin
		FROM run_facts WHERE run_token = ?
		ORDER BY seq ASC
	`, token)
	if err != nil {
		return nil, fmt.Errorf("read run facts: %w", err)
	}
	defer rows.Close()

	var out []query.FactRecord
	for rows.Next() {
		var (
			f          query.FactRecord
			fieldsJSON string
		)
		if err := rows.Scan(&f.Seq, &f.Kind, &f.Hash, &fieldsJSON, &f.Origin); err != nil {
			return nil, fmt.Errorf("read run facts: scan: %w", err)
		}
		if err := json.Unmarshal([]byte(fieldsJSON), &f.Fields); err != nil {
			return nil, fmt.Errorf("read run facts: seq %d: %w", f.Seq, err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read run facts: iterate: %w", err)
	}

	if out == nil {
		out = []query.FactRecord{}
	}
	return out, nil
}

func (s *Store) readRunFirings(ctx context.Context, token string) ([]query.FiringRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, pass, rule_id, combo_hash, fact_seqs, binding_hash
		FROM run_firings WHERE run_token = ?
		ORDER BY seq ASC
	`, token)
	if err != nil {
		return nil, fmt.Errorf("read run firings: %w", err)
	}
	defer rows.Close()

	var out []query.FiringRecord
	for rows.Next() {
		var (
			fr       query.FiringRecord
			seqsJSON string
		)
		if err := rows.Scan(&fr.Seq, &fr.Pass, &fr.RuleID, &fr.ComboHash, &seqsJSON, &fr.BindingHash); err != nil {
			return nil, fmt.Errorf("read run firings: scan: %w", err)
		}
		if err := json.Unmarshal([]byte(seqsJSON), &fr.FactSeqs); err != nil {
			return nil, fmt.Errorf("read run firings: seq %d: %w", fr.Seq, err)
		}
		out = append(out, fr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read run firings: iterate: %w", err)
	}

	if out == nil {
		out = []query.FiringRecord{}
	}
	return out, nil
}

// unmarshalFacts decodes a JSON array of {kind, fields} objects.
func unmarshalFacts(data string) ([]ir.Fact, error) {
	var raw []struct {
		Kind   string    `json:"kind"`
		Fields ir.Object `json:"fields"`
	}
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return nil, err
	}
	out := make([]ir.Fact, len(raw))
	for i, r := range raw {
		out[i] = ir.Fact{Kind: r.Kind, Fields: r.Fields}
	}
	return out, nil
}
