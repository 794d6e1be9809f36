package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sift/internal/ir"
	"github.com/roach88/sift/internal/query"
)

func sampleRun(token string, started time.Time) query.RunRecord {
	return query.RunRecord{
		Token:   token,
		RuleSet: "plants",
		Criteria: []ir.Fact{
			{Kind: "color_filter", Fields: ir.Object{"value": ir.String("красный")}},
			{Kind: "size_filter", Fields: ir.Object{"value": ir.String("маленький")}},
		},
		Facts: []query.FactRecord{
			{Seq: 1, Kind: "color_filter", Hash: "aa11", Fields: ir.Object{"value": ir.String("красный")}, Origin: query.OriginCriteria},
			{Seq: 2, Kind: "plant", Hash: "bb22", Fields: ir.Object{"name": ir.String("Роза"), "color": ir.String("красный")}, Origin: query.OriginRecord},
			{Seq: 3, Kind: "plant_answer", Hash: "cc33", Fields: ir.Object{"name": ir.String("Роза")}, Origin: query.OriginAnswer},
		},
		Firings: []query.FiringRecord{
			{Seq: 0, Pass: 0, RuleID: "plant-match", ComboHash: "dd44", FactSeqs: []int64{1, 2}, BindingHash: "ee55"},
		},
		Status:     "ok",
		StartedAt:  started,
		FinishedAt: started.Add(5 * time.Millisecond),
	}
}

func TestOpenCreatesDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Reopening an existing database is fine; the schema is idempotent.
	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	assert.NotNil(t, s.DB())
}

func TestRecordRunReadRunRoundTrip(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	started := time.Date(2026, 3, 14, 9, 26, 53, 589000000, time.UTC)
	want := sampleRun("run-1", started)
	require.NoError(t, s.RecordRun(ctx, want))

	got, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)

	assert.Equal(t, want.Token, got.Token)
	assert.Equal(t, want.RuleSet, got.RuleSet)
	assert.Equal(t, want.Status, got.Status)
	assert.Empty(t, got.Error)
	assert.True(t, got.StartedAt.Equal(want.StartedAt))
	assert.True(t, got.FinishedAt.Equal(want.FinishedAt))

	require.Len(t, got.Criteria, 2)
	assert.Equal(t, "color_filter", got.Criteria[0].Kind)
	assert.Equal(t, ir.String("красный"), got.Criteria[0].Fields["value"])

	require.Len(t, got.Facts, 3)
	assert.Equal(t, want.Facts, got.Facts)

	require.Len(t, got.Firings, 1)
	assert.Equal(t, want.Firings, got.Firings)
}

func TestRecordRunFailedStatus(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	run := sampleRun("run-failed", time.Now().UTC())
	run.Status = "failed"
	run.Error = "firing ceiling exceeded: 10000 firings"
	require.NoError(t, s.RecordRun(ctx, run))

	got, err := s.ReadRun(ctx, "run-failed")
	require.NoError(t, err)
	assert.Equal(t, "failed", got.Status)
	assert.Equal(t, run.Error, got.Error)
}

func TestRecordRunDuplicateTokenRejected(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	run := sampleRun("run-dup", time.Now().UTC())
	require.NoError(t, s.RecordRun(ctx, run))
	assert.Error(t, s.RecordRun(ctx, run))
}

func TestReadRunNotFound(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)
	defer s.Close()

	_, err = s.ReadRun(context.Background(), "no-such-run")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestReadRunEmptyTrace(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	run := query.RunRecord{
		Token:      "run-empty",
		RuleSet:    "flights",
		Status:     "ok",
		StartedAt:  time.Now().UTC(),
		FinishedAt: time.Now().UTC(),
	}
	require.NoError(t, s.RecordRun(ctx, run))

	got, err := s.ReadRun(ctx, "run-empty")
	require.NoError(t, err)
	assert.Empty(t, got.Criteria)
	assert.NotNil(t, got.Facts)
	assert.Empty(t, got.Facts)
	assert.NotNil(t, got.Firings)
	assert.Empty(t, got.Firings)
}

func TestListRuns(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	for i, token := range []string{"run-a", "run-b", "run-c"} {
		run := sampleRun(token, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, s.RecordRun(ctx, run))
	}

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	// Most recent first.
	assert.Equal(t, "run-c", runs[0].Token)
	assert.Equal(t, "run-b", runs[1].Token)
	assert.Equal(t, "run-a", runs[2].Token)

	limited, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "run-c", limited[0].Token)
}

func TestListRunsEmpty(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)
	defer s.Close()

	runs, err := s.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}
