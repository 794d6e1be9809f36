package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/sift/internal/ir"
	"github.com/roach88/sift/internal/query"
	"github.com/roach88/sift/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunToken string
	Kind     string // optional - filter facts to one kind
	List     bool
	Limit    int
}

// TraceFact is one declared fact in the trace output.
type TraceFact struct {
	Seq    int64  `json:"seq"`
	Origin string `json:"origin"`
	Kind   string `json:"kind"`
	Hash   string `json:"hash"`
	Fields any    `json:"fields"`
}

// TraceFiring is one rule firing in the trace output.
type TraceFiring struct {
	Seq      int     `json:"seq"`
	Pass     int     `json:"pass"`
	RuleID   string  `json:"rule_id"`
	FactSeqs []int64 `json:"fact_seqs"`
}

// TraceResult holds the complete trace output for one run.
type TraceResult struct {
	RunToken string        `json:"run_token"`
	RuleSet  string        `json:"rule_set"`
	Status   string        `json:"status"`
	Error    string        `json:"error,omitempty"`
	Facts    []TraceFact   `json:"facts"`
	Firings  []TraceFiring `json:"firings"`
	Stats    TraceStats    `json:"stats"`
}

// TraceStats summarizes one run.
type TraceStats struct {
	Criteria int `json:"criteria"`
	Records  int `json:"records"`
	Answers  int `json:"answers"`
	Firings  int `json:"firings"`
}

// RunSummary is one row of `sift trace --list` output.
type RunSummary struct {
	RunToken string `json:"run_token"`
	RuleSet  string `json:"rule_set"`
	Status   string `json:"status"`
	Answers  int    `json:"answers"`
	Firings  int    `json:"firings"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect a recorded query run",
		Long: `Read one recorded run from the trace database and show its fact
timeline and rule firings.

The fact timeline is in declaration order: criteria first, then catalog
records, then answers as the rules produced them. Each firing names the
rule and the fact sequence numbers it joined.

Examples:
  sift trace --db ./sift.db --run 7f3c...
  sift trace --db ./sift.db --run 7f3c... --kind vacancy_answer
  sift trace --db ./sift.db --list`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite trace database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunToken, "run", "", "run token to inspect")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "filter facts to one kind")
	cmd.Flags().BoolVar(&opts.List, "list", false, "list recent runs instead of one trace")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum runs shown with --list")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	ctx := context.Background()

	st, err := store.Open(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "open trace database", err)
	}
	defer st.Close()

	if opts.List {
		return runTraceList(ctx, opts, formatter, st)
	}

	if opts.RunToken == "" {
		_ = formatter.Error(ErrCodeUsage, "--run is required without --list", nil)
		return NewExitError(ExitCommandError, "--run is required without --list")
	}

	run, err := st.ReadRun(ctx, opts.RunToken)
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			_ = formatter.Error(ErrCodeStore, fmt.Sprintf("run %s not found", opts.RunToken), nil)
			return WrapExitError(ExitCommandError, "run not found", err)
		}
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "read run", err)
	}

	result := buildTraceResult(run, opts.Kind)
	if formatter.Format == "json" {
		return formatter.SuccessJSON(result)
	}
	return outputTraceText(formatter, result)
}

func runTraceList(ctx context.Context, opts *TraceOptions, formatter *OutputFormatter, st *store.Store) error {
	runs, err := st.ListRuns(ctx, opts.Limit)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "list runs", err)
	}

	summaries := make([]RunSummary, 0, len(runs))
	for _, run := range runs {
		answers := 0
		for _, f := range run.Facts {
			if f.Origin == query.OriginAnswer {
				answers++
			}
		}
		summaries = append(summaries, RunSummary{
			RunToken: run.Token,
			RuleSet:  run.RuleSet,
			Status:   run.Status,
			Answers:  answers,
			Firings:  len(run.Firings),
		})
	}

	if formatter.Format == "json" {
		return formatter.SuccessJSON(summaries)
	}

	w := formatter.Writer
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No recorded runs.")
		return nil
	}
	for _, s := range summaries {
		fmt.Fprintf(w, "%s  %-10s %-6s %d answer(s), %d firing(s)\n",
			s.RunToken, s.RuleSet, s.Status, s.Answers, s.Firings)
	}
	return nil
}

// buildTraceResult projects a run record into the trace output shape.
// kindFilter drops non-matching facts but never firings.
func buildTraceResult(run query.RunRecord, kindFilter string) TraceResult {
	result := TraceResult{
		RunToken: run.Token,
		RuleSet:  run.RuleSet,
		Status:   run.Status,
		Error:    run.Error,
	}

	for _, f := range run.Facts {
		switch f.Origin {
		case query.OriginCriteria:
			result.Stats.Criteria++
		case query.OriginRecord:
			result.Stats.Records++
		case query.OriginAnswer:
			result.Stats.Answers++
		}
		if kindFilter != "" && f.Kind != kindFilter {
			continue
		}
		result.Facts = append(result.Facts, TraceFact{
			Seq:    f.Seq,
			Origin: f.Origin,
			Kind:   f.Kind,
			Hash:   f.Hash,
			Fields: ir.ToGo(f.Fields),
		})
	}

	for _, fr := range run.Firings {
		result.Firings = append(result.Firings, TraceFiring{
			Seq:      fr.Seq,
			Pass:     fr.Pass,
			RuleID:   fr.RuleID,
			FactSeqs: fr.FactSeqs,
		})
	}
	result.Stats.Firings = len(run.Firings)

	return result
}

func outputTraceText(formatter *OutputFormatter, result TraceResult) error {
	w := formatter.Writer

	fmt.Fprintf(w, "Run: %s (%s)\n", result.RunToken, result.RuleSet)
	fmt.Fprintf(w, "Status: %s\n", result.Status)
	if result.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", result.Error)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Facts ===")
	if len(result.Facts) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, f := range result.Facts {
		fmt.Fprintf(w, "  [%d] %-8s %s %s\n", f.Seq, f.Origin, f.Kind, compactJSON(f.Fields))
		formatter.VerboseLog("       hash: %s", f.Hash)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Firings ===")
	if len(result.Firings) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, fr := range result.Firings {
		fmt.Fprintf(w, "  [%d] pass %d: %s over facts %v\n", fr.Seq, fr.Pass, fr.RuleID, fr.FactSeqs)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Criteria: %d\n", result.Stats.Criteria)
	fmt.Fprintf(w, "  Records:  %d\n", result.Stats.Records)
	fmt.Fprintf(w, "  Answers:  %d\n", result.Stats.Answers)
	fmt.Fprintf(w, "  Firings:  %d\n", result.Stats.Firings)

	return nil
}

// compactJSON renders a fields map on one line. Canonical form keeps the
// key order stable across runs.
func compactJSON(v any) string {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
