package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/sift/internal/ir"
	"github.com/roach88/sift/internal/query"
	"github.com/roach88/sift/internal/source"
	"github.com/roach88/sift/internal/store"
)

// replayToken issues the derived token for a replay run.
type replayToken string

func (t replayToken) Generate() string { return string(t) }

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunToken string
}

// ReplayResult reports whether a re-run reproduced the recorded answers.
type ReplayResult struct {
	RunToken      string   `json:"run_token"`
	RuleSet       string   `json:"rule_set"`
	Deterministic bool     `json:"deterministic"`
	Recorded      int      `json:"recorded_answers"`
	Replayed      int      `json:"replayed_answers"`
	Divergences   []string `json:"divergences,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-run a recorded query and verify determinism",
		Long: `Re-run a recorded query from its trace and compare the answers.

The recorded criteria and catalog record facts are fed back through the
engine with the same rule set. A deterministic engine must reproduce the
recorded answer facts in the recorded order; any divergence is reported
and the command exits non-zero.

Examples:
  sift replay --db ./sift.db --run 7f3c...`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite trace database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunToken, "run", "", "run token to replay (required)")
	_ = cmd.MarkFlagRequired("run")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
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

	run, err := st.ReadRun(ctx, opts.RunToken)
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			_ = formatter.Error(ErrCodeStore, fmt.Sprintf("run %s not found", opts.RunToken), nil)
			return WrapExitError(ExitCommandError, "run not found", err)
		}
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "read run", err)
	}

	spec, err := resolveDomain(run.RuleSet)
	if err != nil {
		_ = formatter.Error(ErrCodeUsage, err.Error(), nil)
		return WrapExitError(ExitCommandError, "resolve domain", err)
	}

	facade, err := spec.Facade(
		query.WithTokenGenerator(replayToken(run.Token + "-replay")),
	)
	if err != nil {
		return WrapExitError(ExitCommandError, "build facade", err)
	}

	records, recorded := splitRunFacts(run)
	res, err := facade.Query(ctx, run.Criteria, source.Facts(records))
	if err != nil {
		_ = formatter.Error(ErrCodeEngine, err.Error(), nil)
		return WrapExitError(ExitFailure, "replay run failed", err)
	}

	result := ReplayResult{
		RunToken: run.Token,
		RuleSet:  run.RuleSet,
		Recorded: len(recorded),
		Replayed: len(res.Answers),
	}
	result.Divergences = diffAnswers(recorded, res.Answers)
	result.Deterministic = len(result.Divergences) == 0

	if err := outputReplayResult(formatter, result); err != nil {
		return err
	}
	if !result.Deterministic {
		return NewExitError(ExitFailure, "replay diverged from recorded answers")
	}
	return nil
}

// splitRunFacts rebuilds the record facts and the recorded answer facts
// from the trace, both in declaration order.
func splitRunFacts(run query.RunRecord) (records, answers []ir.Fact) {
	for _, f := range run.Facts {
		fact := ir.Fact{Kind: f.Kind, Fields: f.Fields}
		switch f.Origin {
		case query.OriginRecord:
			records = append(records, fact)
		case query.OriginAnswer:
			answers = append(answers, fact)
		}
	}
	return records, answers
}

// diffAnswers compares recorded and replayed answers positionally.
// Answer order is part of the determinism contract.
func diffAnswers(recorded, replayed []ir.Fact) []string {
	var divergences []string
	n := len(recorded)
	if len(replayed) > n {
		n = len(replayed)
	}
	for i := 0; i < n; i++ {
		switch {
		case i >= len(replayed):
			divergences = append(divergences, fmt.Sprintf("answer %d: recorded %s, missing on replay", i, recorded[i].Kind))
		case i >= len(recorded):
			divergences = append(divergences, fmt.Sprintf("answer %d: extra %s on replay", i, replayed[i].Kind))
		case !recorded[i].Equal(replayed[i]):
			divergences = append(divergences, fmt.Sprintf("answer %d: recorded and replayed facts differ", i))
		}
	}
	return divergences
}

func outputReplayResult(formatter *OutputFormatter, result ReplayResult) error {
	if formatter.Format == "json" {
		return formatter.SuccessJSON(result)
	}

	w := formatter.Writer
	if result.Deterministic {
		fmt.Fprintf(w, "✓ Replay of %s is deterministic: %d answer(s) reproduced\n", result.RunToken, result.Recorded)
		return nil
	}
	fmt.Fprintf(w, "✗ Replay of %s diverged (%d recorded, %d replayed)\n", result.RunToken, result.Recorded, result.Replayed)
	for _, d := range result.Divergences {
		fmt.Fprintf(w, "  %s\n", d)
	}
	return nil
}
