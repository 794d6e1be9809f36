package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/sift/internal/harness"
)

// TestResult is the outcome of one scenario in the test report.
type TestResult struct {
	Name    string   `json:"name"`
	Pass    bool     `json:"pass"`
	Answers int      `json:"answers"`
	Firings int      `json:"firings"`
	Errors  []string `json:"errors,omitempty"`
}

// TestReport is the success payload of the test command.
type TestReport struct {
	Total   int          `json:"total"`
	Passed  int          `json:"passed"`
	Failed  int          `json:"failed"`
	Results []TestResult `json:"results"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run YAML query scenarios",
		Long: `Run every *.yaml scenario in a directory through the real matching
pipeline and report assertion results.

Exit code 0 when all scenarios pass, 1 when any fail.

Examples:
  sift test ./scenarios
  sift test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTest(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runTest(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	scenarios, err := harness.LoadScenarioDir(dir)
	if err != nil {
		_ = formatter.Error(ErrCodeUsage, err.Error(), nil)
		return WrapExitError(ExitCommandError, "load scenarios", err)
	}

	report := TestReport{Total: len(scenarios)}
	for _, scenario := range scenarios {
		formatter.VerboseLog("running scenario: %s", scenario.Name)

		result, err := harness.Run(scenario)
		if err != nil {
			report.Failed++
			report.Results = append(report.Results, TestResult{
				Name:   scenario.Name,
				Errors: []string{err.Error()},
			})
			continue
		}

		tr := TestResult{
			Name:    scenario.Name,
			Pass:    result.Pass,
			Answers: len(result.Answers),
			Firings: len(result.Run.Firings),
			Errors:  result.Errors,
		}
		if result.Pass {
			report.Passed++
		} else {
			report.Failed++
		}
		report.Results = append(report.Results, tr)
	}

	if err := outputTestReport(formatter, report); err != nil {
		return err
	}
	if report.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenario(s) failed", report.Failed, report.Total))
	}
	return nil
}

func outputTestReport(formatter *OutputFormatter, report TestReport) error {
	if formatter.Format == "json" {
		return formatter.SuccessJSON(report)
	}

	w := formatter.Writer
	for _, r := range report.Results {
		if r.Pass {
			fmt.Fprintf(w, "✓ %s (%d answer(s), %d firing(s))\n", r.Name, r.Answers, r.Firings)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", r.Name)
		for _, e := range r.Errors {
			fmt.Fprintf(w, "    %s\n", e)
		}
	}
	fmt.Fprintf(w, "\n%d passed, %d failed, %d total\n", report.Passed, report.Failed, report.Total)
	return nil
}
