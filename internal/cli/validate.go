package cli

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/sift/internal/compiler"
)

// ValidationResult holds the outcome of validating a rule-set file.
type ValidationResult struct {
	Valid   bool     `json:"valid"`
	Name    string   `json:"name,omitempty"`
	Kinds   []string `json:"kinds,omitempty"`
	Rules   []string `json:"rules,omitempty"`
	Answers []string `json:"answers,omitempty"`
	Error   *CLIError `json:"error,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <rules.cue>",
		Short: "Validate a CUE rule-set file without running it",
		Long: `Compile a CUE rule-set document and report definition errors.

Runs the full construction-time validation: kind and field types,
pattern references, test and answer variable closure, and answer kind
checks. Nothing is executed.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	def, err := compiler.CompileFile(path)
	if err != nil {
		return outputValidateFailure(formatter, err)
	}

	result := ValidationResult{Valid: true, Name: def.Name, Answers: def.Answers}
	for name := range def.RuleSet.Kinds() {
		result.Kinds = append(result.Kinds, name)
	}
	sort.Strings(result.Kinds)
	for _, r := range def.RuleSet.Rules() {
		result.Rules = append(result.Rules, r.ID)
	}

	if formatter.Format == "json" {
		return formatter.SuccessJSON(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ %s is valid\n", path)
	fmt.Fprintf(w, "  rule set: %s\n", result.Name)
	fmt.Fprintf(w, "  kinds:    %d\n", len(result.Kinds))
	fmt.Fprintf(w, "  rules:    %d\n", len(result.Rules))
	fmt.Fprintf(w, "  answers:  %v\n", result.Answers)
	return nil
}

func outputValidateFailure(formatter *OutputFormatter, err error) error {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		details := map[string]any{"field": compileErr.Field}
		if compileErr.Pos.IsValid() {
			details["line"] = compileErr.Pos.Line()
		}
		_ = formatter.Error(ErrCodeCompile, compileErr.Message, details)
		return NewExitError(ExitFailure, "validation failed")
	}

	// Read failures and CUE syntax errors are command errors.
	_ = formatter.Error(ErrCodeCompile, err.Error(), nil)
	return WrapExitError(ExitCommandError, "validation failed", err)
}
