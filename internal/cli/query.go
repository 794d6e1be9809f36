package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sift/internal/compiler"
	"github.com/roach88/sift/internal/domain"
	"github.com/roach88/sift/internal/engine"
	"github.com/roach88/sift/internal/ir"
	"github.com/roach88/sift/internal/query"
	"github.com/roach88/sift/internal/source"
	"github.com/roach88/sift/internal/store"
)

// QueryOptions holds flags shared by the query subcommands.
type QueryOptions struct {
	*RootOptions
	Catalog    string   // YAML catalog path
	URL        string   // Upstream JSON endpoint
	Params     []string // key=value query parameters for --url
	Rules      string   // Optional CUE rule-set override
	Database   string   // Optional trace database
	MaxFirings int
}

// QueryResult is the success payload of a query command.
type QueryResult struct {
	RunToken string `json:"run_token"`
	Firings  int    `json:"firings"`
	Answers  []any  `json:"answers"`
}

// NewQueryCommand creates the query command and its domain subcommands.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run a catalog query through the matching engine",
		Long: `Run a catalog query: criteria become filter facts, catalog records
become record facts, and the rules emit the matching answers.

Exactly one source is required: --catalog (YAML file) or --url (JSON
endpoint). With --db, the full run trace is recorded for later
inspection (sift trace) and replay (sift replay).`,
	}

	cmd.AddCommand(newQueryVacanciesCommand(rootOpts))
	cmd.AddCommand(newQueryPlantsCommand(rootOpts))
	cmd.AddCommand(newQueryFlightsCommand(rootOpts))

	return cmd
}

// addQueryFlags registers the source and trace flags shared by all
// query subcommands.
func addQueryFlags(cmd *cobra.Command, opts *QueryOptions) {
	cmd.Flags().StringVar(&opts.Catalog, "catalog", "", "path to YAML catalog file")
	cmd.Flags().StringVar(&opts.URL, "url", "", "upstream JSON endpoint")
	cmd.Flags().StringArrayVar(&opts.Params, "param", nil, "key=value query parameter for --url (repeatable)")
	cmd.Flags().StringVar(&opts.Rules, "rules", "", "CUE rule-set file overriding the built-in rules")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite trace database")
	cmd.Flags().IntVar(&opts.MaxFirings, "max-firings", engine.DefaultMaxFirings, "rule firing ceiling")
}

func newQueryVacanciesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}
	var (
		salary   int64
		location string
		text     string
	)

	cmd := &cobra.Command{
		Use:   "vacancies",
		Short: "Match job listings by salary range and location",
		Example: `  sift query vacancies --catalog jobs.yaml --salary 150000 --location Москва
  sift query vacancies --url https://example.com/vacancies --text python --salary 150000 --location Москва`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			criteria := domain.VacancyCriteria{Salary: salary, Location: location, Text: text}
			// Free text is an upstream search parameter, not a rule input.
			if text != "" {
				opts.Params = append(opts.Params, "text="+text)
			}
			return runQuery(opts, cmd, "vacancies", criteria.Facts())
		},
	}

	addQueryFlags(cmd, opts)
	cmd.Flags().Int64Var(&salary, "salary", 0, "desired salary, must fall inside the listing's range")
	cmd.Flags().StringVar(&location, "location", "", "required listing location")
	cmd.Flags().StringVar(&text, "text", "", "free-text search forwarded to --url sources")
	_ = cmd.MarkFlagRequired("location")

	return cmd
}

func newQueryPlantsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}
	var (
		color     string
		size      string
		plantType string
	)

	cmd := &cobra.Command{
		Use:   "plants",
		Short: "Match plants by color, size, and type",
		Example: `  sift query plants --catalog plants.yaml --color красный --size маленький --type цветок`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			criteria := domain.PlantCriteria{Color: color, Size: size, Type: plantType}
			return runQuery(opts, cmd, "plants", criteria.Facts())
		},
	}

	addQueryFlags(cmd, opts)
	cmd.Flags().StringVar(&color, "color", "", "required plant color")
	cmd.Flags().StringVar(&size, "size", "", "required plant size")
	cmd.Flags().StringVar(&plantType, "type", "", "required plant type")
	_ = cmd.MarkFlagRequired("color")
	_ = cmd.MarkFlagRequired("size")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}

func newQueryFlightsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}
	var (
		origin      string
		destination string
		maxPrice    int64
	)

	cmd := &cobra.Command{
		Use:   "flights",
		Short: "Match flights by route and price ceiling",
		Example: `  sift query flights --catalog flights.yaml --origin MOW --destination LED --max-price 500000`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			criteria := domain.FlightCriteria{Origin: origin, Destination: destination, MaxPrice: maxPrice}
			return runQuery(opts, cmd, "flights", criteria.Facts())
		},
	}

	addQueryFlags(cmd, opts)
	cmd.Flags().StringVar(&origin, "origin", "", "departure point")
	cmd.Flags().StringVar(&destination, "destination", "", "arrival point")
	cmd.Flags().Int64Var(&maxPrice, "max-price", 0, "price ceiling in minor currency units")
	_ = cmd.MarkFlagRequired("origin")
	_ = cmd.MarkFlagRequired("destination")

	return cmd
}

func runQuery(opts *QueryOptions, cmd *cobra.Command, domainName string, criteria []ir.Fact) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	ctx := context.Background()

	spec, err := resolveDomain(domainName)
	if err != nil {
		return WrapExitError(ExitCommandError, "resolve domain", err)
	}

	src, err := buildSource(opts, spec)
	if err != nil {
		_ = formatter.Error(ErrCodeUsage, err.Error(), nil)
		return WrapExitError(ExitCommandError, "build source", err)
	}

	facadeOpts := []query.FacadeOption{query.WithMaxFirings(opts.MaxFirings)}
	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			_ = formatter.Error(ErrCodeStore, err.Error(), nil)
			return WrapExitError(ExitCommandError, "open trace database", err)
		}
		defer st.Close()
		facadeOpts = append(facadeOpts, query.WithRecorder(st))
	}

	facade, fromAnswer, err := buildFacade(opts, spec, facadeOpts)
	if err != nil {
		_ = formatter.Error(ErrCodeCompile, err.Error(), nil)
		return WrapExitError(ExitCommandError, "build facade", err)
	}

	result, err := facade.Query(ctx, criteria, src)
	if err != nil {
		code := ErrCodeSource
		if engine.IsCeilingError(err) {
			code = ErrCodeEngine
		}
		_ = formatter.Error(code, err.Error(), nil)
		return WrapExitError(ExitFailure, "query failed", err)
	}

	formatter.VerboseLog("run %s: %d firing(s), %d answer(s)", result.RunToken, result.Firings, len(result.Answers))

	answers := make([]any, 0, len(result.Answers))
	for _, f := range result.Answers {
		a, err := fromAnswer(f)
		if err != nil {
			return WrapExitError(ExitFailure, "project answer", err)
		}
		answers = append(answers, a)
	}

	return outputQueryResult(formatter, QueryResult{
		RunToken: result.RunToken,
		Firings:  result.Firings,
		Answers:  answers,
	})
}

// buildSource selects the record source from the flags.
// Exactly one of --catalog and --url must be set.
func buildSource(opts *QueryOptions, spec domainSpec) (query.Source, error) {
	switch {
	case opts.Catalog != "" && opts.URL != "":
		return nil, fmt.Errorf("--catalog and --url are mutually exclusive")
	case opts.Catalog != "":
		return source.File{Path: opts.Catalog, Map: spec.MapRecord}, nil
	case opts.URL != "":
		params, err := parseParams(opts.Params)
		if err != nil {
			return nil, err
		}
		return source.HTTP{URL: opts.URL, Params: params, Map: spec.MapRecord}, nil
	default:
		return nil, fmt.Errorf("a source is required: --catalog or --url")
	}
}

// buildFacade returns the domain facade, or one compiled from a CUE
// rule-set override. Custom rule sets produce raw field-map answers since
// their answer shape is not known to the domain packages.
func buildFacade(opts *QueryOptions, spec domainSpec, facadeOpts []query.FacadeOption) (*query.Facade, func(ir.Fact) (any, error), error) {
	if opts.Rules == "" {
		facade, err := spec.Facade(facadeOpts...)
		return facade, spec.FromAnswer, err
	}

	def, err := compiler.CompileFile(opts.Rules)
	if err != nil {
		return nil, nil, err
	}
	facade, err := query.NewFacade(def.Name, def.RuleSet, def.Answers, facadeOpts...)
	if err != nil {
		return nil, nil, err
	}
	fromAnswer := func(f ir.Fact) (any, error) {
		return ir.ToGo(f.Fields), nil
	}
	return facade, fromAnswer, nil
}

func parseParams(pairs []string) (url.Values, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := url.Values{}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --param %q: want key=value", p)
		}
		params.Add(k, v)
	}
	return params, nil
}

func outputQueryResult(formatter *OutputFormatter, result QueryResult) error {
	if formatter.Format == "json" {
		return formatter.SuccessJSON(result)
	}

	w := formatter.Writer
	if len(result.Answers) == 0 {
		fmt.Fprintln(w, "No matches.")
	}
	for i, a := range result.Answers {
		line, err := json.Marshal(a)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%d. %s\n", i+1, line)
	}
	fmt.Fprintf(w, "\n%d answer(s), %d firing(s), run %s\n", len(result.Answers), result.Firings, result.RunToken)
	return nil
}
