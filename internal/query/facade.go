package query

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/sift/internal/engine"
	"github.com/roach88/sift/internal/facts"
	"github.com/roach88/sift/internal/ir"
)

// Source supplies the candidate record facts for one query.
//
// Implementations wrap an in-memory catalog, a file, or an upstream HTTP
// API. A Fetch is a fallible, bounded-time operation: it must honor ctx
// cancellation, and its failure aborts the query before any fact is
// declared.
type Source interface {
	Fetch(ctx context.Context) ([]ir.Fact, error)
}

// TokenGenerator generates unique run tokens for request correlation.
// Implemented by UUIDGenerator (production) and testutil.FixedTokenGenerator.
type TokenGenerator interface {
	Generate() string
}

// UUIDGenerator issues random UUID run tokens.
type UUIDGenerator struct{}

// Generate returns a new UUID string.
func (UUIDGenerator) Generate() string {
	return uuid.NewString()
}

// Result is the outcome of one query run.
//
// Answers are in firing order - the order answer facts were produced, not
// input order. Within one evaluation pass there is no stable secondary
// ordering among answers of equal rank; callers must not depend on more.
// An empty Answers slice is a valid, successful outcome ("no matches"),
// distinct from an error.
type Result struct {
	RunToken string
	Answers  []ir.Fact
	Firings  int
}

// Recorder persists a completed run trace. Implementations live in the
// store package; a nil recorder disables tracing.
type Recorder interface {
	RecordRun(ctx context.Context, run RunRecord) error
}

// RunRecord is the full trace of one query run.
type RunRecord struct {
	Token      string
	RuleSet    string
	Criteria   []ir.Fact
	Facts      []FactRecord
	Firings    []FiringRecord
	Status     string // "ok" or "failed"
	Error      string // Non-empty only when Status is "failed"
	StartedAt  time.Time
	FinishedAt time.Time
}

// Fact origins within a run trace.
const (
	OriginCriteria = "criteria"
	OriginRecord   = "record"
	OriginAnswer   = "answer"
)

// FactRecord is one declared fact in a run trace.
type FactRecord struct {
	Seq    int64
	Kind   string
	Hash   string
	Fields ir.Object
	Origin string
}

// FiringRecord is one rule firing in a run trace.
type FiringRecord struct {
	Seq         int
	Pass        int
	RuleID      string
	ComboHash   string
	FactSeqs    []int64
	BindingHash string
}

// Facade builds the initial fact set from a caller's criteria plus a
// dataset, runs the engine, and extracts answer facts.
//
// A Facade is immutable after construction and safe for concurrent use:
// every Query call builds its own working memory and engine.
type Facade struct {
	rules      *ir.RuleSet
	name       string   // Rule set name, recorded in traces
	answers    []string // Answer kinds, extraction order
	tokens     TokenGenerator
	recorder   Recorder
	maxFirings int
}

// FacadeOption configures a Facade.
type FacadeOption func(*Facade)

// WithRecorder attaches a run-trace recorder.
func WithRecorder(r Recorder) FacadeOption {
	return func(f *Facade) {
		f.recorder = r
	}
}

// WithTokenGenerator replaces the run token generator (tests).
func WithTokenGenerator(g TokenGenerator) FacadeOption {
	return func(f *Facade) {
		f.tokens = g
	}
}

// WithMaxFirings overrides the engine firing ceiling.
func WithMaxFirings(n int) FacadeOption {
	return func(f *Facade) {
		f.maxFirings = n
	}
}

// NewFacade creates a façade over a validated rule set.
//
// answerKinds names the fact kinds produced only by rule actions; every
// name must be defined in the rule set. Queries extract exactly these.
func NewFacade(name string, rules *ir.RuleSet, answerKinds []string, opts ...FacadeOption) (*Facade, error) {
	if len(answerKinds) == 0 {
		return nil, fmt.Errorf("facade %s: no answer kinds", name)
	}
	for _, k := range answerKinds {
		if _, ok := rules.Kind(k); !ok {
			return nil, fmt.Errorf("facade %s: unknown answer kind %q", name, k)
		}
	}

	f := &Facade{
		rules:      rules,
		name:       name,
		answers:    answerKinds,
		tokens:     UUIDGenerator{},
		maxFirings: engine.DefaultMaxFirings,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Query runs one query: fetch records, declare facts, run to fixpoint,
// extract answers.
//
// The two observed declaration policies - "declare all records then let
// rules filter" and "declare only records already equal to the criteria" -
// are semantically equivalent for equality-only rules. This façade always
// declares all fetched records; pre-filtering belongs to the Source (see
// source.Static) and must not change the result set.
func (f *Facade) Query(ctx context.Context, criteria []ir.Fact, src Source) (Result, error) {
	token := f.tokens.Generate()
	started := time.Now()

	slog.Info("query starting",
		"run", token,
		"rule_set", f.name,
		"criteria", len(criteria),
	)

	// Fetch before any fact is declared. A source failure means the core
	// never sees a partially-formed record set.
	records, err := src.Fetch(ctx)
	if err != nil {
		slog.Error("source fetch failed", "run", token, "rule_set", f.name, "error", err)
		return Result{RunToken: token}, fmt.Errorf("fetch records: %w", err)
	}

	store := facts.NewStore()
	store.Reset() // Fresh working memory per query; nothing leaks across runs

	run := RunRecord{
		Token:     token,
		RuleSet:   f.name,
		Criteria:  criteria,
		StartedAt: started,
	}

	for _, c := range criteria {
		f.declare(store, &run, c, OriginCriteria)
	}
	for _, r := range records {
		f.declare(store, &run, r, OriginRecord)
	}

	var firings []FiringRecord
	eng := engine.New(f.rules, store,
		engine.WithRunToken(token),
		engine.WithMaxFirings(f.maxFirings),
		engine.WithObserver(func(fr engine.Firing) {
			bindingHash, hashErr := ir.BindingHash(fr.Bindings)
			if hashErr != nil {
				bindingHash = ""
			}
			firings = append(firings, FiringRecord{
				Seq:         fr.Seq,
				Pass:        fr.Pass,
				RuleID:      fr.RuleID,
				ComboHash:   fr.ComboHash,
				FactSeqs:    fr.FactSeqs,
				BindingHash: bindingHash,
			})
			for _, e := range fr.Produced {
				run.Facts = append(run.Facts, factRecord(e, OriginAnswer))
			}
		}),
	)

	runErr := eng.Run()
	run.Firings = firings
	run.FinishedAt = time.Now()

	if runErr != nil {
		run.Status = "failed"
		run.Error = runErr.Error()
		f.record(ctx, run)
		slog.Error("query failed", "run", token, "rule_set", f.name, "error", runErr)
		return Result{RunToken: token}, fmt.Errorf("engine run: %w", runErr)
	}

	result := Result{
		RunToken: token,
		Firings:  eng.Firings(),
	}
	for _, kind := range f.answers {
		it := store.Iterate(kind)
		for {
			entry, ok := it.Next()
			if !ok {
				break
			}
			result.Answers = append(result.Answers, entry.Fact)
		}
	}

	run.Status = "ok"
	f.record(ctx, run)

	slog.Info("query finished",
		"run", token,
		"rule_set", f.name,
		"answers", len(result.Answers),
		"firings", result.Firings,
	)

	return result, nil
}

func (f *Facade) declare(store *facts.Store, run *RunRecord, fact ir.Fact, origin string) {
	h := store.Declare(fact)
	run.Facts = append(run.Facts, factRecord(facts.Entry{Handle: h, Fact: fact}, origin))
}

func factRecord(e facts.Entry, origin string) FactRecord {
	hash, err := ir.FactHash(e.Fact, int64(e.Handle))
	if err != nil {
		hash = ""
	}
	return FactRecord{
		Seq:    int64(e.Handle),
		Kind:   e.Fact.Kind,
		Hash:   hash,
		Fields: e.Fact.Fields,
		Origin: origin,
	}
}

// record persists the run trace when a recorder is attached.
// Trace failures are logged, not surfaced - tracing is diagnostic, and a
// broken trace store must not turn successful queries into errors.
func (f *Facade) record(ctx context.Context, run RunRecord) {
	if f.recorder == nil {
		return
	}
	if err := f.recorder.RecordRun(ctx, run); err != nil {
		slog.Warn("run trace recording failed", "run", run.Token, "error", err)
	}
}
