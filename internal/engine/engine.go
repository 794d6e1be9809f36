package engine

import (
	"fmt"
	"log/slog"

	"github.com/roach88/sift/internal/facts"
	"github.com/roach88/sift/internal/ir"
)

// DefaultMaxFirings is the default firing ceiling per run.
// It sits well above the maximum possible distinct activations of the
// rule sets in scope; exceeding it means a rule set chains without bound.
const DefaultMaxFirings = 10000

// State tracks the engine's run lifecycle.
// Idle -> Running (on Run) -> Idle (fixpoint reached) or Failed (terminal).
type State int

const (
	// StateIdle means the engine is ready to run.
	StateIdle State = iota
	// StateRunning means Run is in progress.
	StateRunning
	// StateFailed is terminal: the run exceeded the ceiling or an action
	// failed. A failed engine never runs again; build a fresh one.
	StateFailed
)

// String returns the state name for diagnostics.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Firing describes one fired activation, in firing order.
// Observers receive firings for trace recording.
type Firing struct {
	Seq       int   // 0-based firing index within the run
	Pass      int   // Evaluation pass the activation was discovered in
	RuleID    string
	ComboHash string
	FactSeqs  []int64 // Handles of the matched facts, pattern-major
	Bindings  ir.Bindings
	Produced  []facts.Entry // Answer facts the action declared
}

// Observer receives firings as they happen. Implementations must be fast
// and must not touch working memory; the engine calls them synchronously.
type Observer func(Firing)

// Engine is the single-run forward-chaining evaluator.
//
// An engine instance drives one run over one working memory. The rule set
// is stateless and reusable across engines; working memory must be Reset
// (or fresh) before each run.
//
// Not safe for concurrent use - each query gets its own engine and store,
// so no locking is required.
//
// INVARIANTS:
//   - Rule order NEVER changes after RuleSet construction
//   - Every activation fires at most once (refraction)
//   - All mutation happens in the caller's goroutine during Run
type Engine struct {
	rules      *ir.RuleSet
	store      *facts.Store
	maxFirings int
	state      State
	fired      *refractionSet
	observer   Observer
	runToken   string
	firings    int
}

// Option configures an engine.
type Option func(*Engine)

// WithMaxFirings sets the firing ceiling per run.
//
// Default: 10000 (DefaultMaxFirings).
// Use WithMaxFirings(3) for testing ceiling enforcement.
func WithMaxFirings(n int) Option {
	return func(e *Engine) {
		e.maxFirings = n
	}
}

// WithObserver attaches a firing observer (trace recording).
func WithObserver(obs Observer) Option {
	return func(e *Engine) {
		e.observer = obs
	}
}

// WithRunToken tags the run for logs and error reports.
func WithRunToken(token string) Option {
	return func(e *Engine) {
		e.runToken = token
	}
}

// New creates an engine over a validated rule set and a working memory.
func New(rules *ir.RuleSet, store *facts.Store, opts ...Option) *Engine {
	e := &Engine{
		rules:      rules,
		store:      store,
		maxFirings: DefaultMaxFirings,
		state:      StateIdle,
		fired:      newRefractionSet(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State returns the engine's lifecycle state.
func (e *Engine) State() State {
	return e.state
}

// Firings returns the number of activations fired so far.
func (e *Engine) Firings() int {
	return e.firings
}

// Run evaluates rules to fixpoint.
//
// Each pass collects every newly-eligible activation across all rules,
// orders the agenda (salience desc, declaration order, discovery order),
// and fires each exactly once. Firing declares answer facts, which may in
// principle satisfy other rules, so passes repeat until one fires nothing.
//
// Returns CeilingExceededError (state Failed, terminal) if the run fires
// more than the ceiling - a rule-set defect, never a data problem, and
// never silent truncation.
func (e *Engine) Run() error {
	if e.state != StateIdle {
		return &RuntimeError{
			Code:     ErrCodeEngineBusy,
			Message:  fmt.Sprintf("engine is %s, want idle", e.state),
			RunToken: e.runToken,
		}
	}
	e.state = StateRunning

	slog.Debug("run starting",
		"run", e.runToken,
		"rules", len(e.rules.Rules()),
		"facts", e.store.Len(),
	)

	for pass := 0; ; pass++ {
		agenda := collectAgenda(e.rules.Rules(), e.store, e.fired)
		if len(agenda) == 0 {
			e.state = StateIdle
			slog.Debug("fixpoint reached",
				"run", e.runToken,
				"passes", pass,
				"firings", e.firings,
			)
			return nil
		}

		for _, act := range agenda {
			if e.firings+1 > e.maxFirings {
				e.state = StateFailed
				slog.Error("firing ceiling exceeded",
					"run", e.runToken,
					"firings", e.firings,
					"ceiling", e.maxFirings,
					"rule", act.rule.ID,
				)
				return &CeilingExceededError{
					RunToken: e.runToken,
					Firings:  e.firings + 1,
					Ceiling:  e.maxFirings,
				}
			}

			if err := e.fire(pass, act); err != nil {
				e.state = StateFailed
				return err
			}
		}
	}
}

// fire executes one activation: record refraction, run the action,
// declare the produced facts, notify the observer.
func (e *Engine) fire(pass int, act activation) error {
	e.fired.record(act.comboHash)

	produced, err := act.rule.Action(act.comb.bindings)
	if err != nil {
		return &RuntimeError{
			Code:     ErrCodeActionFailed,
			Message:  err.Error(),
			RunToken: e.runToken,
			RuleID:   act.rule.ID,
		}
	}

	entries := make([]facts.Entry, 0, len(produced))
	for _, f := range produced {
		if _, ok := e.rules.Kind(f.Kind); !ok {
			return &RuntimeError{
				Code:     ErrCodeActionFailed,
				Message:  fmt.Sprintf("action declared unknown kind %q", f.Kind),
				RunToken: e.runToken,
				RuleID:   act.rule.ID,
			}
		}
		h := e.store.Declare(f)
		entries = append(entries, facts.Entry{Handle: h, Fact: f})
	}

	firing := Firing{
		Seq:       e.firings,
		Pass:      pass,
		RuleID:    act.rule.ID,
		ComboHash: act.comboHash,
		FactSeqs:  act.factSeqs(),
		Bindings:  act.comb.bindings,
		Produced:  entries,
	}
	e.firings++

	slog.Debug("rule fired",
		"run", e.runToken,
		"rule", act.rule.ID,
		"firing_seq", firing.Seq,
		"pass", pass,
		"produced", len(entries),
	)

	if e.observer != nil {
		e.observer(firing)
	}

	return nil
}
