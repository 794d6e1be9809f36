package testutil

import (
	"fmt"
	"sync"
)

// FixedTokenGenerator returns the same run token every time.
//
// This enables deterministic test execution and golden snapshot comparison.
// The same scenario with the same FixedTokenGenerator produces byte-identical
// run traces.
//
// Thread-safety: FixedTokenGenerator is stateless and safe for concurrent use.
type FixedTokenGenerator struct {
	token string
}

// NewFixedTokenGenerator creates a new fixed run token generator.
//
// The token is typically set in the scenario YAML:
//
//	run_token: "test-run-00000000-0000-0000-0000-000000000001"
//
// If token is empty, Generate() returns "test-run-default".
func NewFixedTokenGenerator(token string) *FixedTokenGenerator {
	if token == "" {
		token = "test-run-default"
	}
	return &FixedTokenGenerator{token: token}
}

// Generate returns the fixed run token.
//
// Implements query.TokenGenerator.
func (g *FixedTokenGenerator) Generate() string {
	return g.token
}

// SequenceTokenGenerator returns "<prefix>-1", "<prefix>-2", ... in order.
//
// Used by tests that issue several queries against one facade and need to
// tell the resulting traces apart without real UUIDs.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SequenceTokenGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceTokenGenerator creates a sequence generator with the given
// prefix. An empty prefix defaults to "test-run".
func NewSequenceTokenGenerator(prefix string) *SequenceTokenGenerator {
	if prefix == "" {
		prefix = "test-run"
	}
	return &SequenceTokenGenerator{prefix: prefix}
}

// Generate returns the next token in the sequence.
//
// Implements query.TokenGenerator.
func (g *SequenceTokenGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
