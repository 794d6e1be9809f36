package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainFact        = "sift/fact/v1"
	DomainCombination = "sift/combination/v1"
	DomainBinding     = "sift/binding/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00}) // Null separator
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// FactHash computes the content-addressed identity of a declared fact.
// The seq number is part of the identity: declaring the same field values
// twice yields two distinct facts, and their hashes differ.
func FactHash(f Fact, seq int64) (string, error) {
	obj := Object{
		"kind":   String(f.Kind),
		"fields": f.Fields,
		"seq":    Int(seq),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("FactHash: failed to marshal: %w", err)
	}

	return hashWithDomain(DomainFact, canonical), nil
}

// CombinationHash identifies one (rule, fact combination) activation.
// Used as the refraction key: each combination fires exactly once per run.
func CombinationHash(ruleID string, factSeqs []int64) string {
	arr := make(Array, len(factSeqs))
	for i, s := range factSeqs {
		arr[i] = Int(s)
	}
	obj := Object{
		"rule":  String(ruleID),
		"facts": arr,
	}

	// Rule IDs and int arrays always marshal; ignore the impossible error.
	canonical, _ := MarshalCanonical(obj)
	return hashWithDomain(DomainCombination, canonical)
}

// BindingHash computes a stable hash of a binding environment.
// Recorded in run traces for diagnosing why a rule fired.
func BindingHash(b Bindings) (string, error) {
	canonical, err := MarshalCanonical(Object(b))
	if err != nil {
		return "", fmt.Errorf("BindingHash: failed to marshal: %w", err)
	}

	return hashWithDomain(DomainBinding, canonical), nil
}

// MustFactHash is like FactHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustFactHash(f Fact, seq int64) string {
	h, err := FactHash(f, seq)
	if err != nil {
		panic(err)
	}
	return h
}
