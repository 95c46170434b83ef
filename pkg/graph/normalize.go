package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// MaxPredicateWords bounds the length of every relation label.
const MaxPredicateWords = 3

var entityStopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "of": {}, "and": {}, "or": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "with": {},
	"by": {}, "as": {}, "is": {}, "was": {}, "are": {}, "were": {},
}

var predicateTrailingStopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "of": {}, "with": {}, "by": {},
	"to": {}, "from": {}, "in": {}, "on": {}, "for": {},
}

// Normalize maps an entity surface form to its canonical form: lowercased,
// trimmed, stopwords removed and words joined by single spaces.
// An entity made only of stopwords normalizes to "".
func Normalize(entity string) string {
	words := strings.Fields(strings.ToLower(entity))
	kept := words[:0]
	for _, w := range words {
		if _, stop := entityStopwords[w]; stop {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

// LimitPredicateLength shortens predicate to at most maxWords words and drops
// dangling trailing stopwords ("located in the" becomes "located"). At least
// one word is always kept. Predicates already within the limit are only trimmed.
func LimitPredicateLength(predicate string, maxWords int) string {
	if maxWords <= 0 {
		maxWords = MaxPredicateWords
	}
	words := strings.Fields(predicate)
	if len(words) <= maxWords {
		return strings.TrimSpace(predicate)
	}

	words = words[:maxWords]
	for len(words) > 1 {
		if _, stop := predicateTrailingStopwords[strings.ToLower(words[len(words)-1])]; !stop {
			break
		}
		words = words[:len(words)-1]
	}
	return strings.Join(words, " ")
}

// NormalizePredicate turns a raw predicate into a relation label: lowercased,
// whitespace collapsed and limited to MaxPredicateWords words.
func NormalizePredicate(predicate string) string {
	collapsed := strings.Join(strings.Fields(strings.ToLower(predicate)), " ")
	return LimitPredicateLength(collapsed, MaxPredicateWords)
}

// CanonicalLabel is the form a label is identified by: Normalize(label), or
// for a label made only of stopwords ("a", "IS") the lowercased label with
// whitespace collapsed. It is "" only for blank labels.
func CanonicalLabel(label string) string {
	if n := Normalize(label); n != "" {
		return n
	}
	return strings.Join(strings.Fields(strings.ToLower(label)), " ")
}

// NodeID derives the stable node identifier for a label: the first 16 hex
// characters of the SHA-256 digest of CanonicalLabel(label).
func NodeID(label string) string {
	sum := sha256.Sum256([]byte(CanonicalLabel(label)))
	return hex.EncodeToString(sum[:])[:16]
}
