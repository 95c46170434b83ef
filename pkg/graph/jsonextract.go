package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// JSONStage names the step of the recovery cascade that produced a value.
type JSONStage int

const (
	StageFailed JSONStage = iota
	StageDirect
	StageObject
	StageArray
	StageTrailingComma
	StageSalvaged
	StageRepaired
)

func (s JSONStage) String() string {
	switch s {
	case StageDirect:
		return "direct"
	case StageObject:
		return "object"
	case StageArray:
		return "array"
	case StageTrailingComma:
		return "trailing_comma"
	case StageSalvaged:
		return "salvaged"
	case StageRepaired:
		return "repaired"
	default:
		return "failed"
	}
}

// StageAttempt records why a stage of the cascade did not produce a value.
type StageAttempt struct {
	Stage JSONStage
	Err   error
}

// JSONResult is the outcome of ExtractJSON. Value is nil exactly when Stage is StageFailed.
type JSONResult struct {
	Value    any
	Stage    JSONStage
	Attempts []StageAttempt
}

// OK reports whether a value was recovered.
func (r JSONResult) OK() bool {
	return r.Stage != StageFailed
}

// Err summarizes the failed attempts, or returns nil when a value was recovered.
func (r JSONResult) Err() error {
	if r.OK() {
		return nil
	}
	errs := make([]error, 0, len(r.Attempts))
	for _, a := range r.Attempts {
		errs = append(errs, fmt.Errorf("%s: %w", a.Stage, a.Err))
	}
	return errors.Join(errs...)
}

var (
	errEmptyOutput   = errors.New("empty output")
	errNoJSON        = errors.New("no json object or array found")
	errUnbalanced    = errors.New("unbalanced brackets")
	errNoObjects     = errors.New("no complete objects")
	errNotContainer  = errors.New("repaired value is not an object or array")
	fencePattern     = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	trailingCommaPat = regexp.MustCompile(`,(\s*[}\]])`)
)

// ExtractJSON recovers a JSON value from free-form model output.
//
// The stages run in order and the first one that parses wins:
//
//  1. a fenced ```json block is unwrapped if present
//  2. the text is parsed as is
//  3. without any '[', the first balanced {...} object is parsed
//  4. the first balanced [...] array is parsed
//  5. trailing commas before } or ] are removed and the array parsed again
//  6. every complete, balanced {...} object is parsed on its own and collected
//  7. the remaining candidate is handed to jsonrepair
//
// Bracket matching ignores brackets inside string literals.
func ExtractJSON(raw string) JSONResult {
	var r JSONResult

	text := strings.TrimSpace(raw)
	if text == "" {
		r.fail(StageDirect, errEmptyOutput)
		return r
	}
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		if inner := strings.TrimSpace(m[1]); inner != "" {
			text = inner
		}
	}

	v, err := parseJSON(text)
	if err == nil {
		return r.ok(StageDirect, v)
	}
	r.fail(StageDirect, err)

	start := strings.IndexByte(text, '[')
	if start == -1 {
		return r.object(text)
	}

	end := matchClose(text, start, '[', ']')
	if end == -1 {
		r.fail(StageArray, errUnbalanced)
		return r.salvage(text[start:])
	}

	candidate := text[start : end+1]
	v, err = parseJSON(candidate)
	if err == nil {
		return r.ok(StageArray, v)
	}
	r.fail(StageArray, err)

	v, err = parseJSON(trailingCommaPat.ReplaceAllString(candidate, "$1"))
	if err == nil {
		return r.ok(StageTrailingComma, v)
	}
	r.fail(StageTrailingComma, err)

	return r.salvage(candidate)
}

func (r JSONResult) ok(stage JSONStage, v any) JSONResult {
	r.Stage = stage
	r.Value = v
	return r
}

func (r *JSONResult) fail(stage JSONStage, err error) {
	r.Attempts = append(r.Attempts, StageAttempt{Stage: stage, Err: err})
}

func (r JSONResult) object(text string) JSONResult {
	start := strings.IndexByte(text, '{')
	if start == -1 {
		r.fail(StageObject, errNoJSON)
		return r
	}

	end := matchClose(text, start, '{', '}')
	if end == -1 {
		r.fail(StageObject, errUnbalanced)
		return r.repair(text[start:])
	}

	v, err := parseJSON(text[start : end+1])
	if err == nil {
		return r.ok(StageObject, v)
	}
	r.fail(StageObject, err)
	return r.repair(text[start : end+1])
}

func (r JSONResult) salvage(text string) JSONResult {
	var objects []any
	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			if text[i] == '"' {
				i = skipString(text, i)
			}
			continue
		}
		end := matchClose(text, i, '{', '}')
		if end == -1 {
			break
		}
		if v, err := parseJSON(text[i : end+1]); err == nil {
			objects = append(objects, v)
		}
		i = end
	}
	if len(objects) > 0 {
		return r.ok(StageSalvaged, objects)
	}
	r.fail(StageSalvaged, errNoObjects)
	return r.repair(text)
}

func (r JSONResult) repair(text string) JSONResult {
	repaired, err := jsonrepair.JSONRepair(text)
	if err != nil {
		r.fail(StageRepaired, err)
		return r
	}
	v, err := parseJSON(repaired)
	if err != nil {
		r.fail(StageRepaired, err)
		return r
	}
	switch v.(type) {
	case []any, map[string]any:
		return r.ok(StageRepaired, v)
	}
	r.fail(StageRepaired, errNotContainer)
	return r
}

func parseJSON(s string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	return v, nil
}

// matchClose returns the index of the bracket closing the one at start, or -1.
func matchClose(s string, start int, open, close byte) int {
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '"':
			i = skipString(s, i)
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// skipString returns the index of the quote ending the string literal that
// starts at i, or len(s)-1 when the literal is unterminated.
func skipString(s string, i int) int {
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case '"':
			return j
		}
	}
	return len(s) - 1
}
