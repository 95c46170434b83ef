// Package loader reads the source text of a graph from wherever it lives:
// local files, web pages or object storage.
package loader

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedSource is returned when no loader handles a reference.
var ErrUnsupportedSource = errors.New("unsupported source")

// TextLoader returns the plain text behind a source reference.
type TextLoader interface {
	LoadText(ctx context.Context, ref string) (string, error)
}

// Scheme returns the scheme of ref ("https", "s3", ...) or "" for plain paths.
func Scheme(ref string) string {
	i := strings.Index(ref, "://")
	if i <= 0 {
		return ""
	}
	return strings.ToLower(ref[:i])
}

// Mux dispatches a reference to the loader registered for its scheme.
// References without a scheme go to the "" loader.
type Mux struct {
	loaders map[string]TextLoader
}

func NewMux() *Mux {
	return &Mux{loaders: make(map[string]TextLoader)}
}

// Handle registers l for every scheme in schemes.
func (m *Mux) Handle(l TextLoader, schemes ...string) *Mux {
	for _, s := range schemes {
		m.loaders[strings.ToLower(s)] = l
	}
	return m
}

func (m *Mux) LoadText(ctx context.Context, ref string) (string, error) {
	scheme := Scheme(ref)
	l, ok := m.loaders[scheme]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedSource, scheme)
	}

	text, err := l.LoadText(ctx, ref)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("source %s is empty", ref)
	}
	return text, nil
}
