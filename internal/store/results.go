package store

import (
	"bytes"
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/labelmine/internal/pathquery"
)

// DocumentSource yields stored documents one at a time. Backends implement it
// over their native cursor (sql.Rows, a SCAN iterator, a snapshot slice).
type DocumentSource interface {
	// NextDocument returns the next resource and its content; ok is false once
	// the source is exhausted.
	NextDocument(ctx context.Context) (resource string, content []byte, ok bool, err error)
	Close() error
}

// NewResults evaluates expr lazily over src: a document is fetched and parsed
// only when the matches of the previous one are consumed.
func NewResults(src DocumentSource, expr pathquery.Expr) Results {
	return &docResults{src: src, expr: expr}
}

type docResults struct {
	src      DocumentSource
	expr     pathquery.Expr
	resource string
	pending  []string
	pos      int
	current  Match
	err      error
	done     bool
}

func (r *docResults) Next(ctx context.Context) bool {
	if r.done || r.err != nil {
		return false
	}
	for r.pos >= len(r.pending) {
		if err := ctx.Err(); err != nil {
			r.err = err
			return false
		}
		resource, content, ok, err := r.src.NextDocument(ctx)
		if err != nil {
			r.err = fmt.Errorf("reading next document: %w", err)
			return false
		}
		if !ok {
			r.done = true
			return false
		}
		texts, err := r.expr.Collect(content)
		if err != nil {
			r.err = fmt.Errorf("evaluating %s on %s: %w", r.expr, resource, err)
			return false
		}
		r.resource, r.pending, r.pos = resource, texts, 0
	}
	r.current = Match{Resource: r.resource, Text: r.pending[r.pos]}
	r.pos++
	return true
}

func (r *docResults) Match() Match {
	return r.current
}

func (r *docResults) Err() error {
	return r.err
}

func (r *docResults) Close() error {
	r.done = true
	r.pending = nil
	return r.src.Close()
}

// SliceSource is a DocumentSource over documents already in memory.
type SliceSource struct {
	Names    []string
	Contents [][]byte
	pos      int
}

func (s *SliceSource) NextDocument(ctx context.Context) (string, []byte, bool, error) {
	if s.pos >= len(s.Names) {
		return "", nil, false, nil
	}
	name, content := s.Names[s.pos], s.Contents[s.pos]
	s.pos++
	return name, bytes.Clone(content), true, nil
}

func (s *SliceSource) Close() error {
	s.pos = len(s.Names)
	return nil
}
