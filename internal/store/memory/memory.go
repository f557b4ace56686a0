// Package memory is an in-process store backend. Contents vanish with the
// process, so it is only useful for `labelmine run` and tests.
package memory

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/labelmine/internal/pathquery"
	"github.com/Adithya-Monish-Kumar-K/labelmine/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/labelmine/pkg/errors"
)

type node struct {
	col       store.Collection
	resources []resource
}

type resource struct {
	meta    store.Resource
	content []byte
}

type Store struct {
	mu    sync.RWMutex
	nodes map[string]*node
}

func New() *Store {
	root := store.Collection{Path: store.RootPath, Name: "db", Parent: "/", CreatedAt: time.Now().UTC()}
	return &Store{nodes: map[string]*node{store.RootPath: {col: root}}}
}

func (s *Store) Close() error { return nil }

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) GetCollection(ctx context.Context, path string) (store.Collection, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[store.Clean(path)]
	if !ok {
		return store.Collection{}, false, nil
	}
	return n.col, true, nil
}

func (s *Store) CreateCollection(ctx context.Context, parent, name string) (store.Collection, error) {
	if err := store.ValidateName(name); err != nil {
		return store.Collection{}, err
	}
	parent = store.Clean(parent)
	p := store.Join(parent, name)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[parent]; !ok {
		return store.Collection{}, store.NotFound(parent)
	}
	if _, ok := s.nodes[p]; ok {
		return store.Collection{}, apperrors.Newf(apperrors.ErrCollectionExists, "%s", p)
	}
	col := store.Collection{Path: p, Name: name, Parent: parent, CreatedAt: time.Now().UTC()}
	s.nodes[p] = &node{col: col}
	return col, nil
}

func (s *Store) RemoveCollection(ctx context.Context, path string) error {
	path = store.Clean(path)
	if store.IsRoot(path) {
		return apperrors.New(apperrors.ErrInvalidInput, "the root collection cannot be removed")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[path]; !ok {
		return store.NotFound(path)
	}
	for p := range s.nodes {
		if store.Within(p, path) {
			delete(s.nodes, p)
		}
	}
	return nil
}

func (s *Store) ListCollections(ctx context.Context, path string) ([]store.Collection, error) {
	path = store.Clean(path)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.nodes[path]; !ok {
		return nil, store.NotFound(path)
	}
	var out []store.Collection
	for _, n := range s.nodes {
		if n.col.Parent == path && n.col.Path != path {
			out = append(out, n.col)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CreateResource(ctx context.Context, parent string, content []byte) (store.Resource, error) {
	parent = store.Clean(parent)
	if err := pathquery.WellFormed(content); err != nil {
		return store.Resource{}, apperrors.Wrap(apperrors.ErrResourceWrite, err, "storing resource in %s", parent)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[parent]
	if !ok {
		return store.Resource{}, store.NotFound(parent)
	}
	meta := store.Resource{
		Name:       store.NewResourceName(),
		Collection: parent,
		Size:       len(content),
		CreatedAt:  time.Now().UTC(),
	}
	n.resources = append(n.resources, resource{meta: meta, content: bytes.Clone(content)})
	return meta, nil
}

func (s *Store) ListResources(ctx context.Context, path string) ([]store.Resource, error) {
	path = store.Clean(path)
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[path]
	if !ok {
		return nil, store.NotFound(path)
	}
	out := make([]store.Resource, 0, len(n.resources))
	for _, r := range n.resources {
		out = append(out, r.meta)
	}
	return out, nil
}

// Query snapshots the matching documents under the read lock; evaluation then
// runs without holding it.
func (s *Store) Query(ctx context.Context, path string, expr pathquery.Expr) (store.Results, error) {
	path = store.Clean(path)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.nodes[path]; !ok {
		return nil, store.NotFound(path)
	}
	var paths []string
	for p := range s.nodes {
		if store.Within(p, path) {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)

	src := &store.SliceSource{}
	for _, p := range paths {
		for _, r := range s.nodes[p].resources {
			src.Names = append(src.Names, r.meta.Path())
			src.Contents = append(src.Contents, r.content)
		}
	}
	return store.NewResults(src, expr), nil
}
