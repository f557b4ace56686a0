// Package redis is a store backend over Redis. The hierarchy is kept in a
// handful of keys per collection under a configurable prefix:
//
//	<prefix>:col:<path>        hash  parent, name, created_at
//	<prefix>:children:<path>   set   child collection names
//	<prefix>:resources:<path>  list  resource names in insertion order
//	<prefix>:res:<path>/<name> hash  content, size, created_at
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Adithya-Monish-Kumar-K/labelmine/internal/pathquery"
	"github.com/Adithya-Monish-Kumar-K/labelmine/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/labelmine/pkg/errors"
	pkgredis "github.com/Adithya-Monish-Kumar-K/labelmine/pkg/redis"
)

type Store struct {
	client *pkgredis.Client
	prefix string
	logger *slog.Logger
}

// New wraps client and makes sure the root collection exists.
func New(ctx context.Context, client *pkgredis.Client, prefix string) (*Store, error) {
	s := &Store{
		client: client,
		prefix: prefix,
		logger: slog.Default().With("component", "redis-store"),
	}
	created, err := client.HSetNX(ctx, s.colKey(store.RootPath), "name", "db")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrConnection, err, "creating root collection")
	}
	if created {
		err = client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			p.HSet(ctx, s.colKey(store.RootPath), "parent", "/", "created_at", nanos(time.Now()))
			return nil
		})
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrConnection, err, "creating root collection")
		}
	}
	return s, nil
}

func (s *Store) colKey(p string) string       { return s.prefix + ":col:" + p }
func (s *Store) childrenKey(p string) string  { return s.prefix + ":children:" + p }
func (s *Store) resourcesKey(p string) string { return s.prefix + ":resources:" + p }
func (s *Store) resKey(p string) string       { return s.prefix + ":res:" + p }

func nanos(t time.Time) string {
	return strconv.FormatInt(t.UTC().UnixNano(), 10)
}

func parseNanos(v string) time.Time {
	n, _ := strconv.ParseInt(v, 10, 64)
	return time.Unix(0, n).UTC()
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx); err != nil {
		return apperrors.Wrap(apperrors.ErrConnection, err, "pinging redis")
	}
	return nil
}

func (s *Store) exists(ctx context.Context, p string) (bool, error) {
	return s.client.Exists(ctx, s.colKey(p))
}

func (s *Store) GetCollection(ctx context.Context, path string) (store.Collection, bool, error) {
	path = store.Clean(path)
	fields, err := s.client.HGetAll(ctx, s.colKey(path))
	if err != nil {
		return store.Collection{}, false, apperrors.Wrap(apperrors.ErrCollectionResolution, err, "getting collection %s", path)
	}
	if len(fields) == 0 {
		return store.Collection{}, false, nil
	}
	return store.Collection{
		Path:      path,
		Name:      fields["name"],
		Parent:    fields["parent"],
		CreatedAt: parseNanos(fields["created_at"]),
	}, true, nil
}

func (s *Store) CreateCollection(ctx context.Context, parent, name string) (store.Collection, error) {
	if err := store.ValidateName(name); err != nil {
		return store.Collection{}, err
	}
	parent = store.Clean(parent)
	col := store.Collection{Path: store.Join(parent, name), Name: name, Parent: parent, CreatedAt: time.Now().UTC()}

	ok, err := s.exists(ctx, parent)
	if err != nil {
		return store.Collection{}, apperrors.Wrap(apperrors.ErrCollectionResolution, err, "resolving %s", parent)
	}
	if !ok {
		return store.Collection{}, store.NotFound(parent)
	}
	// the name field doubles as the creation claim
	claimed, err := s.client.HSetNX(ctx, s.colKey(col.Path), "name", name)
	if err != nil {
		return store.Collection{}, apperrors.Wrap(apperrors.ErrCollectionResolution, err, "creating collection %s", col.Path)
	}
	if !claimed {
		return store.Collection{}, apperrors.Newf(apperrors.ErrCollectionExists, "%s", col.Path)
	}
	err = s.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.HSet(ctx, s.colKey(col.Path), "parent", parent, "created_at", nanos(col.CreatedAt))
		p.SAdd(ctx, s.childrenKey(parent), name)
		return nil
	})
	if err != nil {
		return store.Collection{}, apperrors.Wrap(apperrors.ErrCollectionResolution, err, "creating collection %s", col.Path)
	}
	return col, nil
}

// subtree returns path and every collection below it, parents before
// children and siblings in name order.
func (s *Store) subtree(ctx context.Context, path string) ([]string, error) {
	out := []string{path}
	for i := 0; i < len(out); i++ {
		names, err := s.client.SMembers(ctx, s.childrenKey(out[i]))
		if err != nil {
			return nil, err
		}
		sort.Strings(names)
		for _, n := range names {
			out = append(out, store.Join(out[i], n))
		}
	}
	return out, nil
}

// keysBelow returns every key owned by path and its descendants.
func (s *Store) keysBelow(ctx context.Context, path string) ([]string, error) {
	paths, err := s.subtree(ctx, path)
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, p := range paths {
		names, err := s.client.LRange(ctx, s.resourcesKey(p), 0, -1)
		if err != nil {
			return nil, fmt.Errorf("listing resources of %s: %w", p, err)
		}
		for _, n := range names {
			keys = append(keys, s.resKey(store.Join(p, n)))
		}
		keys = append(keys, s.colKey(p), s.childrenKey(p), s.resourcesKey(p))
	}
	return keys, nil
}

func (s *Store) RemoveCollection(ctx context.Context, path string) error {
	path = store.Clean(path)
	if store.IsRoot(path) {
		return apperrors.New(apperrors.ErrInvalidInput, "the root collection cannot be removed")
	}
	ok, err := s.exists(ctx, path)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCollectionResolution, err, "resolving %s", path)
	}
	if !ok {
		return store.NotFound(path)
	}
	keys, err := s.keysBelow(ctx, path)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCollectionResolution, err, "walking %s", path)
	}
	parent, name := store.Split(path)
	err = s.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.Del(ctx, keys...)
		p.SRem(ctx, s.childrenKey(parent), name)
		return nil
	})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCollectionResolution, err, "removing collection %s", path)
	}
	s.logger.Debug("collection removed", "path", path, "keys", len(keys))
	return nil
}

func (s *Store) ListCollections(ctx context.Context, path string) ([]store.Collection, error) {
	path = store.Clean(path)
	ok, err := s.exists(ctx, path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCollectionResolution, err, "listing %s", path)
	}
	if !ok {
		return nil, store.NotFound(path)
	}
	names, err := s.client.SMembers(ctx, s.childrenKey(path))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCollectionResolution, err, "listing %s", path)
	}
	sort.Strings(names)
	out := make([]store.Collection, 0, len(names))
	for _, n := range names {
		col, ok, err := s.GetCollection(ctx, store.Join(path, n))
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, col)
		}
	}
	return out, nil
}

func (s *Store) CreateResource(ctx context.Context, parent string, content []byte) (store.Resource, error) {
	parent = store.Clean(parent)
	if err := pathquery.WellFormed(content); err != nil {
		return store.Resource{}, apperrors.Wrap(apperrors.ErrResourceWrite, err, "storing resource in %s", parent)
	}
	ok, err := s.exists(ctx, parent)
	if err != nil {
		return store.Resource{}, apperrors.Wrap(apperrors.ErrResourceWrite, err, "storing resource in %s", parent)
	}
	if !ok {
		return store.Resource{}, store.NotFound(parent)
	}
	res := store.Resource{
		Name:       store.NewResourceName(),
		Collection: parent,
		Size:       len(content),
		CreatedAt:  time.Now().UTC(),
	}
	err = s.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.HSet(ctx, s.resKey(res.Path()), "content", content, "size", res.Size, "created_at", nanos(res.CreatedAt))
		p.RPush(ctx, s.resourcesKey(parent), res.Name)
		return nil
	})
	if err != nil {
		return store.Resource{}, apperrors.Wrap(apperrors.ErrResourceWrite, err, "storing resource in %s", parent)
	}
	return res, nil
}

func (s *Store) ListResources(ctx context.Context, path string) ([]store.Resource, error) {
	path = store.Clean(path)
	ok, err := s.exists(ctx, path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCollectionResolution, err, "listing resources of %s", path)
	}
	if !ok {
		return nil, store.NotFound(path)
	}
	names, err := s.client.LRange(ctx, s.resourcesKey(path), 0, -1)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCollectionResolution, err, "listing resources of %s", path)
	}
	out := make([]store.Resource, 0, len(names))
	for _, n := range names {
		r := store.Resource{Name: n, Collection: path}
		vals, err := s.client.HMGet(ctx, s.resKey(r.Path()), "size", "created_at")
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrCollectionResolution, err, "reading resource %s", r.Path())
		}
		if v, ok := vals[0].(string); ok {
			r.Size, _ = strconv.Atoi(v)
		}
		if v, ok := vals[1].(string); ok {
			r.CreatedAt = parseNanos(v)
		}
		out = append(out, r)
	}
	return out, nil
}

// Query resolves the subtree up front and then fetches resource contents one
// at a time as the cursor advances.
func (s *Store) Query(ctx context.Context, path string, expr pathquery.Expr) (store.Results, error) {
	path = store.Clean(path)
	ok, err := s.exists(ctx, path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCollectionResolution, err, "resolving %s", path)
	}
	if !ok {
		return nil, store.NotFound(path)
	}
	paths, err := s.subtree(ctx, path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrQueryExecution, err, "walking %s", path)
	}
	return store.NewResults(&treeSource{s: s, collections: paths}, expr), nil
}

type treeSource struct {
	s           *Store
	collections []string
	current     string
	names       []string
}

func (t *treeSource) NextDocument(ctx context.Context) (string, []byte, bool, error) {
	for len(t.names) == 0 {
		if len(t.collections) == 0 {
			return "", nil, false, nil
		}
		t.current, t.collections = t.collections[0], t.collections[1:]
		names, err := t.s.client.LRange(ctx, t.s.resourcesKey(t.current), 0, -1)
		if err != nil {
			return "", nil, false, apperrors.Wrap(apperrors.ErrQueryExecution, err, "listing resources of %s", t.current)
		}
		t.names = names
	}
	resource := store.Join(t.current, t.names[0])
	t.names = t.names[1:]
	content, err := t.s.client.HGetBytes(ctx, t.s.resKey(resource), "content")
	if err != nil {
		return "", nil, false, apperrors.Wrap(apperrors.ErrQueryExecution, err, "fetching %s", resource)
	}
	return resource, content, true, nil
}

func (t *treeSource) Close() error {
	t.collections, t.names = nil, nil
	return nil
}
