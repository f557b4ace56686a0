// Package store defines the document store contract the pipeline runs
// against: a tree of named collections holding XML resources, plus a
// streaming path-query over a collection and everything below it.
package store

import (
	"context"
	"time"

	"github.com/Adithya-Monish-Kumar-K/labelmine/internal/pathquery"
)

// Store is implemented by every backend in store/.... Collections are
// addressed by absolute slash paths such as /db/LabelMe; the root collection
// always exists.
type Store interface {
	Close() error
	Ping(ctx context.Context) error

	// Collections
	GetCollection(ctx context.Context, path string) (Collection, bool, error)
	CreateCollection(ctx context.Context, parent, name string) (Collection, error)
	RemoveCollection(ctx context.Context, path string) error
	ListCollections(ctx context.Context, path string) ([]Collection, error)

	// Resources
	CreateResource(ctx context.Context, parent string, content []byte) (Resource, error)
	ListResources(ctx context.Context, path string) ([]Resource, error)

	// Query evaluates expr over every resource in path and its descendant
	// collections. Matches of one resource are delivered contiguously.
	Query(ctx context.Context, path string, expr pathquery.Expr) (Results, error)
}

// Collection is a named container node.
type Collection struct {
	Path      string
	Name      string
	Parent    string
	CreatedAt time.Time
}

// Resource is a stored XML document, a leaf of the hierarchy.
type Resource struct {
	Name       string
	Collection string
	Size       int
	CreatedAt  time.Time
}

// Path returns the resource's absolute path.
func (r Resource) Path() string {
	return Join(r.Collection, r.Name)
}

// Match is one text value selected by a query, tagged with the resource it
// came from.
type Match struct {
	Resource string
	Text     string
}

// Results is a forward-only cursor over query matches, stepped like
// database/sql.Rows:
//
//	for res.Next(ctx) {
//		m := res.Match()
//	}
//	if err := res.Err(); err != nil { ... }
//
// Close must always be called.
type Results interface {
	Next(ctx context.Context) bool
	Match() Match
	Err() error
	Close() error
}
