// Package sqlite is a store backend over a single SQLite file using the pure
// Go modernc.org/sqlite driver. Resource content is kept verbatim in a BLOB
// column and queried client-side.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Adithya-Monish-Kumar-K/labelmine/internal/pathquery"
	"github.com/Adithya-Monish-Kumar-K/labelmine/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/labelmine/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS collections (
	path TEXT PRIMARY KEY,
	parent TEXT NOT NULL,
	name TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_collections_parent ON collections(parent);

CREATE TABLE IF NOT EXISTS resources (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT UNIQUE NOT NULL,
	collection TEXT NOT NULL,
	content BLOB NOT NULL,
	size INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	FOREIGN KEY(collection) REFERENCES collections(path) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_resources_collection ON resources(collection, id);
`

// Store implements store.Store over SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database file at path. Pragmas are
// passed through the DSN so that every pooled connection carries them.
func Open(ctx context.Context, path string, busyTimeout time.Duration) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(path, busyTimeout))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrConnection, err, "opening sqlite database %s", path)
	}
	if path == ":memory:" {
		// each connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, apperrors.Wrap(apperrors.ErrConnection, err, "pinging sqlite database %s", path)
	}
	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, apperrors.Wrap(apperrors.ErrConnection, err, "initialising sqlite schema")
	}
	return &Store{db: db}, nil
}

func dsn(path string, busyTimeout time.Duration) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeout.Milliseconds()))
	if path != ":memory:" {
		q.Add("_pragma", "journal_mode(WAL)")
	}
	return "file:" + path + "?" + q.Encode()
}

func initSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating tables: %w", err)
	}
	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO collections (path, parent, name, created_at) VALUES (?, '/', 'db', ?)`,
		store.RootPath, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("creating root collection: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return apperrors.Wrap(apperrors.ErrConnection, err, "pinging sqlite")
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func exists(ctx context.Context, q queryer, path string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM collections WHERE path = ?`, path).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("looking up collection %s: %w", path, err)
	}
	return true, nil
}

func (s *Store) GetCollection(ctx context.Context, path string) (store.Collection, bool, error) {
	path = store.Clean(path)
	var (
		col     store.Collection
		created int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT path, parent, name, created_at FROM collections WHERE path = ?`, path,
	).Scan(&col.Path, &col.Parent, &col.Name, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Collection{}, false, nil
	}
	if err != nil {
		return store.Collection{}, false, apperrors.Wrap(apperrors.ErrCollectionResolution, err, "getting collection %s", path)
	}
	col.CreatedAt = time.Unix(0, created).UTC()
	return col, true, nil
}

func (s *Store) CreateCollection(ctx context.Context, parent, name string) (store.Collection, error) {
	if err := store.ValidateName(name); err != nil {
		return store.Collection{}, err
	}
	parent = store.Clean(parent)
	col := store.Collection{Path: store.Join(parent, name), Name: name, Parent: parent, CreatedAt: time.Now().UTC()}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		ok, err := exists(ctx, tx, parent)
		if err != nil {
			return err
		}
		if !ok {
			return store.NotFound(parent)
		}
		if ok, err = exists(ctx, tx, col.Path); err != nil {
			return err
		} else if ok {
			return apperrors.Newf(apperrors.ErrCollectionExists, "%s", col.Path)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO collections (path, parent, name, created_at) VALUES (?, ?, ?, ?)`,
			col.Path, col.Parent, col.Name, col.CreatedAt.UnixNano())
		return err
	})
	if err != nil {
		return store.Collection{}, classify(err, "creating collection %s", col.Path)
	}
	return col, nil
}

// RemoveCollection deletes path and every collection below it; resources go
// with them through the foreign key cascade.
func (s *Store) RemoveCollection(ctx context.Context, path string) error {
	path = store.Clean(path)
	if store.IsRoot(path) {
		return apperrors.New(apperrors.ErrInvalidInput, "the root collection cannot be removed")
	}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		ok, err := exists(ctx, tx, path)
		if err != nil {
			return err
		}
		if !ok {
			return store.NotFound(path)
		}
		_, err = tx.ExecContext(ctx,
			`DELETE FROM collections WHERE path = ? OR path LIKE ? ESCAPE '\'`,
			path, store.LikePrefix(path))
		return err
	})
	if err != nil {
		return classify(err, "removing collection %s", path)
	}
	return nil
}

func (s *Store) ListCollections(ctx context.Context, path string) ([]store.Collection, error) {
	path = store.Clean(path)
	if ok, err := exists(ctx, s.db, path); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCollectionResolution, err, "listing %s", path)
	} else if !ok {
		return nil, store.NotFound(path)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, parent, name, created_at FROM collections WHERE parent = ? AND path != ? ORDER BY name`,
		path, path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCollectionResolution, err, "listing %s", path)
	}
	defer rows.Close()

	var out []store.Collection
	for rows.Next() {
		var (
			c       store.Collection
			created int64
		)
		if err := rows.Scan(&c.Path, &c.Parent, &c.Name, &created); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrCollectionResolution, err, "scanning collection row")
		}
		c.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCollectionResolution, err, "listing %s", path)
	}
	return out, nil
}

func (s *Store) CreateResource(ctx context.Context, parent string, content []byte) (store.Resource, error) {
	parent = store.Clean(parent)
	if err := pathquery.WellFormed(content); err != nil {
		return store.Resource{}, apperrors.Wrap(apperrors.ErrResourceWrite, err, "storing resource in %s", parent)
	}
	res := store.Resource{
		Name:       store.NewResourceName(),
		Collection: parent,
		Size:       len(content),
		CreatedAt:  time.Now().UTC(),
	}
	if ok, err := exists(ctx, s.db, parent); err != nil {
		return store.Resource{}, apperrors.Wrap(apperrors.ErrResourceWrite, err, "storing resource in %s", parent)
	} else if !ok {
		return store.Resource{}, store.NotFound(parent)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO resources (name, collection, content, size, created_at) VALUES (?, ?, ?, ?, ?)`,
		res.Name, res.Collection, content, res.Size, res.CreatedAt.UnixNano())
	if err != nil {
		return store.Resource{}, apperrors.Wrap(apperrors.ErrResourceWrite, err, "storing resource in %s", parent)
	}
	return res, nil
}

func (s *Store) ListResources(ctx context.Context, path string) ([]store.Resource, error) {
	path = store.Clean(path)
	if ok, err := exists(ctx, s.db, path); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCollectionResolution, err, "listing resources of %s", path)
	} else if !ok {
		return nil, store.NotFound(path)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, collection, size, created_at FROM resources WHERE collection = ? ORDER BY id`, path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCollectionResolution, err, "listing resources of %s", path)
	}
	defer rows.Close()

	var out []store.Resource
	for rows.Next() {
		var (
			r       store.Resource
			created int64
		)
		if err := rows.Scan(&r.Name, &r.Collection, &r.Size, &created); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrCollectionResolution, err, "scanning resource row")
		}
		r.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCollectionResolution, err, "listing resources of %s", path)
	}
	return out, nil
}

// Query streams resource rows ordered by collection, so the cursor holds one
// connection until it is closed.
func (s *Store) Query(ctx context.Context, path string, expr pathquery.Expr) (store.Results, error) {
	path = store.Clean(path)
	if ok, err := exists(ctx, s.db, path); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCollectionResolution, err, "resolving %s", path)
	} else if !ok {
		return nil, store.NotFound(path)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT collection, name, content FROM resources
		 WHERE collection = ? OR collection LIKE ? ESCAPE '\'
		 ORDER BY collection, id`,
		path, store.LikePrefix(path))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrQueryExecution, err, "querying %s", path)
	}
	return store.NewResults(&rowSource{rows: rows}, expr), nil
}

type rowSource struct {
	rows *sql.Rows
}

func (r *rowSource) NextDocument(ctx context.Context) (string, []byte, bool, error) {
	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			return "", nil, false, apperrors.Wrap(apperrors.ErrQueryExecution, err, "reading resources")
		}
		return "", nil, false, nil
	}
	var (
		collection, name string
		content          []byte
	)
	if err := r.rows.Scan(&collection, &name, &content); err != nil {
		return "", nil, false, apperrors.Wrap(apperrors.ErrQueryExecution, err, "scanning resource")
	}
	return store.Join(collection, name), content, true, nil
}

func (r *rowSource) Close() error {
	return r.rows.Close()
}

// classify keeps typed errors from inside a transaction and files anything
// else under collection resolution.
func classify(err error, format string, args ...any) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.Wrap(apperrors.ErrCollectionResolution, err, format, args...)
}
