// Package postgres is a store backend over PostgreSQL. Collections are rows
// keyed by path and resources hang off them with a cascading foreign key.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/labelmine/internal/pathquery"
	"github.com/Adithya-Monish-Kumar-K/labelmine/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/labelmine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/labelmine/pkg/postgres"
)

// Store implements store.Store. Migrate creates what it needs:
//
//	CREATE TABLE lm_collections (
//	    path       TEXT PRIMARY KEY,
//	    parent     TEXT NOT NULL,
//	    name       TEXT NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
//	CREATE TABLE lm_resources (
//	    id         BIGSERIAL PRIMARY KEY,
//	    name       TEXT UNIQUE NOT NULL,
//	    collection TEXT NOT NULL REFERENCES lm_collections(path) ON DELETE CASCADE,
//	    content    BYTEA NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS lm_collections (
		path       TEXT PRIMARY KEY,
		parent     TEXT NOT NULL,
		name       TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS lm_collections_parent_idx ON lm_collections (parent)`,
	`CREATE TABLE IF NOT EXISTS lm_resources (
		id         BIGSERIAL PRIMARY KEY,
		name       TEXT UNIQUE NOT NULL,
		collection TEXT NOT NULL REFERENCES lm_collections(path) ON DELETE CASCADE,
		content    BYTEA NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS lm_resources_collection_idx ON lm_resources (collection, id)`,
	`INSERT INTO lm_collections (path, parent, name) VALUES ('/db', '/', 'db') ON CONFLICT (path) DO NOTHING`,
}

func New(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "postgres-store"),
	}
}

// Migrate creates the tables and the root collection if they are missing.
func (s *Store) Migrate(ctx context.Context) error {
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range migrations {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrConnection, err, "migrating postgres schema")
	}
	s.logger.Debug("schema ready")
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return apperrors.Wrap(apperrors.ErrConnection, err, "pinging postgres")
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func exists(ctx context.Context, q queryer, path string) (bool, error) {
	var found bool
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM lm_collections WHERE path = $1)`, path,
	).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("looking up collection %s: %w", path, err)
	}
	return found, nil
}

func (s *Store) GetCollection(ctx context.Context, path string) (store.Collection, bool, error) {
	path = store.Clean(path)
	var col store.Collection
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT path, parent, name, created_at FROM lm_collections WHERE path = $1`, path,
	).Scan(&col.Path, &col.Parent, &col.Name, &col.CreatedAt)
	if err == sql.ErrNoRows {
		return store.Collection{}, false, nil
	}
	if err != nil {
		return store.Collection{}, false, apperrors.Wrap(apperrors.ErrCollectionResolution, err, "getting collection %s", path)
	}
	return col, true, nil
}

func (s *Store) CreateCollection(ctx context.Context, parent, name string) (store.Collection, error) {
	if err := store.ValidateName(name); err != nil {
		return store.Collection{}, err
	}
	parent = store.Clean(parent)
	col := store.Collection{Path: store.Join(parent, name), Name: name, Parent: parent}

	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		ok, err := exists(ctx, tx, parent)
		if err != nil {
			return err
		}
		if !ok {
			return store.NotFound(parent)
		}
		var created time.Time
		err = tx.QueryRowContext(ctx,
			`INSERT INTO lm_collections (path, parent, name) VALUES ($1, $2, $3)
			 ON CONFLICT (path) DO NOTHING
			 RETURNING created_at`,
			col.Path, col.Parent, col.Name,
		).Scan(&created)
		if err == sql.ErrNoRows {
			return apperrors.Newf(apperrors.ErrCollectionExists, "%s", col.Path)
		}
		col.CreatedAt = created
		return err
	})
	if err != nil {
		return store.Collection{}, classify(err, "creating collection %s", col.Path)
	}
	return col, nil
}

func (s *Store) RemoveCollection(ctx context.Context, path string) error {
	path = store.Clean(path)
	if store.IsRoot(path) {
		return apperrors.New(apperrors.ErrInvalidInput, "the root collection cannot be removed")
	}
	var removed int64
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM lm_collections WHERE path = $1 OR path LIKE $2 ESCAPE '\'`,
			path, store.LikePrefix(path))
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		if err != nil {
			return err
		}
		if removed == 0 {
			return store.NotFound(path)
		}
		return nil
	})
	if err != nil {
		return classify(err, "removing collection %s", path)
	}
	s.logger.Debug("collection removed", "path", path, "collections", removed)
	return nil
}

func (s *Store) ListCollections(ctx context.Context, path string) ([]store.Collection, error) {
	path = store.Clean(path)
	if ok, err := exists(ctx, s.db.DB, path); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCollectionResolution, err, "listing %s", path)
	} else if !ok {
		return nil, store.NotFound(path)
	}
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT path, parent, name, created_at FROM lm_collections
		 WHERE parent = $1 AND path <> $1 ORDER BY name`, path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCollectionResolution, err, "listing %s", path)
	}
	defer rows.Close()

	var out []store.Collection
	for rows.Next() {
		var c store.Collection
		if err := rows.Scan(&c.Path, &c.Parent, &c.Name, &c.CreatedAt); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrCollectionResolution, err, "scanning collection row")
		}
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
	if ok, err := exists(ctx, s.db.DB, parent); err != nil {
		return store.Resource{}, apperrors.Wrap(apperrors.ErrResourceWrite, err, "storing resource in %s", parent)
	} else if !ok {
		return store.Resource{}, store.NotFound(parent)
	}
	res := store.Resource{Name: store.NewResourceName(), Collection: parent, Size: len(content)}
	err := s.db.DB.QueryRowContext(ctx,
		`INSERT INTO lm_resources (name, collection, content) VALUES ($1, $2, $3) RETURNING created_at`,
		res.Name, res.Collection, content,
	).Scan(&res.CreatedAt)
	if err != nil {
		return store.Resource{}, apperrors.Wrap(apperrors.ErrResourceWrite, err, "storing resource in %s", parent)
	}
	return res, nil
}

func (s *Store) ListResources(ctx context.Context, path string) ([]store.Resource, error) {
	path = store.Clean(path)
	if ok, err := exists(ctx, s.db.DB, path); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCollectionResolution, err, "listing resources of %s", path)
	} else if !ok {
		return nil, store.NotFound(path)
	}
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT name, collection, octet_length(content), created_at FROM lm_resources
		 WHERE collection = $1 ORDER BY id`, path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCollectionResolution, err, "listing resources of %s", path)
	}
	defer rows.Close()

	var out []store.Resource
	for rows.Next() {
		var r store.Resource
		if err := rows.Scan(&r.Name, &r.Collection, &r.Size, &r.CreatedAt); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrCollectionResolution, err, "scanning resource row")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCollectionResolution, err, "listing resources of %s", path)
	}
	return out, nil
}

func (s *Store) Query(ctx context.Context, path string, expr pathquery.Expr) (store.Results, error) {
	path = store.Clean(path)
	if ok, err := exists(ctx, s.db.DB, path); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCollectionResolution, err, "resolving %s", path)
	} else if !ok {
		return nil, store.NotFound(path)
	}
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT collection, name, content FROM lm_resources
		 WHERE collection = $1 OR collection LIKE $2 ESCAPE '\'
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

func classify(err error, format string, args ...any) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.Wrap(apperrors.ErrCollectionResolution, err, format, args...)
}
