package store

import (
	"path"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/labelmine/pkg/errors"
)

// RootPath is the collection every store starts with.
const RootPath = "/db"

// Clean canonicalises a collection path: absolute, no trailing slash, no
// empty or dot segments.
func Clean(p string) string {
	return path.Clean("/" + p)
}

func Join(parent, name string) string {
	return path.Join(Clean(parent), name)
}

// Split returns the parent path and name of p.
func Split(p string) (parent, name string) {
	p = Clean(p)
	return path.Dir(p), path.Base(p)
}

// ValidateName rejects names that cannot be a single path segment.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.Contains(name, "/") {
		return apperrors.Newf(apperrors.ErrInvalidInput, "invalid collection name %q", name)
	}
	return nil
}

// Within reports whether p is base or lies below it.
func Within(p, base string) bool {
	p, base = Clean(p), Clean(base)
	if p == base {
		return true
	}
	if base == "/" {
		return true
	}
	return strings.HasPrefix(p, base+"/")
}

// IsRoot reports whether p is the root collection.
func IsRoot(p string) bool {
	return Clean(p) == RootPath
}

// NotFound builds the error backends return for a missing collection.
func NotFound(p string) error {
	return apperrors.Newf(apperrors.ErrCollectionNotFound, "%s", Clean(p))
}

// LikePrefix returns a SQL LIKE pattern matching every path strictly below p.
// Wildcards in p are escaped with a backslash, so queries must declare
// ESCAPE '\'.
func LikePrefix(p string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	p = Clean(p)
	if p == "/" {
		return "/%"
	}
	return r.Replace(p) + "/%"
}
