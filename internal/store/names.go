package store

import (
	"github.com/oklog/ulid/v2"
)

// NewResourceName returns a fresh resource name. ULIDs sort by creation time,
// so listing resources by name approximates insertion order.
func NewResourceName() string {
	return ulid.Make().String()
}
