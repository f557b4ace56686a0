// Package storetest holds the behaviour every store backend must share. Each
// backend's tests call Run with a constructor for a fresh, empty store.
package storetest

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/labelmine/internal/pathquery"
	"github.com/Adithya-Monish-Kumar-K/labelmine/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/labelmine/pkg/errors"
)

// Doc builds a minimal annotation document with one object per label.
func Doc(labels ...string) []byte {
	out := "<annotation>"
	for _, l := range labels {
		out += "<object><name>" + l + "</name></object>"
	}
	return []byte(out + "</annotation>")
}

// Run executes the conformance suite. open must return an empty store.
func Run(t *testing.T, open func(t *testing.T) store.Store) {
	t.Helper()
	cases := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"RootExists", testRootExists},
		{"CreateCollection", testCreateCollection},
		{"CreateResource", testCreateResource},
		{"RemoveCollectionRecursive", testRemoveCollectionRecursive},
		{"QueryDescendants", testQueryDescendants},
		{"QueryMissingCollection", testQueryMissingCollection},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := open(t)
			t.Cleanup(func() { s.Close() })
			tc.fn(t, s)
		})
	}
}

func testRootExists(t *testing.T, s store.Store) {
	ctx := context.Background()
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	root, ok, err := s.GetCollection(ctx, store.RootPath)
	if err != nil || !ok {
		t.Fatalf("root collection: ok=%v err=%v", ok, err)
	}
	if root.Path != store.RootPath {
		t.Errorf("root path = %q", root.Path)
	}
	if _, ok, err := s.GetCollection(ctx, "/db/LabelMe"); err != nil || ok {
		t.Errorf("unexpected collection: ok=%v err=%v", ok, err)
	}
}

func testCreateCollection(t *testing.T, s store.Store) {
	ctx := context.Background()
	col, err := s.CreateCollection(ctx, "/db", "LabelMe")
	if err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	if col.Path != "/db/LabelMe" || col.Name != "LabelMe" || col.Parent != "/db" {
		t.Errorf("collection = %+v", col)
	}
	if _, err := s.CreateCollection(ctx, "/db", "LabelMe"); !errors.Is(err, apperrors.ErrCollectionExists) {
		t.Errorf("duplicate create: %v", err)
	}
	if _, err := s.CreateCollection(ctx, "/db/missing", "x"); !errors.Is(err, apperrors.ErrCollectionNotFound) {
		t.Errorf("create under missing parent: %v", err)
	}
	if _, err := s.CreateCollection(ctx, "/db", "a/b"); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("invalid name: %v", err)
	}
	for _, name := range []string{"b", "a"} {
		if _, err := s.CreateCollection(ctx, "/db/LabelMe", name); err != nil {
			t.Fatal(err)
		}
	}
	children, err := s.ListCollections(ctx, "/db/LabelMe")
	if err != nil {
		t.Fatal(err)
	}
	if names := collectionNames(children); len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("children = %v", names)
	}
	if _, err := s.ListCollections(ctx, "/db/missing"); !errors.Is(err, apperrors.ErrCollectionNotFound) {
		t.Errorf("list missing: %v", err)
	}
}

func testCreateResource(t *testing.T, s store.Store) {
	ctx := context.Background()
	if _, err := s.CreateCollection(ctx, "/db", "LabelMe"); err != nil {
		t.Fatal(err)
	}
	content := Doc("car", "tree")
	res, err := s.CreateResource(ctx, "/db/LabelMe", content)
	if err != nil {
		t.Fatalf("CreateResource: %v", err)
	}
	if res.Name == "" || res.Collection != "/db/LabelMe" || res.Size != len(content) {
		t.Errorf("resource = %+v", res)
	}
	if _, err := s.CreateResource(ctx, "/db/LabelMe", Doc("sky")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateResource(ctx, "/db/LabelMe", []byte("<annotation>")); !errors.Is(err, apperrors.ErrResourceWrite) {
		t.Errorf("malformed resource: %v", err)
	}
	if _, err := s.CreateResource(ctx, "/db/missing", Doc("x")); !errors.Is(err, apperrors.ErrCollectionNotFound) {
		t.Errorf("resource in missing collection: %v", err)
	}
	resources, err := s.ListResources(ctx, "/db/LabelMe")
	if err != nil {
		t.Fatal(err)
	}
	if len(resources) != 2 {
		t.Fatalf("expected 2 resources, got %d", len(resources))
	}
	if resources[0].Name == resources[1].Name {
		t.Error("resource names must be unique")
	}
}

func testRemoveCollectionRecursive(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustCreate(t, s, "/db", "LabelMe")
	mustCreate(t, s, "/db/LabelMe", "folder")
	mustCreate(t, s, "/db/LabelMe/folder", "nested")
	mustCreate(t, s, "/db", "LabelMeOther")
	mustStore(t, s, "/db/LabelMe/folder/nested", Doc("car"))
	mustStore(t, s, "/db/LabelMeOther", Doc("boat"))

	if err := s.RemoveCollection(ctx, "/db/LabelMe"); err != nil {
		t.Fatalf("RemoveCollection: %v", err)
	}
	for _, p := range []string{"/db/LabelMe", "/db/LabelMe/folder", "/db/LabelMe/folder/nested"} {
		if _, ok, err := s.GetCollection(ctx, p); err != nil || ok {
			t.Errorf("%s still present: ok=%v err=%v", p, ok, err)
		}
	}
	// a sibling sharing the name prefix survives
	if res, err := s.ListResources(ctx, "/db/LabelMeOther"); err != nil || len(res) != 1 {
		t.Errorf("sibling resources = %d, err=%v", len(res), err)
	}

	mustCreate(t, s, "/db", "LabelMe")
	mustCreate(t, s, "/db/LabelMe", "folder")
	if res, err := s.ListResources(ctx, "/db/LabelMe/folder"); err != nil || len(res) != 0 {
		t.Errorf("recreated collection not empty: %d, err=%v", len(res), err)
	}
	if kids, err := s.ListCollections(ctx, "/db/LabelMe/folder"); err != nil || len(kids) != 0 {
		t.Errorf("recreated collection has children: %d, err=%v", len(kids), err)
	}

	if err := s.RemoveCollection(ctx, "/db/missing"); !errors.Is(err, apperrors.ErrCollectionNotFound) {
		t.Errorf("remove missing: %v", err)
	}
	if err := s.RemoveCollection(ctx, store.RootPath); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("remove root: %v", err)
	}
}

func testQueryDescendants(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustCreate(t, s, "/db", "LabelMe")
	mustCreate(t, s, "/db/LabelMe", "street")
	mustCreate(t, s, "/db", "Elsewhere")
	mustStore(t, s, "/db/LabelMe", Doc("cat", "dog"))
	mustStore(t, s, "/db/LabelMe/street", Doc("dog"))
	mustStore(t, s, "/db/LabelMe/street", Doc())
	mustStore(t, s, "/db/Elsewhere", Doc("whale"))

	res, err := s.Query(ctx, "/db/LabelMe", pathquery.MustParse("/annotation/object/name"))
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	defer res.Close()

	byResource := map[string][]string{}
	var order []string
	for res.Next(ctx) {
		m := res.Match()
		if len(order) == 0 || order[len(order)-1] != m.Resource {
			for _, seen := range order {
				if seen == m.Resource {
					t.Fatalf("matches of %s are not contiguous", m.Resource)
				}
			}
			order = append(order, m.Resource)
		}
		byResource[m.Resource] = append(byResource[m.Resource], m.Text)
	}
	if err := res.Err(); err != nil {
		t.Fatal(err)
	}

	var groups []string
	for _, labels := range byResource {
		sort.Strings(labels)
		joined := ""
		for _, l := range labels {
			joined += l + ","
		}
		groups = append(groups, joined)
	}
	sort.Strings(groups)
	if len(groups) != 2 || groups[0] != "cat,dog," || groups[1] != "dog," {
		t.Errorf("groups = %v", groups)
	}
}

func testQueryMissingCollection(t *testing.T, s store.Store) {
	_, err := s.Query(context.Background(), "/db/missing", pathquery.MustParse("annotation/object/name"))
	if !errors.Is(err, apperrors.ErrCollectionNotFound) {
		t.Errorf("query missing: %v", err)
	}
}

func mustCreate(t *testing.T, s store.Store, parent, name string) {
	t.Helper()
	if _, err := s.CreateCollection(context.Background(), parent, name); err != nil {
		t.Fatalf("CreateCollection(%s, %s): %v", parent, name, err)
	}
}

func mustStore(t *testing.T, s store.Store, parent string, content []byte) {
	t.Helper()
	if _, err := s.CreateResource(context.Background(), parent, content); err != nil {
		t.Fatalf("CreateResource(%s): %v", parent, err)
	}
}

func collectionNames(cols []store.Collection) []string {
	names := make([]string, 0, len(cols))
	for _, c := range cols {
		names = append(names, c.Name)
	}
	sort.Strings(names)
	return names
}
