package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/labelmine/internal/pathquery"
	"github.com/Adithya-Monish-Kumar-K/labelmine/internal/store"
	"github.com/Adithya-Monish-Kumar-K/labelmine/internal/store/storetest"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "labelmine.db"), time.Second)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return openTemp(t) })
}

func TestInMemoryDatabase(t *testing.T) {
	s, err := Open(context.Background(), ":memory:", time.Second)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	if _, err := s.CreateCollection(context.Background(), store.RootPath, "LabelMe"); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := s.GetCollection(context.Background(), "/db/LabelMe"); err != nil || !ok {
		t.Fatalf("collection not visible: ok=%v err=%v", ok, err)
	}
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	file := filepath.Join(t.TempDir(), "labelmine.db")

	s, err := Open(ctx, file, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateCollection(ctx, store.RootPath, "LabelMe"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateResource(ctx, "/db/LabelMe", storetest.Doc("car")); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(ctx, file, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	res, err := s.Query(ctx, "/db/LabelMe", pathquery.MustParse("annotation/object/name"))
	if err != nil {
		t.Fatal(err)
	}
	defer res.Close()
	var texts []string
	for res.Next(ctx) {
		texts = append(texts, res.Match().Text)
	}
	if err := res.Err(); err != nil {
		t.Fatal(err)
	}
	if len(texts) != 1 || texts[0] != "car" {
		t.Errorf("texts = %v", texts)
	}
}

func TestLikeWildcardsInCollectionNames(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)
	defer s.Close()

	for _, name := range []string{"a_b", "axb"} {
		if _, err := s.CreateCollection(ctx, store.RootPath, name); err != nil {
			t.Fatal(err)
		}
		if _, err := s.CreateCollection(ctx, "/db/"+name, "child"); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.RemoveCollection(ctx, "/db/a_b"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.GetCollection(ctx, "/db/axb/child"); !ok {
		t.Error("underscore in a removed name must not match other collections")
	}
}
