package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/Adithya-Monish-Kumar-K/labelmine/internal/events"
	"github.com/Adithya-Monish-Kumar-K/labelmine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/labelmine/internal/pathquery"
	"github.com/Adithya-Monish-Kumar-K/labelmine/internal/store"
	"github.com/Adithya-Monish-Kumar-K/labelmine/internal/store/memory"
	"github.com/Adithya-Monish-Kumar-K/labelmine/internal/store/storetest"
	"github.com/Adithya-Monish-Kumar-K/labelmine/internal/vocabulary"
	"github.com/Adithya-Monish-Kumar-K/labelmine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/labelmine/pkg/errors"
)

func seed(t *testing.T, docs map[string][]byte) store.Store {
	t.Helper()
	fsys := fstest.MapFS{}
	for name, data := range docs {
		fsys[name] = &fstest.MapFile{Data: data}
	}
	s := memory.New()
	cfg := config.Default()
	if _, err := indexer.New(s, cfg.Store, cfg.Indexer, nil, nil).IndexFS(context.Background(), fsys); err != nil {
		t.Fatalf("seeding store: %v", err)
	}
	return s
}

func newExtractor(t *testing.T, s store.Store, mutate func(*config.ExtractorConfig)) *Extractor {
	t.Helper()
	cfg := config.Default().Extractor
	if mutate != nil {
		mutate(&cfg)
	}
	e, err := New(s, cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestExtractNormalizesAndCounts(t *testing.T) {
	s := seed(t, map[string][]byte{
		"a.xml": storetest.Doc("cat", "Cat\n"),
		"b.xml": storetest.Doc(" dog ", "cat"),
	})
	vocab, err := newExtractor(t, s, func(c *config.ExtractorConfig) { c.Cooccurrence = false }).
		Extract(context.Background(), "/db/LabelMe")
	if err != nil {
		t.Fatal(err)
	}
	if vocab.Len() != 2 {
		t.Fatalf("size = %d, labels = %v", vocab.Len(), vocab.Labels())
	}
	if rec, _ := vocab.Get("cat"); rec.Multiplicity != 3 {
		t.Errorf("cat multiplicity = %d", rec.Multiplicity)
	}
	if rec, _ := vocab.Get("dog"); rec.Multiplicity != 1 {
		t.Errorf("dog multiplicity = %d", rec.Multiplicity)
	}
	if rec, _ := vocab.Get("cat"); rec.SourcePath != "" || len(rec.Cooccurrences) != 0 {
		t.Errorf("flat mode must not track sources or co-occurrences: %+v", rec)
	}
}

func TestExtractWithoutCaseFolding(t *testing.T) {
	s := seed(t, map[string][]byte{"a.xml": storetest.Doc("Cat", "cat")})
	vocab, err := newExtractor(t, s, func(c *config.ExtractorConfig) { c.FoldCase = false }).
		Extract(context.Background(), "/db/LabelMe")
	if err != nil {
		t.Fatal(err)
	}
	if vocab.Len() != 2 {
		t.Errorf("labels = %v", vocab.Labels())
	}
}

func TestExtractCooccurrence(t *testing.T) {
	s := seed(t, map[string][]byte{
		"one.xml":     storetest.Doc("cat", "dog"),
		"sub/two.xml": storetest.Doc("dog"),
	})
	vocab, err := newExtractor(t, s, nil).Extract(context.Background(), "/db/LabelMe")
	if err != nil {
		t.Fatal(err)
	}
	cat, _ := vocab.Get("cat")
	dog, _ := vocab.Get("dog")
	if cat.Multiplicity != 1 || dog.Multiplicity != 2 {
		t.Errorf("multiplicities: cat=%d dog=%d", cat.Multiplicity, dog.Multiplicity)
	}
	if cat.Cooccurrences["dog"] != 1 || dog.Cooccurrences["cat"] != 1 {
		t.Errorf("co-occurrences: cat=%v dog=%v", cat.Cooccurrences, dog.Cooccurrences)
	}
	if len(cat.Cooccurrences) != 1 || len(dog.Cooccurrences) != 1 {
		t.Errorf("unexpected extra co-occurrences: cat=%v dog=%v", cat.Cooccurrences, dog.Cooccurrences)
	}
	if cat.SourcePath == "" {
		t.Error("grouped mode records the first source resource")
	}
}

func TestExtractCountsTextNodesOnly(t *testing.T) {
	s := seed(t, map[string][]byte{
		"a.xml": []byte(`<annotation><object><name/></object><object><name>cat<!-- x -->dog</name></object></annotation>`),
		"b.xml": []byte(`<annotation><object><name> </name></object></annotation>`),
	})
	vocab, err := newExtractor(t, s, nil).Extract(context.Background(), "/db/LabelMe")
	if err != nil {
		t.Fatal(err)
	}
	for _, label := range []string{"cat", "dog", ""} {
		if rec, ok := vocab.Get(label); !ok || rec.Multiplicity != 1 {
			t.Errorf("%q = %+v, %v", label, rec, ok)
		}
	}
	if vocab.Len() != 3 {
		t.Errorf("labels = %q", vocab.Labels())
	}
}

func TestExtractEmptyCollection(t *testing.T) {
	s := seed(t, nil)
	vocab, err := newExtractor(t, s, nil).Extract(context.Background(), "/db/LabelMe")
	if err != nil {
		t.Fatal(err)
	}
	if vocab.Len() != 0 {
		t.Errorf("size = %d", vocab.Len())
	}
}

func TestExtractMissingCollection(t *testing.T) {
	_, err := newExtractor(t, memory.New(), nil).Extract(context.Background(), "/db/LabelMe")
	if !errors.Is(err, apperrors.ErrCollectionResolution) {
		t.Fatalf("err = %v", err)
	}
	if apperrors.ExitCode(err) != apperrors.ExitCollectionResolution {
		t.Errorf("exit code = %d", apperrors.ExitCode(err))
	}
}

// failingStore returns a cursor that breaks mid-stream.
type failingStore struct {
	store.Store
}

func (f failingStore) Query(ctx context.Context, path string, expr pathquery.Expr) (store.Results, error) {
	src := &store.SliceSource{
		Names:    []string{"/db/LabelMe/ok", "/db/LabelMe/broken"},
		Contents: [][]byte{storetest.Doc("cat"), []byte("<annotation><object>")},
	}
	return store.NewResults(src, expr), nil
}

func TestExtractStreamFailureIsFatal(t *testing.T) {
	_, err := newExtractor(t, failingStore{Store: memory.New()}, nil).Extract(context.Background(), "/db/LabelMe")
	if !errors.Is(err, apperrors.ErrQueryExecution) {
		t.Fatalf("err = %v", err)
	}
	if apperrors.ExitCode(err) != apperrors.ExitQueryExecution {
		t.Errorf("exit code = %d", apperrors.ExitCode(err))
	}
}

func TestNewRejectsBadPath(t *testing.T) {
	_, err := New(memory.New(), config.ExtractorConfig{Path: "/annotation//name"}, nil)
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("err = %v", err)
	}
}

func TestOnIndexComplete(t *testing.T) {
	s := seed(t, map[string][]byte{"a.xml": storetest.Doc("car", "car")})
	e := newExtractor(t, s, nil)

	var got *vocabulary.Vocabulary
	handler := e.OnIndexComplete(func(ev events.IndexComplete, v *vocabulary.Vocabulary) { got = v })

	value, _ := json.Marshal(events.IndexComplete{Collection: "/db/LabelMe", Resources: 1})
	if err := handler(context.Background(), []byte("/db/LabelMe"), value); err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Len() != 1 {
		t.Fatalf("vocabulary = %v", got)
	}
	if rec, _ := got.Get("car"); rec.Multiplicity != 2 {
		t.Errorf("car multiplicity = %d", rec.Multiplicity)
	}

	value, _ = json.Marshal(events.IndexComplete{Collection: "/db/Missing"})
	if err := handler(context.Background(), nil, value); err == nil {
		t.Error("expected error for a missing collection")
	}
}
