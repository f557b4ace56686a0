package vocabulary

import (
	"reflect"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/labelmine/internal/vocabulary/normalizer"
)

func TestAggregatorCountsFoldedLabels(t *testing.T) {
	agg := NewAggregator(normalizer.Fold)
	for _, raw := range []string{"cat", "Cat\n", " dog ", "cat"} {
		agg.Add(raw)
	}

	v := agg.Vocabulary()
	if v.Len() != 2 {
		t.Fatalf("expected 2 labels, got %d (%v)", v.Len(), v.Labels())
	}
	cat, ok := v.Get("cat")
	if !ok || cat.Multiplicity != 3 {
		t.Errorf("cat = %+v, ok=%v", cat, ok)
	}
	dog, ok := v.Get("dog")
	if !ok || dog.Multiplicity != 1 {
		t.Errorf("dog = %+v, ok=%v", dog, ok)
	}
	if len(cat.Cooccurrences) != 0 || cat.SourcePath != "" {
		t.Errorf("flat aggregation should leave cooccurrences and source empty: %+v", cat)
	}
	if agg.Observed() != 4 {
		t.Errorf("observed = %d", agg.Observed())
	}
}

func TestAggregatorDefaultNormalizerKeepsCase(t *testing.T) {
	agg := NewAggregator(nil)
	agg.Add("Cat\n")
	agg.Add("cat")

	if got := agg.Vocabulary().Labels(); !reflect.DeepEqual(got, []string{"Cat", "cat"}) {
		t.Errorf("labels = %v", got)
	}
}

func TestAggregatorCooccurrence(t *testing.T) {
	agg := NewAggregator(nil)
	agg.AddDocument("a.xml", []string{"cat", "dog"})
	agg.AddDocument("b.xml", []string{"dog"})

	v := agg.Vocabulary()
	cat, _ := v.Get("cat")
	dog, _ := v.Get("dog")
	if cat.Multiplicity != 1 || dog.Multiplicity != 2 {
		t.Fatalf("multiplicities: cat=%d dog=%d", cat.Multiplicity, dog.Multiplicity)
	}
	if !reflect.DeepEqual(cat.Cooccurrences, map[string]int{"dog": 1}) {
		t.Errorf("cat cooccurrences = %v", cat.Cooccurrences)
	}
	if !reflect.DeepEqual(dog.Cooccurrences, map[string]int{"cat": 1}) {
		t.Errorf("dog cooccurrences = %v", dog.Cooccurrences)
	}
	if cat.SourcePath != "a.xml" || dog.SourcePath != "a.xml" {
		t.Errorf("source paths: cat=%q dog=%q", cat.SourcePath, dog.SourcePath)
	}
	if agg.Documents() != 2 {
		t.Errorf("documents = %d", agg.Documents())
	}
}

func TestAggregatorRepeatedLabelInDocument(t *testing.T) {
	agg := NewAggregator(nil)
	agg.AddDocument("street.xml", []string{"car", "car", "tree"})

	car, _ := agg.Vocabulary().Get("car")
	tree, _ := agg.Vocabulary().Get("tree")
	if car.Multiplicity != 2 {
		t.Errorf("car multiplicity = %d", car.Multiplicity)
	}
	// a label never co-occurs with itself and the pair counts once per document
	if !reflect.DeepEqual(car.Cooccurrences, map[string]int{"tree": 1}) {
		t.Errorf("car cooccurrences = %v", car.Cooccurrences)
	}
	if !reflect.DeepEqual(tree.Cooccurrences, map[string]int{"car": 1}) {
		t.Errorf("tree cooccurrences = %v", tree.Cooccurrences)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	agg := NewAggregator(nil)
	agg.AddDocument("", []string{"sky", "building"})

	sky, _ := agg.Vocabulary().Get("sky")
	sky.Cooccurrences["building"] = 100
	sky.Multiplicity = 100

	again, _ := agg.Vocabulary().Get("sky")
	if again.Multiplicity != 1 || again.Cooccurrences["building"] != 1 {
		t.Errorf("vocabulary mutated through a copy: %+v", again)
	}
}

func TestRecordsOrderingAndNeighbors(t *testing.T) {
	agg := NewAggregator(nil)
	agg.AddDocument("1", []string{"car", "road", "tree"})
	agg.AddDocument("2", []string{"car", "road"})
	agg.AddDocument("3", []string{"car", "sky"})

	v := agg.Vocabulary()
	recs := v.Records()
	var labels []string
	for _, r := range recs {
		labels = append(labels, r.Label)
	}
	if want := []string{"car", "road", "sky", "tree"}; !reflect.DeepEqual(labels, want) {
		t.Errorf("records order = %v, want %v", labels, want)
	}
	if v.TotalOccurrences() != 7 {
		t.Errorf("total occurrences = %d", v.TotalOccurrences())
	}

	got := v.Neighbors("car", 2)
	want := []Neighbor{{Label: "road", Count: 2}, {Label: "sky", Count: 1}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("neighbors = %v, want %v", got, want)
	}
	if n := v.Neighbors("unknown", 3); n != nil {
		t.Errorf("expected nil neighbors, got %v", n)
	}
}

func TestEmptyVocabulary(t *testing.T) {
	v := NewAggregator(nil).Vocabulary()
	if v.Len() != 0 || len(v.Records()) != 0 || len(v.Labels()) != 0 {
		t.Errorf("expected empty vocabulary")
	}
	if _, ok := v.Get("cat"); ok {
		t.Error("unexpected record")
	}
}
