package vocabulary

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/labelmine/internal/vocabulary/normalizer"
)

// NormalizeFunc canonicalises a raw label.
type NormalizeFunc func(string) string

// Aggregator accumulates raw labels into a Vocabulary it owns. It is not safe
// for concurrent use.
type Aggregator struct {
	vocab     *Vocabulary
	normalize NormalizeFunc
	observed  int64
	documents int64
}

// NewAggregator returns an Aggregator over an empty Vocabulary. A nil
// normalize uses normalizer.Normalize.
func NewAggregator(normalize NormalizeFunc) *Aggregator {
	if normalize == nil {
		normalize = normalizer.Normalize
	}
	return &Aggregator{
		vocab:     New(),
		normalize: normalize,
	}
}

// Add normalises raw, counts one occurrence of it and returns the label.
func (a *Aggregator) Add(raw string) string {
	return a.add("", raw)
}

// AddDocument counts every label of one annotation document and records a
// co-occurrence, in both directions, for each pair of distinct labels in it.
// sourcePath is kept on records first seen in this document.
func (a *Aggregator) AddDocument(sourcePath string, raws []string) {
	a.documents++
	seen := make(map[string]struct{}, len(raws))
	for _, raw := range raws {
		seen[a.add(sourcePath, raw)] = struct{}{}
	}
	if len(seen) < 2 {
		return
	}
	labels := make([]string, 0, len(seen))
	for label := range seen {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for i := 0; i < len(labels); i++ {
		for j := i + 1; j < len(labels); j++ {
			a.cooccur(labels[i], labels[j])
			a.cooccur(labels[j], labels[i])
		}
	}
}

// Vocabulary hands out the aggregated vocabulary.
func (a *Aggregator) Vocabulary() *Vocabulary {
	return a.vocab
}

// Observed is the number of raw labels added so far.
func (a *Aggregator) Observed() int64 {
	return a.observed
}

// Documents is the number of documents added through AddDocument.
func (a *Aggregator) Documents() int64 {
	return a.documents
}

func (a *Aggregator) add(sourcePath, raw string) string {
	label := a.normalize(raw)
	a.observed++

	rec, ok := a.vocab.records[label]
	if !ok {
		rec = Record{
			SourcePath:    sourcePath,
			Label:         label,
			Multiplicity:  1,
			Cooccurrences: make(map[string]int),
		}
	} else {
		rec.Multiplicity++
	}
	a.vocab.records[label] = rec
	return label
}

func (a *Aggregator) cooccur(label, other string) {
	rec := a.vocab.records[label]
	counts := rec.Cooccurrences
	counts[other]++
	rec.Cooccurrences = counts
	a.vocab.records[label] = rec
}
