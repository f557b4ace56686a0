// Package vocabulary holds the label vocabulary mined from an annotation
// corpus: one Record per normalised label with its multiplicity and the
// labels it co-occurs with inside the same annotation document.
package vocabulary

import (
	"maps"
	"sort"
)

// Record is the aggregate for one label. Label never changes after the record
// is created and Multiplicity only grows during a run.
type Record struct {
	SourcePath    string         `json:"source_path,omitempty" yaml:"sourcePath,omitempty"`
	Label         string         `json:"label" yaml:"label"`
	Multiplicity  int            `json:"multiplicity" yaml:"multiplicity"`
	Cooccurrences map[string]int `json:"cooccurrences,omitempty" yaml:"cooccurrences,omitempty"`
}

// Neighbor is a label that co-occurs with another one, with the number of
// documents they share.
type Neighbor struct {
	Label string `json:"label" yaml:"label"`
	Count int    `json:"count" yaml:"count"`
}

// Vocabulary maps normalised labels to their records. Only an Aggregator
// mutates it; readers get copies.
type Vocabulary struct {
	records map[string]Record
}

func New() *Vocabulary {
	return &Vocabulary{records: make(map[string]Record)}
}

func (v *Vocabulary) Len() int {
	return len(v.records)
}

// Get returns a copy of the record for label.
func (v *Vocabulary) Get(label string) (Record, bool) {
	rec, ok := v.records[label]
	if !ok {
		return Record{}, false
	}
	return cloneRecord(rec), true
}

// Labels returns every label in lexical order.
func (v *Vocabulary) Labels() []string {
	labels := make([]string, 0, len(v.records))
	for label := range v.records {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Records returns copies of all records, most frequent first, ties broken by
// label.
func (v *Vocabulary) Records() []Record {
	out := make([]Record, 0, len(v.records))
	for _, rec := range v.records {
		out = append(out, cloneRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Multiplicity != out[j].Multiplicity {
			return out[i].Multiplicity > out[j].Multiplicity
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// TotalOccurrences sums the multiplicity of every label.
func (v *Vocabulary) TotalOccurrences() int {
	total := 0
	for _, rec := range v.records {
		total += rec.Multiplicity
	}
	return total
}

// Neighbors returns the k labels that co-occur most often with label. k <= 0
// returns all of them.
func (v *Vocabulary) Neighbors(label string, k int) []Neighbor {
	rec, ok := v.records[label]
	if !ok {
		return nil
	}
	out := make([]Neighbor, 0, len(rec.Cooccurrences))
	for other, count := range rec.Cooccurrences {
		out = append(out, Neighbor{Label: other, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}

func cloneRecord(rec Record) Record {
	rec.Cooccurrences = maps.Clone(rec.Cooccurrences)
	if rec.Cooccurrences == nil {
		rec.Cooccurrences = map[string]int{}
	}
	return rec
}
