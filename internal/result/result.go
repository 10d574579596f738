package result

import (
	"encoding/json"
	"iter"
)

// Builder accumulates records from a single producer. Call Result once the
// transfer has finished.
type Builder struct {
	records []ChangeRecord
}

// Add appends rec unmodified.
func (b *Builder) Add(rec ChangeRecord) {
	b.records = append(b.records, rec)
}

// Len returns the number of records added so far.
func (b *Builder) Len() int {
	return len(b.records)
}

// Result freezes the collected records. The builder is reset, so records
// added afterwards do not leak into the returned Result.
func (b *Builder) Result() *Result {
	r := &Result{records: b.records}
	b.records = nil
	return r
}

// Result is the ordered, read-only set of outcomes of one deployment run.
type Result struct {
	records []ChangeRecord
}

// New builds a Result from records, preserving their order.
func New(records ...ChangeRecord) *Result {
	var b Builder
	for _, rec := range records {
		b.Add(rec)
	}
	return b.Result()
}

// Len returns the total number of records, including timestamp-only ones.
func (r *Result) Len() int {
	return len(r.records)
}

// All yields every record in engine order.
func (r *Result) All() iter.Seq[ChangeRecord] {
	return func(yield func(ChangeRecord) bool) {
		for _, rec := range r.records {
			if !yield(rec) {
				return
			}
		}
	}
}

// Totals counts records per update kind. Every kind is always present.
type Totals map[UpdateKind]int

// Sum returns the total across all kinds.
func (t Totals) Sum() int {
	n := 0
	for _, v := range t {
		n += v
	}
	return n
}

// Summarize counts every record by update kind, timestamp-only records
// included. Records of a kind outside UpdateKinds are not counted.
func (r *Result) Summarize() Totals {
	totals := make(Totals, len(UpdateKinds))
	for _, k := range UpdateKinds {
		totals[k] = 0
	}
	for _, rec := range r.records {
		if _, ok := totals[rec.Update]; ok {
			totals[rec.Update]++
		}
	}
	return totals
}

// FilterForDisplay yields records worth listing: timestamp-only records are
// dropped and, unless kind is AnyUpdate, so is every record of another kind.
// The sequence can be ranged over any number of times.
func (r *Result) FilterForDisplay(kind UpdateKind) iter.Seq[ChangeRecord] {
	return func(yield func(ChangeRecord) bool) {
		for _, rec := range r.records {
			if !rec.Substantive() {
				continue
			}
			if kind != AnyUpdate && rec.Update != kind {
				continue
			}
			if !yield(rec) {
				return
			}
		}
	}
}

// HasChanges reports whether any record would be displayed.
func (r *Result) HasChanges() bool {
	for range r.FilterForDisplay(AnyUpdate) {
		return true
	}
	return false
}

type resultJSON struct {
	Totals  Totals         `json:"totals"`
	Changes []ChangeRecord `json:"changes"`
}

// MarshalJSON encodes totals and the displayable records.
func (r *Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{Totals: r.Summarize(), Changes: []ChangeRecord{}}
	for rec := range r.FilterForDisplay(AnyUpdate) {
		out.Changes = append(out.Changes, rec)
	}
	return json.Marshal(out)
}
