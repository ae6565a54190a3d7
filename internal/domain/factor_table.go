package domain

import "sort"

// DefaultFactorField is the single field name of simple factors.
const DefaultFactorField = "factorvalue"

// FactorTable maps instrument id to a fixed-width record of factor loadings
// for one date. Tables are immutable once written; callers must not modify
// a table returned from a store.
type FactorTable struct {
	Fields   []string             `msgpack:"fields" json:"fields"`
	Loadings map[string][]float64 `msgpack:"loadings" json:"loadings"`
}

// NewFactorTable creates an empty table with the given fields.
func NewFactorTable(fields ...string) FactorTable {
	if len(fields) == 0 {
		fields = []string{DefaultFactorField}
	}
	return FactorTable{
		Fields:   append([]string(nil), fields...),
		Loadings: make(map[string][]float64),
	}
}

// Len returns the number of instruments in the table.
func (t FactorTable) Len() int {
	return len(t.Loadings)
}

// IsEmpty reports whether the table has no instruments.
func (t FactorTable) IsEmpty() bool {
	return len(t.Loadings) == 0
}

// FieldIndex returns the column of field, or -1.
func (t FactorTable) FieldIndex(field string) int {
	for i, f := range t.Fields {
		if f == field {
			return i
		}
	}
	return -1
}

// Value returns the loading of id in field.
func (t FactorTable) Value(id, field string) (float64, bool) {
	idx := t.FieldIndex(field)
	if idx < 0 {
		return 0, false
	}
	row, ok := t.Loadings[id]
	if !ok || idx >= len(row) {
		return 0, false
	}
	return row[idx], true
}

// IDs returns the instrument ids in ascending order.
func (t FactorTable) IDs() []string {
	ids := make([]string, 0, len(t.Loadings))
	for id := range t.Loadings {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
