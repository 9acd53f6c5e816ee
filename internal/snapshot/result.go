package snapshot

import (
	"github.com/cooperativa/registro/internal/schema"
)

// TableResult reports the import of one table. Total counts the rows
// written; Dropped counts rows that failed validation or were superseded
// by a later row with the same key.
type TableResult struct {
	Table   schema.Table `json:"table" yaml:"table"`
	Total   int          `json:"total" yaml:"total"`
	Dropped int          `json:"dropped" yaml:"dropped"`
}

// Result contains statistics about an import, one entry per table in
// processing order. On a failed import it covers the tables completed
// before the failure.
type Result struct {
	Tables []TableResult `json:"tables" yaml:"tables"`
}

func (r *Result) add(table schema.Table, total, dropped int) {
	r.Tables = append(r.Tables, TableResult{Table: table, Total: total, Dropped: dropped})
}

// Table returns the entry of one table.
func (r *Result) Table(t schema.Table) (TableResult, bool) {
	for _, tr := range r.Tables {
		if tr.Table == t {
			return tr, true
		}
	}
	return TableResult{}, false
}

// Total returns the rows written across all tables.
func (r *Result) Total() int {
	n := 0
	for _, tr := range r.Tables {
		n += tr.Total
	}
	return n
}

// Dropped returns the rows dropped across all tables.
func (r *Result) Dropped() int {
	n := 0
	for _, tr := range r.Tables {
		n += tr.Dropped
	}
	return n
}
