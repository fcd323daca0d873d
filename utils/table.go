package utils

import (
	"fmt"
	"sort"
)

// Table is a jagged integer array stored in CSR form
type Table struct {
	Offsets []int // len NRows+1
	Data    []int
}

// NRows returns the number of rows
func (t *Table) NRows() int {
	if t == nil || len(t.Offsets) == 0 {
		return 0
	}
	return len(t.Offsets) - 1
}

// Row returns row i. The slice aliases the table storage.
func (t *Table) Row(i int) []int {
	return t.Data[t.Offsets[i]:t.Offsets[i+1]]
}

// Size returns the total number of entries
func (t *Table) Size() int { return len(t.Data) }

// Map applies fn to every entry in place
func (t *Table) Map(fn func(v int) int) {
	for i, v := range t.Data {
		t.Data[i] = fn(v)
	}
}

// TableBuilder collects rows from concurrent writers that own disjoint rows,
// or from a serial Add loop, and merges them in row order.
type TableBuilder struct {
	rows [][]int
}

// NewTableBuilder creates a builder for nRows rows
func NewTableBuilder(nRows int) *TableBuilder {
	return &TableBuilder{rows: make([][]int, nRows)}
}

// SetRow replaces row i. Safe for concurrent use as long as every row has a
// single writer. The values are copied.
func (tb *TableBuilder) SetRow(i int, vals []int) {
	r := make([]int, len(vals))
	copy(r, vals)
	tb.rows[i] = r
}

// Add appends v to row i (serial use only)
func (tb *TableBuilder) Add(i, v int) {
	tb.rows[i] = append(tb.rows[i], v)
}

// Build merges all rows into a Table
func (tb *TableBuilder) Build() *Table {
	t := &Table{Offsets: make([]int, len(tb.rows)+1)}
	n := 0
	for i, r := range tb.rows {
		n += len(r)
		t.Offsets[i+1] = n
	}
	t.Data = make([]int, 0, n)
	for _, r := range tb.rows {
		t.Data = append(t.Data, r...)
	}
	return t
}

// NewTableFromRows builds a table directly from rows, validating that every
// entry lies in [0, bound) when bound > 0.
func NewTableFromRows(rows [][]int, bound int) (*Table, error) {
	tb := &TableBuilder{rows: rows}
	if bound > 0 {
		for i, r := range rows {
			for _, v := range r {
				if v < 0 || v >= bound {
					return nil, fmt.Errorf("row %d: entry %d outside [0,%d)", i, v, bound)
				}
			}
		}
	}
	return tb.Build(), nil
}

// Invert builds the transpose relation: for each value v in [0,nCols) the
// sorted list of rows containing it.
func (t *Table) Invert(nCols int) *Table {
	tb := NewTableBuilder(nCols)
	for i := 0; i < t.NRows(); i++ {
		for _, v := range t.Row(i) {
			tb.Add(v, i)
		}
	}
	for _, r := range tb.rows {
		sort.Ints(r)
	}
	return tb.Build()
}
