// Package table is an in-memory row container with select, update,
// aggregate and join operations. It works with any row type.
package table

import "iter"

// Cloner lets Insert deep copy rows that hold references.
type Cloner[R any] interface {
	Clone() R
}

// Table keeps rows in insertion order. It is not safe for concurrent
// mutation; Update and Insert need exclusive access.
type Table[R any] struct {
	rows []R
}

func New[R any](rows ...R) *Table[R] {
	return &Table[R]{rows: rows}
}

// FromSeq collects seq into a new table.
func FromSeq[R any](seq iter.Seq[R]) *Table[R] {
	t := &Table[R]{}
	for r := range seq {
		t.rows = append(t.rows, r)
	}
	return t
}

func (t *Table[R]) Len() int {
	return len(t.rows)
}

func (t *Table[R]) At(i int) R {
	return t.rows[i]
}

// Rows exposes the backing slice.
func (t *Table[R]) Rows() []R {
	return t.rows
}

// InsertOwned appends row without copying it.
func (t *Table[R]) InsertOwned(row R) {
	t.rows = append(t.rows, row)
}

// Insert appends a copy of each row in order.
func (t *Table[R]) Insert(rows ...R) {
	for _, r := range rows {
		if c, ok := any(r).(Cloner[R]); ok {
			r = c.Clone()
		}
		t.rows = append(t.rows, r)
	}
}

// Update calls fn on every row in index order.
func (t *Table[R]) Update(fn func(*R)) {
	for i := range t.rows {
		fn(&t.rows[i])
	}
}

func (t *Table[R]) Iter() *Cursor[R] {
	return &Cursor[R]{table: t, i: -1}
}

// All yields index and row in order.
func (t *Table[R]) All() iter.Seq2[int, R] {
	return func(yield func(int, R) bool) {
		for i := 0; i < len(t.rows); i++ {
			if !yield(i, t.rows[i]) {
				return
			}
		}
	}
}

// Values yields rows in order.
func (t *Table[R]) Values() iter.Seq[R] {
	return func(yield func(R) bool) {
		for i := 0; i < len(t.rows); i++ {
			if !yield(t.rows[i]) {
				return
			}
		}
	}
}

// Cursor walks a table by index.
type Cursor[R any] struct {
	table *Table[R]
	i     int
}

// Next moves to the following row.
func (c *Cursor[R]) Next() bool {
	if c.i < c.table.Len() {
		c.i++
	}
	return c.i < c.table.Len()
}

// Nth skips n rows ahead of the next one in a single jump, the way Next
// would after n+1 calls.
func (c *Cursor[R]) Nth(n int) bool {
	if n < 0 {
		return false
	}
	if c.i+1+n >= c.table.Len() {
		c.i = c.table.Len()
		return false
	}
	c.i += 1 + n
	return true
}

func (c *Cursor[R]) Index() int {
	return c.i
}

func (c *Cursor[R]) Row() R {
	return c.table.rows[c.i]
}

// Remaining is the number of rows not yet visited.
func (c *Cursor[R]) Remaining() int {
	if n := c.table.Len() - c.i - 1; n > 0 {
		return n
	}
	return 0
}

// Select keeps, in order, the mapped result of every row fn accepts.
func Select[R, S any](t *Table[R], fn func(R) (S, bool)) *Table[S] {
	out := &Table[S]{}
	for _, r := range t.rows {
		if s, ok := fn(r); ok {
			out.rows = append(out.rows, s)
		}
	}
	return out
}

// Aggregate folds rows left to right starting from initial.
func Aggregate[R, A any](t *Table[R], initial A, fold func(A, R) A) A {
	acc := initial
	for _, r := range t.rows {
		acc = fold(acc, r)
	}
	return acc
}
