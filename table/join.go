package table

import "iter"

// JoinIter is a lazy nested loop join. For each left row every right row is
// offered to the predicate; matches come out left-major, right-minor.
type JoinIter[L, R, O any] struct {
	left  *Table[L]
	right *Table[R]
	pred  func(L, R) (O, bool)

	li, ri int
	row    O
}

// Join pairs left and right rows through pred. Nothing is evaluated until
// Next is called.
func Join[L, R, O any](left *Table[L], right *Table[R], pred func(L, R) (O, bool)) *JoinIter[L, R, O] {
	return &JoinIter[L, R, O]{left: left, right: right, pred: pred}
}

// Next advances to the next match.
func (j *JoinIter[L, R, O]) Next() bool {
	for j.li < j.left.Len() {
		l := j.left.rows[j.li]
		for j.ri < j.right.Len() {
			r := j.right.rows[j.ri]
			j.ri++
			if o, ok := j.pred(l, r); ok {
				j.row = o
				return true
			}
		}
		j.li++
		j.ri = 0
	}
	var zero O
	j.row = zero
	return false
}

// Row is the match found by the last successful Next.
func (j *JoinIter[L, R, O]) Row() O {
	return j.row
}

// All drains the iterator as a sequence.
func (j *JoinIter[L, R, O]) All() iter.Seq[O] {
	return func(yield func(O) bool) {
		for j.Next() {
			if !yield(j.row) {
				return
			}
		}
	}
}

// Collect materializes the remaining matches into a table.
func (j *JoinIter[L, R, O]) Collect() *Table[O] {
	return FromSeq(j.All())
}

// JoinTable is Join followed by Collect.
func JoinTable[L, R, O any](left *Table[L], right *Table[R], pred func(L, R) (O, bool)) *Table[O] {
	return Join(left, right, pred).Collect()
}
