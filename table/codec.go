package table

import "fmt"

// Decodable is implemented by row pointers that can be filled from a raw record.
type Decodable interface {
	DecodeRow(b []byte) error
}

// Encodable rows serialize back into a raw record.
type Encodable interface {
	EncodeRow() ([]byte, error)
}

// Decode builds a table with one row per buffer, in order.
func Decode[R any, P interface {
	*R
	Decodable
}](bufs [][]byte) (*Table[R], error) {
	t := &Table[R]{rows: make([]R, len(bufs))}
	for i, b := range bufs {
		if err := P(&t.rows[i]).DecodeRow(b); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}
	return t, nil
}

// Encode serializes every row in order.
func Encode[R Encodable](t *Table[R]) ([][]byte, error) {
	out := make([][]byte, len(t.rows))
	for i, r := range t.rows {
		b, err := r.EncodeRow()
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = b
	}
	return out, nil
}
