package godbf

import (
	"bytes"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"
	"sync/atomic"
)

// Loader is a deferred decode of one field.
type Loader func() (Value, error)

// FieldValue is a view of one field inside a Record. It keeps the field meta
// and a reference back to the record buffer; the decoded value is cached on
// first use.
type FieldValue struct {
	Field Field

	kind  FieldKind
	rec   *Record
	once  sync.Once
	ready atomic.Bool
	value Value
	err   error
}

// Materialize decodes the field. It is safe to call repeatedly and from
// several goroutines; the first result is kept.
func (fv *FieldValue) Materialize() (Value, error) {
	fv.once.Do(func() {
		v, err := decodeValue(fv.Field, fv.kind, fv.RawBytes(), fv.rec.cs)
		if err != nil {
			fv.err = fieldErr("decode", fv.Field, err)
			return
		}
		fv.value = v
		fv.ready.Store(true)
	})
	return fv.value, fv.err
}

// Ready reports whether Materialize has completed successfully.
func (fv *FieldValue) Ready() bool {
	return fv.ready.Load()
}

// RawBytes returns the bytes backing this field. The slice shares the record
// buffer and must not be modified.
func (fv *FieldValue) RawBytes() []byte {
	start, end := int(fv.Field.Offset), fv.Field.end()
	return fv.rec.buf[start:end:end]
}

func (fv *FieldValue) Kind() FieldKind {
	return fv.kind
}

// Value returns the decoded value, ok is false until the field is ready.
func (fv *FieldValue) Value() (v Value, ok bool) {
	if !fv.Ready() {
		return Value{}, false
	}
	return fv.value, true
}

func (fv *FieldValue) String() string {
	v, _ := fv.Value()
	return v.String()
}

// Record is one row of a table: a raw buffer shared by an ordered, fixed set
// of field views.
type Record struct {
	buf    []byte
	cs     Charset
	fields []FieldValue
}

// NewRecord copies buf and binds fields to it. Every field must lie inside buf.
func NewRecord(fields []Field, cs Charset, buf []byte) (*Record, error) {
	r := &Record{
		buf:    bytes.Clone(buf),
		cs:     cs,
		fields: make([]FieldValue, len(fields)),
	}
	for i, f := range fields {
		kind, err := f.Kind()
		if err != nil {
			return nil, fieldErr("bind", f, err)
		}
		if f.end() > len(buf) {
			return nil, fieldErr("bind", f, fmt.Errorf("%w: [%d, %d) exceeds record length %d", ErrBounds, f.Offset, f.end(), len(buf)))
		}
		r.fields[i].Field = f
		r.fields[i].kind = kind
		r.fields[i].rec = r
	}
	return r, nil
}

func (r *Record) Len() int {
	return len(r.fields)
}

func (r *Record) Field(i int) *FieldValue {
	return &r.fields[i]
}

// ByName finds a field by case insensitive name.
func (r *Record) ByName(name string) (*FieldValue, bool) {
	for i := range r.fields {
		if strings.EqualFold(r.fields[i].Field.Name, name) {
			return &r.fields[i], true
		}
	}
	return nil, false
}

// Deleted reports the delete flag stored in the first byte.
func (r *Record) Deleted() bool {
	return len(r.buf) > 0 && r.buf[0] == DELETED
}

// Bytes returns a copy of the whole record buffer.
func (r *Record) Bytes() []byte {
	return bytes.Clone(r.buf)
}

// LoadAll returns one Loader per field in field order. Nothing is decoded
// until a Loader is called.
func (r *Record) LoadAll() []Loader {
	loaders := make([]Loader, len(r.fields))
	for i := range r.fields {
		loaders[i] = r.fields[i].Materialize
	}
	return loaders
}

type loaded struct {
	index int
	err   error
}

// LoadAllUnordered decodes every field concurrently and yields the index of
// each field as it finishes. Stopping early is fine, the remaining decodes
// finish in the background.
func (r *Record) LoadAllUnordered() iter.Seq2[int, error] {
	return func(yield func(int, error) bool) {
		done := make(chan loaded, len(r.fields))
		for i := range r.fields {
			go func(i int) {
				_, err := r.fields[i].Materialize()
				done <- loaded{index: i, err: err}
			}(i)
		}
		for range r.fields {
			l := <-done
			if !yield(l.index, l.err) {
				return
			}
		}
	}
}

// Materialize decodes every field in order and joins the failures.
func (r *Record) Materialize() error {
	var errs []error
	for _, load := range r.LoadAll() {
		if _, err := load(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Values materializes the record and returns its values in field order.
func (r *Record) Values() ([]Value, error) {
	if err := r.Materialize(); err != nil {
		return nil, err
	}
	values := make([]Value, len(r.fields))
	for i := range r.fields {
		values[i], _ = r.fields[i].Value()
	}
	return values, nil
}

// EncodeRecord builds a new active record buffer of recordLen bytes from values.
func EncodeRecord(fields []Field, cs Charset, values []Value, recordLen int) ([]byte, error) {
	if len(values) != len(fields) {
		return nil, fmt.Errorf("%w: %d values for %d fields", ErrEncode, len(values), len(fields))
	}
	buf := bytes.Repeat([]byte{SPACE}, recordLen)
	for i, f := range fields {
		kind, err := f.Kind()
		if err != nil {
			return nil, fieldErr("encode", f, err)
		}
		if f.end() > recordLen {
			return nil, fieldErr("encode", f, fmt.Errorf("%w: [%d, %d) exceeds record length %d", ErrBounds, f.Offset, f.end(), recordLen))
		}
		b, err := encodeValue(f, kind, values[i], cs)
		if err != nil {
			return nil, fieldErr("encode", f, err)
		}
		copy(buf[f.Offset:f.end()], b)
	}
	return buf, nil
}
