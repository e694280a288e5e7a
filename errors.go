package godbf

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownCodepage      = errors.New("unknown codepage")
	ErrUnsupportedFieldType = errors.New("unsupported field type")
	ErrDecode               = errors.New("decode failed")
	ErrEncode               = errors.New("encode failed")
	ErrBounds               = errors.New("field out of record bounds")
	ErrMalformedHeader      = errors.New("malformed header")
	ErrMalformedDescriptor  = errors.New("malformed field descriptor")
	ErrOutOfRange           = errors.New("index out of range")
	ErrFileChanged          = errors.New("file has changed")
)

// FieldError reports a failure tied to a single field.
type FieldError struct {
	Field string
	Op    string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s field %q: %v", e.Op, e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

func fieldErr(op string, f Field, err error) error {
	if err == nil {
		return nil
	}
	return &FieldError{Field: f.Name, Op: op, Err: err}
}
