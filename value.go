package godbf

import (
	"fmt"
	"strconv"
	"time"
)

// Value is a decoded field value. The kind selects which payload is set.
type Value struct {
	kind FieldKind
	null bool
	text string
	num  float64
	prec int
	i    int64
	t    time.Time
	b    bool
	raw  []byte
}

func NewText(s string) Value {
	return Value{kind: KindCharacter, text: s}
}

func NewCurrency(c Currency) Value {
	return Value{kind: KindCurrency, i: int64(c)}
}

func NewDate(t time.Time) Value {
	y, m, d := t.Date()
	return Value{kind: KindDate, t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func NewDateTime(t time.Time) Value {
	return Value{kind: KindDateTime, t: t}
}

// NewNumber builds a Numeric value displayed with precision decimals.
// A negative precision displays the shortest exact form.
func NewNumber(f float64, precision int) Value {
	return Value{kind: KindNumeric, num: f, prec: precision}
}

func NewLogical(b bool) Value {
	return Value{kind: KindLogical, b: b}
}

func NewInteger(i int64) Value {
	return Value{kind: KindInteger, i: i}
}

func NewDouble(f float64) Value {
	return Value{kind: KindDouble, num: f, prec: -1}
}

func NewRaw(kind FieldKind, b []byte) Value {
	return Value{kind: kind, raw: b}
}

// Null is the blank value of kind.
func Null(kind FieldKind) Value {
	return Value{kind: kind, null: true}
}

func (v Value) Kind() FieldKind {
	return v.kind
}

func (v Value) IsNull() bool {
	return v.null
}

func (v Value) Text() string {
	return v.text
}

func (v Value) Time() time.Time {
	return v.t
}

func (v Value) Bool() bool {
	return v.b
}

func (v Value) Bytes() []byte {
	return v.raw
}

// Float converts any numeric payload to float64.
func (v Value) Float() float64 {
	switch v.kind {
	case KindCurrency:
		return Currency(v.i).Float64()
	case KindInteger:
		return float64(v.i)
	}
	return v.num
}

// Int converts any numeric payload to int64, truncating fractions.
func (v Value) Int() int64 {
	switch v.kind {
	case KindCurrency:
		return v.i / 10000
	case KindInteger:
		return v.i
	}
	return int64(v.num)
}

func (v Value) Currency() Currency {
	switch v.kind {
	case KindCurrency:
		return Currency(v.i)
	case KindInteger:
		return Currency(v.i * 10000)
	}
	return CurrencyFromFloat(v.num)
}

func (v Value) String() string {
	if v.null {
		return ""
	}
	switch v.kind {
	case KindCharacter, KindVarchar:
		return v.text
	case KindCurrency:
		return Currency(v.i).String()
	case KindDate:
		return v.t.Format(time.DateOnly)
	case KindDateTime:
		return v.t.Format(time.DateTime)
	case KindFloat, KindNumeric:
		prec := v.prec
		if prec == 0 && v.num != float64(int64(v.num)) {
			prec = -1
		}
		return strconv.FormatFloat(v.num, 'f', prec, 64)
	case KindDouble:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindLogical:
		if v.b {
			return "T"
		}
		return "F"
	case KindInteger:
		return strconv.FormatInt(v.i, 10)
	}
	return fmt.Sprintf("%x", v.raw)
}
