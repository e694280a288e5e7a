package godbf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	// days from 0001-01-01 (day 1) to 1970-01-01
	unixEpochDays = 719_163
	// 9999-12-31
	maxDays = 3_652_059

	maxNumberWidth = 20
	secondsPerDay  = 86_400
)

// Currency is a fixed point amount in ten-thousandths.
type Currency int64

func CurrencyFromFloat(f float64) Currency {
	return Currency(math.Round(f * 10000))
}

func (c Currency) Float64() float64 {
	return float64(c) / 10000
}

func (c Currency) String() string {
	sign := ""
	u := uint64(c)
	if c < 0 {
		sign = "-"
		u = uint64(-(c + 1)) + 1
	}
	return fmt.Sprintf("%s%d.%04d", sign, u/10000, u%10000)
}

// DecodeCharacter decodes a fixed width text field. Every byte of b must be consumed.
func DecodeCharacter(b []byte, cs Charset) (string, error) {
	text, n, err := cs.Decode(b)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if n != len(b) {
		return "", fmt.Errorf("%w: expect %d bytes but read %d", ErrDecode, len(b), n)
	}
	return text, nil
}

// EncodeCharacter encodes text into exactly size bytes, right padded with spaces.
func EncodeCharacter(text string, size int, cs Charset) ([]byte, error) {
	enc, n, err := cs.Encode(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	if n != len(text) {
		return nil, fmt.Errorf("%w: encoded %d of %d bytes", ErrEncode, n, len(text))
	}
	if len(enc) > size {
		return nil, fmt.Errorf("%w: %d bytes do not fit in %d", ErrEncode, len(enc), size)
	}
	out := bytes.Repeat([]byte{SPACE}, size)
	copy(out, enc)
	return out, nil
}

func DecodeCurrency(b []byte) (Currency, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("%w: currency needs 8 bytes but found %d", ErrDecode, len(b))
	}
	return Currency(int64(binary.LittleEndian.Uint64(b))), nil
}

func EncodeCurrency(c Currency) []byte {
	return binary.LittleEndian.AppendUint64(nil, uint64(c))
}

// DecodeDate reads an 8 byte day count where day 1 is 0001-01-01.
func DecodeDate(b []byte) (time.Time, error) {
	if len(b) != 8 {
		return time.Time{}, fmt.Errorf("%w: date needs 8 bytes but found %d", ErrDecode, len(b))
	}
	return dateFromDays(int64(binary.LittleEndian.Uint64(b)))
}

func EncodeDate(t time.Time) ([]byte, error) {
	days, err := daysFromDate(t)
	if err != nil {
		return nil, err
	}
	return binary.LittleEndian.AppendUint64(nil, uint64(days)), nil
}

// DecodeDateTime reads a 4 byte Julian day number followed by 4 bytes of
// milliseconds since midnight.
func DecodeDateTime(b []byte) (time.Time, error) {
	if len(b) != 8 {
		return time.Time{}, fmt.Errorf("%w: datetime needs 8 bytes but found %d", ErrDecode, len(b))
	}
	half := len(b) / 2
	julian := int32(binary.LittleEndian.Uint32(b[:half]))
	date, err := dateFromDays(int64(julian) - julianDayOffset)
	if err != nil {
		return time.Time{}, err
	}
	ms := binary.LittleEndian.Uint32(b[half:])
	hour := (ms / 3_600_000) % 24
	minute := (ms / 60_000) % 60
	second := (ms / 1_000) % 60
	return time.Date(date.Year(), date.Month(), date.Day(),
		int(hour), int(minute), int(second), int(ms%1000)*int(time.Millisecond), time.UTC), nil
}

func EncodeDateTime(t time.Time) ([]byte, error) {
	days, err := daysFromDate(t)
	if err != nil {
		return nil, err
	}
	julian := days + julianDayOffset
	if julian > math.MaxInt32 {
		return nil, fmt.Errorf("%w: julian day %d overflows", ErrEncode, julian)
	}
	ms := (t.Hour()*3600+t.Minute()*60+t.Second())*1000 + t.Nanosecond()/int(time.Millisecond)
	out := binary.LittleEndian.AppendUint32(nil, uint32(julian))
	return binary.LittleEndian.AppendUint32(out, uint32(ms)), nil
}

func dateFromDays(days int64) (time.Time, error) {
	if days < 0 || days > maxDays {
		return time.Time{}, fmt.Errorf("%w: day count %d out of range", ErrDecode, days)
	}
	return time.Unix((days-unixEpochDays)*secondsPerDay, 0).UTC(), nil
}

func daysFromDate(t time.Time) (int64, error) {
	y, m, d := t.Date()
	days := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix()/secondsPerDay + unixEpochDays
	if days < 0 || days > maxDays {
		return 0, fmt.Errorf("%w: date %s out of range", ErrEncode, t.Format(time.DateOnly))
	}
	return days, nil
}

// DecodeNumber parses a Float/Numeric field stored as ASCII text.
// A field holding only spaces is null.
func DecodeNumber(b []byte) (value float64, null bool, err error) {
	if len(b) > maxNumberWidth {
		return 0, false, fmt.Errorf("%w: numeric width %d exceeds %d", ErrDecode, len(b), maxNumberWidth)
	}
	text, n, err := latin1.Decode(b)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if n != len(b) {
		return 0, false, fmt.Errorf("%w: expect %d bytes but read %d", ErrDecode, len(b), n)
	}
	text = strings.TrimSpace(strings.TrimRight(text, "\x00"))
	if text == "" {
		return 0, true, nil
	}
	value, err = strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return value, false, nil
}

// EncodeNumber renders value as zero padded text of exactly size bytes.
func EncodeNumber(value float64, size, precision int) ([]byte, error) {
	if size > maxNumberWidth {
		return nil, fmt.Errorf("%w: numeric width %d exceeds %d", ErrEncode, size, maxNumberWidth)
	}
	text := fmt.Sprintf("%0*.*f", size, precision, value)
	if len(text) != size {
		return nil, fmt.Errorf("%w: %q does not fit in %d bytes", ErrEncode, text, size)
	}
	out, n, err := latin1.Encode(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	if n != len(text) || len(out) != size {
		return nil, fmt.Errorf("%w: expect %d bytes but wrote %d", ErrEncode, size, len(out))
	}
	return out, nil
}

func DecodeLogical(b []byte) (value bool, null bool, err error) {
	if len(b) != 1 {
		return false, false, fmt.Errorf("%w: logical needs 1 byte but found %d", ErrDecode, len(b))
	}
	switch b[0] {
	case 'T', 't', 'Y', 'y':
		return true, false, nil
	case 'F', 'f', 'N', 'n':
		return false, false, nil
	case SPACE, '?', NUL:
		return false, true, nil
	}
	return false, false, fmt.Errorf("%w: invalid logical 0x%02X", ErrDecode, b[0])
}

func DecodeInteger(b []byte) (int32, error) {
	if len(b) != 4 {
		return 0, fmt.Errorf("%w: integer needs 4 bytes but found %d", ErrDecode, len(b))
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

func DecodeDouble(b []byte) (float64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("%w: double needs 8 bytes but found %d", ErrDecode, len(b))
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}

// decodeValue dispatches b, the byte range of f, to the codec for kind.
func decodeValue(f Field, kind FieldKind, b []byte, cs Charset) (Value, error) {
	switch kind {
	case KindCharacter, KindVarchar:
		text, err := DecodeCharacter(b, cs)
		if err != nil {
			return Value{}, err
		}
		return Value{kind: kind, text: text}, nil
	case KindCurrency:
		c, err := DecodeCurrency(b)
		if err != nil {
			return Value{}, err
		}
		return NewCurrency(c), nil
	case KindDate:
		t, err := DecodeDate(b)
		if err != nil {
			return Value{}, err
		}
		return NewDate(t), nil
	case KindDateTime:
		t, err := DecodeDateTime(b)
		if err != nil {
			return Value{}, err
		}
		return NewDateTime(t), nil
	case KindFloat, KindNumeric:
		n, null, err := DecodeNumber(b)
		if err != nil {
			return Value{}, err
		}
		if null {
			return Null(kind), nil
		}
		return Value{kind: kind, num: n, prec: int(f.Precision)}, nil
	case KindLogical:
		v, null, err := DecodeLogical(b)
		if err != nil {
			return Value{}, err
		}
		if null {
			return Null(kind), nil
		}
		return NewLogical(v), nil
	case KindInteger:
		i, err := DecodeInteger(b)
		if err != nil {
			return Value{}, err
		}
		return NewInteger(int64(i)), nil
	case KindDouble:
		d, err := DecodeDouble(b)
		if err != nil {
			return Value{}, err
		}
		return NewDouble(d), nil
	case KindMemo, KindGeneral, KindPicture, KindVarbinary:
		return Value{kind: kind, raw: bytes.Clone(b)}, nil
	}
	return Value{}, fmt.Errorf("%w: kind %s", ErrUnsupportedFieldType, kind)
}

// assignable reports whether a value of kind from can be stored in a field of
// kind to. Numbers convert among the numeric kinds, except that an Integer
// field only takes integers, and a DateTime field takes a Date at midnight.
func assignable(to, from FieldKind) bool {
	if to == from {
		return true
	}
	switch to {
	case KindCharacter, KindVarchar:
		return from == KindCharacter || from == KindVarchar
	case KindCurrency, KindFloat, KindNumeric, KindDouble:
		switch from {
		case KindCurrency, KindFloat, KindNumeric, KindDouble, KindInteger:
			return true
		}
	case KindDateTime:
		return from == KindDate
	}
	return false
}

// encodeValue renders v into exactly f.Size bytes.
func encodeValue(f Field, kind FieldKind, v Value, cs Charset) ([]byte, error) {
	size := int(f.Size)
	if !assignable(kind, v.kind) {
		return nil, fmt.Errorf("%w: %s value for %s field", ErrEncode, v.kind, kind)
	}
	if v.null {
		switch kind {
		case KindCharacter, KindVarchar, KindFloat, KindNumeric, KindLogical:
			return bytes.Repeat([]byte{SPACE}, size), nil
		case KindMemo, KindGeneral, KindPicture, KindVarbinary:
			return make([]byte, size), nil
		}
		return nil, fmt.Errorf("%w: %s field has no null form", ErrEncode, kind)
	}
	var (
		out []byte
		err error
	)
	switch kind {
	case KindCharacter, KindVarchar:
		return EncodeCharacter(v.text, size, cs)
	case KindCurrency:
		out = EncodeCurrency(v.Currency())
	case KindDate:
		out, err = EncodeDate(v.t)
	case KindDateTime:
		out, err = EncodeDateTime(v.t)
	case KindFloat, KindNumeric:
		return EncodeNumber(v.Float(), size, int(f.Precision))
	case KindLogical:
		out = []byte{'F'}
		if v.b {
			out[0] = 'T'
		}
	case KindInteger:
		i := v.Int()
		if i < math.MinInt32 || i > math.MaxInt32 {
			return nil, fmt.Errorf("%w: %d overflows int32", ErrEncode, i)
		}
		out = binary.LittleEndian.AppendUint32(nil, uint32(int32(i)))
	case KindDouble:
		out = binary.LittleEndian.AppendUint64(nil, math.Float64bits(v.Float()))
	case KindMemo, KindGeneral, KindPicture, KindVarbinary:
		out = bytes.Clone(v.raw)
	default:
		return nil, fmt.Errorf("%w: kind %s", ErrUnsupportedFieldType, kind)
	}
	if err != nil {
		return nil, err
	}
	if len(out) != size {
		return nil, fmt.Errorf("%w: %s value needs %d bytes but field has %d", ErrEncode, kind, len(out), size)
	}
	return out, nil
}
