package godbf

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// shortCharset consumes one byte less than it is given.
type shortCharset struct{}

func (shortCharset) Name() string { return "short" }

func (shortCharset) Decode(src []byte) (string, int, error) {
	if len(src) == 0 {
		return "", 0, nil
	}
	return string(src[:len(src)-1]), len(src) - 1, nil
}

func (shortCharset) Encode(text string) ([]byte, int, error) {
	return []byte(text), len(text), nil
}

func mustCharset(t *testing.T, label string) Charset {
	t.Helper()
	cs, err := LookupCharset(label)
	require.NoError(t, err)
	return cs
}

func TestCharacter_RoundTripTIS620(t *testing.T) {
	cs := mustCharset(t, "tis-620")

	b, err := EncodeCharacter("ab", 2, cs)
	require.NoError(t, err)
	require.Equal(t, []byte("ab"), b)

	text, err := DecodeCharacter(b, cs)
	require.NoError(t, err)
	require.Equal(t, "ab", text)
}

func TestCharacter_EncodePadsWithSpaces(t *testing.T) {
	b, err := EncodeCharacter("ab", 5, mustCharset(t, "cp1252"))
	require.NoError(t, err)
	require.Equal(t, []byte("ab   "), b)
}

func TestCharacter_EncodeTooLong(t *testing.T) {
	_, err := EncodeCharacter("abcdef", 3, mustCharset(t, "cp1252"))
	require.ErrorIs(t, err, ErrEncode)
}

func TestCharacter_EncodeUnrepresentable(t *testing.T) {
	_, err := EncodeCharacter("日本", 10, mustCharset(t, "cp437"))
	require.ErrorIs(t, err, ErrEncode)
}

func TestCharacter_DoubleByte(t *testing.T) {
	cs := mustCharset(t, "cp936")

	b, err := EncodeCharacter("中文", 4, cs)
	require.NoError(t, err)
	require.Len(t, b, 4)

	text, err := DecodeCharacter(b, cs)
	require.NoError(t, err)
	require.Equal(t, "中文", text)
}

func TestCharacter_DecodeSizeMismatch(t *testing.T) {
	_, err := DecodeCharacter([]byte("abcd"), shortCharset{})
	require.ErrorIs(t, err, ErrDecode)
}

func TestCurrency(t *testing.T) {
	c, err := DecodeCurrency([]byte{1, 0, 0, 0, 0, 0, 0, 0})
	require.NoError(t, err)
	require.Equal(t, "0.0001", c.String())
	require.InDelta(t, 0.0001, c.Float64(), 1e-12)

	require.Equal(t, "-0.5000", Currency(-5000).String())
	require.Equal(t, "-1.2345", Currency(-12345).String())
	require.Equal(t, "12.0000", Currency(120000).String())
	require.Equal(t, "-922337203685477.5808", Currency(math.MinInt64).String())

	require.Equal(t, []byte{0x18, 0xFC, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, EncodeCurrency(Currency(-1000)))

	_, err = DecodeCurrency([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrDecode)
}

func TestCurrencyFromFloat(t *testing.T) {
	require.Equal(t, Currency(10001), CurrencyFromFloat(1.0001))
	require.Equal(t, Currency(-3), CurrencyFromFloat(-0.0003))
}

func TestDate_Epoch(t *testing.T) {
	zero := make([]byte, 8)
	d, err := DecodeDate(zero)
	require.NoError(t, err)
	require.True(t, d.Equal(time.Date(0, 12, 31, 0, 0, 0, 0, time.UTC)), d)

	b, err := EncodeDate(d)
	require.NoError(t, err)
	require.Equal(t, zero, b)
}

func TestDate_KnownDay(t *testing.T) {
	b := []byte{0xCC, 0x40, 0x0B, 0, 0, 0, 0, 0}
	d, err := DecodeDate(b)
	require.NoError(t, err)
	require.Equal(t, "2020-02-29", d.Format(time.DateOnly))

	out, err := EncodeDate(time.Date(2020, 2, 29, 18, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, b, out)

	first, err := DecodeDate([]byte{1, 0, 0, 0, 0, 0, 0, 0})
	require.NoError(t, err)
	require.Equal(t, "0001-01-01", first.Format(time.DateOnly))
}

func TestDate_OutOfRange(t *testing.T) {
	_, err := DecodeDate([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF})
	require.ErrorIs(t, err, ErrDecode)

	_, err = DecodeDate([]byte{1, 2})
	require.ErrorIs(t, err, ErrDecode)

	_, err = EncodeDate(time.Date(-5, 1, 1, 0, 0, 0, 0, time.UTC))
	require.ErrorIs(t, err, ErrEncode)
}

func TestDateTime(t *testing.T) {
	b := []byte{0x1E, 0x85, 0x25, 0x00, 0x80, 0x1C, 0xCA, 0x02}
	dt, err := DecodeDateTime(b)
	require.NoError(t, err)
	require.Equal(t, "2020-02-29 13:00:00", dt.Format(time.DateTime))

	out, err := EncodeDateTime(dt)
	require.NoError(t, err)
	require.Equal(t, b, out)
}

func TestDateTime_TimeOfDayIsBounded(t *testing.T) {
	// 25 hours worth of milliseconds wraps to 01:00:00
	b := []byte{0x1E, 0x85, 0x25, 0x00, 0x80, 0x4A, 0x5D, 0x05}
	dt, err := DecodeDateTime(b)
	require.NoError(t, err)
	require.Equal(t, "2020-02-29 01:00:00", dt.Format(time.DateTime))
}

func TestDateTime_WrongSize(t *testing.T) {
	_, err := DecodeDateTime([]byte{1, 2, 3, 4})
	require.ErrorIs(t, err, ErrDecode)
}

func TestNumber_Decode(t *testing.T) {
	v, null, err := DecodeNumber([]byte("   12.50"))
	require.NoError(t, err)
	require.False(t, null)
	require.InDelta(t, 12.5, v, 1e-9)

	v, _, err = DecodeNumber([]byte("-0001.25"))
	require.NoError(t, err)
	require.InDelta(t, -1.25, v, 1e-9)

	_, null, err = DecodeNumber([]byte("        "))
	require.NoError(t, err)
	require.True(t, null)

	_, _, err = DecodeNumber([]byte("**.**"))
	require.ErrorIs(t, err, ErrDecode)

	_, _, err = DecodeNumber([]byte("123456789012345678901"))
	require.ErrorIs(t, err, ErrDecode)
}

func TestNumber_Encode(t *testing.T) {
	b, err := EncodeNumber(12.5, 7, 2)
	require.NoError(t, err)
	require.Equal(t, "0012.50", string(b))

	b, err = EncodeNumber(-3, 6, 0)
	require.NoError(t, err)
	require.Equal(t, "-00003", string(b))

	v, _, err := DecodeNumber(b)
	require.NoError(t, err)
	require.Equal(t, -3.0, v)

	_, err = EncodeNumber(123456.789, 5, 2)
	require.ErrorIs(t, err, ErrEncode)

	_, err = EncodeNumber(1, 21, 0)
	require.ErrorIs(t, err, ErrEncode)
}

func TestLogical(t *testing.T) {
	for in, want := range map[byte]bool{'T': true, 'y': true, 'F': false, 'n': false} {
		v, null, err := DecodeLogical([]byte{in})
		require.NoError(t, err)
		require.False(t, null)
		require.Equal(t, want, v, "input %q", in)
	}

	_, null, err := DecodeLogical([]byte{'?'})
	require.NoError(t, err)
	require.True(t, null)

	_, _, err = DecodeLogical([]byte{'x'})
	require.ErrorIs(t, err, ErrDecode)
}

func TestIntegerAndDouble(t *testing.T) {
	i, err := DecodeInteger([]byte{0xFE, 0xFF, 0xFF, 0xFF})
	require.NoError(t, err)
	require.Equal(t, int32(-2), i)

	f := Field{Name: "D", DataType: 'B', Size: 8}
	b, err := encodeValue(f, KindDouble, NewDouble(2.75), nil)
	require.NoError(t, err)
	d, err := DecodeDouble(b)
	require.NoError(t, err)
	require.Equal(t, 2.75, d)
}

func TestEncodeValue_NullForms(t *testing.T) {
	b, err := encodeValue(Field{Size: 4}, KindNumeric, Null(KindNumeric), nil)
	require.NoError(t, err)
	require.Equal(t, []byte("    "), b)

	_, err = encodeValue(Field{Size: 8}, KindDate, Null(KindDate), nil)
	require.ErrorIs(t, err, ErrEncode)
}

func TestEncodeValue_SizeMismatch(t *testing.T) {
	_, err := encodeValue(Field{Size: 4}, KindCurrency, NewCurrency(1), nil)
	require.ErrorIs(t, err, ErrEncode)

	_, err = encodeValue(Field{Size: 4}, KindInteger, NewInteger(math.MaxInt64), nil)
	require.True(t, errors.Is(err, ErrEncode))
}

func TestEncodeValue_KindMismatch(t *testing.T) {
	cs := mustCharset(t, "cp1252")
	day := time.Date(2020, 2, 29, 13, 0, 0, 0, time.UTC)
	cases := []struct {
		kind FieldKind
		size uint8
		v    Value
	}{
		{KindCharacter, 8, NewInteger(5)},
		{KindVarchar, 8, NewLogical(true)},
		{KindCurrency, 8, NewText("1.5")},
		{KindDate, 8, NewInteger(7)},
		{KindDate, 8, NewDateTime(day)},
		{KindDateTime, 8, NewText("2020-02-29")},
		{KindFloat, 8, NewDate(day)},
		{KindNumeric, 8, NewText("abc")},
		{KindLogical, 1, NewText("T")},
		{KindInteger, 4, NewDouble(1.5)},
		{KindInteger, 4, NewNumber(2, 0)},
		{KindDouble, 8, NewLogical(false)},
		{KindMemo, 4, NewText("memo")},
		{KindGeneral, 4, NewRaw(KindMemo, []byte{0, 0, 0, 0})},
		{KindPicture, 4, NewInteger(0)},
		{KindVarbinary, 4, NewText("abcd")},
		{KindNumeric, 8, Null(KindDate)},
	}
	for _, c := range cases {
		f := Field{Name: "F", DataType: c.kind.Tag(), Size: c.size}
		_, err := encodeValue(f, c.kind, c.v, cs)
		require.ErrorIs(t, err, ErrEncode, "%s value into %s field", c.v.Kind(), c.kind)
	}
}

func TestEncodeValue_NumericConversions(t *testing.T) {
	b, err := encodeValue(Field{Size: 8}, KindCurrency, NewInteger(3), nil)
	require.NoError(t, err)
	require.Equal(t, EncodeCurrency(30000), b)

	b, err = encodeValue(Field{Size: 6, Precision: 2}, KindNumeric, NewDouble(1.5), nil)
	require.NoError(t, err)
	require.Equal(t, []byte("001.50"), b)

	b, err = encodeValue(Field{Size: 8}, KindDouble, NewInteger(2), nil)
	require.NoError(t, err)
	d, err := DecodeDouble(b)
	require.NoError(t, err)
	require.Equal(t, 2.0, d)

	midnight := time.Date(2020, 2, 29, 0, 0, 0, 0, time.UTC)
	b, err = encodeValue(Field{Size: 8}, KindDateTime, NewDate(midnight), nil)
	require.NoError(t, err)
	got, err := DecodeDateTime(b)
	require.NoError(t, err)
	require.True(t, got.Equal(midnight))
}

func TestValue_String(t *testing.T) {
	require.Equal(t, "0.0001", NewCurrency(1).String())
	require.Equal(t, "2020-02-29", NewDate(time.Date(2020, 2, 29, 9, 0, 0, 0, time.UTC)).String())
	require.Equal(t, "12.50", Value{kind: KindNumeric, num: 12.5, prec: 2}.String())
	require.Equal(t, "1.5", NewNumber(1.5, 0).String())
	require.Equal(t, "T", NewLogical(true).String())
	require.Equal(t, "", Null(KindLogical).String())
	require.Equal(t, "0102", NewRaw(KindMemo, []byte{1, 2}).String())
}
