package godbf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveCodepage(t *testing.T) {
	label, err := ResolveCodepage(124)
	require.NoError(t, err)
	assert.Equal(t, "tis-620", label)

	label, err = ResolveCodepage(0x03)
	require.NoError(t, err)
	assert.Equal(t, "cp1252", label)

	_, err = ResolveCodepage(0x7F)
	require.ErrorIs(t, err, ErrUnknownCodepage)
}

func TestCodepageMark(t *testing.T) {
	mark, err := CodepageMark(" CP1252 ")
	require.NoError(t, err)
	assert.Equal(t, byte(0x03), mark)

	for m, label := range codepages {
		got, err := CodepageMark(label)
		require.NoError(t, err)
		assert.Equal(t, m, got, label)
	}

	_, err = CodepageMark("ebcdic")
	require.ErrorIs(t, err, ErrUnknownCodepage)
}

func TestLookupCharset(t *testing.T) {
	for _, m := range []byte{1, 2, 3, 4, 100, 101, 102, 106, 120, 121, 122, 123, 124, 125, 126, 150, 200, 201, 202, 203} {
		label, err := ResolveCodepage(m)
		require.NoError(t, err)
		cs, err := LookupCharset(label)
		require.NoError(t, err, label)

		text, n, err := cs.Decode([]byte("ab"))
		require.NoError(t, err, label)
		assert.Equal(t, 2, n)
		assert.Equal(t, "ab", text, label)
	}
}

func TestLookupCharset_Cached(t *testing.T) {
	a, err := LookupCharset("CP866")
	require.NoError(t, err)
	b, err := LookupCharset("cp866")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, "cp866", a.Name())
}

func TestLookupCharset_Aliases(t *testing.T) {
	cs, err := LookupCharset("shift_jis")
	require.NoError(t, err)

	b, n, err := cs.Encode("日本")
	require.NoError(t, err)
	assert.Equal(t, len("日本"), n)
	assert.Len(t, b, 4)

	_, err = LookupCharset("no-such-charset")
	require.ErrorIs(t, err, ErrUnknownCodepage)
}

func TestLookupCharset_Mahonia(t *testing.T) {
	cs, err := LookupCharset("cp737")
	require.NoError(t, err)
	assert.Equal(t, "cp737", cs.Name())

	text, n, err := cs.Decode([]byte{'a', 0x80, 0x98})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "aΑα", text)

	b, n, err := cs.Encode("bΑα")
	require.NoError(t, err)
	assert.Equal(t, len("bΑα"), n)
	assert.Equal(t, []byte{'b', 0x80, 0x98}, b)

	// no silent substitution
	_, n, err = cs.Encode("a日")
	require.Error(t, err)
	assert.Equal(t, 1, n)

	_, err = EncodeCharacter("日", 4, cs)
	require.ErrorIs(t, err, ErrEncode)
}

func TestLookupCharset_WideEncoding(t *testing.T) {
	cs, err := LookupCharset("gb18030")
	require.NoError(t, err)

	// each rune is two bytes of UTF-8 and four of GB18030
	b, n, err := cs.Encode("¥¥")
	require.NoError(t, err)
	assert.Equal(t, len("¥¥"), n)
	assert.Equal(t, []byte{0x81, 0x30, 0x84, 0x36, 0x81, 0x30, 0x84, 0x36}, b)

	text, n, err := cs.Decode(b)
	require.NoError(t, err)
	assert.Equal(t, len(b), n)
	assert.Equal(t, "¥¥", text)
}

func TestLatin1(t *testing.T) {
	text, n, err := latin1.Decode([]byte{'a', 0xE9})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "aé", text)
}
