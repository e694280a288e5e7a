package godbf

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/axgle/mahonia"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Charset converts between bytes stored in a table and Go strings.
// Both directions report how many input bytes were consumed so callers can
// reject partial conversions.
type Charset interface {
	Name() string
	Decode(src []byte) (text string, consumed int, err error)
	Encode(text string) (dst []byte, consumed int, err error)
}

var textEncodings = map[string]encoding.Encoding{
	"cp437":      charmap.CodePage437,
	"cp850":      charmap.CodePage850,
	"cp852":      charmap.CodePage852,
	"cp865":      charmap.CodePage865,
	"cp866":      charmap.CodePage866,
	"cp1250":     charmap.Windows1250,
	"cp1251":     charmap.Windows1251,
	"cp1252":     charmap.Windows1252,
	"cp1253":     charmap.Windows1253,
	"cp1254":     charmap.Windows1254,
	"cp1255":     charmap.Windows1255,
	"cp1256":     charmap.Windows1256,
	"cp10000":    charmap.Macintosh,
	"cp10007":    charmap.MacintoshCyrillic,
	"cp874":      charmap.Windows874,
	"tis-620":    charmap.Windows874,
	"tis620":     charmap.Windows874,
	"cp932":      japanese.ShiftJIS,
	"cp936":      simplifiedchinese.GBK,
	"cp949":      korean.EUCKR,
	"cp950":      traditionalchinese.Big5,
	"iso-8859-1": charmap.ISO8859_1,
	"latin1":     charmap.ISO8859_1,
	"utf-8":      unicode.UTF8,
	"utf8":       unicode.UTF8,
}

var charsets = xsync.NewMapOf[string, Charset]()

// latin1 is used by the ASCII numeric codecs.
var latin1 Charset = &textCharset{name: "iso-8859-1", enc: charmap.ISO8859_1}

// LookupCharset returns the Charset registered for label. golang.org/x/text
// covers most DBF codepages; the rest fall back to mahonia.
func LookupCharset(label string) (Charset, error) {
	key := normalizeLabel(label)
	if cs, ok := charsets.Load(key); ok {
		return cs, nil
	}
	cs, err := newCharset(key)
	if err != nil {
		return nil, err
	}
	actual, _ := charsets.LoadOrStore(key, cs)
	return actual, nil
}

func newCharset(key string) (Charset, error) {
	if enc, ok := textEncodings[key]; ok {
		return &textCharset{name: key, enc: enc}, nil
	}
	if enc, err := htmlindex.Get(key); err == nil {
		return &textCharset{name: key, enc: enc}, nil
	}
	for _, name := range mahoniaNames(key) {
		if cs := mahonia.GetCharset(name); cs != nil {
			return &mahoniaCharset{name: name, cs: cs}, nil
		}
	}
	return nil, fmt.Errorf("%w: no encoding for %q", ErrUnknownCodepage, key)
}

func mahoniaNames(key string) []string {
	names := []string{key}
	if digits, ok := strings.CutPrefix(key, "cp"); ok {
		names = append(names, "ibm"+digits, "ibm-"+digits, "windows-"+digits, "x-mac-"+digits)
	}
	return names
}

func normalizeLabel(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

type textCharset struct {
	name string
	enc  encoding.Encoding
}

func (c *textCharset) Name() string {
	return c.name
}

func (c *textCharset) Decode(src []byte) (string, int, error) {
	dst := make([]byte, len(src)*utf8.UTFMax)
	nDst, nSrc, err := c.enc.NewDecoder().Transform(dst, src, true)
	if err != nil {
		return "", nSrc, err
	}
	return string(dst[:nDst]), nSrc, nil
}

func (c *textCharset) Encode(text string) ([]byte, int, error) {
	src := []byte(text)
	size := utf8.UTFMax*utf8.RuneCountInString(text) + 8
	for {
		dst := make([]byte, size)
		nDst, nSrc, err := c.enc.NewEncoder().Transform(dst, src, true)
		if errors.Is(err, transform.ErrShortDst) {
			size *= 2
			continue
		}
		if err != nil {
			return nil, nSrc, err
		}
		return dst[:nDst], nSrc, nil
	}
}

type mahoniaCharset struct {
	name string
	cs   *mahonia.Charset
}

func (c *mahoniaCharset) Name() string {
	return c.name
}

// Decode stops at the first byte sequence the charset cannot map instead of
// substituting a replacement character.
func (c *mahoniaCharset) Decode(src []byte) (string, int, error) {
	dec := c.cs.NewDecoder()
	var sb strings.Builder
	n := 0
	for n < len(src) {
		r, size, status := dec(src[n:])
		switch status {
		case mahonia.INVALID_CHAR:
			return "", n, fmt.Errorf("invalid %s sequence at byte %d", c.name, n)
		case mahonia.NO_ROOM:
			return "", n, fmt.Errorf("truncated %s sequence at byte %d", c.name, n)
		case mahonia.SUCCESS:
			sb.WriteRune(r)
		}
		if size <= 0 {
			return "", n, fmt.Errorf("%s decoder made no progress at byte %d", c.name, n)
		}
		n += size
	}
	return sb.String(), n, nil
}

func (c *mahoniaCharset) Encode(text string) ([]byte, int, error) {
	enc := c.cs.NewEncoder()
	dst := make([]byte, 0, len(text))
	var buf [16]byte
	n := 0
	for n < len(text) {
		r, width := utf8.DecodeRuneInString(text[n:])
		if r == utf8.RuneError && width <= 1 {
			return nil, n, fmt.Errorf("invalid utf-8 at byte %d", n)
		}
		size, status := enc(buf[:], r)
		switch status {
		case mahonia.INVALID_CHAR:
			return nil, n, fmt.Errorf("%q not representable in %s", r, c.name)
		case mahonia.NO_ROOM:
			return nil, n, fmt.Errorf("%s encoder needs more than %d bytes for %q", c.name, len(buf), r)
		case mahonia.STATE_ONLY:
			// a shift sequence was written, the rune itself is still pending
			dst = append(dst, buf[:size]...)
			continue
		}
		dst = append(dst, buf[:size]...)
		n += width
	}
	return dst, n, nil
}
