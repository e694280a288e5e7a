package godbf

import "fmt"

// CodepageResolver maps the codepage mark stored at header byte 29 to an encoding label.
type CodepageResolver func(mark byte) (string, error)

var codepages = map[byte]string{
	1:   "cp437",
	2:   "cp850",
	3:   "cp1252",
	4:   "cp10000",
	100: "cp852",
	101: "cp866",
	102: "cp865",
	103: "cp861",
	104: "cp895",
	105: "cp620",
	106: "cp737",
	107: "cp857",
	120: "cp950",
	121: "cp949",
	122: "cp936",
	123: "cp932",
	124: "tis-620",
	125: "cp1255",
	126: "cp1256",
	150: "cp10007",
	151: "cp10029",
	152: "cp10006",
	200: "cp1250",
	201: "cp1251",
	202: "cp1254",
	203: "cp1253",
}

var codepageMarks = func() map[string]byte {
	m := make(map[string]byte, len(codepages))
	for mark, label := range codepages {
		m[label] = mark
	}
	return m
}()

// ResolveCodepage is the default CodepageResolver.
func ResolveCodepage(mark byte) (string, error) {
	label, ok := codepages[mark]
	if !ok {
		return "", fmt.Errorf("%w: mark 0x%02X", ErrUnknownCodepage, mark)
	}
	return label, nil
}

// CodepageMark is the reverse of ResolveCodepage.
func CodepageMark(label string) (byte, error) {
	mark, ok := codepageMarks[normalizeLabel(label)]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownCodepage, label)
	}
	return mark, nil
}

// fixedCodepage ignores the header mark and always answers label.
func fixedCodepage(label string) CodepageResolver {
	return func(byte) (string, error) {
		return label, nil
	}
}
