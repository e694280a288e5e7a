package godbf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"time"
)

const (
	headerSize     = 32
	descriptorSize = 32
	nameSize       = 10

	// DateTime fields store a Julian day number.
	julianDayOffset = 1_721_426
)

// rawHeader is the on-disk layout of the table file header.
type rawHeader struct {
	Version         byte
	LastUpdateYear  byte
	LastUpdateMonth byte
	LastUpdateDay   byte
	NumRecords      uint32
	FirstRecord     uint16
	RecordLength    uint16
	Reserved        [16]byte
	TableFlag       byte
	CodepageMark    byte
	Reserved2       [2]byte
}

// rawDescriptor is the on-disk layout of one field subrecord.
type rawDescriptor struct {
	Name       [nameSize]byte
	Terminator byte
	Type       byte
	Offset     uint32
	Size       byte
	Precision  byte
	Flag       byte
	NextID     uint32
	Step       byte
	Reserved   [8]byte
}

// DBType is the file variant announced by the first header byte.
type DBType int

const (
	Undefined DBType = iota
	FoxBase
	DBaseIIIPlus
	DBaseIV
	DBaseV
	VisualFoxPro
	VisualFoxProAutoInc
	VisualFoxProVarBLOB
	DBaseIVSQLTableFiles
	DBaseIVSQLSystem
	DBaseIIIPlusMemos
	DBaseIVMemos
	DBaseIVSQLTable
	FoxProMemos
)

var dbTypes = map[byte]DBType{
	0x02: FoxBase,
	0x03: DBaseIIIPlus,
	0x04: DBaseIV,
	0x05: DBaseV,
	0x30: VisualFoxPro,
	0x31: VisualFoxProAutoInc,
	0x32: VisualFoxProVarBLOB,
	0x43: DBaseIVSQLTableFiles,
	0x63: DBaseIVSQLSystem,
	0x83: DBaseIIIPlusMemos,
	0x8B: DBaseIVMemos,
	0x8E: DBaseIVSQLTable,
	0xF5: FoxProMemos,
}

var dbTypeNames = [...]string{
	Undefined:            "Undefined",
	FoxBase:              "FoxBASE",
	DBaseIIIPlus:         "dBASE III PLUS",
	DBaseIV:              "dBASE IV",
	DBaseV:               "dBASE V",
	VisualFoxPro:         "Visual FoxPro",
	VisualFoxProAutoInc:  "Visual FoxPro, autoincrement enabled",
	VisualFoxProVarBLOB:  "Visual FoxPro, Varchar/Varbinary",
	DBaseIVSQLTableFiles: "dBASE IV SQL table files, no memo",
	DBaseIVSQLSystem:     "dBASE IV SQL system files, no memo",
	DBaseIIIPlusMemos:    "dBASE III PLUS, with memo",
	DBaseIVMemos:         "dBASE IV with memo",
	DBaseIVSQLTable:      "dBASE IV SQL table files, with memo",
	FoxProMemos:          "FoxPro 2.x (or earlier) with memo",
}

// ParseDBType never fails, unknown bytes map to Undefined.
func ParseDBType(b byte) DBType {
	if t, ok := dbTypes[b]; ok {
		return t
	}
	return Undefined
}

func (t DBType) String() string {
	if t < 0 || int(t) >= len(dbTypeNames) {
		return dbTypeNames[Undefined]
	}
	return dbTypeNames[t]
}

// TableFlag holds the bit flags of header byte 28.
type TableFlag byte

const (
	FlagHasIndex TableFlag = 0x01
	FlagHasMemo  TableFlag = 0x02
	FlagDatabase TableFlag = 0x04
)

func (f TableFlag) HasIndex() bool   { return f&FlagHasIndex != 0 }
func (f TableFlag) HasMemo() bool    { return f&FlagHasMemo != 0 }
func (f TableFlag) IsDatabase() bool { return f&FlagDatabase != 0 }

// UpdateDate is the last update stamp exactly as stored in header bytes 1-3.
// Year has no century, so calendar checks wait until one is chosen.
type UpdateDate struct {
	Year, Month, Day byte
}

func (d UpdateDate) IsZero() bool { return d == UpdateDate{} }

// Time adds base to the stored year. A stamp that is not a calendar date in
// the resulting year, such as Feb 29 of a common year, is ErrMalformedHeader.
func (d UpdateDate) Time(base int) (time.Time, error) {
	if d.IsZero() {
		return time.Time{}, nil
	}
	year := base + int(d.Year)
	t := time.Date(year, time.Month(d.Month), int(d.Day), 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != time.Month(d.Month) || t.Day() != int(d.Day) {
		return time.Time{}, fmt.Errorf("%w: invalid last update %04d-%02d-%02d", ErrMalformedHeader, year, d.Month, d.Day)
	}
	return t, nil
}

// Header is the decoded table file header.
type Header struct {
	Version             byte
	DBType              DBType
	LastUpdate          UpdateDate
	RecordsCount        uint32
	FirstRecordPosition uint16
	RecordLen           uint16
	TableFlag           TableFlag
	CodepageMark        byte
	Codepage            string
}

// Modified returns LastUpdate with base added to the stored two digit year.
func (h Header) Modified(base int) (time.Time, error) {
	return h.LastUpdate.Time(base)
}

// DecodeHeader parses the 32 byte file header. A nil resolve uses ResolveCodepage.
func DecodeHeader(b []byte, resolve CodepageResolver) (Header, error) {
	if len(b) != headerSize {
		return Header{}, fmt.Errorf("%w: expect %d bytes but found %d", ErrMalformedHeader, headerSize, len(b))
	}
	if resolve == nil {
		resolve = ResolveCodepage
	}
	var raw rawHeader
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, &raw); err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	updated, err := lastUpdate(raw.LastUpdateYear, raw.LastUpdateMonth, raw.LastUpdateDay)
	if err != nil {
		return Header{}, err
	}
	if raw.RecordLength == 0 {
		return Header{}, fmt.Errorf("%w: zero record length", ErrMalformedHeader)
	}
	codepage, err := resolve(raw.CodepageMark)
	if err != nil {
		return Header{}, err
	}
	return Header{
		Version:             raw.Version,
		DBType:              ParseDBType(raw.Version),
		LastUpdate:          updated,
		RecordsCount:        raw.NumRecords,
		FirstRecordPosition: raw.FirstRecord,
		RecordLen:           raw.RecordLength,
		TableFlag:           TableFlag(raw.TableFlag),
		CodepageMark:        raw.CodepageMark,
		Codepage:            codepage,
	}, nil
}

// lastUpdate only range checks month and day; leap years depend on the
// century, which the header does not carry.
func lastUpdate(y, m, d byte) (UpdateDate, error) {
	u := UpdateDate{Year: y, Month: m, Day: d}
	if u.IsZero() {
		return u, nil
	}
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return UpdateDate{}, fmt.Errorf("%w: invalid last update %d-%d-%d", ErrMalformedHeader, y, m, d)
	}
	return u, nil
}

// MarshalBinary encodes h back into its 32 byte layout.
func (h Header) MarshalBinary() ([]byte, error) {
	raw := rawHeader{
		Version:      h.Version,
		NumRecords:   h.RecordsCount,
		FirstRecord:  h.FirstRecordPosition,
		RecordLength: h.RecordLen,
		TableFlag:    byte(h.TableFlag),
		CodepageMark: h.CodepageMark,

		LastUpdateYear:  h.LastUpdate.Year,
		LastUpdateMonth: h.LastUpdate.Month,
		LastUpdateDay:   h.LastUpdate.Day,
	}
	buf := bytes.NewBuffer(make([]byte, 0, headerSize))
	if err := binary.Write(buf, binary.LittleEndian, &raw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FieldKind is the decoded form of a descriptor's type tag.
type FieldKind int

const (
	KindCharacter FieldKind = iota
	KindCurrency
	KindDate
	KindDateTime
	KindDouble
	KindFloat
	KindGeneral
	KindInteger
	KindLogical
	KindMemo
	KindNumeric
	KindPicture
	KindVarbinary
	KindVarchar
)

var kindTags = [...]byte{
	KindCharacter: 'C',
	KindCurrency:  'Y',
	KindDate:      'D',
	KindDateTime:  'T',
	KindDouble:    'B',
	KindFloat:     'F',
	KindGeneral:   'G',
	KindInteger:   'I',
	KindLogical:   'L',
	KindMemo:      'M',
	KindNumeric:   'N',
	KindPicture:   'P',
	KindVarbinary: 'Q',
	KindVarchar:   'V',
}

var kindNames = [...]string{
	KindCharacter: "Character",
	KindCurrency:  "Currency",
	KindDate:      "Date",
	KindDateTime:  "DateTime",
	KindDouble:    "Double",
	KindFloat:     "Float",
	KindGeneral:   "General",
	KindInteger:   "Integer",
	KindLogical:   "Logical",
	KindMemo:      "Memo",
	KindNumeric:   "Numeric",
	KindPicture:   "Picture",
	KindVarbinary: "Varbinary",
	KindVarchar:   "Varchar",
}

// KindOf maps a descriptor type tag to its FieldKind.
func KindOf(tag byte) (FieldKind, error) {
	for k, t := range kindTags {
		if t == tag {
			return FieldKind(k), nil
		}
	}
	return 0, fmt.Errorf("%w: tag %q", ErrUnsupportedFieldType, tag)
}

func (k FieldKind) Tag() byte {
	return kindTags[k]
}

func (k FieldKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("FieldKind(%d)", int(k))
	}
	return kindNames[k]
}

const (
	fieldSystem        = 0x01
	fieldNullable      = 0x02
	fieldBinary        = 0x04
	fieldAutoIncrement = 0x0C
)

// Field describes one column of a table.
type Field struct {
	Name      string
	DataType  byte
	Offset    uint32
	Size      uint8
	Precision uint8
	NextID    uint32
	Step      uint8

	System        bool
	Nullable      bool
	Binary        bool
	AutoIncrement bool
}

func (f Field) Kind() (FieldKind, error) {
	return KindOf(f.DataType)
}

func (f Field) end() int {
	return int(f.Offset) + int(f.Size)
}

func (f Field) flags() byte {
	var b byte
	if f.System {
		b |= fieldSystem
	}
	if f.Nullable {
		b |= fieldNullable
	}
	if f.Binary {
		b |= fieldBinary
	}
	if f.AutoIncrement {
		b |= fieldAutoIncrement
	}
	return b
}

// DecodeField parses one 32 byte field subrecord. The name is decoded with cs.
func DecodeField(b []byte, cs Charset) (Field, error) {
	if len(b) != descriptorSize {
		return Field{}, fmt.Errorf("%w: expect %d bytes but found %d", ErrMalformedDescriptor, descriptorSize, len(b))
	}
	var raw rawDescriptor
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, &raw); err != nil {
		return Field{}, fmt.Errorf("%w: %v", ErrMalformedDescriptor, err)
	}
	name, n, err := cs.Decode(raw.Name[:])
	if err != nil {
		return Field{}, fmt.Errorf("%w: field name: %v", ErrDecode, err)
	}
	if n != nameSize {
		return Field{}, fmt.Errorf("%w: field name: expect %d bytes but read %d", ErrDecode, nameSize, n)
	}
	if i := strings.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	f := Field{
		Name:          name,
		DataType:      raw.Type,
		Offset:        raw.Offset,
		Size:          raw.Size,
		Precision:     raw.Precision,
		NextID:        raw.NextID,
		Step:          raw.Step,
		System:        raw.Flag&fieldSystem != 0,
		Nullable:      raw.Flag&fieldNullable != 0,
		Binary:        raw.Flag&fieldBinary != 0,
		AutoIncrement: raw.Flag&fieldAutoIncrement == fieldAutoIncrement,
	}
	if _, err := f.Kind(); err != nil {
		return Field{}, fieldErr("decode", f, err)
	}
	return f, nil
}

// MarshalBinary encodes f into a 32 byte field subrecord using cs for the name.
func (f Field) MarshalBinary(cs Charset) ([]byte, error) {
	name, _, err := cs.Encode(f.Name)
	if err != nil {
		return nil, fieldErr("encode", f, fmt.Errorf("%w: %v", ErrEncode, err))
	}
	if len(name) > nameSize {
		return nil, fieldErr("encode", f, fmt.Errorf("%w: name longer than %d bytes", ErrEncode, nameSize))
	}
	raw := rawDescriptor{
		Type:      f.DataType,
		Offset:    f.Offset,
		Size:      f.Size,
		Precision: f.Precision,
		Flag:      f.flags(),
		NextID:    f.NextID,
		Step:      f.Step,
	}
	copy(raw.Name[:], name)
	buf := bytes.NewBuffer(make([]byte, 0, descriptorSize))
	if err := binary.Write(buf, binary.LittleEndian, &raw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
