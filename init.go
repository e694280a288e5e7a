package godbf

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
)

func (dbf *DBFHandler) initMetaData() error {
	err := dbf.initHeader()
	if err != nil {
		return err
	}
	err = dbf.initFields()
	if err != nil {
		return err
	}
	dbf.log.Debug("open table", "type", dbf.header.DBType.String(), "records", dbf.header.RecordsCount,
		"fields", len(dbf.fields), "codepage", dbf.header.Codepage)
	return nil
}

func (dbf *DBFHandler) initHeader() error {
	if _, err := dbf.src.Seek(0, io.SeekStart); err != nil {
		return err
	}
	var resolve CodepageResolver
	if dbf.cfg.Encoding != "" {
		resolve = fixedCodepage(dbf.cfg.Encoding)
	}
	header, err := ReadHeader(dbf.src, resolve)
	if err != nil {
		return err
	}
	cs, err := LookupCharset(header.Codepage)
	if err != nil {
		return err
	}
	dbf.header = header
	dbf.charset = cs
	return nil
}

func (dbf *DBFHandler) initFields() error {
	fields, err := ReadFields(dbf.src, dbf.header, dbf.charset)
	if err != nil {
		return err
	}
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = strings.TrimSpace(f.Name)
	}
	dbf.fields = fields
	dbf.columns = columns
	return nil
}

// ReadHeader reads exactly 32 bytes from r and decodes them.
func ReadHeader(r io.Reader, resolve CodepageResolver) (Header, error) {
	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	return DecodeHeader(buf, resolve)
}

// ReadFields reads the field subrecords that follow the header, up to the
// 0x0D terminator. The terminator is consumed but not returned.
func ReadFields(r io.ReadSeeker, h Header, cs Charset) ([]Field, error) {
	if _, err := r.Seek(headerSize, io.SeekStart); err != nil {
		return nil, err
	}
	var fields []Field
	buf := make([]byte, descriptorSize)
	for {
		if _, err := io.ReadFull(r, buf[:1]); err != nil {
			return nil, fmt.Errorf("%w: missing terminator: %v", ErrMalformedDescriptor, err)
		}
		if buf[0] == TERMINATOR {
			break
		}
		if _, err := io.ReadFull(r, buf[1:]); err != nil {
			return nil, fmt.Errorf("%w: field %d: %v", ErrMalformedDescriptor, len(fields), err)
		}
		field, err := DecodeField(buf, cs)
		if err != nil {
			return nil, err
		}
		fields = append(fields, field)
	}
	if h.FirstRecordPosition != 0 && headerSize+descriptorSize*len(fields)+1 > int(h.FirstRecordPosition) {
		return nil, fmt.Errorf("%w: %d fields overrun first record at %d", ErrMalformedDescriptor, len(fields), h.FirstRecordPosition)
	}
	assignOffsets(fields)
	for _, f := range fields {
		if f.end() > int(h.RecordLen) {
			return nil, fieldErr("read", f, fmt.Errorf("%w: [%d, %d) exceeds record length %d", ErrBounds, f.Offset, f.end(), h.RecordLen))
		}
	}
	return fields, nil
}

// assignOffsets lays fields out after the delete flag when the file does not
// store displacements, as dBase III files do.
func assignOffsets(fields []Field) {
	for _, f := range fields {
		if f.Offset != 0 {
			return
		}
	}
	offset := uint32(1)
	for i := range fields {
		fields[i].Offset = offset
		offset += uint32(fields[i].Size)
	}
}

// structPlan maps exported struct fields to table columns.
type structPlan struct {
	columns []int // struct field index -> column index, -1 when unmapped
}

func (dbf *DBFHandler) planFor(rt reflect.Type) *structPlan {
	if plan, ok := dbf.plans.Load(rt); ok {
		return plan
	}
	plan := &structPlan{columns: make([]int, rt.NumField())}
	for i := 0; i < rt.NumField(); i++ {
		plan.columns[i] = -1
		field := rt.Field(i)
		if field.PkgPath != "" || field.Anonymous {
			continue
		}
		dbfColumn := field.Tag.Get("dbf")
		if dbfColumn == "-" {
			continue
		}
		if dbfColumn == "" {
			dbfColumn = field.Name
		}
		for c, name := range dbf.columns {
			if strings.EqualFold(name, dbfColumn) {
				plan.columns[i] = c
				break
			}
		}
	}
	actual, _ := dbf.plans.LoadOrStore(rt, plan)
	return actual
}

// column returns the struct field index bound to column c.
func (p *structPlan) column(c int) (int, bool) {
	for i, col := range p.columns {
		if col == c {
			return i, true
		}
	}
	return -1, false
}

func structValue(v interface{}, op string) (reflect.Value, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return reflect.Value{}, fmt.Errorf("%s requires a non-nil pointer to a struct", op)
	}
	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("%s requires a pointer to a struct, not a %s", op, rv.Kind())
	}
	return rv, nil
}

var errNotFile = errors.New("operation requires a table opened with NewDBFFromFile")
