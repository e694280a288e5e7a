package godbf

import (
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"reflect"
	"time"
)

// Append encodes the struct model as a new record, mapping exported fields to
// columns the same way GetRecord does. Every column needs a struct field.
func (dbf *DBFHandler) Append(model interface{}) error {
	rv, err := structValue(model, "Append")
	if err != nil {
		return err
	}
	values, err := dbf.structValues(rv)
	if err != nil {
		return err
	}
	return dbf.AppendValues(values)
}

func (dbf *DBFHandler) structValues(rv reflect.Value) ([]Value, error) {
	dbf.mu.RLock()
	defer dbf.mu.RUnlock()

	plan := dbf.planFor(rv.Type())
	values := make([]Value, len(dbf.fields))
	for c, f := range dbf.fields {
		i, ok := plan.column(c)
		if !ok {
			return nil, fmt.Errorf("column %s not found", dbf.columns[c])
		}
		kind, err := f.Kind()
		if err != nil {
			return nil, fieldErr("encode", f, err)
		}
		v, err := toValue(kind, rv.Field(i))
		if err != nil {
			return nil, fieldErr("encode", f, err)
		}
		values[c] = v
	}
	return values, nil
}

func toValue(kind FieldKind, fieldVal reflect.Value) (Value, error) {
	switch fieldVal.Kind() {
	case reflect.String:
		if kind == KindCharacter || kind == KindVarchar {
			return NewText(fieldVal.String()), nil
		}
		return Value{}, fmt.Errorf("%w: string for %s field", ErrEncode, kind)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return NewInteger(fieldVal.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return NewInteger(int64(fieldVal.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return NewNumber(fieldVal.Float(), -1), nil
	case reflect.Bool:
		return NewLogical(fieldVal.Bool()), nil
	case reflect.Struct:
		t, ok := fieldVal.Interface().(time.Time)
		if !ok {
			return Value{}, fmt.Errorf("%w: unsupported struct %s", ErrEncode, fieldVal.Type())
		}
		if kind == KindDateTime {
			return NewDateTime(t), nil
		}
		return NewDate(t), nil
	case reflect.Slice:
		if fieldVal.Type().Elem().Kind() == reflect.Uint8 {
			return NewRaw(kind, fieldVal.Bytes()), nil
		}
	}
	return Value{}, fmt.Errorf("%w: unsupported type %s", ErrEncode, fieldVal.Type())
}

// AppendValues encodes values, one per field, and appends them as a record.
// The header record count and last update date are rewritten; if any step
// fails the file is rolled back to its previous state.
func (dbf *DBFHandler) AppendValues(values []Value) (err error) {
	if dbf.f == nil {
		return errNotFile
	}
	dbf.mu.Lock()
	defer dbf.mu.Unlock()

	oldMd5String, err := dbf.getFileMd5()
	if err != nil {
		return err
	}

	data, err := EncodeRecord(dbf.fields, dbf.charset, values, int(dbf.header.RecordLen))
	if err != nil {
		return err
	}
	// the file ends with 0x1A
	buf := append(data, EOF)

	// if the md5 differs another process modified the file, give up
	newMd5String, err := dbf.getFileMd5()
	if err != nil {
		return err
	}
	if oldMd5String != newMd5String {
		_ = dbf.reload()
		return ErrFileChanged
	}

	if err = dbf.saveRecords(buf); err != nil {
		return err
	}
	if err = dbf.saveNumRecords(1); err != nil {
		return err
	}
	year, month, day, err := dbf.saveUpdateTime()
	if err != nil {
		return err
	}
	if err = dbf.f.Sync(); err != nil {
		dbf.log.Warn("append: sync failed, rolling back", "err", err)
		dbf.rollbackUpdateTime()
		dbf.rollbackNumRecords()
		dbf.rollbackRecord()
		return err
	}

	dbf.header.LastUpdate = UpdateDate{Year: year, Month: month, Day: day}
	dbf.header.RecordsCount += 1
	dbf.metrics.appends.Inc()
	dbf.log.Debug("append", "records", dbf.header.RecordsCount)
	return nil
}

func (dbf *DBFHandler) dataEnd() int64 {
	return int64(dbf.header.FirstRecordPosition) + int64(dbf.header.RecordLen)*int64(dbf.header.RecordsCount)
}

func (dbf *DBFHandler) saveRecords(buf []byte) error {
	// overwrite the end of file marker following the last record
	if _, err := dbf.f.WriteAt(buf, dbf.dataEnd()); err != nil {
		dbf.rollbackRecord()
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

func (dbf *DBFHandler) rollbackRecord() error {
	originalSize := dbf.dataEnd()
	if err := dbf.f.Truncate(originalSize); err != nil {
		dbf.log.Error("rollback record: truncate", "err", err)
		return fmt.Errorf("failed to truncate record while rollback record: %w", err)
	}
	if _, err := dbf.f.WriteAt([]byte{EOF}, originalSize); err != nil {
		dbf.log.Error("rollback record: write eof", "err", err)
		return fmt.Errorf("failed to write record while rollback record: %w", err)
	}
	return nil
}

func (dbf *DBFHandler) saveNumRecords(appendNum uint32) error {
	newNumRecords := dbf.header.RecordsCount + appendNum
	if err := dbf.writeHeaderAt(4, binary.LittleEndian.AppendUint32(nil, newNumRecords)); err != nil {
		dbf.rollbackRecord()
		return fmt.Errorf("failed to write record while saving num records: %w", err)
	}
	return nil
}

func (dbf *DBFHandler) rollbackNumRecords() error {
	if err := dbf.writeHeaderAt(4, binary.LittleEndian.AppendUint32(nil, dbf.header.RecordsCount)); err != nil {
		dbf.log.Error("rollback num records", "err", err)
		return fmt.Errorf("failed to write record while rollback num records: %w", err)
	}
	return nil
}

// saveUpdateTime stores today as the last update date, with the year
// relative to the configured century.
func (dbf *DBFHandler) saveUpdateTime() (year, month, day byte, err error) {
	yearInt, monthInt, dayInt := time.Now().Date()
	yearInt -= dbf.cfg.Century
	if yearInt < 0 || yearInt > 0xFF {
		dbf.rollbackNumRecords()
		dbf.rollbackRecord()
		return 0, 0, 0, fmt.Errorf("%w: year %d outside century %d", ErrEncode, yearInt+dbf.cfg.Century, dbf.cfg.Century)
	}
	year, month, day = byte(yearInt), byte(monthInt), byte(dayInt)
	if err = dbf.writeHeaderAt(1, []byte{year, month, day}); err != nil {
		dbf.rollbackNumRecords()
		dbf.rollbackRecord()
		return year, month, day, fmt.Errorf("failed to write while saving updateTime: %w", err)
	}
	return year, month, day, nil
}

func (dbf *DBFHandler) rollbackUpdateTime() error {
	u := dbf.header.LastUpdate
	ymd := [3]byte{u.Year, u.Month, u.Day}
	if err := dbf.writeHeaderAt(1, ymd[:]); err != nil {
		dbf.log.Error("rollback update time", "err", err)
		return fmt.Errorf("failed to write while rollback updateTime: %w", err)
	}
	return nil
}

func (dbf *DBFHandler) writeHeaderAt(offset int64, b []byte) error {
	_, err := dbf.f.WriteAt(b, offset)
	return err
}

// reload reopens the file; the caller holds the write lock.
func (dbf *DBFHandler) reload() error {
	if err := dbf.f.Close(); err != nil {
		return err
	}
	f, err := os.OpenFile(dbf.fileName, os.O_RDWR, 0770)
	if err != nil {
		return err
	}
	dbf.f = f
	dbf.src = f
	dbf.plans.Clear()
	return dbf.initMetaData()
}

func (dbf *DBFHandler) getFileMd5() (string, error) {
	file, err := os.Open(dbf.fileName)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := md5.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
