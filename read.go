package godbf

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Ulysses-Xu/go-foxdbf/table"
)

type workerArgs struct {
	index uint32
	value reflect.Value
}

func (dbf *DBFHandler) readRecordBytes(index uint32) ([]byte, error) {
	if index >= dbf.header.RecordsCount {
		return nil, fmt.Errorf("%w: record %d of %d", ErrOutOfRange, index, dbf.header.RecordsCount)
	}
	start := int64(dbf.header.FirstRecordPosition) + int64(dbf.header.RecordLen)*int64(index)
	data := make([]byte, dbf.header.RecordLen)
	if _, err := dbf.src.ReadAt(data, start); err != nil {
		return nil, fmt.Errorf("failed to read record %d: %w", index, err)
	}
	dbf.metrics.recordsRead.Inc()
	return data, nil
}

func (dbf *DBFHandler) readRecord(index uint32) (*Record, error) {
	data, err := dbf.readRecordBytes(index)
	if err != nil {
		return nil, err
	}
	return NewRecord(dbf.fields, dbf.charset, data)
}

// ReadRecord returns record index with no field decoded yet.
func (dbf *DBFHandler) ReadRecord(index uint32) (*Record, error) {
	dbf.mu.RLock()
	defer dbf.mu.RUnlock()
	return dbf.readRecord(index)
}

func (dbf *DBFHandler) getRecord(index uint32, rv reflect.Value) error {
	rec, err := dbf.readRecord(index)
	if err != nil {
		return err
	}
	plan := dbf.planFor(rv.Type())
	for i, c := range plan.columns {
		if c < 0 {
			continue
		}
		v, err := rec.Field(c).Materialize()
		if err != nil {
			dbf.metrics.decodeErrors.Inc()
			return err
		}
		if v.IsNull() {
			continue
		}
		if err := dbf.assign(rv.Field(i), v); err != nil {
			return fieldErr("assign", rec.Field(c).Field, err)
		}
	}
	return nil
}

func (dbf *DBFHandler) assign(fieldValue reflect.Value, v Value) error {
	text := v.String()
	if dbf.cfg.TrimSpace {
		text = strings.TrimSpace(text)
	}
	isText := v.Kind() == KindCharacter || v.Kind() == KindVarchar
	switch fieldValue.Kind() {
	case reflect.String:
		fieldValue.SetString(text)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if !isText {
			fieldValue.SetInt(v.Int())
			return nil
		}
		if text == "" {
			return nil
		}
		num, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return err
		}
		fieldValue.SetInt(num)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if !isText {
			fieldValue.SetUint(uint64(v.Int()))
			return nil
		}
		if text == "" {
			return nil
		}
		num, err := strconv.ParseUint(text, 10, 64)
		if err != nil {
			return err
		}
		fieldValue.SetUint(num)
	case reflect.Float32, reflect.Float64:
		if !isText {
			fieldValue.SetFloat(v.Float())
			return nil
		}
		if text == "" {
			return nil
		}
		num, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return err
		}
		fieldValue.SetFloat(num)
	case reflect.Bool:
		if v.Kind() == KindLogical {
			fieldValue.SetBool(v.Bool())
			return nil
		}
		b, err := strconv.ParseBool(text)
		if err != nil {
			return err
		}
		fieldValue.SetBool(b)
	case reflect.Struct:
		if fieldValue.Type() != reflect.TypeOf(time.Time{}) {
			return fmt.Errorf("unsupported struct type %s", fieldValue.Type())
		}
		fieldValue.Set(reflect.ValueOf(v.Time()))
	case reflect.Slice:
		if fieldValue.Type().Elem().Kind() != reflect.Uint8 {
			return fmt.Errorf("unsupported slice type %s", fieldValue.Type())
		}
		fieldValue.SetBytes(append([]byte(nil), v.Bytes()...))
	default:
		return fmt.Errorf("unsupported type %s", fieldValue.Type())
	}
	return nil
}

func (dbf *DBFHandler) GetRecord(index uint32, v interface{}) error {
	dbf.mu.RLock()
	defer dbf.mu.RUnlock()

	rv, err := structValue(v, "GetRecord")
	if err != nil {
		return err
	}
	return dbf.getRecord(index, rv)
}

func (dbf *DBFHandler) startWorker(workerChan []chan workerArgs, errChan chan error, wg *sync.WaitGroup) {
	for i := 0; i < len(workerChan); i++ {
		workerChan[i] = make(chan workerArgs, 16)
		go dbf.work(workerChan[i], errChan, wg)
	}
}

func (dbf *DBFHandler) work(taskChan <-chan workerArgs, errChan chan<- error, wg *sync.WaitGroup) {
	for args := range taskChan {
		err := dbf.getRecord(args.index, args.value)
		errChan <- err
		wg.Done()
	}
}

// GetRecords decodes records [start, end) into the slice of structs v points
// to, spread over workerNums goroutines. workerNums <= 0 uses the configured count.
func (dbf *DBFHandler) GetRecords(start, end uint32, v interface{}, workerNums int) error {
	dbf.mu.RLock()
	defer dbf.mu.RUnlock()

	if end > dbf.header.RecordsCount || start > end {
		return fmt.Errorf("%w: records [%d, %d) of %d", ErrOutOfRange, start, end, dbf.header.RecordsCount)
	}

	rt := reflect.TypeOf(v)
	if rt == nil || rt.Kind() != reflect.Ptr {
		return fmt.Errorf("GetRecords requires a pointer to a slice, not a %v", rt)
	}
	if rt.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("GetRecords requires a pointer to a slice, not a %s", rt.Elem().Kind())
	}
	if rt.Elem().Elem().Kind() != reflect.Struct {
		return fmt.Errorf("GetRecords requires a pointer to a slice of struct, not a %s", rt.Elem().Elem().Kind())
	}

	rv := reflect.ValueOf(v).Elem()
	if rv.Len() < int(end-start) {
		return fmt.Errorf("%w: slice holds %d of %d records", ErrOutOfRange, rv.Len(), end-start)
	}
	if workerNums <= 0 {
		workerNums = dbf.cfg.Workers
	}

	wg := sync.WaitGroup{}
	workerChan := make([]chan workerArgs, workerNums)
	errChan := make(chan error, end-start)
	dbf.startWorker(workerChan, errChan, &wg)
	defer func() {
		// stop the workers
		for i := 0; i < workerNums; i++ {
			close(workerChan[i])
		}
		close(errChan)
	}()
	for i := 0; i < int(end-start); i++ {
		wg.Add(1)
		workerChan[i%workerNums] <- workerArgs{
			index: uint32(i + int(start)),
			value: rv.Index(i),
		}
	}
	wg.Wait()

	for i := 0; i < int(end-start); i++ {
		if err := <-errChan; err != nil {
			dbf.log.Error("read records", "start", start, "end", end, "err", err)
			return err
		}
	}
	dbf.log.Debug("read records", "start", start, "end", end, "workers", workerNums)
	return nil
}

// Records loads every record into a table. Deleted records are dropped when
// the handler is configured to skip them.
func (dbf *DBFHandler) Records() (*table.Table[*Record], error) {
	dbf.mu.RLock()
	defer dbf.mu.RUnlock()

	t := table.New[*Record]()
	for i := uint32(0); i < dbf.header.RecordsCount; i++ {
		rec, err := dbf.readRecord(i)
		if err != nil {
			return nil, err
		}
		if dbf.cfg.SkipDeleted && rec.Deleted() {
			continue
		}
		t.InsertOwned(rec)
	}
	return t, nil
}

// LoadTable decodes every record of dbf into a table of R, passing each raw
// record buffer, delete flag included, to (*R).DecodeRow.
func LoadTable[R any, P interface {
	*R
	table.Decodable
}](dbf *DBFHandler) (*table.Table[R], error) {
	dbf.mu.RLock()
	defer dbf.mu.RUnlock()

	bufs := make([][]byte, 0, dbf.header.RecordsCount)
	for i := uint32(0); i < dbf.header.RecordsCount; i++ {
		data, err := dbf.readRecordBytes(i)
		if err != nil {
			return nil, err
		}
		if dbf.cfg.SkipDeleted && len(data) > 0 && data[0] == DELETED {
			continue
		}
		bufs = append(bufs, data)
	}
	t, err := table.Decode[R, P](bufs)
	if err != nil {
		dbf.metrics.decodeErrors.Inc()
		return nil, err
	}
	return t, nil
}
