package godbf

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

type DBF interface {
	ReloadFromFile() error
	NumRecords() uint32
	ReadRecord(index uint32) (*Record, error)
	GetRecord(index uint32, v interface{}) error
	GetRecords(start, end uint32, v interface{}, workerNums int) error
	Append(model interface{}) error
}

// Source is the byte addressable input a table is read from. *os.File and
// *bytes.Reader both satisfy it.
type Source interface {
	io.Reader
	io.Seeker
	io.ReaderAt
}

type DBFHandler struct {
	mu       sync.RWMutex
	fileName string
	f        *os.File
	src      Source
	cfg      Config
	log      *slog.Logger
	metrics  *tableMetrics
	charset  Charset
	header   Header

	fields  []Field
	columns []string
	plans   *xsync.MapOf[reflect.Type, *structPlan]
}

const (
	SPACE      = 0x20
	EOF        = 0x1A
	NUL        = 0x00
	DELETED    = 0x2A
	TERMINATOR = 0x0D
)

// NewDBFFromFile opens fileName for reading and appending. A nil cfg uses DefaultConfig.
func NewDBFFromFile(fileName string, cfg *Config) (*DBFHandler, error) {
	f, err := os.OpenFile(fileName, os.O_RDWR, 0770)
	if err != nil {
		return nil, err
	}
	dbf := newHandler(filepath.Base(fileName), f, cfg)
	dbf.fileName = fileName
	dbf.f = f
	if err := dbf.initMetaData(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return dbf, nil
}

// NewDBF reads a table from src. Tables opened this way are read only.
func NewDBF(src Source, cfg *Config) (*DBFHandler, error) {
	dbf := newHandler("memory", src, cfg)
	if err := dbf.initMetaData(); err != nil {
		return nil, err
	}
	return dbf, nil
}

func newHandler(name string, src Source, cfg *Config) *DBFHandler {
	c := DefaultConfig()
	if cfg != nil {
		c = *cfg
	}
	c.normalize()
	return &DBFHandler{
		src:     src,
		cfg:     c,
		log:     c.logger().With("table", name),
		metrics: newTableMetrics(name),
		plans:   xsync.NewMapOf[reflect.Type, *structPlan](),
	}
}

func (dbf *DBFHandler) ReloadFromFile() error {
	if dbf.f == nil {
		return errNotFile
	}
	dbf.mu.Lock()
	defer dbf.mu.Unlock()
	return dbf.reload()
}

func (dbf *DBFHandler) Close() error {
	if dbf.f == nil {
		return nil
	}
	return dbf.f.Close()
}

func (dbf *DBFHandler) NumRecords() uint32 {
	dbf.mu.RLock()
	defer dbf.mu.RUnlock()
	return dbf.header.RecordsCount
}

func (dbf *DBFHandler) Header() Header {
	dbf.mu.RLock()
	defer dbf.mu.RUnlock()
	return dbf.header
}

// Modified is the last update date with the configured century applied.
func (dbf *DBFHandler) Modified() (time.Time, error) {
	return dbf.Header().Modified(dbf.cfg.Century)
}

func (dbf *DBFHandler) Fields() []Field {
	dbf.mu.RLock()
	defer dbf.mu.RUnlock()
	return append([]Field(nil), dbf.fields...)
}

func (dbf *DBFHandler) Columns() []string {
	dbf.mu.RLock()
	defer dbf.mu.RUnlock()
	return append([]string(nil), dbf.columns...)
}

func (dbf *DBFHandler) Charset() Charset {
	return dbf.charset
}

// WriteMetrics writes the table counters in Prometheus text format.
func (dbf *DBFHandler) WriteMetrics(w io.Writer) {
	dbf.metrics.set.WritePrometheus(w)
}

func (dbf *DBFHandler) String() string {
	h := dbf.Header()
	return fmt.Sprintf("%s: %d records, %d fields, codepage %s", h.DBType, h.RecordsCount, len(dbf.fields), h.Codepage)
}
