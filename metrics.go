package godbf

import (
	"fmt"

	"github.com/VictoriaMetrics/metrics"
)

type tableMetrics struct {
	set          *metrics.Set
	recordsRead  *metrics.Counter
	decodeErrors *metrics.Counter
	appends      *metrics.Counter
}

func newTableMetrics(table string) *tableMetrics {
	set := metrics.NewSet()
	label := fmt.Sprintf("{table=%q}", table)
	return &tableMetrics{
		set:          set,
		recordsRead:  set.NewCounter("godbf_records_read_total" + label),
		decodeErrors: set.NewCounter("godbf_decode_errors_total" + label),
		appends:      set.NewCounter("godbf_appends_total" + label),
	}
}
