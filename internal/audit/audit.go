// Package audit counts the conditions the pipeline recovers from instead of
// failing on, so a run can be reviewed after the fact.
package audit

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Counters holds the recoverable-condition counters of one run. A nil
// *Counters discards every observation.
type Counters struct {
	registry *prometheus.Registry

	fallbackIDs          *prometheus.CounterVec
	duplicateIDs         *prometheus.CounterVec
	truncatedColumns     *prometheus.CounterVec
	unparsableDates      *prometheus.CounterVec
	nullRatios           prometheus.Counter
	droppedRevenueCenter prometheus.Counter
	rowsAppended         *prometheus.CounterVec
}

// New registers the counters on a private registry.
func New() *Counters {
	c := &Counters{
		registry: prometheus.NewRegistry(),
		fallbackIDs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hadr_fallback_ids_total",
			Help: "Columns that received a positional identifier because their header triple was malformed",
		}, []string{"category"}),
		duplicateIDs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hadr_duplicate_ids_total",
			Help: "Columns renamed with an occurrence suffix",
		}, []string{"category"}),
		truncatedColumns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hadr_truncated_columns_total",
			Help: "Trailing columns dropped in truncate mode",
		}, []string{"category"}),
		unparsableDates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hadr_unparsable_dates_total",
			Help: "Date cells that could not be parsed and were treated as missing",
		}, []string{"column"}),
		nullRatios: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hadr_null_ratios_total",
			Help: "Cost-to-charge ratios left null because gross revenue was missing or zero",
		}),
		droppedRevenueCenter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hadr_dropped_revenue_centers_total",
			Help: "Revenue centers dropped because no ratio could be computed for them",
		}),
		rowsAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hadr_rows_appended_total",
			Help: "Rows written to longitudinal tables",
		}, []string{"category"}),
	}
	c.registry.MustRegister(
		c.fallbackIDs,
		c.duplicateIDs,
		c.truncatedColumns,
		c.unparsableDates,
		c.nullRatios,
		c.droppedRevenueCenter,
		c.rowsAppended,
	)
	return c
}

// Registry exposes the underlying registry.
func (c *Counters) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

func (c *Counters) FallbackIDs(category string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.fallbackIDs.WithLabelValues(category).Add(float64(n))
}

func (c *Counters) DuplicateIDs(category string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.duplicateIDs.WithLabelValues(category).Add(float64(n))
}

func (c *Counters) TruncatedColumns(category string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.truncatedColumns.WithLabelValues(category).Add(float64(n))
}

func (c *Counters) UnparsableDates(column string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.unparsableDates.WithLabelValues(column).Add(float64(n))
}

func (c *Counters) NullRatios(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.nullRatios.Add(float64(n))
}

func (c *Counters) DroppedRevenueCenters(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.droppedRevenueCenter.Add(float64(n))
}

func (c *Counters) RowsAppended(category string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.rowsAppended.WithLabelValues(category).Add(float64(n))
}

// Summary logs every non-zero counter as one event.
func (c *Counters) Summary(log zerolog.Logger) {
	if c == nil {
		return
	}
	families, err := c.registry.Gather()
	if err != nil {
		log.Warn().Err(err).Msg("gather audit counters")
		return
	}
	ev := log.Info()
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			v := m.GetCounter().GetValue()
			if v == 0 {
				continue
			}
			key := mf.GetName()
			for _, lp := range m.GetLabel() {
				key += fmt.Sprintf("{%s=%s}", lp.GetName(), lp.GetValue())
			}
			ev = ev.Float64(key, v)
		}
	}
	ev.Msg("audit summary")
}

// WriteFile writes the counters in the text exposition format.
func (c *Counters) WriteFile(path string) error {
	if c == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("write metrics file: %w", err)
	}
	return nil
}
