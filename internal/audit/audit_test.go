package audit

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	c := New()
	c.FallbackIDs("financial_utilization", 2)
	c.FallbackIDs("financial_utilization", 1)
	c.DuplicateIDs("cost_allocation", 4)
	c.NullRatios(3)
	c.NullRatios(0)

	assert.Equal(t, 3.0, testutil.ToFloat64(c.fallbackIDs.WithLabelValues("financial_utilization")))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.duplicateIDs.WithLabelValues("cost_allocation")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.nullRatios))

	var buf bytes.Buffer
	c.Summary(zerolog.New(&buf))
	assert.Contains(t, buf.String(), "hadr_fallback_ids_total{category=financial_utilization}")
	assert.Contains(t, buf.String(), "audit summary")

	path := filepath.Join(t.TempDir(), "metrics.prom")
	require.NoError(t, c.WriteFile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hadr_null_ratios_total 3")
}

func TestNilCountersDiscard(t *testing.T) {
	var c *Counters
	c.FallbackIDs("x", 1)
	c.RowsAppended("x", 1)
	c.Summary(zerolog.Nop())
	assert.NoError(t, c.WriteFile("unused"))
	assert.Nil(t, c.Registry())
}
