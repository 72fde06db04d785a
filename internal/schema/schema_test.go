package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hadr/internal/pcl"
)

var names = []string{
	pcl.DisclosureCycle,
	pcl.FacilityNumber,
	pcl.ReportPeriodEndDate,
	"P0_C1_L2",
	"P12_C2_L60",
	"P10_C11_L200",
	"P10_C9_L60",
	"P10_C9_L60__dup002",
	"COL_00008",
	"P4.1_C2_L5__Total_Patient_Days",
	"P10_C9_L5",
	"PA_C1_L1",
	"YEAR_END",
}

func TestDescribe(t *testing.T) {
	s := Describe(names)
	require.Equal(t, len(names), s.Len())
	assert.Equal(t, names, s.Names())

	kinds := []Kind{
		KindCycle, KindIdentity, KindIdentity, KindMeasure, KindMeasure, KindMeasure,
		KindMeasure, KindDuplicate, KindFallback, KindLabeled, KindMeasure, KindMeasure, KindDerived,
	}
	for i, f := range s.Fields {
		assert.Equal(t, kinds[i], f.Kind, f.Name)
		assert.Equal(t, i, f.Position)
	}

	f, ok := s.Lookup("P10_C9_L60__dup002")
	require.True(t, ok)
	assert.Equal(t, pcl.Pair{Page: "10", Col: "9"}, f.CID.Pair())

	f, ok = s.Lookup("PA_C1_L1")
	require.True(t, ok)
	assert.Equal(t, -1, f.Line)

	assert.Equal(t, 1, s.Count(KindFallback))
}

func TestSelect(t *testing.T) {
	s := Describe(names)
	sel, err := s.Select(Selection{
		Keys:        []string{pcl.DisclosureCycle, pcl.FacilityNumber},
		Identifiers: []string{pcl.FacilityNumber, "P0_C1_L2"},
		Pairs:       []pcl.Pair{{Page: "10", Col: "9"}, {Page: "10", Col: "11"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{pcl.DisclosureCycle, pcl.FacilityNumber, "P0_C1_L2"}, sel.Identifiers)
	assert.Equal(t, []string{"P10_C9_L5", "P10_C9_L60", "P10_C11_L200"}, sel.Measures)
	assert.Equal(t, 6, len(sel.Columns()))
}

func TestSelectMissingIdentifier(t *testing.T) {
	s := Describe(names)
	_, err := s.Select(Selection{
		Identifiers: []string{"P0_C1_L36"},
		Pairs:       []pcl.Pair{{Page: "10", Col: "9"}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingIdentifier))
	assert.Contains(t, err.Error(), "P0_C1_L36")
}

func TestSelectNoMatch(t *testing.T) {
	s := Describe(names)
	_, err := s.Select(Selection{Pairs: []pcl.Pair{{Page: "99", Col: "1"}}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoMatch))
}
