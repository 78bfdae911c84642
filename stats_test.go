package mosaic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBandStatsAccumulate(t *testing.T) {
	nd := 0.0
	s := newBandStats()
	s.accumulate([]float64{1, 2, 3, 0, 4}, &nd)

	r := s.report()
	assert.Equal(t, 1.0, r.Min)
	assert.Equal(t, 4.0, r.Max)
	assert.Equal(t, int64(4), r.Count)
	assert.InDelta(t, 2.5, r.Mean, 1e-9)
}

func TestBandStatsEmptyReportsZeroValue(t *testing.T) {
	s := newBandStats()
	r := s.report()
	assert.Equal(t, StatsReport{}, r)
}
