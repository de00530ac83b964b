// Package charts shapes resource samples into dashboard chart series.
package charts

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tphakala/hostpulse/internal/datastore/entities"
)

// Label layouts by period length.
const (
	LayoutShort = "15:04"
	LayoutLong  = "Jan 02 15:04"
)

// ChartData is one label per sample plus four aligned series. Slices are
// never nil so they encode as [] in JSON.
type ChartData struct {
	Labels []string  `json:"labels"`
	CPU    []float64 `json:"cpu"`
	Memory []float64 `json:"memory"`
	Disk   []float64 `json:"disk"`
	Load   []float64 `json:"load"`
}

// Aggregator formats labels in a fixed location.
type Aggregator struct {
	loc    *time.Location
	layout string
}

// NewAggregator creates an aggregator labelling in loc (UTC when nil).
func NewAggregator(loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{loc: loc, layout: LayoutShort}
}

// ForPeriod returns an aggregator whose label layout suits period.
func (a *Aggregator) ForPeriod(p entities.Period) *Aggregator {
	layout := LayoutShort
	if p == entities.Period7d || p == entities.Period30d {
		layout = LayoutLong
	}
	return &Aggregator{loc: a.loc, layout: layout}
}

// Build converts samples, in the order given, to chart series.
func (a *Aggregator) Build(samples []entities.ResourceSample) ChartData {
	n := len(samples)
	data := ChartData{
		Labels: make([]string, 0, n),
		CPU:    make([]float64, 0, n),
		Memory: make([]float64, 0, n),
		Disk:   make([]float64, 0, n),
		Load:   make([]float64, 0, n),
	}
	for i := range samples {
		s := &samples[i]
		data.Labels = append(data.Labels, s.RecordedAt.In(a.loc).Format(a.layout))
		data.CPU = append(data.CPU, Round1(s.CPUPercent))
		data.Memory = append(data.Memory, Round1(s.MemoryPercent))
		data.Disk = append(data.Disk, Round1(s.DiskPercent))
		data.Load = append(data.Load, Round1(s.Load1m))
	}
	return data
}

// Round1 rounds v to one decimal place, halves away from zero. The value is
// rounded from its shortest decimal form so 0.05 becomes 0.1.
func Round1(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(1).Float64()
	return f
}
