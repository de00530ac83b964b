package entities

import (
	"fmt"
	"time"
)

// Period is a named lookback window for history queries.
type Period string

const (
	Period1h  Period = "1h"
	Period24h Period = "24h"
	Period7d  Period = "7d"
	Period30d Period = "30d"
)

// Periods lists the supported windows.
var Periods = []Period{Period1h, Period24h, Period7d, Period30d}

// ParsePeriod validates s. An empty string selects 24h.
func ParsePeriod(s string) (Period, error) {
	if s == "" {
		return Period24h, nil
	}
	p := Period(s)
	if _, ok := periodLookback[p]; !ok {
		return "", fmt.Errorf("unsupported period %q", s)
	}
	return p, nil
}

var periodLookback = map[Period]time.Duration{
	Period1h:  time.Hour,
	Period24h: 24 * time.Hour,
	Period7d:  7 * 24 * time.Hour,
	Period30d: 30 * 24 * time.Hour,
}

// Lookback returns the window length. Unknown periods return 0.
func (p Period) Lookback() time.Duration {
	return periodLookback[p]
}
