// Package alerting provides the threshold alert engine: alert validation and
// CRUD, sample evaluation with cooldown claims, test dispatch and firing
// history.
package alerting

import "time"

// Cooldown bounds in minutes.
const (
	MinCooldownMinutes = 1
	MaxCooldownMinutes = 1440
)

// Percentage resources accept thresholds within these bounds.
const (
	MinPercentThreshold = 0.0
	MaxPercentThreshold = 100.0
)

// History paging limits.
const (
	DefaultHistoryPageSize = 50
	MaxHistoryPageSize     = 200
)

// Per-channel test summaries.
const (
	TestSentText   = "Test sent"
	TestFailedText = "Failed to send"
)

const (
	// saveFiringTimeout is the context deadline for persisting a firing.
	saveFiringTimeout = 3 * time.Second
	// cleanupTimeout is the context deadline for the periodic history deletion.
	cleanupTimeout = 5 * time.Second
	// cleanupInterval is how often the history cleanup goroutine runs.
	cleanupInterval = 1 * time.Hour
	// defaultRuleCacheTTL applies when no cache TTL is configured.
	defaultRuleCacheTTL = 30 * time.Second
)
