package config

import "time"

// Application-wide constants organized by concern

// Timeouts
const (
	DefaultLoadTimeout     = 5 * time.Minute
	DefaultShutdownTimeout = 15 * time.Second
	SnapshotTimeout        = 45 * time.Second
)

// Display
const (
	DefaultTopProducts  = 10
	DefaultTopReturns   = 10
	DefaultTopCountries = 15
	MaxTopN             = 100
	DefaultCacheSize    = 256
)

// Cohort highlights shown on the retention view
const (
	DefaultHighlightCohort = "2010-12"
	DefaultHighlightOffset = 3
)
