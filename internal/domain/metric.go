package domain

import "time"

// MetricRecord is one day's aggregated performance figures for a single API
// endpoint. Exactly one live record exists per (Date, Endpoint) pair;
// re-ingesting the same day replaces Count and AvgPTime but never duplicates
// the row.
type MetricRecord struct {
	ID       string
	Date     time.Time // calendar day, time component discarded
	Endpoint string    // canonical path after rewrite-map normalization
	Count    int64
	AvgPTime string // kept as text to preserve source formatting and precision
	Created  time.Time
}

// EndpointClassification tags a distinct endpoint observed by the pipeline.
// Rows are created lazily on first observation and never deleted by the
// pipeline; color and data are filled in elsewhere.
type EndpointClassification struct {
	ID                  string
	Endpoint            string
	ClassificationColor string
	ClassificationData  []byte
	Created             time.Time
}
