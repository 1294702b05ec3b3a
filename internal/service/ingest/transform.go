package ingest

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sanju9645/sumo-insight-backend/internal/domain"
	"github.com/sanju9645/sumo-insight-backend/internal/sumologic"
)

// periodLayout is the date format the daily query emits per row.
const periodLayout = "2006/01/02"

// MalformedRecordError marks a raw row whose fields cannot be parsed. The
// pipeline skips such rows with a warning instead of aborting the batch.
type MalformedRecordError struct {
	Field string
	Value string
	Err   error
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record field %s=%q: %v", e.Field, e.Value, e.Err)
}

func (e *MalformedRecordError) Unwrap() error { return e.Err }

// transformRecord maps one raw search row to a canonical MetricRecord,
// applying endpoint rewriting. The processing time is validated as numeric
// but kept in its string form to preserve source formatting.
func transformRecord(raw sumologic.SearchRecord, rewrites map[string]string) (domain.MetricRecord, error) {
	day, err := time.Parse(periodLayout, raw.Map.Period)
	if err != nil {
		return domain.MetricRecord{}, &MalformedRecordError{Field: "period", Value: raw.Map.Period, Err: err}
	}

	count, err := strconv.ParseInt(strings.TrimSpace(raw.Map.CountValue), 10, 64)
	if err != nil {
		return domain.MetricRecord{}, &MalformedRecordError{Field: "count_value", Value: raw.Map.CountValue, Err: err}
	}
	if count < 0 {
		return domain.MetricRecord{}, &MalformedRecordError{
			Field: "count_value", Value: raw.Map.CountValue, Err: fmt.Errorf("negative request count"),
		}
	}

	if _, err := strconv.ParseFloat(strings.TrimSpace(raw.Map.TotalProcessTime), 64); err != nil {
		return domain.MetricRecord{}, &MalformedRecordError{
			Field: "total_process_time", Value: raw.Map.TotalProcessTime, Err: err,
		}
	}

	return domain.MetricRecord{
		Date:     day.UTC(),
		Endpoint: rewriteEndpoint(raw.Map.Path, rewrites),
		Count:    count,
		AvgPTime: strings.TrimSpace(raw.Map.TotalProcessTime),
	}, nil
}

// rewriteEndpoint replaces path segments per the rewrite map. A segment
// matches exactly, or — when it carries a plural suffix — by its singular
// form, in which case the replacement is re-pluralized. Unmatched segments
// pass through unchanged.
func rewriteEndpoint(endpoint string, rewrites map[string]string) string {
	if len(rewrites) == 0 {
		return endpoint
	}
	parts := strings.Split(endpoint, "/")
	for i, part := range parts {
		if replacement, ok := rewrites[part]; ok {
			parts[i] = replacement
			continue
		}
		if strings.HasSuffix(part, "s") {
			if replacement, ok := rewrites[strings.TrimSuffix(part, "s")]; ok {
				parts[i] = replacement + "s"
			}
		}
	}
	return strings.Join(parts, "/")
}
