// Package alert matches ingested metric records against configured
// per-endpoint threshold conditions.
package alert

import (
	"strconv"

	"github.com/sanju9645/sumo-insight-backend/internal/domain"
)

// Evaluator holds the day's alert conditions indexed by canonical endpoint.
// Evaluation is stateless: it re-runs independently every ingestion pass with
// no de-duplication or cooldown window.
type Evaluator struct {
	conditions map[string]domain.AlertCondition
}

// NewEvaluator indexes the configuration's conditions by endpoint. When the
// configuration carries several conditions for the same endpoint, the last
// entry wins.
func NewEvaluator(cfg *domain.AlertConfiguration) *Evaluator {
	e := &Evaluator{conditions: make(map[string]domain.AlertCondition)}
	if cfg == nil {
		return e
	}
	for _, cond := range cfg.Conditions {
		e.conditions[cond.Endpoint] = cond
	}
	return e
}

// Evaluate checks the record against its endpoint's condition, if any.
// It returns a triggered AlertEvent or nil. Unknown operators and
// unparseable values never fire.
func (e *Evaluator) Evaluate(record domain.MetricRecord) *domain.AlertEvent {
	cond, ok := e.conditions[record.Endpoint]
	if !ok {
		return nil
	}

	var value float64
	switch cond.MetricType {
	case domain.MetricProcessingTime:
		parsed, err := strconv.ParseFloat(record.AvgPTime, 64)
		if err != nil {
			return nil
		}
		value = parsed
	default:
		value = float64(record.Count)
	}

	threshold, err := strconv.ParseFloat(cond.ThresholdValue, 64)
	if err != nil {
		return nil
	}

	if !compare(value, cond.Operator, threshold) {
		return nil
	}
	return &domain.AlertEvent{
		Endpoint:   record.Endpoint,
		MetricType: cond.MetricType,
		Value:      value,
		Threshold:  threshold,
		Operator:   cond.Operator,
		AlertType:  cond.AlertType,
		Priority:   cond.AlertPriority,
	}
}

// compare applies a comparison operator to two float64 values. Unrecognized
// operators evaluate to false so a bad configuration cannot fire alerts.
func compare(value float64, operator string, threshold float64) bool {
	switch operator {
	case ">":
		return value > threshold
	case ">=":
		return value >= threshold
	case "<":
		return value < threshold
	case "<=":
		return value <= threshold
	case "==":
		return value == threshold
	case "!=":
		return value != threshold
	default:
		return false
	}
}
