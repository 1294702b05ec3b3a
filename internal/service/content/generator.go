// Package content produces the body copy for alert notifications. The
// AI-backed generation service is an external collaborator; this package
// only knows its request/response shape and a locally rendered fallback.
package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sanju9645/sumo-insight-backend/internal/domain"
)

// Content is the generated alert copy in both delivery formats.
type Content struct {
	Plain string `json:"plain"`
	HTML  string `json:"html"`
}

// Generator produces alert copy for a threshold crossing.
type Generator interface {
	AlertContent(ctx context.Context, event domain.AlertEvent) (Content, error)
}

// Static renders the templated copy locally. It is the Generator used when
// no generation service is configured, and the same template backs the
// dispatcher's fallback path.
type Static struct{}

// AlertContent renders the fallback template. It never fails.
func (Static) AlertContent(_ context.Context, event domain.AlertEvent) (Content, error) {
	return Fallback(event), nil
}

// HTTPGenerator calls the external copy-generation service.
type HTTPGenerator struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

// NewHTTP constructs an HTTPGenerator for the given service URL.
func NewHTTP(url, apiKey string) *HTTPGenerator {
	return &HTTPGenerator{
		url:        strings.TrimSpace(url),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// AlertContent requests generated copy for the event. Any transport error,
// non-2xx response or empty payload is surfaced so the caller can fall back.
func (g *HTTPGenerator) AlertContent(ctx context.Context, event domain.AlertEvent) (Content, error) {
	payload, err := json.Marshal(map[string]any{
		"api_path":    event.Endpoint,
		"metric_type": event.MetricType,
		"value":       event.Value,
		"threshold":   event.Threshold,
		"operator":    event.Operator,
	})
	if err != nil {
		return Content{}, fmt.Errorf("encode content request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(payload))
	if err != nil {
		return Content{}, fmt.Errorf("create content request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return Content{}, fmt.Errorf("perform content request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Content{}, fmt.Errorf("content service returned status %d", resp.StatusCode)
	}

	var out Content
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Content{}, fmt.Errorf("decode content response: %w", err)
	}
	if out.Plain == "" && out.HTML == "" {
		return Content{}, fmt.Errorf("content service returned empty body")
	}
	return out, nil
}

// Fallback renders a static templated message carrying the same fields the
// generation service would have received.
func Fallback(event domain.AlertEvent) Content {
	metric := MetricDescription(event.MetricType)
	condition := OperatorDescription(event.Operator)

	plain := fmt.Sprintf(`ALERT: API Endpoint %s has crossed its threshold.
Details:
- Metric Type: %s
- Current Value: %g
- Threshold: %g
- Condition: %s

Recommended Actions:
1. Review the API endpoint's recent performance
2. Check for any recent changes or deployments
3. Monitor the endpoint for further anomalies

Please investigate this issue promptly.`, event.Endpoint, metric, event.Value, event.Threshold, condition)

	html := fmt.Sprintf(`<div style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
  <p>Dear Team,</p>
  <p>API Endpoint <strong>%s</strong> has crossed its configured threshold.</p>
  <div style="background-color: #f5f5f5; padding: 15px; border-left: 4px solid #007bff;">
    <ul style="list-style-type: none; padding-left: 0;">
      <li><strong>Metric Type:</strong> %s</li>
      <li><strong>Current Value:</strong> %g</li>
      <li><strong>Threshold:</strong> %g</li>
      <li><strong>Condition:</strong> %s</li>
    </ul>
  </div>
  <p>Please investigate this issue promptly.</p>
</div>`, event.Endpoint, metric, event.Value, event.Threshold, condition)

	return Content{Plain: plain, HTML: html}
}

// MetricDescription maps a wire metric type to human-readable text.
func MetricDescription(metricType string) string {
	if metricType == domain.MetricProcessingTime {
		return "Processing Time"
	}
	return "Request Count"
}

// OperatorDescription maps a comparison operator to human-readable text.
func OperatorDescription(operator string) string {
	switch operator {
	case ">":
		return "greater than threshold"
	case ">=":
		return "greater than or equal to threshold"
	case "<":
		return "less than threshold"
	case "<=":
		return "less than or equal to threshold"
	case "==":
		return "equal to threshold"
	case "!=":
		return "not equal to threshold"
	default:
		return "crossed threshold"
	}
}
