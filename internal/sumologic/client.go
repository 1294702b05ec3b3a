// Package sumologic implements a minimal client for the Sumo Logic Search
// Job API: submit a search, poll it to completion, fetch the aggregated
// records.
package sumologic

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

// StateDone is the terminal search job state signalling that all results
// have been gathered.
const StateDone = "DONE GATHERING RESULTS"

const (
	defaultPollInterval    = 10 * time.Second
	defaultMaxPollAttempts = 30
	defaultPageSize        = 100
)

// ErrJobTimeout is returned when a search job does not reach its terminal
// state within the configured attempt budget.
var ErrJobTimeout = errors.New("sumologic: search job did not complete in time")

// errJobRunning marks a poll attempt that found the job still in flight.
var errJobRunning = errors.New("sumologic: search job still running")

// APIError represents a non-2xx response from the search service.
type APIError struct {
	Status  int
	Message string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("sumologic request failed with status %d", e.Status)
	}
	return fmt.Sprintf("sumologic request failed (%d): %s", e.Status, e.Message)
}

// SubmissionError indicates the search job could not be created. It is fatal
// to the day being processed.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submit search job: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// SearchJobRequest is the body of a search job submission.
type SearchJobRequest struct {
	Query    string `json:"query"`
	From     string `json:"from"`
	To       string `json:"to"`
	TimeZone string `json:"timeZone"`
}

// SearchRecord is one aggregated row of a completed search job.
type SearchRecord struct {
	Map RecordFields `json:"map"`
}

// RecordFields carries the aggregate columns the daily query produces. The
// service emits every field as a string.
type RecordFields struct {
	Period           string `json:"period"`
	Path             string `json:"path"`
	TotalProcessTime string `json:"total_process_time"`
	CountValue       string `json:"count_value"`
}

// Client provides typed access to the search job API.
type Client struct {
	baseURL         string
	accessID        string
	accessKey       string
	httpClient      *http.Client
	pollInterval    time.Duration
	maxPollAttempts int
	pageSize        int
	logger          *slog.Logger
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithPollInterval sets the delay between job status checks.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithMaxPollAttempts bounds how many status checks are made before the job
// is declared timed out.
func WithMaxPollAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxPollAttempts = n
		}
	}
}

// WithPageSize sets the record fetch page size.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// New constructs a Client for the given API base URL and credentials.
func New(base, accessID, accessKey string, logger *slog.Logger, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(base), "/")
	if trimmed == "" {
		return nil, errors.New("sumologic: empty base url")
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid sumologic base url: %w", err)
	}
	if accessID == "" || accessKey == "" {
		return nil, errors.New("sumologic: credentials not provided")
	}
	if logger == nil {
		logger = slog.Default()
	}
	cli := &Client{
		baseURL:         trimmed,
		accessID:        accessID,
		accessKey:       accessKey,
		httpClient:      &http.Client{Timeout: 30 * time.Second},
		pollInterval:    defaultPollInterval,
		maxPollAttempts: defaultMaxPollAttempts,
		pageSize:        defaultPageSize,
		logger:          logger,
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// CreateSearchJob submits a search job and returns its identifier.
func (c *Client) CreateSearchJob(ctx context.Context, req SearchJobRequest) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/search/jobs", req, &resp); err != nil {
		return "", &SubmissionError{Err: err}
	}
	if resp.ID == "" {
		return "", &SubmissionError{Err: errors.New("response carried no job id")}
	}
	return resp.ID, nil
}

// JobStatus reports the current state of a search job.
func (c *Client) JobStatus(ctx context.Context, jobID string) (string, error) {
	var resp struct {
		State string `json:"state"`
	}
	if err := c.do(ctx, http.MethodGet, "/search/jobs/"+url.PathEscape(jobID), nil, &resp); err != nil {
		return "", err
	}
	return resp.State, nil
}

// WaitForCompletion polls the job at a constant interval until it reaches the
// terminal state. Exhausting the attempt budget yields ErrJobTimeout. Only
// job-not-yet-done is retried; transport and non-2xx errors surface
// immediately.
func (c *Client) WaitForCompletion(ctx context.Context, jobID string) error {
	backoff := retry.WithMaxRetries(uint64(c.maxPollAttempts-1), retry.NewConstant(c.pollInterval))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		state, err := c.JobStatus(ctx, jobID)
		if err != nil {
			return err
		}
		if state == StateDone {
			return nil
		}
		c.logger.Debug("search job still running", "job_id", jobID, "state", state)
		return retry.RetryableError(errJobRunning)
	})
	if errors.Is(err, errJobRunning) {
		return fmt.Errorf("%w (job %s, %d attempts)", ErrJobTimeout, jobID, c.maxPollAttempts)
	}
	return err
}

// FetchRecords retrieves the aggregated records of a completed job. The daily
// query groups by (period, path), so a single fixed page covers the result
// set.
func (c *Client) FetchRecords(ctx context.Context, jobID string) ([]SearchRecord, error) {
	var resp struct {
		Records []SearchRecord `json:"records"`
	}
	path := fmt.Sprintf("/search/jobs/%s/records?offset=0&limit=%d", url.PathEscape(jobID), c.pageSize)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch search job records: %w", err)
	}
	return resp.Records, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, v any) error {
	endpoint := c.baseURL + path
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", c.authHeader())
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return APIError{Status: resp.StatusCode, Message: extractError(resp.Body)}
	}

	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) authHeader() string {
	token := base64.StdEncoding.EncodeToString([]byte(c.accessID + ":" + c.accessKey))
	return "Basic " + token
}

func extractError(body io.Reader) string {
	if body == nil {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
	}
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}
	if err := json.Unmarshal(data, &payload); err != nil || payload.Message == "" {
		return strings.TrimSpace(string(data))
	}
	return payload.Message
}
