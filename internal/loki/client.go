// Package loki reads training job logs from a Loki instance as an alternative
// to fetching them over SSH.
package loki

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Sentinel errors for Loki client failures.
var (
	ErrLokiUnreachable = errors.New("loki unreachable")
	ErrLokiQueryError  = errors.New("loki query error")
	ErrLokiTimeout     = errors.New("loki query timeout")
)

const (
	defaultJobLabel = "job_name"
	defaultLookback = 24 * time.Hour
	defaultLimit    = 5000
)

// QueryRangeRequest defines parameters for a Loki range query.
type QueryRangeRequest struct {
	Query     string
	Start     time.Time
	End       time.Time
	Limit     int
	Direction string
}

// Line is one log entry.
type Line struct {
	Timestamp time.Time
	Message   string
}

// HTTPClient implements job log retrieval using Loki's HTTP API.
type HTTPClient struct {
	baseURL  string
	orgID    string
	jobLabel string
	lookback time.Duration
	client   *http.Client
	now      func() time.Time
}

// NewHTTPClient creates a new Loki HTTP client. Jobs are selected by the
// job_name stream label.
func NewHTTPClient(baseURL, orgID string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		orgID:    orgID,
		jobLabel: defaultJobLabel,
		lookback: defaultLookback,
		client:   &http.Client{Timeout: timeout},
		now:      time.Now,
	}
}

// JobLogs returns the newest log lines of the job within the lookback window,
// at most defaultLimit of them, oldest first and joined by newlines.
func (c *HTTPClient) JobLogs(ctx context.Context, job string) (string, error) {
	end := c.now()
	lines, err := c.QueryRange(ctx, QueryRangeRequest{
		Query:     fmt.Sprintf(`{%s=%q}`, c.jobLabel, job),
		Start:     end.Add(-c.lookback),
		End:       end,
		Limit:     defaultLimit,
		Direction: "backward",
	})
	if err != nil {
		return "", fmt.Errorf("logs of job %s: %w", job, err)
	}

	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l.Message)
		b.WriteByte('\n')
	}
	return b.String(), nil
}

func (c *HTTPClient) QueryRange(ctx context.Context, req QueryRangeRequest) ([]Line, error) {
	direction := req.Direction
	if direction == "" {
		direction = "backward"
	}

	params := url.Values{
		"query":     {req.Query},
		"start":     {strconv.FormatInt(req.Start.UnixNano(), 10)},
		"end":       {strconv.FormatInt(req.End.UnixNano(), 10)},
		"direction": {direction},
	}
	if req.Limit > 0 {
		params.Set("limit", strconv.Itoa(req.Limit))
	}

	u := fmt.Sprintf("%s/loki/api/v1/query_range?%s", c.baseURL, params.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrLokiQueryError, resp.StatusCode)
	}

	var lokiResp lokiQueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&lokiResp); err != nil {
		return nil, fmt.Errorf("decoding loki response: %w", err)
	}

	return parseStreams(lokiResp.Data.Result), nil
}

func (c *HTTPClient) Ready(ctx context.Context) error {
	u := fmt.Sprintf("%s/ready", c.baseURL)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLokiUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: loki not ready (status %d)", ErrLokiUnreachable, resp.StatusCode)
	}
	return nil
}

func (c *HTTPClient) setHeaders(req *http.Request) {
	if c.orgID != "" {
		req.Header.Set("X-Scope-OrgID", c.orgID)
	}
}

// IsTransient reports whether err means Loki could not be reached in time,
// as opposed to rejecting the query.
func IsTransient(err error) bool {
	return errors.Is(err, ErrLokiUnreachable) || errors.Is(err, ErrLokiTimeout)
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrLokiTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrLokiTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrLokiUnreachable, err)
}

// parseStreams flattens all streams into one chronologically ordered slice.
// A job with several pods yields several streams.
func parseStreams(streams []lokiStream) []Line {
	lines := []Line{}
	for _, stream := range streams {
		for _, v := range stream.Values {
			ts, _ := strconv.ParseInt(v[0], 10, 64)
			lines = append(lines, Line{
				Timestamp: time.Unix(0, ts).UTC(),
				Message:   v[1],
			})
		}
	}
	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].Timestamp.Before(lines[j].Timestamp)
	})
	return lines
}

// --- Loki response types ---

type lokiQueryResponse struct {
	Data lokiData `json:"data"`
}

type lokiData struct {
	ResultType string       `json:"resultType"`
	Result     []lokiStream `json:"result"`
}

type lokiStream struct {
	Stream map[string]string `json:"stream"`
	Values [][2]string       `json:"values"`
}
