package monitor

import (
	"net/http"
	"time"
)

// Status is the result class of a single check.
type Status string

// Check status values.
const (
	StatusFound    Status = "found"
	StatusNotFound Status = "not_found"
	StatusFailed   Status = "failed"
)

// FetchRequest captures everything needed to fetch the target page.
type FetchRequest struct {
	RunID   string
	URL     string
	Headers http.Header
}

// FetchResponse is the payload returned by a Fetcher.
type FetchResponse struct {
	URL          string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	Duration     time.Duration
	Attempts     int
	UsedHeadless bool
}

// Outcome is the result of one check.
type Outcome struct {
	RunID     string        `json:"run_id"`
	TraceID   string        `json:"trace_id,omitempty"`
	URL       string        `json:"url"`
	Phrase    string        `json:"phrase"`
	Status    Status        `json:"status"`
	Count     int           `json:"count"`
	Threshold int           `json:"threshold"`
	CheckedAt time.Time     `json:"checked_at"`
	Duration  time.Duration `json:"duration_ns"`
	Err       error         `json:"-"`
	ErrorText string        `json:"error,omitempty"`
}

// Found reports whether the phrase met the threshold.
func (o Outcome) Found() bool {
	return o.Status == StatusFound
}
