package monitor

import (
	"context"
	"time"
)

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// TextExtractor turns raw markup into plain visible text.
type TextExtractor interface {
	Text(html []byte) (string, error)
}

// Notifier delivers a plain-text message to the configured recipient.
type Notifier interface {
	Send(ctx context.Context, message string) error
}

// OutcomeRecorder keeps track of check outcomes (for status reporting).
type OutcomeRecorder interface {
	Record(outcome Outcome)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
