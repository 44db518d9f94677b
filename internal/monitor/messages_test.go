package monitor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMessages(t *testing.T) {
	t.Parallel()

	require.Equal(t,
		"Monitoring app started. Checking https://example.com for 'sold out'",
		StartedMessage("https://example.com", "sold out"))
	require.Equal(t, "Monitoring app stopped.", StoppedMessage())
	require.Equal(t,
		"The phrase 'sold out' was found 3 times on https://example.com.",
		FoundMessage("sold out", 3, "https://example.com"))
	require.Equal(t, "ERROR: Failed to check the webpage https://example.com", FailureMessage("https://example.com"))
	require.Equal(t, "ERROR: Scheduler error: boom", SchedulerErrorMessage(errors.New("boom")))
}
