package monitor

import "fmt"

// Notification kinds, used as the metrics label for deliveries.
const (
	KindLifecycle = "lifecycle"
	KindFound     = "found"
	KindError     = "error"
)

// StartedMessage announces that monitoring began.
func StartedMessage(url, phrase string) string {
	return fmt.Sprintf("Monitoring app started. Checking %s for '%s'", url, phrase)
}

// StoppedMessage announces a clean shutdown.
func StoppedMessage() string {
	return "Monitoring app stopped."
}

// FoundMessage reports that the phrase met the threshold.
func FoundMessage(phrase string, count int, url string) string {
	return fmt.Sprintf("The phrase '%s' was found %d times on %s.", phrase, count, url)
}

// FailureMessage reports a check that could not complete.
func FailureMessage(url string) string {
	return "ERROR: Failed to check the webpage " + url
}

// SchedulerErrorMessage reports an unexpected failure inside the scheduler.
func SchedulerErrorMessage(err error) string {
	return fmt.Sprintf("ERROR: Scheduler error: %v", err)
}
