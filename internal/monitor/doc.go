// Package monitor holds the check routine and the types shared by the
// fetchers, notifiers and the scheduler.
//
// A check fetches the target page, extracts its visible text, counts the
// configured phrase and turns the count into an Outcome. Run wraps a check
// with logging, metrics and notifications and reports whether the schedule
// should stop.
package monitor
