// Package occurrence counts phrase matches in extracted page text.
package occurrence

import "strings"

// Result is the evaluation of a phrase count against a threshold.
type Result struct {
	Count     int
	Threshold int
	Found     bool
}

// Count returns the number of non-overlapping occurrences of phrase in text,
// scanning left to right. An empty phrase never matches.
func Count(text, phrase string) int {
	if phrase == "" {
		return 0
	}
	return strings.Count(text, phrase)
}

// Evaluate counts phrase in text and compares the count with minOccurrences.
func Evaluate(text, phrase string, minOccurrences int) Result {
	n := Count(text, phrase)
	return Result{
		Count:     n,
		Threshold: minOccurrences,
		Found:     phrase != "" && n >= minOccurrences,
	}
}
