package monitor

import "errors"

// ErrUnexpectedStatus is returned when the page answers with a non-2xx status
// after retries are exhausted.
var ErrUnexpectedStatus = errors.New("unexpected status code")

// ErrEmptyPhrase is returned when a checker is built without a phrase.
var ErrEmptyPhrase = errors.New("search phrase must not be empty")
