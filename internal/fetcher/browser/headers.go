// Package browser builds request headers that look like a desktop browser.
package browser

import (
	"math/rand/v2"
	"net/http"
	"time"
)

// UserAgents is the rotation pool for the User-Agent header.
var UserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:124.0) Gecko/20100101 Firefox/124.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
}

// Accept-Encoding is left to the transport so responses are decompressed for us.
var staticHeaders = map[string]string{
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.9",
	"Upgrade-Insecure-Requests": "1",
	"Sec-Fetch-Dest":            "document",
	"Sec-Fetch-Mode":            "navigate",
	"Sec-Fetch-Site":            "none",
	"Sec-Fetch-User":            "?1",
	"Cache-Control":             "max-age=0",
}

// Profile generates randomized header sets and human-like pauses.
type Profile struct {
	intN func(n int) int
}

// NewProfile returns a Profile backed by math/rand/v2.
func NewProfile() *Profile {
	return &Profile{intN: rand.IntN}
}

// NewProfileWithSource is NewProfile with a caller-supplied random source.
func NewProfileWithSource(intN func(n int) int) *Profile {
	return &Profile{intN: intN}
}

// UserAgent picks one entry of UserAgents.
func (p *Profile) UserAgent() string {
	return UserAgents[p.intN(len(UserAgents))]
}

// Headers returns a fresh header set with a randomly chosen User-Agent.
func (p *Profile) Headers() http.Header {
	h := make(http.Header, len(staticHeaders)+1)
	for k, v := range staticHeaders {
		h.Set(k, v)
	}
	h.Set("User-Agent", p.UserAgent())
	return h
}

// Delay returns a uniformly random duration in [lo, hi].
func (p *Profile) Delay(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	span := int(hi-lo) / int(time.Millisecond)
	if span <= 0 {
		return lo
	}
	return lo + time.Duration(p.intN(span+1))*time.Millisecond
}
