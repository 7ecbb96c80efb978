// Package indexerclient implements §4.8: Newznab search with a
// JSON-or-XML response dispatch and a rate-limited HTTP transport.
// Grounded on the teacher's internal/indexer/newsnab package (the
// Newznab RSS/XML shape, the `t=search` query construction) generalized
// to also accept Newznab's JSON response variant and per-indexer rate
// limiting, both of which the teacher's client didn't need.
package indexerclient

import "time"

// Candidate is one search result returned by an indexer, per spec.md
// §4.8: "{title, nzb_url, size_bytes}".
type Candidate struct {
	Title       string
	NZBURL      string
	SizeBytes   int64
	PublishedAt time.Time
}

// Config describes one configured Newznab indexer.
type Config struct {
	Name        string
	BaseURL     string
	APIPath     string // usually "/api"
	APIKey      string
	Categories  []string
	Priority    int
	Enabled     bool
	RateLimit   time.Duration // minimum interval between requests to this indexer
	InsecureTLS bool          // honors the user's SSL verify preference
}
