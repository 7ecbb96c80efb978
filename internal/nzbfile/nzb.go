// Package nzbfile parses Newznab-namespace NZB documents (with or without
// the default xmlns) into an ordered in-memory model and derives display
// filenames and per-file/per-segment invariants (§3, §4.1 of the spec).
package nzbfile

import (
	"regexp"
	"sort"
	"strings"
)

// NZB is the fully materialized document. total_bytes/total_segments are
// derived, not stored, to keep the invariant (§3) trivially true.
type NZB struct {
	Files []File
}

// TotalBytes sums every file's TotalBytes.
func (n *NZB) TotalBytes() int64 {
	var total int64
	for _, f := range n.Files {
		total += f.TotalBytes()
	}
	return total
}

// TotalSegments sums every file's segment count.
func (n *NZB) TotalSegments() int {
	total := 0
	for _, f := range n.Files {
		total += len(f.Segments)
	}
	return total
}

// File is one <file> element: a poster, a set of newsgroups, and its
// segments kept in ascending Number order after parse.
type File struct {
	Subject  string
	Poster   string
	Date     int64
	Groups   []string
	Segments []Segment
}

// TotalBytes sums the file's segment byte counts.
func (f *File) TotalBytes() int64 {
	var total int64
	for _, s := range f.Segments {
		total += s.Bytes
	}
	return total
}

var (
	yencSuffix  = regexp.MustCompile(`(?i)\s+yenc.*$`)
	leadCounter = regexp.MustCompile(`^\[\d+/\d+\]\s*`)
	badChars    = regexp.MustCompile(`[<>:"/\\|?*]`)
)

// Filename derives the display filename per §3: the substring inside the
// first quoted pair of Subject, else Subject with illegal characters
// stripped and a yEnc/counter suffix trimmed, truncated to 200 chars,
// falling back to "unknown" if nothing usable remains.
func (f *File) Filename() string {
	name := quotedSubstring(f.Subject)
	if name == "" {
		name = f.Subject
		name = yencSuffix.ReplaceAllString(name, "")
		name = leadCounter.ReplaceAllString(name, "")
		name = badChars.ReplaceAllString(name, "")
	} else {
		name = badChars.ReplaceAllString(name, "")
	}

	name = strings.TrimSpace(name)
	if len(name) > 200 {
		name = name[:200]
	}
	if name == "" {
		return "unknown"
	}
	return name
}

// quotedSubstring returns the contents between the first pair of double
// quotes in s, or "" if there is no such pair.
func quotedSubstring(s string) string {
	first := strings.IndexByte(s, '"')
	if first == -1 {
		return ""
	}
	rel := strings.IndexByte(s[first+1:], '"')
	if rel == -1 {
		return ""
	}
	return s[first+1 : first+1+rel]
}

// Segment is one Usenet article representing a byte range of a File.
type Segment struct {
	Number    int
	Bytes     int64
	MessageID string
}

// sortSegments orders a file's segments ascending by Number, as required
// after parse by §3.
func sortSegments(segs []Segment) {
	sort.Slice(segs, func(i, j int) bool { return segs[i].Number < segs[j].Number })
}
