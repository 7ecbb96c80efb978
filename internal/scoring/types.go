// Package scoring implements the custom-format and quality-profile
// matching rules: §4.9 of the release scoring system. It is pure
// evaluation over caller-supplied title strings — no network or disk
// I/O — so it is grounded in the teacher's plain-struct domain types
// rather than any single package (the teacher has no analogous
// component; the shapes below come straight from spec.md §3/§4.9).
package scoring

// Specification is one rule within a CustomFormat.
type Specification struct {
	Implementation string // e.g. "ResolutionSpec", "ReleaseTitleSpec"
	Required       bool
	Negate         bool
	Value          string // regex, or an integer height when Implementation mentions "resolution"
}

// CustomFormat is a user-authored scoring rule.
type CustomFormat struct {
	Name           string
	Score          int
	Specifications []Specification
}

// QualityTier is one entry in a Profile's ordered tier list.
type QualityTier struct {
	ID      string
	Name    string
	Enabled bool
	Order   int
}

// Profile mirrors spec.md §3's Quality Profile.
type Profile struct {
	Tiers                         []QualityTier
	UpgradesAllowed               bool
	UpgradeUntilQuality           string
	MinCustomFormatScore          int
	UpgradeUntilCustomFormatScore int
	UpgradeScoreIncrement         int
	Language                      string
}

// Instance bundles the custom formats evaluated for one instance_id.
type Instance struct {
	CustomFormats []CustomFormat
}

// Candidate is a release up for scoring — the subset of an indexer
// search result scoring cares about.
type Candidate struct {
	Title string
}
