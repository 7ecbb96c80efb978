package scoring

import "strings"

var resolutionTokens = []string{"2160", "1080", "720", "480", "sdtv"}

// sourceToken is one recognized release-source token and the literal
// substrings that count as a match for it.
type sourceToken struct {
	name     string
	aliases  []string
	excludes []string
}

var sourceTokens = []sourceToken{
	{name: "web", aliases: []string{"web"}},
	{name: "bluray", aliases: []string{"bluray", "blu-ray", "brrip", "bdrip"}},
	{name: "hdtv", aliases: []string{"hdtv"}},
	{name: "remux", aliases: []string{"remux"}},
	{name: "dvd", aliases: []string{"dvd"}, excludes: []string{"dvdscr"}},
}

// matchesTier implements §4.9a: the tier name lowercased and tokenized
// must find a resolution token (if named) plus a source token in the
// title; "unknown" matches everything.
func matchesTier(tierName, title string) bool {
	lowerTier := strings.ToLower(tierName)
	if lowerTier == "unknown" {
		return true
	}
	lowerTitle := strings.ToLower(title)

	wantRes := ""
	for _, tok := range resolutionTokens {
		if strings.Contains(lowerTier, tok) {
			wantRes = tok
			break
		}
	}
	if wantRes != "" && !strings.Contains(lowerTitle, wantRes) {
		return false
	}

	wantSource := (*sourceToken)(nil)
	for i := range sourceTokens {
		for _, alias := range sourceTokens[i].aliases {
			if strings.Contains(lowerTier, alias) {
				wantSource = &sourceTokens[i]
				break
			}
		}
		if wantSource != nil {
			break
		}
	}
	if wantSource == nil {
		return true
	}

	matched := false
	for _, alias := range wantSource.aliases {
		if strings.Contains(lowerTitle, alias) {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}
	for _, excl := range wantSource.excludes {
		if strings.Contains(lowerTitle, excl) {
			return false
		}
	}
	return true
}

// enabledTierNames returns the names of every enabled tier in profile.
func enabledTierNames(profile Profile) []string {
	var names []string
	for _, t := range profile.Tiers {
		if t.Enabled {
			names = append(names, t.Name)
		}
	}
	return names
}

// MatchesAnyEnabledTier reports whether title matches at least one of
// profile's enabled quality tiers.
func MatchesAnyEnabledTier(title string, profile Profile) bool {
	for _, name := range enabledTierNames(profile) {
		if matchesTier(name, title) {
			return true
		}
	}
	return false
}
