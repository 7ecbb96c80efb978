package scoring

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// regexCache avoids recompiling the same custom-format pattern on every
// scored title; custom formats are long-lived and re-scored constantly
// during a poller cycle.
var (
	regexCacheMu sync.Mutex
	regexCache   = map[string]*regexp.Regexp{}
)

func compileSpec(spec Specification) (*regexp.Regexp, error) {
	pattern := spec.Value
	if strings.Contains(strings.ToLower(spec.Implementation), "resolution") {
		height, err := strconv.Atoi(strings.TrimSpace(spec.Value))
		if err != nil {
			return nil, fmt.Errorf("resolution spec value %q is not an integer height: %w", spec.Value, err)
		}
		pattern = fmt.Sprintf(`\b%dp?\b`, height)
	}

	key := "(?i)" + pattern
	regexCacheMu.Lock()
	defer regexCacheMu.Unlock()
	if re, ok := regexCache[key]; ok {
		return re, nil
	}
	re, err := regexp.Compile(key)
	if err != nil {
		return nil, fmt.Errorf("invalid spec pattern %q: %w", spec.Value, err)
	}
	regexCache[key] = re
	return re, nil
}

// evaluateFormat implements §4.9 steps 1-4: partition required specs
// into positive/negate, evaluate, and contribute the format's score iff
// at least one positive matched, no negate matched, and at least one
// spec was evaluable. A format built entirely of negate specs (no
// positive specs at all, e.g. a pure "flag this codec" rule like S4's
// "x265 ±-50") has nothing else to gate on, so its negate match is
// itself the trigger — otherwise such a format could never contribute.
func evaluateFormat(cf CustomFormat, title string) (matched bool, evaluable bool) {
	var positives, negates []Specification
	for _, spec := range cf.Specifications {
		if !spec.Required {
			continue
		}
		if spec.Negate {
			negates = append(negates, spec)
		} else {
			positives = append(positives, spec)
		}
	}

	anyPositive := false
	for _, spec := range positives {
		re, err := compileSpec(spec)
		if err != nil {
			continue
		}
		evaluable = true
		if re.MatchString(title) {
			anyPositive = true
		}
	}

	anyNegateMatched := false
	for _, spec := range negates {
		re, err := compileSpec(spec)
		if err != nil {
			continue
		}
		evaluable = true
		if re.MatchString(title) {
			anyNegateMatched = true
		}
	}

	if len(positives) == 0 && len(negates) > 0 {
		return anyNegateMatched, evaluable
	}
	return anyPositive && !anyNegateMatched, evaluable
}

// ScoreRelease implements §4.9 score_release: sums every custom format
// that matches title, and builds the "<name> ±<score>" breakdown
// string, comma-joined, "-" when empty.
func ScoreRelease(title string, instance Instance) (int, string) {
	total := 0
	var parts []string
	for _, cf := range instance.CustomFormats {
		matched, evaluable := evaluateFormat(cf, title)
		if !evaluable || !matched {
			continue
		}
		total += cf.Score
		sign := "+"
		if cf.Score < 0 {
			sign = ""
		}
		parts = append(parts, fmt.Sprintf("%s %s%d", cf.Name, sign, cf.Score))
	}
	if len(parts) == 0 {
		return total, "-"
	}
	return total, strings.Join(parts, ", ")
}
