// Package semver parses and orders semantic version strings per SemVer 2.0.0.
//
// Parsing is lenient about an optional leading "v" and ignores build
// metadata; everything else follows the specification, including full
// prerelease precedence. Invalid strings parse to nil rather than erroring
// so callers can filter them out of ordering operations.
package semver

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var semverRe = regexp.MustCompile(
	`^\s*v?(0|[1-9]\d*)\.(0|[1-9]\d*)\.(0|[1-9]\d*)` +
		`(?:-((?:0|[1-9]\d*|[a-zA-Z-][0-9a-zA-Z-]*)(?:\.(?:0|[1-9]\d*|[a-zA-Z-][0-9a-zA-Z-]*))*))?` +
		`(?:\+([0-9a-zA-Z-]+(?:\.[0-9a-zA-Z-]+)*))?\s*$`)

// Version is a parsed semantic version. Original preserves the input string
// for display and round-tripping through sort operations.
type Version struct {
	Major      int
	Minor      int
	Patch      int
	Prerelease []string
	Original   string
}

// Parse parses a version string into a Version.
// Returns nil if the string is not a valid semantic version.
func Parse(s string) *Version {
	m := semverRe.FindStringSubmatch(s)
	if m == nil {
		return nil
	}

	major, _ := strconv.Atoi(m[1])
	minor, _ := strconv.Atoi(m[2])
	patch, _ := strconv.Atoi(m[3])

	var prerelease []string
	if m[4] != "" {
		prerelease = strings.Split(m[4], ".")
	}

	return &Version{
		Major:      major,
		Minor:      minor,
		Patch:      patch,
		Prerelease: prerelease,
		Original:   s,
	}
}

// Compare orders two versions per SemVer 2.0.0 precedence.
// Returns -1 if a < b, 0 if equal, 1 if a > b.
func Compare(a, b *Version) int {
	if a.Major != b.Major {
		return cmpInt(a.Major, b.Major)
	}
	if a.Minor != b.Minor {
		return cmpInt(a.Minor, b.Minor)
	}
	if a.Patch != b.Patch {
		return cmpInt(a.Patch, b.Patch)
	}

	// A release outranks any prerelease of the same core version.
	if len(a.Prerelease) == 0 && len(b.Prerelease) > 0 {
		return 1
	}
	if len(a.Prerelease) > 0 && len(b.Prerelease) == 0 {
		return -1
	}

	for i := 0; i < len(a.Prerelease) && i < len(b.Prerelease); i++ {
		if c := cmpIdentifier(a.Prerelease[i], b.Prerelease[i]); c != 0 {
			return c
		}
	}

	// All shared identifiers equal: the shorter prerelease has lower precedence.
	return cmpInt(len(a.Prerelease), len(b.Prerelease))
}

// cmpIdentifier compares two prerelease identifiers: numeric identifiers
// compare numerically, alphanumeric ones lexically by ASCII, and a numeric
// identifier always ranks below an alphanumeric one.
func cmpIdentifier(a, b string) int {
	aNum, aIsNum := parseNumeric(a)
	bNum, bIsNum := parseNumeric(b)

	switch {
	case aIsNum && bIsNum:
		return cmpInt(aNum, bNum)
	case aIsNum:
		return -1
	case bIsNum:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

func parseNumeric(s string) (int, bool) {
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// SortDesc sorts version strings descending by SemVer precedence (highest
// first) and returns the original string tokens in that order.
// Unparseable strings are silently dropped; the sort is stable.
func SortDesc(versions []string) []string {
	type entry struct {
		parsed *Version
		raw    string
	}

	parsed := make([]entry, 0, len(versions))
	for _, v := range versions {
		if sv := Parse(v); sv != nil {
			parsed = append(parsed, entry{parsed: sv, raw: v})
		}
	}

	sort.SliceStable(parsed, func(i, j int) bool {
		return Compare(parsed[i].parsed, parsed[j].parsed) > 0
	})

	out := make([]string, len(parsed))
	for i, e := range parsed {
		out[i] = e.raw
	}
	return out
}

// Max returns the highest valid semantic version from the list.
// The second return is false when no input parses.
func Max(versions []string) (string, bool) {
	ordered := SortDesc(versions)
	if len(ordered) == 0 {
		return "", false
	}
	return ordered[0], true
}

// BumpPatch increments the patch component of a version string.
func BumpPatch(v string) (string, error) {
	sv := Parse(v)
	if sv == nil {
		return "", fmt.Errorf("not a semantic version: %q", v)
	}
	return fmt.Sprintf("%d.%d.%d", sv.Major, sv.Minor, sv.Patch+1), nil
}
