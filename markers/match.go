package markers

import (
	"fmt"
	"strings"
)

// MatchPolicy selects how an expected message is compared with the raised one
type MatchPolicy string

const (
	MatchExact      MatchPolicy = "Exact"
	MatchContains   MatchPolicy = "Contains"
	MatchStartsWith MatchPolicy = "StartsWith"
	MatchEndsWith   MatchPolicy = "EndsWith"
	MatchRegex      MatchPolicy = "Regex"
)

// ParseMatchPolicy parses a policy name case-insensitively. The empty string is Exact.
func ParseMatchPolicy(s string) (MatchPolicy, error) {
	if s == "" {
		return MatchExact, nil
	}
	for _, p := range []MatchPolicy{MatchExact, MatchContains, MatchStartsWith, MatchEndsWith, MatchRegex} {
		if strings.EqualFold(s, string(p)) {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown match policy %q", s)
}

// String implements the Stringer interface for MatchPolicy
func (p MatchPolicy) String() string {
	return string(p)
}
