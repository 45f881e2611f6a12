package textutil

import (
	"regexp"
	"strings"
)

var whitespace = regexp.MustCompile(`\s+`)

// NormalizeFlightNumber strips all whitespace and upper-cases, so "CI 5",
// "ci5" and " Ci 5\t" all compare equal.
func NormalizeFlightNumber(flightNumber string) string {
	return strings.ToUpper(whitespace.ReplaceAllString(flightNumber, ""))
}

// CollapseSpace trims s and folds every whitespace run into one space.
func CollapseSpace(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// TitleCase upper-cases the first letter of every word and lower-cases the rest.
func TitleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
