package browser

import (
	"fmt"
	"regexp"
	"strings"
)

// Patterns is a url allow-list. Entries containing '*' are globs where "**"
// matches anything and "*" matches anything but '/', other entries match as
// substrings.
type Patterns struct {
	globs      []*regexp.Regexp
	substrings []string
}

func CompilePatterns(patterns ...string) (*Patterns, error) {
	p := &Patterns{}
	for _, pattern := range patterns {
		if !strings.Contains(pattern, "*") {
			p.substrings = append(p.substrings, pattern)
			continue
		}
		re, err := regexp.Compile(globToRegex(pattern))
		if err != nil {
			return nil, fmt.Errorf("compile pattern '%s': %w", pattern, err)
		}
		p.globs = append(p.globs, re)
	}
	return p, nil
}

func MustCompilePatterns(patterns ...string) *Patterns {
	p, err := CompilePatterns(patterns...)
	if err != nil {
		panic(err)
	}
	return p
}

func globToRegex(glob string) string {
	var b strings.Builder
	b.WriteString("^")
	for i := 0; i < len(glob); i++ {
		if glob[i] != '*' {
			b.WriteString(regexp.QuoteMeta(glob[i : i+1]))
			continue
		}
		if i+1 < len(glob) && glob[i+1] == '*' {
			b.WriteString(".*")
			i++
			continue
		}
		b.WriteString("[^/]*")
	}
	b.WriteString("$")
	return b.String()
}

func (p *Patterns) Match(url string) bool {
	if p == nil {
		return false
	}
	for _, s := range p.substrings {
		if strings.Contains(url, s) {
			return true
		}
	}
	for _, re := range p.globs {
		if re.MatchString(url) {
			return true
		}
	}
	return false
}
