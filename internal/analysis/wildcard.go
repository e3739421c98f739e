package analysis

import (
	"regexp"
	"strings"
)

// ipMatcher matches one IP pattern. A pattern containing * becomes an
// anchored case-insensitive regexp with * standing for any substring;
// if the regexp fails to compile the pattern degrades to exact
// string comparison instead of failing the whole filter.
type ipMatcher struct {
	re    *regexp.Regexp
	exact string
}

func newIPMatcher(pattern string) ipMatcher {
	expr := "^" + strings.ReplaceAll(regexp.QuoteMeta(pattern), `\*`, `.*`) + "$"
	re, err := regexp.Compile("(?i)" + expr)
	if err != nil {
		return ipMatcher{exact: pattern}
	}
	return ipMatcher{re: re}
}

func (m ipMatcher) match(ip string) bool {
	if m.re != nil {
		return m.re.MatchString(ip)
	}
	return strings.EqualFold(m.exact, ip)
}

// parseIPPatterns splits a comma-separated pattern list into matchers,
// dropping empty entries.
func parseIPPatterns(list string) []ipMatcher {
	var out []ipMatcher
	for _, p := range strings.Split(list, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, newIPMatcher(p))
	}
	return out
}

func matchAny(matchers []ipMatcher, ip string) bool {
	for _, m := range matchers {
		if m.match(ip) {
			return true
		}
	}
	return false
}
