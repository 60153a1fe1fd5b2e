package github

import (
	"regexp"
	"strconv"
)

// closingRefPattern mirrors GitHub's own issue-closing keyword grammar:
// close/fix/resolve forms followed by #<number>, case-insensitive,
// repeatable anywhere in the body.
var closingRefPattern = regexp.MustCompile(`(?i)\b(?:close[sd]?|fix(?:e[sd])?|resolve[sd]?)\s*:?\s+#(\d+)`)

// ParseClosingRefs extracts the de-duplicated issue numbers a PR body
// declares it closes, in order of first appearance.
func ParseClosingRefs(body string) []int {
	matches := closingRefPattern.FindAllStringSubmatch(body, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[int]struct{}, len(matches))
	var refs []int
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		refs = append(refs, n)
	}
	return refs
}
