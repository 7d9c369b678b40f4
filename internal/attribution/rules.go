package attribution

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/reviewfang/pkg/plumbing"
)

// LinkRule extracts a PR number from a commit message. Rules are evaluated
// in table order; the first extracting rule whose PR survives the window
// filter wins.
type LinkRule struct {
	// Name identifies the rule in logs and tests.
	Name string

	// Source is the attribution source recorded on a match.
	Source plumbing.AttributionSource

	// SubjectOnly restricts matching to the first message line.
	SubjectOnly bool

	pattern *regexp.Regexp
}

// Match extracts the referenced PR number, reporting whether the rule
// applies to the message.
func (r *LinkRule) Match(message string) (int, bool) {
	text := message
	if r.SubjectOnly {
		if idx := strings.IndexByte(text, '\n'); idx >= 0 {
			text = text[:idx]
		}
	}

	groups := r.pattern.FindStringSubmatch(text)
	if groups == nil {
		return 0, false
	}

	number, err := strconv.Atoi(groups[1])
	if err != nil || number <= 0 {
		return 0, false
	}

	return number, true
}

// DefaultRules is the ordered linkage rule table. Merge-message and
// trailing-marker forms come first, then closes/fixes annotations. Literal
// merge-commit sha equality is not a message rule and runs after the table.
func DefaultRules() []LinkRule {
	return []LinkRule{
		{
			Name:    "merge-message",
			Source:  plumbing.SourceCommitMessage,
			pattern: regexp.MustCompile(`^Merge (?:pull request|PR) #(\d+)`),
		},
		{
			Name:        "trailing-marker",
			Source:      plumbing.SourceCommitMessage,
			SubjectOnly: true,
			pattern:     regexp.MustCompile(`\(#(\d+)\)\s*$`),
		},
		{
			Name:    "autolink",
			Source:  plumbing.SourceAutolink,
			pattern: regexp.MustCompile(`(?i)\b(?:close[sd]?|fix(?:e[sd])?|resolve[sd]?)\s+#(\d+)\b`),
		},
	}
}
