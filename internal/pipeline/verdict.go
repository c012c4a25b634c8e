package pipeline

import (
	"regexp"
	"strings"
)

// Verdict is the decision line of a validation report.
type Verdict string

const (
	VerdictNone Verdict = ""
	VerdictPass Verdict = "PASS"
	VerdictFail Verdict = "FAIL"
)

// Tolerates markdown emphasis around the label, e.g. "**VERDICT:** PASS".
var verdictLine = regexp.MustCompile(`(?im)^[\s>*_#-]*verdict[\s*_]*:[\s*_]*(pass|fail)\b`)

// ParseVerdict returns the last verdict line of a report, or VerdictNone.
func ParseVerdict(report string) Verdict {
	matches := verdictLine.FindAllStringSubmatch(report, -1)
	if len(matches) == 0 {
		return VerdictNone
	}
	return Verdict(strings.ToUpper(matches[len(matches)-1][1]))
}
