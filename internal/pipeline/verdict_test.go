package pipeline

import "testing"

func TestParseVerdict(t *testing.T) {
	cases := []struct {
		name   string
		report string
		want   Verdict
	}{
		{"plain", "Looks good.\nVERDICT: PASS\n", VerdictPass},
		{"lowercase", "verdict: fail", VerdictFail},
		{"bold label", "Summary\n\n**VERDICT:** FAIL", VerdictFail},
		{"quoted heading", "> ## Verdict: Pass", VerdictPass},
		{"last wins", "VERDICT: FAIL\nrevised after fixes\nVERDICT: PASS", VerdictPass},
		{"inline mention ignored", "The VERDICT: PASS line is required.", VerdictNone},
		{"missing", "No decision yet.", VerdictNone},
		{"partial word", "VERDICT: PASSABLE", VerdictNone},
	}
	for _, tc := range cases {
		if got := ParseVerdict(tc.report); got != tc.want {
			t.Fatalf("%s: got %q want %q", tc.name, got, tc.want)
		}
	}
}
