package storage

import "testing"

func TestLikePatternEscapesWildcards(t *testing.T) {
	cases := map[string]string{
		"lagos":    "lagos",
		"50%":      `50\%`,
		"main_st":  `main\_st`,
		`c:\drive`: `c:\\drive`,
		`50%_a\b`:  `50\%\_a\\b`,
		"":         "",
	}
	for in, want := range cases {
		if got := likePattern(in); got != want {
			t.Errorf("likePattern(%q) = %q, want %q", in, got, want)
		}
	}
}
