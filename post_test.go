package magstand

import (
	"strings"
	"testing"
)

func TestNormalizeDefaults(t *testing.T) {
	p := RawPost{ID: 7}.Normalize()
	if p.Category != DefaultCategory {
		t.Errorf("Category = %q, want %q", p.Category, DefaultCategory)
	}
	if p.MembershipLevel != TierUnassigned {
		t.Errorf("MembershipLevel = %d, want unassigned", p.MembershipLevel)
	}
	if p.Views != 0 {
		t.Errorf("Views = %d, want 0", p.Views)
	}
	if p.Saved {
		t.Error("remote records never arrive saved")
	}
}

func TestNormalizeKeepsDeclaredTier(t *testing.T) {
	level := TierLogin
	p := RawPost{ID: 1, MembershipLevel: &level}.Normalize()
	if p.MembershipLevel != TierLogin {
		t.Errorf("MembershipLevel = %d, want %d", p.MembershipLevel, TierLogin)
	}

	bogus := 9
	p = RawPost{ID: 2, MembershipLevel: &bogus}.Normalize()
	if p.MembershipLevel != TierUnassigned {
		t.Errorf("out-of-range tier should normalize to unassigned, got %d", p.MembershipLevel)
	}
}

func TestParseTimestampLayouts(t *testing.T) {
	cases := []struct {
		in   string
		zero bool
	}{
		{"2024-01-15T10:30:00Z", false},
		{"2024-01-15T10:30:00", false},
		{"2024-01-15 10:30:00", false},
		{"2024-01-15", false},
		{"", true},
		{"not-a-date", true},
	}
	for _, tc := range cases {
		got := parseTimestamp(tc.in)
		if tc.zero && got != 0 {
			t.Errorf("parseTimestamp(%q) = %d, want 0", tc.in, got)
		}
		if !tc.zero && got == 0 {
			t.Errorf("parseTimestamp(%q) = 0, want parsed", tc.in)
		}
	}
}

func TestParseTimestampOrdering(t *testing.T) {
	early := parseTimestamp("2024-01-01T10:00:00")
	late := parseTimestamp("2024-02-01T10:00:00")
	if early >= late {
		t.Errorf("ordering broken: %d >= %d", early, late)
	}
}

func TestTeaserStripsTagsAndTruncates(t *testing.T) {
	p := Post{Content: "<p>" + strings.Repeat("word ", 100) + "</p>"}
	teaser := p.Teaser(40)
	if strings.Contains(teaser, "<") {
		t.Errorf("teaser contains markup: %q", teaser)
	}
	if len([]rune(teaser)) > 41 { // 40 + ellipsis
		t.Errorf("teaser too long: %d runes", len([]rune(teaser)))
	}
	if !strings.HasSuffix(teaser, "…") {
		t.Errorf("truncated teaser should end with ellipsis: %q", teaser)
	}
}

func TestTeaserFallsBackToExcerpt(t *testing.T) {
	p := Post{Excerpt: "<em>short excerpt</em>"}
	if got := p.Teaser(100); got != "short excerpt" {
		t.Errorf("Teaser = %q, want %q", got, "short excerpt")
	}
}

func TestTeaserShortContentUntouched(t *testing.T) {
	p := Post{Content: "tiny"}
	if got := p.Teaser(100); got != "tiny" {
		t.Errorf("Teaser = %q, want %q", got, "tiny")
	}
}
