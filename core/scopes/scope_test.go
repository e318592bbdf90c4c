package scopes

import "testing"

func TestScopeEqual(t *testing.T) {
	if !Personal().Equal(Personal()) {
		t.Fatalf("personal must equal personal")
	}
	if !TeamScope(3).Equal(TeamScope(3)) {
		t.Fatalf("team/3 must equal team/3")
	}
	if TeamScope(3).Equal(TeamScope(4)) {
		t.Fatalf("team/3 must not equal team/4")
	}
	if Personal().Equal(TeamScope(3)) {
		t.Fatalf("personal must not equal a team scope")
	}
}

func TestScopeString(t *testing.T) {
	if got := Personal().String(); got != "personal" {
		t.Fatalf("unexpected personal string: %s", got)
	}
	if got := TeamScope(7).String(); got != "team/7" {
		t.Fatalf("unexpected team string: %s", got)
	}
}

func TestParseScope(t *testing.T) {
	cases := map[string]Scope{
		"personal": Personal(),
		"":         Personal(),
		"team/7":   TeamScope(7),
		" TEAM/7 ": TeamScope(7),
	}
	for raw, want := range cases {
		got, err := ParseScope(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if !got.Equal(want) {
			t.Fatalf("parse %q: expected %s, got %s", raw, want, got)
		}
	}
	for _, raw := range []string{"team/", "team/x", "team/-1", "org/2"} {
		if _, err := ParseScope(raw); err == nil {
			t.Fatalf("expected error parsing %q", raw)
		}
	}
}

func TestResourceRefString(t *testing.T) {
	ref := ResourceRef{Kind: KindSource, ID: 42}
	if got := ref.String(); got != "source/42" {
		t.Fatalf("unexpected ref string: %s", got)
	}
}
