package scopes

import (
	"errors"
	"testing"
)

func TestValidateRouteEndpoints(t *testing.T) {
	cases := []struct {
		name    string
		source  Scope
		target  Scope
		want    Scope
		wantErr string
	}{
		{name: "personal pair", source: Personal(), target: Personal(), want: Personal()},
		{name: "same team", source: TeamScope(1), target: TeamScope(1), want: TeamScope(1)},
		{name: "personal vs team", source: Personal(), target: TeamScope(1), wantErr: "scope"},
		{name: "team vs personal", source: TeamScope(1), target: Personal(), wantErr: "scope"},
		{name: "different teams", source: TeamScope(1), target: TeamScope(2), wantErr: "team"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ValidateRouteEndpoints(tc.source, tc.target)
			switch tc.wantErr {
			case "":
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if !got.Equal(tc.want) {
					t.Fatalf("expected %s, got %s", tc.want, got)
				}
			case "scope":
				var mismatch *ScopeMismatchError
				if !errors.As(err, &mismatch) {
					t.Fatalf("expected ScopeMismatchError, got %v", err)
				}
			case "team":
				var mismatch *TeamMismatchError
				if !errors.As(err, &mismatch) {
					t.Fatalf("expected TeamMismatchError, got %v", err)
				}
			}
		})
	}
}

func TestTeamMismatchErrorDetail(t *testing.T) {
	_, err := ValidateRouteEndpoints(TeamScope(1), TeamScope(2))
	var mismatch *TeamMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected TeamMismatchError, got %v", err)
	}
	if mismatch.SourceTeam != 1 || mismatch.TargetTeam != 2 {
		t.Fatalf("unexpected teams on error: %+v", mismatch)
	}
}
