package scopes

import (
	"context"
	"errors"
	"testing"
)

func TestResolveScopePersonalShortCircuits(t *testing.T) {
	api := newFakeAPI()
	api.put(KindSource, Personal(), 42)
	teams := &fakeTeams{active: 9, hasActive: true, memberships: teamsOf(7, 9)}
	prober := NewProber(api, teams, nil)

	scope, err := prober.ResolveScope(context.Background(), KindSource, 42)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !scope.Equal(Personal()) {
		t.Fatalf("expected personal scope, got %s", scope)
	}
	want := []string{"personal/source"}
	if got := api.listCallsFor(KindSource); !equalStrings(got, want) {
		t.Fatalf("expected exactly one personal fetch, got %v", got)
	}
	if teams.teamsFetches != 0 {
		t.Fatalf("personal hit must not fetch memberships, got %d fetches", teams.teamsFetches)
	}
}

func TestResolveScopeActiveTeamProbedSecond(t *testing.T) {
	api := newFakeAPI()
	api.put(KindTarget, TeamScope(9), 5)
	teams := &fakeTeams{active: 9, hasActive: true, memberships: teamsOf(7, 9)}
	prober := NewProber(api, teams, nil)

	scope, err := prober.ResolveScope(context.Background(), KindTarget, 5)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !scope.Equal(TeamScope(9)) {
		t.Fatalf("expected team/9, got %s", scope)
	}
	want := []string{"personal/target", "team/9/target"}
	if got := api.listCallsFor(KindTarget); !equalStrings(got, want) {
		t.Fatalf("unexpected probe order: %v", got)
	}
}

func TestResolveScopeFullEnumerationInMembershipOrder(t *testing.T) {
	api := newFakeAPI()
	api.put(KindSource, TeamScope(3), 77)
	teams := &fakeTeams{memberships: teamsOf(1, 2, 3)}
	prober := NewProber(api, teams, nil)

	scope, err := prober.ResolveScope(context.Background(), KindSource, 77)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !scope.Equal(TeamScope(3)) {
		t.Fatalf("expected team/3, got %s", scope)
	}
	want := []string{"personal/source", "team/1/source", "team/2/source", "team/3/source"}
	if got := api.listCallsFor(KindSource); !equalStrings(got, want) {
		t.Fatalf("unexpected probe order: %v", got)
	}
}

func TestResolveScopeSkipsActiveTeamInEnumeration(t *testing.T) {
	api := newFakeAPI()
	api.put(KindSource, TeamScope(7), 42)
	teams := &fakeTeams{active: 9, hasActive: true, memberships: teamsOf(7, 9)}
	prober := NewProber(api, teams, nil)

	scope, err := prober.ResolveScope(context.Background(), KindSource, 42)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !scope.Equal(TeamScope(7)) {
		t.Fatalf("expected team/7, got %s", scope)
	}
	want := []string{"personal/source", "team/9/source", "team/7/source"}
	if got := api.listCallsFor(KindSource); !equalStrings(got, want) {
		t.Fatalf("unexpected probe order: %v", got)
	}
}

func TestResolveScopeExhaustionFailsNotFound(t *testing.T) {
	api := newFakeAPI()
	teams := &fakeTeams{memberships: teamsOf(1, 2, 3)}
	prober := NewProber(api, teams, nil)

	_, err := prober.ResolveScope(context.Background(), KindRoute, 404)
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if notFound.Kind != KindRoute || notFound.ID != 404 {
		t.Fatalf("unexpected error detail: %v", notFound)
	}
	if got := api.listCallsFor(KindRoute); len(got) != 4 {
		t.Fatalf("expected all four scopes probed before failing, got %v", got)
	}
}

func TestResolveScopeTransientTeamFailureContinues(t *testing.T) {
	api := newFakeAPI()
	api.failList(KindSource, TeamScope(1), errors.New("connection reset"))
	api.put(KindSource, TeamScope(2), 11)
	teams := &fakeTeams{memberships: teamsOf(1, 2)}
	prober := NewProber(api, teams, nil)

	scope, err := prober.ResolveScope(context.Background(), KindSource, 11)
	if err != nil {
		t.Fatalf("resolve should survive one failed team probe: %v", err)
	}
	if !scope.Equal(TeamScope(2)) {
		t.Fatalf("expected team/2, got %s", scope)
	}
}

func TestResolveScopeAllTeamProbesFailDegradesToNotFound(t *testing.T) {
	api := newFakeAPI()
	api.failList(KindSource, TeamScope(1), errors.New("timeout"))
	api.failList(KindSource, TeamScope(2), errors.New("timeout"))
	teams := &fakeTeams{memberships: teamsOf(1, 2)}
	prober := NewProber(api, teams, nil)

	_, err := prober.ResolveScope(context.Background(), KindSource, 11)
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError when every team probe fails, got %v", err)
	}
}

func TestResolveScopeActiveTeamFailureRetriedInEnumeration(t *testing.T) {
	api := newFakeAPI()
	api.put(KindSource, TeamScope(9), 8)
	teams := &fakeTeams{active: 9, hasActive: true, memberships: teamsOf(7, 9)}

	// the active-team probe fails transiently; the membership walk must
	// probe team 9 again and find the resource
	calls := 0
	shim := &failOnceAPI{inner: api, failKey: collKey(KindSource, TeamScope(9)), calls: &calls}
	prober := NewProber(shim, teams, nil)

	scope, err := prober.ResolveScope(context.Background(), KindSource, 8)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !scope.Equal(TeamScope(9)) {
		t.Fatalf("expected team/9 on second attempt, got %s", scope)
	}
}

func TestResolveScopeMembershipFetchErrorPropagates(t *testing.T) {
	api := newFakeAPI()
	teams := &fakeTeams{teamsErr: errors.New("directory down")}
	prober := NewProber(api, teams, nil)

	_, err := prober.ResolveScope(context.Background(), KindSource, 1)
	if err == nil || errors.As(err, new(*NotFoundError)) {
		t.Fatalf("membership fetch failure must propagate, got %v", err)
	}
}

func TestResolveScopePersonalFetchErrorPropagates(t *testing.T) {
	api := newFakeAPI()
	api.failList(KindSource, Personal(), errors.New("503"))
	teams := &fakeTeams{memberships: teamsOf(1)}
	prober := NewProber(api, teams, nil)

	_, err := prober.ResolveScope(context.Background(), KindSource, 1)
	if err == nil || errors.As(err, new(*NotFoundError)) {
		t.Fatalf("personal fetch failure must propagate as transport error, got %v", err)
	}
}

func TestResolveScopeIdempotentAgainstUnchangedData(t *testing.T) {
	api := newFakeAPI()
	api.put(KindTarget, TeamScope(2), 50)
	teams := &fakeTeams{memberships: teamsOf(1, 2)}
	prober := NewProber(api, teams, nil)

	first, err := prober.ResolveScope(context.Background(), KindTarget, 50)
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	second, err := prober.ResolveScope(context.Background(), KindTarget, 50)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if !first.Equal(second) {
		t.Fatalf("resolutions disagree: %s vs %s", first, second)
	}
	// membership is fetched fresh on each resolution, never cached
	if teams.teamsFetches != 2 {
		t.Fatalf("expected two membership fetches, got %d", teams.teamsFetches)
	}
}

// failOnceAPI fails the first List on failKey and delegates afterwards.
type failOnceAPI struct {
	inner   *fakeAPI
	failKey string
	calls   *int
}

func (f *failOnceAPI) List(ctx context.Context, kind ResourceKind, scope Scope) ([]Resource, error) {
	if collKey(kind, scope) == f.failKey {
		*f.calls++
		if *f.calls == 1 {
			return nil, errors.New("flaky")
		}
	}
	return f.inner.List(ctx, kind, scope)
}

func (f *failOnceAPI) Create(ctx context.Context, kind ResourceKind, scope Scope, payload map[string]any) (Resource, error) {
	return f.inner.Create(ctx, kind, scope, payload)
}

func (f *failOnceAPI) Update(ctx context.Context, kind ResourceKind, scope Scope, id int64, payload map[string]any) (Resource, error) {
	return f.inner.Update(ctx, kind, scope, id, payload)
}

func (f *failOnceAPI) Delete(ctx context.Context, kind ResourceKind, scope Scope, id int64) error {
	return f.inner.Delete(ctx, kind, scope, id)
}
