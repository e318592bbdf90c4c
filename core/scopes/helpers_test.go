package scopes

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// fakeAPI is an in-memory CollectionAPI that records every call.
type fakeAPI struct {
	mu          sync.Mutex
	collections map[string][]Resource // "<scope>/<kind>" -> items
	listErrs    map[string]error      // "<scope>/<kind>" -> error
	listCalls   []string              // "<scope>/<kind>" in call order
	created     []createCall
	updated     []updateCall
	deleted     []deleteCall
	nextID      int64
}

type createCall struct {
	kind    ResourceKind
	scope   Scope
	payload map[string]any
}

type updateCall struct {
	kind    ResourceKind
	scope   Scope
	id      int64
	payload map[string]any
}

type deleteCall struct {
	kind  ResourceKind
	scope Scope
	id    int64
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		collections: map[string][]Resource{},
		listErrs:    map[string]error{},
		nextID:      100,
	}
}

func collKey(kind ResourceKind, scope Scope) string {
	return fmt.Sprintf("%s/%s", scope, kind)
}

func (f *fakeAPI) put(kind ResourceKind, scope Scope, id int64) {
	f.collections[collKey(kind, scope)] = append(f.collections[collKey(kind, scope)], Resource{ID: id, Scope: scope})
}

func (f *fakeAPI) failList(kind ResourceKind, scope Scope, err error) {
	f.listErrs[collKey(kind, scope)] = err
}

func (f *fakeAPI) List(_ context.Context, kind ResourceKind, scope Scope) ([]Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := collKey(kind, scope)
	f.listCalls = append(f.listCalls, key)
	if err := f.listErrs[key]; err != nil {
		return nil, err
	}
	return f.collections[key], nil
}

func (f *fakeAPI) Create(_ context.Context, kind ResourceKind, scope Scope, payload map[string]any) (Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, createCall{kind: kind, scope: scope, payload: payload})
	f.nextID++
	res := Resource{ID: f.nextID, Scope: scope, Data: payload}
	f.collections[collKey(kind, scope)] = append(f.collections[collKey(kind, scope)], res)
	return res, nil
}

func (f *fakeAPI) Update(_ context.Context, kind ResourceKind, scope Scope, id int64, payload map[string]any) (Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, updateCall{kind: kind, scope: scope, id: id, payload: payload})
	for _, item := range f.collections[collKey(kind, scope)] {
		if item.ID == id {
			return Resource{ID: id, Scope: scope, Data: payload}, nil
		}
	}
	return Resource{}, errors.New("update target missing")
}

func (f *fakeAPI) Delete(_ context.Context, kind ResourceKind, scope Scope, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, deleteCall{kind: kind, scope: scope, id: id})
	key := collKey(kind, scope)
	for i, item := range f.collections[key] {
		if item.ID == id {
			f.collections[key] = append(f.collections[key][:i], f.collections[key][i+1:]...)
			return nil
		}
	}
	return errors.New("delete target missing")
}

func (f *fakeAPI) listCallsFor(kind ResourceKind) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []string{}
	suffix := "/" + string(kind)
	for _, call := range f.listCalls {
		if len(call) >= len(suffix) && call[len(call)-len(suffix):] == suffix {
			out = append(out, call)
		}
	}
	return out
}

// fakeTeams is an in-memory TeamContext.
type fakeTeams struct {
	mu           sync.Mutex
	active       int64
	hasActive    bool
	memberships  []Membership
	teamsErr     error
	teamsFetches int
}

func (f *fakeTeams) ActiveTeamID(context.Context) (int64, bool) {
	return f.active, f.hasActive
}

func (f *fakeTeams) UserTeams(context.Context) ([]Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.teamsFetches++
	if f.teamsErr != nil {
		return nil, f.teamsErr
	}
	return f.memberships, nil
}

func teamsOf(ids ...int64) []Membership {
	out := make([]Membership, 0, len(ids))
	for _, id := range ids {
		out = append(out, Membership{ID: id, Name: fmt.Sprintf("team-%d", id)})
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
