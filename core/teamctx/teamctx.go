// Package teamctx holds the user-interface scope selection (current scope,
// active team) and binds it to a team directory so the scope layer sees one
// TeamContext.
package teamctx

import (
	"context"
	"sync"

	"github.com/relaydeck/relaydeck/core/scopes"
)

// Selection is the mutable scope selection state. It is safe for concurrent
// use; the scope layer only reads it.
type Selection struct {
	mu        sync.RWMutex
	current   scopes.Scope
	active    int64
	hasActive bool
}

// NewSelection starts in the personal scope with no active team.
func NewSelection() *Selection {
	return &Selection{current: scopes.Personal()}
}

// SetScope records the scope the user is currently viewing. Selecting a team
// scope also makes that team the active team.
func (s *Selection) SetScope(scope scopes.Scope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = scope
	if scope.Kind == scopes.KindTeam {
		s.active = scope.TeamID
		s.hasActive = true
	}
}

// SetActiveTeam marks a team as active without changing the viewed scope.
func (s *Selection) SetActiveTeam(teamID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = teamID
	s.hasActive = true
}

// ClearActiveTeam drops the active team.
func (s *Selection) ClearActiveTeam() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = 0
	s.hasActive = false
}

// CurrentScope returns the scope the user is viewing.
func (s *Selection) CurrentScope() scopes.Scope {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// ActiveTeamID returns the active team, if one is selected.
func (s *Selection) ActiveTeamID() (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active, s.hasActive
}

// Directory lists the current user's team memberships in order.
type Directory interface {
	UserTeams(ctx context.Context) ([]scopes.Membership, error)
}

// Context adapts a Selection plus a Directory into the scope layer's
// TeamContext. Memberships are fetched through the directory on every call,
// never cached, so membership changes take effect immediately.
type Context struct {
	selection *Selection
	directory Directory
}

// NewContext binds a selection to a membership directory.
func NewContext(selection *Selection, directory Directory) *Context {
	return &Context{selection: selection, directory: directory}
}

func (c *Context) ActiveTeamID(context.Context) (int64, bool) {
	return c.selection.ActiveTeamID()
}

func (c *Context) UserTeams(ctx context.Context) ([]scopes.Membership, error) {
	return c.directory.UserTeams(ctx)
}

// Static is a fixed TeamContext for CLI flags and tests.
type Static struct {
	Active      int64
	HasActive   bool
	Memberships []scopes.Membership
}

func (s Static) ActiveTeamID(context.Context) (int64, bool) {
	return s.Active, s.HasActive
}

func (s Static) UserTeams(context.Context) ([]scopes.Membership, error) {
	return s.Memberships, nil
}
