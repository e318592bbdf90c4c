package scopes

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// ScopeKind discriminates the two ownership boundaries a resource can live in.
type ScopeKind string

const (
	KindPersonal ScopeKind = "personal"
	KindTeam     ScopeKind = "team"
)

// Scope is the ownership boundary that exclusively holds a resource: the
// current user's personal scope, or one of their teams. Scopes compare by
// structural equality.
type Scope struct {
	Kind   ScopeKind `json:"kind"`
	TeamID int64     `json:"team_id,omitempty"`
}

// Personal returns the personal ownership scope.
func Personal() Scope {
	return Scope{Kind: KindPersonal}
}

// TeamScope returns the ownership scope of a specific team.
func TeamScope(teamID int64) Scope {
	return Scope{Kind: KindTeam, TeamID: teamID}
}

// IsPersonal reports whether s is the personal scope.
func (s Scope) IsPersonal() bool {
	return s.Kind == KindPersonal
}

// Equal reports structural equality: personal == personal, team(a) == team(b)
// iff a == b.
func (s Scope) Equal(other Scope) bool {
	if s.Kind != other.Kind {
		return false
	}
	return s.Kind == KindPersonal || s.TeamID == other.TeamID
}

func (s Scope) String() string {
	if s.Kind == KindTeam {
		return fmt.Sprintf("team/%d", s.TeamID)
	}
	return string(KindPersonal)
}

// ParseScope parses the CLI/URL form of a scope: "personal" or "team/<id>".
func ParseScope(raw string) (Scope, error) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" || raw == string(KindPersonal) {
		return Personal(), nil
	}
	if rest, ok := strings.CutPrefix(raw, "team/"); ok {
		id, err := strconv.ParseInt(rest, 10, 64)
		if err != nil || id <= 0 {
			return Scope{}, fmt.Errorf("invalid team id in scope %q", raw)
		}
		return TeamScope(id), nil
	}
	return Scope{}, fmt.Errorf("invalid scope %q", raw)
}

// ResourceKind is the category of a manageable entity.
type ResourceKind string

const (
	KindSource ResourceKind = "source"
	KindTarget ResourceKind = "target"
	KindRoute  ResourceKind = "route"
)

// ResourceRef identifies a resource without saying which scope holds it.
type ResourceRef struct {
	Kind ResourceKind `json:"kind"`
	ID   int64        `json:"id"`
}

func (r ResourceRef) String() string {
	return fmt.Sprintf("%s/%d", r.Kind, r.ID)
}

// Resource is a materialized resource as the scope layer sees it: the stable
// id, the scope whose collection it came from, and the remaining fields.
type Resource struct {
	ID    int64
	Scope Scope
	Data  map[string]any
}

// CollectionAPI is the per-scope resource collection surface the scope layer
// drives. Implementations speak to the console REST API; failures are
// transport errors, distinct from this package's taxonomy.
type CollectionAPI interface {
	List(ctx context.Context, kind ResourceKind, scope Scope) ([]Resource, error)
	Create(ctx context.Context, kind ResourceKind, scope Scope, payload map[string]any) (Resource, error)
	Update(ctx context.Context, kind ResourceKind, scope Scope, id int64, payload map[string]any) (Resource, error)
	Delete(ctx context.Context, kind ResourceKind, scope Scope, id int64) error
}

// Membership is one team the current user belongs to.
type Membership struct {
	ID   int64  `json:"id"`
	Name string `json:"name,omitempty"`
}

// TeamContext supplies the user's team selection state and memberships.
// UserTeams is consulted fresh on every resolution so that membership changes
// are picked up immediately.
type TeamContext interface {
	ActiveTeamID(ctx context.Context) (int64, bool)
	UserTeams(ctx context.Context) ([]Membership, error)
}
