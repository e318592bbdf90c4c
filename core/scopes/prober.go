package scopes

import (
	"context"
	"fmt"

	"github.com/relaydeck/relaydeck/core/infra/logging"
	"github.com/relaydeck/relaydeck/core/infra/metrics"
)

const proberComponent = "prober"

// Prober discovers which ownership scope holds a resource when only its kind
// and id are known. Probes are ordered cheapest-first and short-circuit on
// the first hit: personal, then the active team, then every remaining team in
// membership order. Nothing is cached; identical probes pay the full cost.
type Prober struct {
	api     CollectionAPI
	teams   TeamContext
	metrics metrics.ProbeMetrics
}

// NewProber returns a Prober over the given collection API and team context.
// A nil ProbeMetrics defaults to a no-op implementation.
func NewProber(api CollectionAPI, teams TeamContext, m metrics.ProbeMetrics) *Prober {
	if m == nil {
		m = metrics.Noop{}
	}
	return &Prober{api: api, teams: teams, metrics: m}
}

// ResolveScope returns the scope whose collection contains (kind, id), or a
// *NotFoundError once every accessible scope has been searched.
//
// A failed fetch of one team's collection is logged and treated as "no match
// in that team"; the remaining teams are still searched. Only when every
// scope has been exhausted does the resolution fail, and it fails as
// not-found regardless of how many team probes errored.
func (p *Prober) ResolveScope(ctx context.Context, kind ResourceKind, id int64) (Scope, error) {
	found, err := p.probe(ctx, kind, id, Personal())
	if err != nil {
		return Scope{}, fmt.Errorf("probe personal scope: %w", err)
	}
	if found {
		return Personal(), nil
	}

	activeID, hasActive := p.teams.ActiveTeamID(ctx)
	if hasActive {
		found, err := p.probe(ctx, kind, id, TeamScope(activeID))
		if err != nil {
			// the membership walk below covers the active team again
			p.recordTeamFailure(kind, activeID, err)
			hasActive = false
		} else if found {
			return TeamScope(activeID), nil
		}
	}

	memberships, err := p.teams.UserTeams(ctx)
	if err != nil {
		return Scope{}, fmt.Errorf("list user teams: %w", err)
	}
	for _, team := range memberships {
		if hasActive && team.ID == activeID {
			continue // already probed as the active team
		}
		found, err := p.probe(ctx, kind, id, TeamScope(team.ID))
		if err != nil {
			p.recordTeamFailure(kind, team.ID, err)
			continue
		}
		if found {
			return TeamScope(team.ID), nil
		}
	}

	p.metrics.IncNotFound(string(kind))
	return Scope{}, &NotFoundError{Kind: kind, ID: id}
}

// probe lists one scope's collection and searches it for id.
func (p *Prober) probe(ctx context.Context, kind ResourceKind, id int64, scope Scope) (bool, error) {
	p.metrics.IncProbe(string(kind), string(scope.Kind))
	items, err := p.api.List(ctx, kind, scope)
	if err != nil {
		return false, err
	}
	for _, item := range items {
		if item.ID == id {
			p.metrics.IncProbeHit(string(kind), string(scope.Kind))
			return true, nil
		}
	}
	return false, nil
}

func (p *Prober) recordTeamFailure(kind ResourceKind, teamID int64, err error) {
	probeErr := &TransientProbeError{TeamID: teamID, Err: err}
	logging.Warn(proberComponent, "team probe failed, continuing", "kind", kind, "team", teamID, "error", probeErr)
	p.metrics.IncProbeFailure(string(kind))
}
