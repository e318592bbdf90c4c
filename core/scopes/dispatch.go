package scopes

import (
	"context"
	"fmt"

	"github.com/relaydeck/relaydeck/core/infra/logging"
)

const dispatchComponent = "dispatch"

// Dispatcher forwards mutations to the collection the supplied scope selects.
// It never decides scope itself: callers pass either an explicit user choice,
// a validated route scope, or a prior resolution. Updates and deletes act on
// the resource's existing scope and never move it.
type Dispatcher struct {
	api CollectionAPI
}

// NewDispatcher returns a Dispatcher over the given collection API.
func NewDispatcher(api CollectionAPI) *Dispatcher {
	return &Dispatcher{api: api}
}

// CreateInScope creates a resource of kind in the given scope's collection.
func (d *Dispatcher) CreateInScope(ctx context.Context, kind ResourceKind, scope Scope, payload map[string]any) (Resource, error) {
	return d.api.Create(ctx, kind, scope, payload)
}

// UpdateInScope updates an existing resource in place within its scope.
func (d *Dispatcher) UpdateInScope(ctx context.Context, kind ResourceKind, scope Scope, id int64, payload map[string]any) (Resource, error) {
	return d.api.Update(ctx, kind, scope, id, payload)
}

// DeleteInScope removes a resource from its scope's collection.
func (d *Dispatcher) DeleteInScope(ctx context.Context, kind ResourceKind, scope Scope, id int64) error {
	return d.api.Delete(ctx, kind, scope, id)
}

// RouteSpec carries the user-supplied fields of a route; its scope is always
// derived from the endpoints, never chosen directly.
type RouteSpec struct {
	SourceID int64  `json:"source_id"`
	TargetID int64  `json:"target_id"`
	Template string `json:"template,omitempty"`
}

func (r RouteSpec) payload() map[string]any {
	return map[string]any{
		"source_id": r.SourceID,
		"target_id": r.TargetID,
		"template":  r.Template,
	}
}

// Coordinator runs the composite flows that span probing, validation and
// dispatch. Any step's failure aborts the flow before a mutation is issued.
type Coordinator struct {
	prober     *Prober
	dispatcher *Dispatcher
}

// NewCoordinator wires a prober and dispatcher into a Coordinator.
func NewCoordinator(prober *Prober, dispatcher *Dispatcher) *Coordinator {
	return &Coordinator{prober: prober, dispatcher: dispatcher}
}

// CreateRoute resolves both endpoint scopes, validates that they agree, and
// creates the route in the shared scope.
func (c *Coordinator) CreateRoute(ctx context.Context, spec RouteSpec) (Resource, error) {
	sourceScope, err := c.prober.ResolveScope(ctx, KindSource, spec.SourceID)
	if err != nil {
		return Resource{}, err
	}
	targetScope, err := c.prober.ResolveScope(ctx, KindTarget, spec.TargetID)
	if err != nil {
		return Resource{}, err
	}
	scope, err := ValidateRouteEndpoints(sourceScope, targetScope)
	if err != nil {
		return Resource{}, err
	}
	logging.Info(dispatchComponent, "creating route", "source", spec.SourceID, "target", spec.TargetID, "scope", scope)
	return c.dispatcher.CreateInScope(ctx, KindRoute, scope, spec.payload())
}

// UpdateRoute rewires an existing route's endpoints. The new endpoints must
// agree with each other and with the route's existing scope, since a route's
// scope is fixed at creation.
func (c *Coordinator) UpdateRoute(ctx context.Context, routeID int64, spec RouteSpec) (Resource, error) {
	routeScope, err := c.prober.ResolveScope(ctx, KindRoute, routeID)
	if err != nil {
		return Resource{}, err
	}
	sourceScope, err := c.prober.ResolveScope(ctx, KindSource, spec.SourceID)
	if err != nil {
		return Resource{}, err
	}
	targetScope, err := c.prober.ResolveScope(ctx, KindTarget, spec.TargetID)
	if err != nil {
		return Resource{}, err
	}
	scope, err := ValidateRouteEndpoints(sourceScope, targetScope)
	if err != nil {
		return Resource{}, err
	}
	if !scope.Equal(routeScope) {
		if scope.Kind != routeScope.Kind {
			return Resource{}, &ScopeMismatchError{Source: scope, Target: routeScope}
		}
		return Resource{}, &TeamMismatchError{SourceTeam: scope.TeamID, TargetTeam: routeScope.TeamID}
	}
	return c.dispatcher.UpdateInScope(ctx, KindRoute, routeScope, routeID, spec.payload())
}

// DeleteResource resolves where a resource lives and removes it there.
func (c *Coordinator) DeleteResource(ctx context.Context, kind ResourceKind, id int64) error {
	scope, err := c.prober.ResolveScope(ctx, kind, id)
	if err != nil {
		return err
	}
	if err := c.dispatcher.DeleteInScope(ctx, kind, scope, id); err != nil {
		return fmt.Errorf("delete %s/%d in %s: %w", kind, id, scope, err)
	}
	return nil
}
