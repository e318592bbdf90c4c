package scopes

// ValidateRouteEndpoints decides whether a route may link two endpoints whose
// scopes have already been resolved, and returns the scope the route must be
// created in. It is pure: no probing, no I/O.
func ValidateRouteEndpoints(sourceScope, targetScope Scope) (Scope, error) {
	if sourceScope.Kind != targetScope.Kind {
		return Scope{}, &ScopeMismatchError{Source: sourceScope, Target: targetScope}
	}
	if sourceScope.Kind == KindTeam && sourceScope.TeamID != targetScope.TeamID {
		return Scope{}, &TeamMismatchError{SourceTeam: sourceScope.TeamID, TargetTeam: targetScope.TeamID}
	}
	return sourceScope, nil
}
