package scopes

import "fmt"

// NotFoundError reports that a resource is not visible in any scope the
// current user has access to.
type NotFoundError struct {
	Kind ResourceKind
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found in any accessible scope", e.Kind, e.ID)
}

// ScopeMismatchError reports that a route's endpoints live in different
// ownership scope kinds (one personal, one team).
type ScopeMismatchError struct {
	Source Scope
	Target Scope
}

func (e *ScopeMismatchError) Error() string {
	return fmt.Sprintf("source (%s) and target (%s) belong to different ownership scopes; routes cannot cross them", e.Source, e.Target)
}

// TeamMismatchError reports that a route's endpoints belong to different teams.
type TeamMismatchError struct {
	SourceTeam int64
	TargetTeam int64
}

func (e *TeamMismatchError) Error() string {
	return fmt.Sprintf("source (team %d) and target (team %d) belong to different teams", e.SourceTeam, e.TargetTeam)
}

// TransientProbeError wraps a failed per-team collection fetch. The prober
// recovers from it locally; it never escapes a resolution on its own.
type TransientProbeError struct {
	TeamID int64
	Err    error
}

func (e *TransientProbeError) Error() string {
	return fmt.Sprintf("probe of team %d failed: %v", e.TeamID, e.Err)
}

func (e *TransientProbeError) Unwrap() error {
	return e.Err
}
