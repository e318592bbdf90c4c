package resources

import "time"

// Source is an inbound webhook endpoint. Its scope is fixed at creation by
// explicit user choice and never changes.
type Source struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind,omitempty"` // e.g. github, stripe, generic
	Secret    string    `json:"secret,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Target is an outbound delivery destination.
type Target struct {
	ID        int64             `json:"id"`
	Name      string            `json:"name"`
	URL       string            `json:"url"`
	Headers   map[string]string `json:"headers,omitempty"`
	CreatedAt time.Time         `json:"created_at,omitempty"`
}

// Route links a source to a target. Its scope is derived from its endpoints
// at creation time and is immutable; it is never part of the payload.
type Route struct {
	ID        int64     `json:"id"`
	SourceID  int64     `json:"source_id"`
	TargetID  int64     `json:"target_id"`
	Template  string    `json:"template,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Delivery records one attempt chain of forwarding an event along a route.
type Delivery struct {
	ID        string    `json:"id"`
	RouteID   int64     `json:"route_id"`
	Event     string    `json:"event,omitempty"`
	Status    string    `json:"status"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Team is one entry of the user's team directory.
type Team struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// User is the authenticated console user.
type User struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Teams []Team `json:"teams,omitempty"`
}
