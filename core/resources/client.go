package resources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/relaydeck/relaydeck/core/scopes"
)

// Client is a minimal HTTP client for the console API. It implements the
// scope layer's CollectionAPI: personal collections live under
// /api/v1/{kind}s, team collections under /api/v1/teams/{id}/{kind}s.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// New returns a client with a default HTTP timeout.
func New(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// APIError is a transport-level failure, distinct from the scope layer's
// error taxonomy.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d %s", e.Status, e.Message)
}

func (c *Client) endpoint(path string) string {
	return strings.TrimRight(c.BaseURL, "/") + path
}

func collectionPath(kind scopes.ResourceKind, scope scopes.Scope) string {
	if scope.Kind == scopes.KindTeam {
		return fmt.Sprintf("/api/v1/teams/%d/%ss", scope.TeamID, kind)
	}
	return fmt.Sprintf("/api/v1/%ss", kind)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var payload io.Reader
	if body != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		payload = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), payload)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("X-API-Key", c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type listResponse struct {
	Items []json.RawMessage `json:"items"`
}

func decodeResource(raw json.RawMessage, scope scopes.Scope) (scopes.Resource, error) {
	var head struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return scopes.Resource{}, fmt.Errorf("decode resource: %w", err)
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return scopes.Resource{}, fmt.Errorf("decode resource fields: %w", err)
	}
	return scopes.Resource{ID: head.ID, Scope: scope, Data: data}, nil
}

// List fetches one scope's full collection of kind. The scope is stamped onto
// every returned resource; it is positional, never part of the payload.
func (c *Client) List(ctx context.Context, kind scopes.ResourceKind, scope scopes.Scope) ([]scopes.Resource, error) {
	var resp listResponse
	if err := c.doJSON(ctx, http.MethodGet, collectionPath(kind, scope), nil, &resp); err != nil {
		return nil, err
	}
	out := make([]scopes.Resource, 0, len(resp.Items))
	for _, raw := range resp.Items {
		res, err := decodeResource(raw, scope)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

// Create adds a resource to the scope's collection.
func (c *Client) Create(ctx context.Context, kind scopes.ResourceKind, scope scopes.Scope, payload map[string]any) (scopes.Resource, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodPost, collectionPath(kind, scope), payload, &raw); err != nil {
		return scopes.Resource{}, err
	}
	return decodeResource(raw, scope)
}

// Update rewrites a resource in place within its scope.
func (c *Client) Update(ctx context.Context, kind scopes.ResourceKind, scope scopes.Scope, id int64, payload map[string]any) (scopes.Resource, error) {
	path := fmt.Sprintf("%s/%d", collectionPath(kind, scope), id)
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodPut, path, payload, &raw); err != nil {
		return scopes.Resource{}, err
	}
	return decodeResource(raw, scope)
}

// Delete removes a resource from its scope's collection.
func (c *Client) Delete(ctx context.Context, kind scopes.ResourceKind, scope scopes.Scope, id int64) error {
	path := fmt.Sprintf("%s/%d", collectionPath(kind, scope), id)
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

// UserTeams fetches the current user's team memberships, in order. Callers
// re-fetch on every resolution; nothing is cached here.
func (c *Client) UserTeams(ctx context.Context) ([]scopes.Membership, error) {
	var resp struct {
		Items []scopes.Membership `json:"items"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/me/teams", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// Me fetches the authenticated user.
func (c *Client) Me(ctx context.Context) (User, error) {
	var user User
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/me", nil, &user); err != nil {
		return User{}, err
	}
	return user, nil
}

// ListSources fetches a scope's sources as typed models.
func (c *Client) ListSources(ctx context.Context, scope scopes.Scope) ([]Source, error) {
	var resp struct {
		Items []Source `json:"items"`
	}
	if err := c.doJSON(ctx, http.MethodGet, collectionPath(scopes.KindSource, scope), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// ListTargets fetches a scope's targets as typed models.
func (c *Client) ListTargets(ctx context.Context, scope scopes.Scope) ([]Target, error) {
	var resp struct {
		Items []Target `json:"items"`
	}
	if err := c.doJSON(ctx, http.MethodGet, collectionPath(scopes.KindTarget, scope), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// ListRoutes fetches a scope's routes as typed models.
func (c *Client) ListRoutes(ctx context.Context, scope scopes.Scope) ([]Route, error) {
	var resp struct {
		Items []Route `json:"items"`
	}
	if err := c.doJSON(ctx, http.MethodGet, collectionPath(scopes.KindRoute, scope), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// ListDeliveries fetches recent delivery records.
func (c *Client) ListDeliveries(ctx context.Context, limit int) ([]Delivery, error) {
	path := "/api/v1/deliveries"
	if limit > 0 {
		path = fmt.Sprintf("%s?limit=%d", path, limit)
	}
	var resp struct {
		Items []Delivery `json:"items"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}
