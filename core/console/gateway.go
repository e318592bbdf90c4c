// Package console implements the webhook console backend: per-scope resource
// collections, the team directory, delivery records and a live delivery
// stream.
package console

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/relaydeck/relaydeck/core/console/bus"
	"github.com/relaydeck/relaydeck/core/console/store"
	"github.com/relaydeck/relaydeck/core/infra/config"
	"github.com/relaydeck/relaydeck/core/infra/logging"
	infraMetrics "github.com/relaydeck/relaydeck/core/infra/metrics"
	"github.com/relaydeck/relaydeck/core/resources"
	"github.com/relaydeck/relaydeck/core/scopes"
)

const (
	component       = "console"
	maxPayloadBytes = 1 << 20 // 1 MiB limit for incoming bodies
	anonymousUserID = 1
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server is the console HTTP API.
type Server struct {
	store        *store.RedisStore
	bus          *bus.Bus
	metrics      infraMetrics.GatewayMetrics
	authRequired bool
	started      time.Time

	clients   map[*websocket.Conn]chan *bus.DeliveryEvent
	clientsMu sync.RWMutex
}

// NewServer wires the console over a store and an optional delivery bus.
// When authRequired is false (no API keys seeded), requests act as a single
// anonymous user and team collections are not membership-checked.
func NewServer(st *store.RedisStore, b *bus.Bus, m infraMetrics.GatewayMetrics, authRequired bool) *Server {
	if m == nil {
		m = infraMetrics.NoopGateway{}
	}
	return &Server{
		store:        st,
		bus:          b,
		metrics:      m,
		authRequired: authRequired,
		started:      time.Now(),
		clients:      map[*websocket.Conn]chan *bus.DeliveryEvent{},
	}
}

// Run starts the console server from configuration and blocks.
func Run(cfg *config.Config) error {
	st, err := store.NewRedisStore(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	var deliveryBus *bus.Bus
	if cfg.NatsURL != "" {
		deliveryBus, err = bus.Connect(cfg.NatsURL)
		if err != nil {
			logging.Warn(component, "nats unavailable, delivery stream disabled", "error", err)
			deliveryBus = nil
		} else {
			defer deliveryBus.Close()
		}
	}

	if cfg.SeedPath != "" {
		if err := applySeed(context.Background(), st, cfg.SeedPath); err != nil {
			return err
		}
	}
	authRequired, err := st.HasAPIKeys(context.Background())
	if err != nil {
		return fmt.Errorf("check api keys: %w", err)
	}

	s := NewServer(st, deliveryBus, infraMetrics.NewGatewayProm("relaydeck"), authRequired)
	if unsubscribe, err := s.StartDeliveryTap(); err != nil {
		logging.Warn(component, "delivery tap unavailable", "error", err)
	} else if unsubscribe != nil {
		defer unsubscribe()
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", infraMetrics.Handler())
	go func() {
		srv := &http.Server{
			Addr:         cfg.MetricsAddr,
			Handler:      metricsMux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		logging.Info(component, "metrics listening", "addr", cfg.MetricsAddr+"/metrics")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error(component, "metrics server error", "error", err)
		}
	}()

	logging.Info(component, "http listening", "addr", cfg.HTTPAddr, "auth", authRequired)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Error(component, "http server error", "error", err)
		return err
	}
	return nil
}

func applySeed(ctx context.Context, st *store.RedisStore, path string) error {
	seed, err := config.LoadSeed(path)
	if err != nil {
		return err
	}
	for _, team := range seed.Teams {
		if err := st.PutTeam(ctx, resources.Team{ID: team.ID, Name: team.Name}); err != nil {
			return fmt.Errorf("seed team %d: %w", team.ID, err)
		}
	}
	for _, user := range seed.Users {
		u := resources.User{ID: user.ID, Email: user.Email, Name: user.Name}
		for _, teamID := range user.Teams {
			u.Teams = append(u.Teams, resources.Team{ID: teamID})
		}
		if err := st.PutUser(ctx, u, user.APIKey); err != nil {
			return fmt.Errorf("seed user %d: %w", user.ID, err)
		}
	}
	logging.Info(component, "seed applied", "teams", len(seed.Teams), "users", len(seed.Users))
	return nil
}

// StartDeliveryTap subscribes to the delivery bus and fans events out to
// connected websocket clients. Returns a no-op when no bus is configured.
func (s *Server) StartDeliveryTap() (func(), error) {
	if s.bus == nil {
		return nil, nil
	}
	return s.bus.SubscribeDeliveries(s.broadcast)
}

func (s *Server) broadcast(ev *bus.DeliveryEvent) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for _, ch := range s.clients {
		select {
		case ch <- ev:
		default:
			// slow client, drop
		}
	}
}

// Handler builds the console's HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /api/v1/status", s.instrumented("/api/v1/status", s.handleStatus))
	mux.HandleFunc("GET /api/v1/me", s.instrumented("/api/v1/me", s.handleMe))
	mux.HandleFunc("GET /api/v1/me/teams", s.instrumented("/api/v1/me/teams", s.handleMyTeams))
	mux.HandleFunc("GET /api/v1/teams", s.instrumented("/api/v1/teams", s.handleListTeams))

	for _, kind := range []scopes.ResourceKind{scopes.KindSource, scopes.KindTarget, scopes.KindRoute} {
		k := kind
		base := fmt.Sprintf("/api/v1/%ss", k)
		mux.HandleFunc("GET "+base, s.instrumented(base, s.handleList(k, false)))
		mux.HandleFunc("POST "+base, s.instrumented(base, s.handleCreate(k, false)))
		mux.HandleFunc("PUT "+base+"/{id}", s.instrumented(base+"/{id}", s.handleUpdate(k, false)))
		mux.HandleFunc("DELETE "+base+"/{id}", s.instrumented(base+"/{id}", s.handleDelete(k, false)))

		teamBase := fmt.Sprintf("/api/v1/teams/{team}/%ss", k)
		mux.HandleFunc("GET "+teamBase, s.instrumented(teamBase, s.handleList(k, true)))
		mux.HandleFunc("POST "+teamBase, s.instrumented(teamBase, s.handleCreate(k, true)))
		mux.HandleFunc("PUT "+teamBase+"/{id}", s.instrumented(teamBase+"/{id}", s.handleUpdate(k, true)))
		mux.HandleFunc("DELETE "+teamBase+"/{id}", s.instrumented(teamBase+"/{id}", s.handleDelete(k, true)))
	}

	mux.HandleFunc("GET /api/v1/deliveries", s.instrumented("/api/v1/deliveries", s.handleListDeliveries))
	mux.HandleFunc("POST /api/v1/deliveries", s.instrumented("/api/v1/deliveries", s.handleRecordDelivery))
	mux.HandleFunc("/api/v1/stream", s.instrumented("/api/v1/stream", s.handleStream))

	return corsMiddleware(s.apiKeyMiddleware(mux))
}

// --- auth ---

type authUserKey struct{}

func (s *Server) apiKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" || !strings.HasPrefix(r.URL.Path, "/api/") {
			next.ServeHTTP(w, r)
			return
		}
		user := resources.User{ID: anonymousUserID, Email: "anonymous"}
		if s.authRequired {
			key := strings.TrimSpace(r.Header.Get("X-API-Key"))
			if key == "" {
				key = apiKeyFromQuery(r)
			}
			if key == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			resolved, err := s.store.UserByAPIKey(r.Context(), key)
			if errors.Is(err, store.ErrNotFound) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			user = resolved
		}
		ctx := context.WithValue(r.Context(), authUserKey{}, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// apiKeyFromQuery supports websocket clients that cannot set headers.
func apiKeyFromQuery(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("api_key"))
}

func currentUser(r *http.Request) resources.User {
	if user, ok := r.Context().Value(authUserKey{}).(resources.User); ok {
		return user
	}
	return resources.User{ID: anonymousUserID, Email: "anonymous"}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := strings.TrimSpace(r.Header.Get("Origin")); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- owner resolution ---

// resolveOwner maps a request to the storage bucket and scope it addresses.
// Team requests check team existence and, when auth is on, membership.
func (s *Server) resolveOwner(r *http.Request, teamScoped bool) (store.Owner, scopes.Scope, int, error) {
	user := currentUser(r)
	if !teamScoped {
		return store.UserOwner(user.ID), scopes.Personal(), 0, nil
	}
	teamID, err := strconv.ParseInt(r.PathValue("team"), 10, 64)
	if err != nil || teamID <= 0 {
		return store.Owner{}, scopes.Scope{}, http.StatusBadRequest, errors.New("invalid team id")
	}
	if _, err := s.store.GetTeam(r.Context(), teamID); errors.Is(err, store.ErrNotFound) {
		return store.Owner{}, scopes.Scope{}, http.StatusNotFound, fmt.Errorf("team %d not found", teamID)
	} else if err != nil {
		return store.Owner{}, scopes.Scope{}, http.StatusInternalServerError, err
	}
	if s.authRequired && !memberOf(user, teamID) {
		return store.Owner{}, scopes.Scope{}, http.StatusForbidden, fmt.Errorf("not a member of team %d", teamID)
	}
	return store.TeamOwner(teamID), scopes.TeamScope(teamID), 0, nil
}

func memberOf(user resources.User, teamID int64) bool {
	for _, team := range user.Teams {
		if team.ID == teamID {
			return true
		}
	}
	return false
}

// --- collection handlers ---

func (s *Server) handleList(kind scopes.ResourceKind, teamScoped bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, _, status, err := s.resolveOwner(r, teamScoped)
		if err != nil {
			http.Error(w, err.Error(), status)
			return
		}
		rows, err := s.store.List(r.Context(), owner, kind)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		items := make([]json.RawMessage, 0, len(rows))
		for _, row := range rows {
			items = append(items, json.RawMessage(row))
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	}
}

func (s *Server) handleCreate(kind scopes.ResourceKind, teamScoped bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, scope, status, err := s.resolveOwner(r, teamScoped)
		if err != nil {
			http.Error(w, err.Error(), status)
			return
		}
		payload, ok := s.readPayload(w, r, kind)
		if !ok {
			return
		}
		if kind == scopes.KindRoute {
			if ok := s.checkRouteEndpoints(w, r, owner, scope, payload); !ok {
				return
			}
		}
		id, err := s.store.NextID(r.Context(), kind)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		record := make(map[string]any, len(payload)+2)
		for k, v := range payload {
			record[k] = v
		}
		record["id"] = id
		record["created_at"] = time.Now().UTC().Format(time.RFC3339)
		data, err := json.Marshal(record)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if err := s.store.Put(r.Context(), owner, kind, id, data); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		logging.Info(component, "resource created", "kind", kind, "id", id, "scope", scope)
		writeRaw(w, http.StatusCreated, data)
	}
}

func (s *Server) handleUpdate(kind scopes.ResourceKind, teamScoped bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, scope, status, err := s.resolveOwner(r, teamScoped)
		if err != nil {
			http.Error(w, err.Error(), status)
			return
		}
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil || id <= 0 {
			http.Error(w, "invalid resource id", http.StatusBadRequest)
			return
		}
		existing, err := s.store.Get(r.Context(), owner, kind, id)
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, fmt.Sprintf("%s %d not found in %s", kind, id, scope), http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		payload, ok := s.readPayload(w, r, kind)
		if !ok {
			return
		}
		if kind == scopes.KindRoute {
			if ok := s.checkRouteEndpoints(w, r, owner, scope, payload); !ok {
				return
			}
		}
		var prior map[string]any
		if err := json.Unmarshal(existing, &prior); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		record := make(map[string]any, len(payload)+2)
		for k, v := range payload {
			record[k] = v
		}
		record["id"] = id
		if createdAt, ok := prior["created_at"]; ok {
			record["created_at"] = createdAt
		}
		data, err := json.Marshal(record)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if err := s.store.Put(r.Context(), owner, kind, id, data); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeRaw(w, http.StatusOK, data)
	}
}

func (s *Server) handleDelete(kind scopes.ResourceKind, teamScoped bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, scope, status, err := s.resolveOwner(r, teamScoped)
		if err != nil {
			http.Error(w, err.Error(), status)
			return
		}
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil || id <= 0 {
			http.Error(w, "invalid resource id", http.StatusBadRequest)
			return
		}
		if err := s.store.Delete(r.Context(), owner, kind, id); errors.Is(err, store.ErrNotFound) {
			http.Error(w, fmt.Sprintf("%s %d not found in %s", kind, id, scope), http.StatusNotFound)
			return
		} else if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// readPayload enforces the body limit and the kind's schema.
func (s *Server) readPayload(w http.ResponseWriter, r *http.Request, kind scopes.ResourceKind) (map[string]any, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return nil, false
	}
	if err := validatePayload(kind, body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	return payload, true
}

// checkRouteEndpoints enforces the route invariant server-side: both
// endpoints must exist in the collection scope the route is being written to.
func (s *Server) checkRouteEndpoints(w http.ResponseWriter, r *http.Request, owner store.Owner, scope scopes.Scope, payload map[string]any) bool {
	sourceID := intField(payload, "source_id")
	targetID := intField(payload, "target_id")
	if _, err := s.store.Get(r.Context(), owner, scopes.KindSource, sourceID); errors.Is(err, store.ErrNotFound) {
		http.Error(w, fmt.Sprintf("source %d does not belong to %s; route endpoints must share the route's scope", sourceID, scope), http.StatusUnprocessableEntity)
		return false
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return false
	}
	if _, err := s.store.Get(r.Context(), owner, scopes.KindTarget, targetID); errors.Is(err, store.ErrNotFound) {
		http.Error(w, fmt.Sprintf("target %d does not belong to %s; route endpoints must share the route's scope", targetID, scope), http.StatusUnprocessableEntity)
		return false
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return false
	}
	return true
}

func intField(payload map[string]any, key string) int64 {
	switch v := payload[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case json.Number:
		n, _ := v.Int64()
		return n
	default:
		return 0
	}
}

// --- directory handlers ---

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentUser(r))
}

func (s *Server) handleMyTeams(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	items := make([]resources.Team, 0, len(user.Teams))
	items = append(items, user.Teams...)
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := s.store.ListTeams(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": teams})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	redisOK := s.store.Ping(r.Context()) == nil
	writeJSON(w, http.StatusOK, map[string]any{
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
		"redis":          redisOK,
		"bus":            s.bus != nil,
		"auth":           s.authRequired,
	})
}

// --- deliveries ---

type recordDeliveryRequest struct {
	RouteID  int64  `json:"route_id"`
	Scope    string `json:"scope"`
	Event    string `json:"event"`
	Status   string `json:"status"`
	Attempts int    `json:"attempts"`
}

func (s *Server) handleRecordDelivery(w http.ResponseWriter, r *http.Request) {
	var req recordDeliveryRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxPayloadBytes)).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.RouteID <= 0 {
		http.Error(w, "route_id required", http.StatusBadRequest)
		return
	}
	if req.Status == "" {
		req.Status = "pending"
	}
	if req.Attempts <= 0 {
		req.Attempts = 1
	}
	now := time.Now().UTC()
	delivery := resources.Delivery{
		ID:        uuid.NewString(),
		RouteID:   req.RouteID,
		Event:     req.Event,
		Status:    req.Status,
		Attempts:  req.Attempts,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.AppendDelivery(r.Context(), delivery); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if s.bus != nil {
		ev := &bus.DeliveryEvent{
			ID:       delivery.ID,
			RouteID:  delivery.RouteID,
			Scope:    req.Scope,
			Event:    delivery.Event,
			Status:   delivery.Status,
			Attempts: delivery.Attempts,
			Time:     now,
		}
		if err := s.bus.PublishDelivery(ev); err != nil {
			logging.Error(component, "publish delivery event failed", "error", err)
		}
	}
	writeJSON(w, http.StatusCreated, delivery)
}

func (s *Server) handleListDeliveries(w http.ResponseWriter, r *http.Request) {
	limit := int64(50)
	if q := r.URL.Query().Get("limit"); q != "" {
		if v, err := strconv.ParseInt(q, 10, 64); err == nil && v > 0 {
			limit = v
		}
	}
	deliveries, err := s.store.ListDeliveries(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": deliveries})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error(component, "ws upgrade failed", "error", err)
		return
	}
	defer ws.Close()
	logging.Info(component, "ws connected", "remote", r.RemoteAddr)

	clientCh := make(chan *bus.DeliveryEvent, 100)
	s.clientsMu.Lock()
	s.clients[ws] = clientCh
	s.clientsMu.Unlock()
	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, ws)
		s.clientsMu.Unlock()
		close(clientCh)
	}()

	for {
		select {
		case ev, ok := <-clientCh:
			if !ok {
				return
			}
			data, err := bus.EncodeEvent(ev)
			if err != nil {
				continue
			}
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

// --- helpers ---

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrumented wraps handlers to record metrics.
func (s *Server) instrumented(route string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/stream" {
			// websocket upgrades need the raw writer
			fn(w, r)
			s.metrics.ObserveRequest(r.Method, route, "101", 0)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		fn(rec, r)
		s.metrics.ObserveRequest(r.Method, route, strconv.Itoa(rec.status), time.Since(start).Seconds())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRaw(w http.ResponseWriter, status int, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
