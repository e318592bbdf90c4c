package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/relaydeck/relaydeck/core/infra/redisutil"
	"github.com/relaydeck/relaydeck/core/resources"
	"github.com/relaydeck/relaydeck/core/scopes"
)

const (
	defaultRedisURL       = "redis://localhost:6379"
	defaultRedisOpTimeout = 2 * time.Second
	keyPrefix             = "console"
	maxDeliveries         = 1000
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("not_found")

// Owner identifies which bucket a scope's collection maps to server-side:
// a user's personal bucket or a team bucket.
type Owner struct {
	UserID int64
	TeamID int64
}

// UserOwner addresses a user's personal collections.
func UserOwner(userID int64) Owner {
	return Owner{UserID: userID}
}

// TeamOwner addresses a team's collections.
func TeamOwner(teamID int64) Owner {
	return Owner{TeamID: teamID}
}

func (o Owner) String() string {
	if o.TeamID != 0 {
		return fmt.Sprintf("team:%d", o.TeamID)
	}
	return fmt.Sprintf("user:%d", o.UserID)
}

// RedisStore persists console state in Redis: one hash per (owner, kind)
// collection, id sequences via INCR, teams/users as directory hashes and a
// capped list of recent deliveries.
type RedisStore struct {
	client    redis.UniversalClient
	opTimeout time.Duration
}

// NewRedisStore connects to Redis at the given redis:// URL.
func NewRedisStore(url string) (*RedisStore, error) {
	if url == "" {
		url = defaultRedisURL
	}
	client, err := redisutil.NewClient(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &RedisStore{client: client, opTimeout: defaultRedisOpTimeout}, nil
}

// Close releases the underlying Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks connectivity for status reporting.
func (s *RedisStore) Ping(ctx context.Context) error {
	cctx, cancel := s.opCtx(ctx)
	defer cancel()
	return s.client.Ping(cctx).Err()
}

func (s *RedisStore) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(context.WithoutCancel(ctx), s.opTimeout)
}

func collectionKey(owner Owner, kind scopes.ResourceKind) string {
	return fmt.Sprintf("%s:%s:%ss", keyPrefix, owner, kind)
}

func seqKey(kind scopes.ResourceKind) string {
	return fmt.Sprintf("%s:seq:%s", keyPrefix, kind)
}

// NextID returns the next id in the kind's global sequence.
func (s *RedisStore) NextID(ctx context.Context, kind scopes.ResourceKind) (int64, error) {
	cctx, cancel := s.opCtx(ctx)
	defer cancel()
	id, err := s.client.Incr(cctx, seqKey(kind)).Result()
	if err != nil {
		return 0, fmt.Errorf("next %s id: %w", kind, err)
	}
	return id, nil
}

// Put writes one resource record into the owner's collection of kind.
func (s *RedisStore) Put(ctx context.Context, owner Owner, kind scopes.ResourceKind, id int64, data []byte) error {
	cctx, cancel := s.opCtx(ctx)
	defer cancel()
	return s.client.HSet(cctx, collectionKey(owner, kind), strconv.FormatInt(id, 10), data).Err()
}

// Get reads one resource record, or ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, owner Owner, kind scopes.ResourceKind, id int64) ([]byte, error) {
	cctx, cancel := s.opCtx(ctx)
	defer cancel()
	val, err := s.client.HGet(cctx, collectionKey(owner, kind), strconv.FormatInt(id, 10)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

// List returns every record in the owner's collection of kind, ordered by id.
func (s *RedisStore) List(ctx context.Context, owner Owner, kind scopes.ResourceKind) ([][]byte, error) {
	cctx, cancel := s.opCtx(ctx)
	defer cancel()
	fields, err := s.client.HGetAll(cctx, collectionKey(owner, kind)).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(fields))
	for field := range fields {
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([][]byte, 0, len(ids))
	for _, id := range ids {
		out = append(out, []byte(fields[strconv.FormatInt(id, 10)]))
	}
	return out, nil
}

// Delete removes one record, or returns ErrNotFound.
func (s *RedisStore) Delete(ctx context.Context, owner Owner, kind scopes.ResourceKind, id int64) error {
	cctx, cancel := s.opCtx(ctx)
	defer cancel()
	removed, err := s.client.HDel(cctx, collectionKey(owner, kind), strconv.FormatInt(id, 10)).Result()
	if err != nil {
		return err
	}
	if removed == 0 {
		return ErrNotFound
	}
	return nil
}

// --- directory: teams, users, api keys ---

func teamsKey() string   { return keyPrefix + ":teams" }
func usersKey() string   { return keyPrefix + ":users" }
func apiKeysKey() string { return keyPrefix + ":apikeys" }

// PutTeam upserts a team directory entry.
func (s *RedisStore) PutTeam(ctx context.Context, team resources.Team) error {
	data, err := json.Marshal(team)
	if err != nil {
		return fmt.Errorf("marshal team: %w", err)
	}
	cctx, cancel := s.opCtx(ctx)
	defer cancel()
	return s.client.HSet(cctx, teamsKey(), strconv.FormatInt(team.ID, 10), data).Err()
}

// GetTeam reads one team, or ErrNotFound.
func (s *RedisStore) GetTeam(ctx context.Context, id int64) (resources.Team, error) {
	cctx, cancel := s.opCtx(ctx)
	defer cancel()
	val, err := s.client.HGet(cctx, teamsKey(), strconv.FormatInt(id, 10)).Bytes()
	if errors.Is(err, redis.Nil) {
		return resources.Team{}, ErrNotFound
	}
	if err != nil {
		return resources.Team{}, err
	}
	var team resources.Team
	if err := json.Unmarshal(val, &team); err != nil {
		return resources.Team{}, fmt.Errorf("decode team: %w", err)
	}
	return team, nil
}

// ListTeams returns all teams ordered by id.
func (s *RedisStore) ListTeams(ctx context.Context) ([]resources.Team, error) {
	cctx, cancel := s.opCtx(ctx)
	defer cancel()
	fields, err := s.client.HGetAll(cctx, teamsKey()).Result()
	if err != nil {
		return nil, err
	}
	teams := make([]resources.Team, 0, len(fields))
	for _, raw := range fields {
		var team resources.Team
		if err := json.Unmarshal([]byte(raw), &team); err != nil {
			return nil, fmt.Errorf("decode team: %w", err)
		}
		teams = append(teams, team)
	}
	sort.Slice(teams, func(i, j int) bool { return teams[i].ID < teams[j].ID })
	return teams, nil
}

// userRecord is the stored user shape; team membership order matters.
type userRecord struct {
	ID    int64   `json:"id"`
	Email string  `json:"email"`
	Name  string  `json:"name,omitempty"`
	Teams []int64 `json:"teams,omitempty"`
}

// PutUser upserts a user and optionally binds an API key to them.
func (s *RedisStore) PutUser(ctx context.Context, user resources.User, apiKey string) error {
	rec := userRecord{ID: user.ID, Email: user.Email, Name: user.Name}
	for _, team := range user.Teams {
		rec.Teams = append(rec.Teams, team.ID)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	cctx, cancel := s.opCtx(ctx)
	defer cancel()
	if err := s.client.HSet(cctx, usersKey(), strconv.FormatInt(user.ID, 10), data).Err(); err != nil {
		return err
	}
	if apiKey != "" {
		if err := s.client.HSet(cctx, apiKeysKey(), apiKey, user.ID).Err(); err != nil {
			return err
		}
	}
	return nil
}

// GetUser reads one user with memberships resolved against the team
// directory, preserving membership order.
func (s *RedisStore) GetUser(ctx context.Context, id int64) (resources.User, error) {
	cctx, cancel := s.opCtx(ctx)
	defer cancel()
	val, err := s.client.HGet(cctx, usersKey(), strconv.FormatInt(id, 10)).Bytes()
	if errors.Is(err, redis.Nil) {
		return resources.User{}, ErrNotFound
	}
	if err != nil {
		return resources.User{}, err
	}
	var rec userRecord
	if err := json.Unmarshal(val, &rec); err != nil {
		return resources.User{}, fmt.Errorf("decode user: %w", err)
	}
	user := resources.User{ID: rec.ID, Email: rec.Email, Name: rec.Name}
	for _, teamID := range rec.Teams {
		team, err := s.GetTeam(ctx, teamID)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return resources.User{}, err
		}
		user.Teams = append(user.Teams, team)
	}
	return user, nil
}

// UserByAPIKey resolves an API key to its user, or ErrNotFound.
func (s *RedisStore) UserByAPIKey(ctx context.Context, apiKey string) (resources.User, error) {
	cctx, cancel := s.opCtx(ctx)
	defer cancel()
	raw, err := s.client.HGet(cctx, apiKeysKey(), apiKey).Result()
	if errors.Is(err, redis.Nil) {
		return resources.User{}, ErrNotFound
	}
	if err != nil {
		return resources.User{}, err
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return resources.User{}, fmt.Errorf("decode api key binding: %w", err)
	}
	return s.GetUser(ctx, id)
}

// HasAPIKeys reports whether any API key bindings exist.
func (s *RedisStore) HasAPIKeys(ctx context.Context) (bool, error) {
	cctx, cancel := s.opCtx(ctx)
	defer cancel()
	n, err := s.client.HLen(cctx, apiKeysKey()).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// --- deliveries ---

func deliveriesKey() string { return keyPrefix + ":deliveries" }

// AppendDelivery records a delivery, keeping only the most recent entries.
func (s *RedisStore) AppendDelivery(ctx context.Context, delivery resources.Delivery) error {
	data, err := json.Marshal(delivery)
	if err != nil {
		return fmt.Errorf("marshal delivery: %w", err)
	}
	cctx, cancel := s.opCtx(ctx)
	defer cancel()
	pipe := s.client.TxPipeline()
	pipe.LPush(cctx, deliveriesKey(), data)
	pipe.LTrim(cctx, deliveriesKey(), 0, maxDeliveries-1)
	_, err = pipe.Exec(cctx)
	return err
}

// ListDeliveries returns up to limit recent deliveries, newest first.
func (s *RedisStore) ListDeliveries(ctx context.Context, limit int64) ([]resources.Delivery, error) {
	if limit <= 0 || limit > maxDeliveries {
		limit = 50
	}
	cctx, cancel := s.opCtx(ctx)
	defer cancel()
	rows, err := s.client.LRange(cctx, deliveriesKey(), 0, limit-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]resources.Delivery, 0, len(rows))
	for _, raw := range rows {
		var delivery resources.Delivery
		if err := json.Unmarshal([]byte(raw), &delivery); err != nil {
			return nil, fmt.Errorf("decode delivery: %w", err)
		}
		out = append(out, delivery)
	}
	return out, nil
}
