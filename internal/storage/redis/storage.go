package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/emberhollow/sessiond/internal/model"
	"github.com/emberhollow/sessiond/internal/storage"
)

// Repository is a Redis-backed implementation of the repository interface.
// Session records are stored as JSON values without TTL; a player's persisted
// state never expires.
type Repository struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis repository instance
func New(cfg Config) (*Repository, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Repository{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis repository with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Repository {
	return &Repository{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (r *Repository) Close() error {
	return r.client.Close()
}

// Ensure Repository implements the interface
var _ storage.Repository = (*Repository)(nil)

// FindSession returns the stored record for a player
func (r *Repository) FindSession(ctx context.Context, id model.PlayerID) (*model.SessionRecord, error) {
	data, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrSessionNotFound
		}
		return nil, err
	}

	var rec model.SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// SaveSession durably persists a record
func (r *Repository) SaveSession(ctx context.Context, rec *model.SessionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	return r.client.Set(ctx, sessionKey(rec.ID), data, 0).Err()
}

// Ready reports whether the backend is reachable
func (r *Repository) Ready() bool {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.PingTimeout)
	defer cancel()
	return r.client.Ping(ctx).Err() == nil
}
