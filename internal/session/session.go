// Package session holds the active users' profile snapshots in Redis. It is
// the process-wide replacement for the original client-side session cache:
// populated at login, consulted by every operation that needs the current
// user, cleared at logout.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"messenger-api/internal/data"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "session:"

// Profile is the per-session record.
type Profile struct {
	Email             string `json:"email"` // safe form
	Name              string `json:"name"`
	ProfilePictureURL string `json:"profile_picture_url,omitempty"`
}

// Directory resolves the current user's profile for API handlers.
type Directory struct {
	rdb *redis.Client
	ttl time.Duration
}

// Connect dials Redis and verifies the connection with a ping.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, err
	}
	return rdb, nil
}

// New returns a Directory storing sessions with the given lifetime. The ttl
// should match the token lifetime so a session outlives its last valid token.
func New(rdb *redis.Client, ttl time.Duration) *Directory {
	return &Directory{rdb: rdb, ttl: ttl}
}

// Put stores the profile for a freshly logged-in user.
func (d *Directory) Put(ctx context.Context, p Profile) error {
	if p.Email == "" {
		return data.ErrInvalidInput
	}
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return d.rdb.Set(ctx, keyPrefix+p.Email, b, d.ttl).Err()
}

// Current returns the profile for the given safe email. A missing session
// means the user is not logged in: ErrUnauthenticated, so store operations
// fail fast instead of proceeding with a half-known identity.
func (d *Directory) Current(ctx context.Context, safeEmail string) (*Profile, error) {
	if safeEmail == "" {
		return nil, data.ErrUnauthenticated
	}

	raw, err := d.rdb.Get(ctx, keyPrefix+safeEmail).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, data.ErrUnauthenticated
		}
		return nil, err
	}

	var p Profile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Clear removes the session at logout. Clearing an absent session is a no-op.
func (d *Directory) Clear(ctx context.Context, safeEmail string) error {
	return d.rdb.Del(ctx, keyPrefix+safeEmail).Err()
}
