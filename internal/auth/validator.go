package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// ErrInvalidSession marks a token the portal rejected or that could not
// be verified. Authentication fails closed: a portal outage yields the
// same error as a bad token.
var ErrInvalidSession = errors.New("auth: invalid session")

// Validator resolves tokens to sessions, caching portal verdicts in
// Redis and collapsing concurrent lookups for the same token.
type Validator struct {
	verifier SessionVerifier
	cache    *redis.Client
	ttl      time.Duration
	logger   *slog.Logger
	group    singleflight.Group
}

// NewValidator builds a Validator. The cache client may be nil, in which
// case every request hits the portal.
func NewValidator(verifier SessionVerifier, cache *redis.Client, ttl time.Duration, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{verifier: verifier, cache: cache, ttl: ttl, logger: logger}
}

// Validate returns the session for a token, or ErrInvalidSession.
// Only positive verdicts are cached; a rejected token is always
// re-checked so revocation takes effect immediately.
func (v *Validator) Validate(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, ErrInvalidSession
	}

	if s, ok := v.cached(ctx, token); ok {
		return s, nil
	}

	res, err, _ := v.group.Do(token, func() (any, error) {
		resp, err := v.verifier.Verify(ctx, token)
		if err != nil {
			v.logger.Warn("portal verification failed", slog.Any("error", err))
			return Session{}, ErrInvalidSession
		}
		if !resp.Valid {
			return Session{}, ErrInvalidSession
		}
		v.store(ctx, token, resp.Session)
		return resp.Session, nil
	})
	if err != nil {
		return Session{}, err
	}
	return res.(Session), nil
}

func (v *Validator) cached(ctx context.Context, token string) (Session, bool) {
	if v.cache == nil {
		return Session{}, false
	}
	raw, err := v.cache.Get(ctx, cacheKey(token)).Bytes()
	if err != nil {
		return Session{}, false
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return Session{}, false
	}
	return s, true
}

func (v *Validator) store(ctx context.Context, token string, s Session) {
	if v.cache == nil {
		return
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return
	}
	if err := v.cache.Set(ctx, cacheKey(token), raw, v.ttl).Err(); err != nil {
		v.logger.Warn("session cache write failed", slog.Any("error", err))
	}
}

// cacheKey hashes the token so raw credentials never land in Redis.
func cacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "session:" + hex.EncodeToString(sum[:])
}
