// Package dedup decides whether a study identifier was already imported.
// A cache of known SIDs sits in front of the registry query so overlapping
// windows do not hammer the events API with lookups for records imported
// minutes earlier.
package dedup

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/openvital/smartva-bridge/internal/pkg/logger"
)

// knownSetKey is the Redis set holding every SID confirmed present in the
// registry. Shared across restarts; the in-process map is not.
const knownSetKey = "smartva:known_sids"

var log = logger.Component("dedup")

// Registry is the duplicate-check side of the registry client.
type Registry interface {
	IsDuplicate(ctx context.Context, sid string) (bool, error)
}

// Detector answers "was this SID already imported" with a three-way
// result: (false, nil) proceed, (true, nil) duplicate, (false, err) the
// check itself failed and must not be read as either.
type Detector struct {
	registry Registry
	redis    *redis.Client // nil when no cache is configured

	mu    sync.Mutex
	local map[string]struct{}
}

// NewDetector creates a detector. redisClient may be nil, in which case
// only the in-process cache fronts the registry.
func NewDetector(registry Registry, redisClient *redis.Client) *Detector {
	return &Detector{
		registry: registry,
		redis:    redisClient,
		local:    make(map[string]struct{}),
	}
}

// Check reports whether sid is already in the registry. Cache hits skip
// the registry entirely; cache failures degrade to a direct query and
// never fail the check themselves.
func (d *Detector) Check(ctx context.Context, sid string) (bool, error) {
	if d.cached(ctx, sid) {
		return true, nil
	}

	dup, err := d.registry.IsDuplicate(ctx, sid)
	if err != nil {
		return false, err
	}
	if dup {
		d.MarkKnown(ctx, sid)
	}
	return dup, nil
}

// MarkKnown records that sid now exists in the registry, after a
// successful submission or a confirmed duplicate. Cache write errors are
// logged and swallowed; the registry remains the source of truth.
func (d *Detector) MarkKnown(ctx context.Context, sid string) {
	d.mu.Lock()
	d.local[sid] = struct{}{}
	d.mu.Unlock()

	if d.redis == nil {
		return
	}
	if err := d.redis.SAdd(ctx, knownSetKey, sid).Err(); err != nil {
		log.Warn("caching sid failed", "sid", sid, "error", err)
	}
}

func (d *Detector) cached(ctx context.Context, sid string) bool {
	d.mu.Lock()
	_, hit := d.local[sid]
	d.mu.Unlock()
	if hit {
		return true
	}

	if d.redis == nil {
		return false
	}
	known, err := d.redis.SIsMember(ctx, knownSetKey, sid).Result()
	if err != nil {
		log.Warn("sid cache lookup failed", "sid", sid, "error", err)
		return false
	}
	if known {
		// Warm the local map so a flaky cache still only costs one lookup.
		d.mu.Lock()
		d.local[sid] = struct{}{}
		d.mu.Unlock()
	}
	return known
}
