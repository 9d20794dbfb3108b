package dedup

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRegistry struct {
	dups  map[string]bool
	err   error
	calls int
}

func (f *fakeRegistry) IsDuplicate(ctx context.Context, sid string) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.dups[sid], nil
}

func TestCheckNotDuplicate(t *testing.T) {
	reg := &fakeRegistry{dups: map[string]bool{}}
	d := NewDetector(reg, nil)

	dup, err := d.Check(context.Background(), "VA_1")
	require.NoError(t, err)
	assert.False(t, dup)
	assert.Equal(t, 1, reg.calls)
}

func TestCheckRegistryDuplicateIsCached(t *testing.T) {
	reg := &fakeRegistry{dups: map[string]bool{"VA_1": true}}
	d := NewDetector(reg, nil)

	dup, err := d.Check(context.Background(), "VA_1")
	require.NoError(t, err)
	assert.True(t, dup)
	assert.Equal(t, 1, reg.calls)

	// Second check answers from cache, no registry round trip.
	dup, err = d.Check(context.Background(), "VA_1")
	require.NoError(t, err)
	assert.True(t, dup)
	assert.Equal(t, 1, reg.calls)
}

func TestCheckMarkKnownSkipsRegistry(t *testing.T) {
	reg := &fakeRegistry{dups: map[string]bool{}}
	d := NewDetector(reg, nil)

	d.MarkKnown(context.Background(), "VA_2")

	dup, err := d.Check(context.Background(), "VA_2")
	require.NoError(t, err)
	assert.True(t, dup)
	assert.Zero(t, reg.calls)
}

func TestCheckQueryFailureIsNotDuplicate(t *testing.T) {
	reg := &fakeRegistry{err: errors.New("connection refused")}
	d := NewDetector(reg, nil)

	dup, err := d.Check(context.Background(), "VA_3")
	require.Error(t, err)
	assert.False(t, dup)
}

func TestRedisCacheSharedAcrossDetectors(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	ctx := context.Background()

	reg1 := &fakeRegistry{dups: map[string]bool{}}
	d1 := NewDetector(reg1, client)
	d1.MarkKnown(ctx, "VA_4")

	// A fresh detector (fresh local map) sees the Redis entry.
	reg2 := &fakeRegistry{dups: map[string]bool{}}
	d2 := NewDetector(reg2, client)

	dup, err := d2.Check(ctx, "VA_4")
	require.NoError(t, err)
	assert.True(t, dup)
	assert.Zero(t, reg2.calls)
}

func TestRedisDownDegradesToRegistry(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mr.Close() // cache is now unreachable

	reg := &fakeRegistry{dups: map[string]bool{"VA_5": true}}
	d := NewDetector(reg, client)

	dup, err := d.Check(context.Background(), "VA_5")
	require.NoError(t, err)
	assert.True(t, dup)
	assert.Equal(t, 1, reg.calls)

	// The local map still caches despite Redis being down.
	dup, err = d.Check(context.Background(), "VA_5")
	require.NoError(t, err)
	assert.True(t, dup)
	assert.Equal(t, 1, reg.calls)
}
