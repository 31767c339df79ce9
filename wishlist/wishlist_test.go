package wishlist

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStatic(t *testing.T) {
	ctx := context.Background()
	s := NewStatic(1, 2)

	in, err := s.IsInWishlist(ctx, 1)
	require.NoError(t, err)
	assert.True(t, in)

	require.NoError(t, s.Remove(ctx, 1))
	in, _ = s.IsInWishlist(ctx, 1)
	assert.False(t, in)

	require.NoError(t, s.Add(ctx, 3))
	in, _ = s.IsInWishlist(ctx, 3)
	assert.True(t, in)
}

type fakeSet struct {
	members map[string]map[string]struct{}
	err     error
}

func (f *fakeSet) SIsMember(_ context.Context, key string, member any) *redis.BoolCmd {
	if f.err != nil {
		return redis.NewBoolResult(false, f.err)
	}
	_, ok := f.members[key][member.(string)]
	return redis.NewBoolResult(ok, nil)
}

func (f *fakeSet) SAdd(_ context.Context, key string, members ...any) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	if f.members[key] == nil {
		f.members[key] = map[string]struct{}{}
	}
	for _, m := range members {
		f.members[key][m.(string)] = struct{}{}
	}
	return redis.NewIntResult(int64(len(members)), nil)
}

func (f *fakeSet) SRem(_ context.Context, key string, members ...any) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	for _, m := range members {
		delete(f.members[key], m.(string))
	}
	return redis.NewIntResult(int64(len(members)), nil)
}

func TestRedis(t *testing.T) {
	ctx := context.Background()
	client := &fakeSet{members: map[string]map[string]struct{}{}}
	w := NewRedis(client, "", zap.NewNop())

	in, err := w.IsInWishlist(ctx, 42)
	require.NoError(t, err)
	assert.False(t, in)

	require.NoError(t, w.Add(ctx, 42))
	assert.Contains(t, client.members[DefaultKey], "42")

	in, err = w.IsInWishlist(ctx, 42)
	require.NoError(t, err)
	assert.True(t, in)

	require.NoError(t, w.Remove(ctx, 42))
	in, err = w.IsInWishlist(ctx, 42)
	require.NoError(t, err)
	assert.False(t, in)
}

func TestRedisFailure(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("timeout")
	w := NewRedis(&fakeSet{err: boom}, "favourites", zap.NewNop())

	_, err := w.IsInWishlist(ctx, 1)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, w.Add(ctx, 1), boom)
	assert.ErrorIs(t, w.Remove(ctx, 1), boom)
}
