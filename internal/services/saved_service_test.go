package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"luxemap/estates/internal/fixtures"
	"luxemap/estates/internal/utils"
)

func exerciseSavedService(t *testing.T, svc ISavedService) {
	t.Helper()
	ctx := context.Background()

	saved, err := svc.Toggle(ctx, "v1", "3")
	require.NoError(t, err)
	assert.True(t, saved)

	saved, err = svc.Toggle(ctx, "v1", "1")
	require.NoError(t, err)
	assert.True(t, saved)

	ids, err := svc.List(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "3"}, ids)

	others, err := svc.List(ctx, "v2")
	require.NoError(t, err)
	assert.Empty(t, others)

	saved, err = svc.Toggle(ctx, "v1", "3")
	require.NoError(t, err)
	assert.False(t, saved)

	ids, err = svc.List(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, ids)

	_, err = svc.Toggle(ctx, "v1", "999")
	assert.ErrorIs(t, err, ErrPropertyNotFound)

	require.NoError(t, svc.Forget(ctx, "v1"))
	ids, err = svc.List(ctx, "v1")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestSavedService_Memory(t *testing.T) {
	exerciseSavedService(t, NewSavedService(fixtures.MustDefault(), nil, time.Minute))
}

func TestSavedService_Redis(t *testing.T) {
	rdb := utils.SetupTestRedis(t)
	svc := NewSavedService(fixtures.MustDefault(), rdb, time.Minute)
	exerciseSavedService(t, svc)

	_, err := svc.Toggle(context.Background(), "v3", "2")
	require.NoError(t, err)
	ttl, err := rdb.PTTL(context.Background(), savedKey("v3")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)
}

func TestImageOverrides_Redis(t *testing.T) {
	rdb := utils.SetupTestRedis(t)
	o := NewImageOverrides(rdb)
	ctx := context.Background()

	require.NoError(t, o.Set(ctx, "1", "https://cdn/1.jpg"))
	all, err := o.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"1": "https://cdn/1.jpg"}, all)
}
