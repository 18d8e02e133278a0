package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdhe/openrouter-go/pkg/openrouter"
)

type fakeLister struct {
	calls atomic.Int32
	resp  *openrouter.ListModelsResponse
	err   error
}

func (f *fakeLister) ListModels(context.Context) (*openrouter.ListModelsResponse, error) {
	f.calls.Add(1)
	return f.resp, f.err
}

func sampleCatalog() *openrouter.ListModelsResponse {
	return &openrouter.ListModelsResponse{Data: []openrouter.Model{
		{
			ID:            "openai/gpt-4o",
			Name:          "GPT-4o",
			Created:       openrouter.UnixTime{Time: time.Unix(1715367049, 0).UTC()},
			ContextLength: 128000,
			Pricing: openrouter.Pricing{
				Prompt:     decimal.RequireFromString("0.0000025"),
				Completion: decimal.RequireFromString("0.00001"),
				Image:      decimal.NewNullDecimal(decimal.RequireFromString("0.003613")),
			},
		},
		{ID: "anthropic/claude-3.5-sonnet", Name: "Claude 3.5 Sonnet"},
	}}
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := NewRedisCache(mr.Addr(), "", 0, time.Hour)
	t.Cleanup(func() { rc.Close() })
	return mr, rc
}

func TestCatalog_MemoryTier(t *testing.T) {
	lister := &fakeLister{resp: sampleCatalog()}
	c, err := NewCatalog(lister, nil, 16, time.Minute)
	require.NoError(t, err)

	for range 3 {
		resp, err := c.Models(t.Context())
		require.NoError(t, err)
		assert.Len(t, resp.Data, 2)
	}
	assert.Equal(t, int32(1), lister.calls.Load())
}

func TestCatalog_Expiry(t *testing.T) {
	lister := &fakeLister{resp: sampleCatalog()}
	c, err := NewCatalog(lister, nil, 16, time.Minute)
	require.NoError(t, err)
	now := time.Now()
	c.now = func() time.Time { return now }

	_, err = c.Models(t.Context())
	require.NoError(t, err)
	now = now.Add(2 * time.Minute)
	_, err = c.Models(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int32(2), lister.calls.Load())
}

func TestCatalog_RedisTierSharedAcrossInstances(t *testing.T) {
	mr, rc := newRedis(t)
	lister := &fakeLister{resp: sampleCatalog()}

	first, err := NewCatalog(lister, rc, 16, time.Minute)
	require.NoError(t, err)
	_, err = first.Models(t.Context())
	require.NoError(t, err)
	assert.True(t, mr.Exists(catalogKey))

	second, err := NewCatalog(lister, rc, 16, time.Minute)
	require.NoError(t, err)
	resp, err := second.Models(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int32(1), lister.calls.Load(), "second instance must be served by redis")

	m := resp.Data[0]
	assert.Equal(t, "0.0000025", m.Pricing.Prompt.String())
	assert.True(t, m.Pricing.Image.Valid)
	assert.False(t, m.Pricing.Request.Valid)
	assert.Equal(t, int64(1715367049), m.Created.Unix())
}

func TestRedisCache_Catalog(t *testing.T) {
	mr, rc := newRedis(t)

	_, _, found, err := rc.LoadCatalog(t.Context())
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, rc.StoreCatalog(t.Context(), sampleCatalog()))
	mr.FastForward(20 * time.Minute)

	resp, remaining, found, err := rc.LoadCatalog(t.Context())
	require.NoError(t, err)
	require.True(t, found)
	assert.Len(t, resp.Data, 2)
	assert.Equal(t, 40*time.Minute, remaining)

	// A catalog written without an expiry falls back to the configured TTL.
	stored, err := mr.Get(catalogKey)
	require.NoError(t, err)
	require.NoError(t, mr.Set(catalogKey, stored))
	_, remaining, _, err = rc.LoadCatalog(t.Context())
	require.NoError(t, err)
	assert.Equal(t, time.Hour, remaining)

	require.NoError(t, mr.Set(catalogKey, "{not json"))
	_, _, found, err = rc.LoadCatalog(t.Context())
	assert.Error(t, err)
	assert.False(t, found)
}

func TestCatalog_LocalCopyExpiresWithShared(t *testing.T) {
	mr, rc := newRedis(t)
	lister := &fakeLister{resp: sampleCatalog()}

	first, err := NewCatalog(lister, rc, 16, time.Hour)
	require.NoError(t, err)
	_, err = first.Models(t.Context())
	require.NoError(t, err)

	// The shared copy has one minute left when the second instance reads it.
	mr.FastForward(59 * time.Minute)
	second, err := NewCatalog(lister, rc, 16, time.Hour)
	require.NoError(t, err)
	now := time.Now()
	second.now = func() time.Time { return now }
	_, err = second.Models(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int32(1), lister.calls.Load())

	mr.FastForward(2 * time.Minute)
	now = now.Add(2 * time.Minute)
	_, err = second.Models(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int32(2), lister.calls.Load(), "local copy must expire with the shared one")
}

func TestCatalog_RedisFailureDegradesToAPI(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rc := NewRedisCache(mr.Addr(), "", 0, time.Hour)
	defer rc.Close()
	mr.Close()

	lister := &fakeLister{resp: sampleCatalog()}
	c, err := NewCatalog(lister, rc, 16, time.Minute)
	require.NoError(t, err)

	resp, err := c.Models(t.Context())
	require.NoError(t, err)
	assert.Len(t, resp.Data, 2)
	assert.Equal(t, int32(1), lister.calls.Load())
}

func TestCatalog_Model(t *testing.T) {
	lister := &fakeLister{resp: sampleCatalog()}
	c, err := NewCatalog(lister, nil, 16, time.Minute)
	require.NoError(t, err)

	m, err := c.Model(t.Context(), "anthropic/claude-3.5-sonnet")
	require.NoError(t, err)
	assert.Equal(t, "Claude 3.5 Sonnet", m.Name)

	_, err = c.Model(t.Context(), "missing/model")
	assert.ErrorIs(t, err, ErrModelNotFound)
}

func TestCatalog_InvalidateAndErrors(t *testing.T) {
	mr, rc := newRedis(t)
	lister := &fakeLister{resp: sampleCatalog()}
	c, err := NewCatalog(lister, rc, 16, time.Minute)
	require.NoError(t, err)

	_, err = c.Models(t.Context())
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(t.Context()))
	assert.False(t, mr.Exists(catalogKey))

	lister.err = errors.New("upstream down")
	_, err = c.Models(t.Context())
	assert.EqualError(t, err, "upstream down")
}
