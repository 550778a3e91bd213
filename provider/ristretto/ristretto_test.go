package ristretto

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRistrettoRoundTrip(t *testing.T) {
	ctx := context.Background()
	p, err := New(Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(ctx) })

	require.NoError(t, p.Set(ctx, "cache.f.cbor", []byte("payload")))

	got, ok, err := p.Get(ctx, "cache.f.cbor")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "payload", string(got))

	existed, err := p.Del(ctx, "cache.f.cbor")
	require.NoError(t, err)
	assert.True(t, existed)

	exists, err := p.Exists(ctx, "cache.f.cbor")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRistrettoSetCopiesValue(t *testing.T) {
	ctx := context.Background()
	p, err := New(Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(ctx) })

	buf := []byte("abc")
	require.NoError(t, p.Set(ctx, "k", buf))
	buf[0] = 'X'

	got, ok, err := p.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "abc", string(got))
}

func TestRistrettoRejectsNegativeConfig(t *testing.T) {
	_, err := New(Config{MaxCost: -1})
	assert.Error(t, err)
}
