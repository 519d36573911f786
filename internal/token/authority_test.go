package token

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrentIssuesImplicitly(t *testing.T) {
	a := NewAuthority(NewMemoryStore())
	ctx := context.Background()

	cur, err := a.Current(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, cur.Value)
	assert.False(t, cur.IssuedAt.IsZero())

	// Stable across reads until rotated.
	again, err := a.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, cur, again)
}

func TestRotateInvalidatesPreviousValue(t *testing.T) {
	a := NewAuthority(NewMemoryStore())
	ctx := context.Background()

	old, err := a.Current(ctx)
	require.NoError(t, err)

	fresh, err := a.Rotate(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, old.Value, fresh.Value)

	ok, err := a.Validate(ctx, old.Value)
	require.NoError(t, err)
	assert.False(t, ok, "previous value must fail from the rotation instant")

	ok, err = a.Validate(ctx, fresh.Value)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestValidateRejectsEmpty(t *testing.T) {
	a := NewAuthority(NewMemoryStore())
	ok, err := a.Validate(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAuthorityReloadsFromStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first, err := NewAuthority(store).Current(ctx)
	require.NoError(t, err)

	// A fresh authority over the same store sees the persisted token, not a new one.
	second, err := NewAuthority(store).Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.Value, second.Value)
}
