package keywords

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ToffenYT/varsly/internal/store"
)

func TestAdd(t *testing.T) {
	st := store.NewMemory()
	svc := NewService(st)
	ctx := context.Background()

	k, err := svc.Add(ctx, "u1", "  asfalt ")
	require.NoError(t, err)
	assert.Equal(t, "asfalt", k.Text)
	assert.NotEmpty(t, k.ID)

	_, err = svc.Add(ctx, "u1", "ASFALT")
	assert.ErrorIs(t, err, ErrDuplicateKeyword)

	_, err = svc.Add(ctx, "u1", "   ")
	assert.ErrorIs(t, err, ErrEmptyKeyword)

	_, err = svc.Add(ctx, "u2", "Asfalt")
	assert.NoError(t, err, "duplicates are per owner")

	list, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRemove(t *testing.T) {
	st := store.NewMemory()
	svc := NewService(st)
	ctx := context.Background()

	k, err := svc.Add(ctx, "u1", "brøyting")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Remove(ctx, "u2", k.ID), store.ErrNotFound)
	require.NoError(t, svc.Remove(ctx, "u1", k.ID))

	_, err = svc.Add(ctx, "u1", "Brøyting")
	assert.NoError(t, err, "removed keyword can be registered again")
}
