package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/loomworks/loom/db"
	"github.com/loomworks/loom/errors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	store, err := NewStore(conn, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	return store
}

func TestStore_CreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, "greeting", "Hello, {{name}}!")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, 1, created.Version)

	got, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hello, {{name}}!", got.Content)
	assert.Equal(t, "greeting", got.Name)

	byName, err := store.GetByName(ctx, "greeting")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byName.ID)
}

func TestStore_Create_Validation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, "", "body")
	assert.Error(t, err)

	_, err = store.Create(ctx, "broken", "{{if}}oops")
	assert.Error(t, err)

	_, err = store.Create(ctx, "badmeta", "---\ntemperature: 9.0\n---\nbody")
	assert.Error(t, err)
}

func TestStore_Create_NameConflict(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, "dup", "one")
	require.NoError(t, err)

	_, err = store.Create(ctx, "dup", "two")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))
}

func TestStore_Update_CreatesVersions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, "evolving", "v1 {{x}}")
	require.NoError(t, err)

	second := "v2 {{x}}"
	updated, err := store.Update(ctx, created.ID, nil, &second)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, second, updated.Content)

	// Same content does not create a version
	same, err := store.Update(ctx, created.ID, nil, &second)
	require.NoError(t, err)
	assert.Equal(t, 2, same.Version)

	versions, err := store.Versions(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 2, versions[0].Version)
	assert.Equal(t, "v1 {{x}}", versions[1].Content)
}

func TestStore_Update_Rename(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a, err := store.Create(ctx, "alpha", "a")
	require.NoError(t, err)
	_, err = store.Create(ctx, "beta", "b")
	require.NoError(t, err)

	taken := "beta"
	_, err = store.Update(ctx, a.ID, &taken, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))

	fresh := "gamma"
	renamed, err := store.Update(ctx, a.ID, &fresh, nil)
	require.NoError(t, err)
	assert.Equal(t, "gamma", renamed.Name)
	assert.Equal(t, 1, renamed.Version)
}

func TestStore_List(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, "zeta", "z")
	require.NoError(t, err)
	created, err := store.Create(ctx, "alpha", "a1")
	require.NoError(t, err)

	newContent := "a2"
	_, err = store.Update(ctx, created.ID, nil, &newContent)
	require.NoError(t, err)

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].Name)
	assert.Equal(t, "a2", list[0].Content)
	assert.Equal(t, 2, list[0].Version)
}

func TestStore_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, "doomed", "bye")
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, created.ID))

	_, err = store.Get(ctx, created.ID)
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))

	// Idempotent
	assert.NoError(t, store.Delete(ctx, created.ID))
}

func TestStore_NotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.True(t, errors.IsNotFoundError(err))

	_, err = store.GetByName(ctx, "missing")
	assert.True(t, errors.IsNotFoundError(err))

	_, err = store.Versions(ctx, "missing")
	assert.True(t, errors.IsNotFoundError(err))
}
