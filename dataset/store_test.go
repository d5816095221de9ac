package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	return store
}

func TestStore_CreateAndGet(t *testing.T) {
	store := newTestStore(t)

	meta, err := store.Create("users.json", []byte(`[{"name":"Ada"},{"name":"Grace"}]`))
	require.NoError(t, err)
	assert.NotEmpty(t, meta.ID)
	assert.Equal(t, "users", meta.Name)
	assert.Equal(t, "json", meta.FileFormat)

	got, err := store.Get(meta.ID)
	require.NoError(t, err)
	require.NotNil(t, got.NumRecords)
	assert.Equal(t, 2, *got.NumRecords)
}

func TestStore_Create_Validation(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Create("", nil)
	assert.Error(t, err)

	_, err = store.Create("evil.exe", []byte("x"))
	assert.Error(t, err)

	_, err = store.Create("bad__name.json", []byte("[]"))
	assert.Error(t, err)
}

func TestStore_Create_NameCollision(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Create("users.json", []byte(`[]`))
	require.NoError(t, err)

	_, err = store.Create("users.jsonl", []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestStore_RecordFormats(t *testing.T) {
	store := newTestStore(t)

	t.Run("json array", func(t *testing.T) {
		meta, err := store.Create("array.json", []byte(`[{"a":1},{"a":2},{"a":3}]`))
		require.NoError(t, err)

		n, err := store.Count(meta.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		rec, err := store.Record(meta.ID, 1)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"a": float64(2)}, rec)
	})

	t.Run("single json object", func(t *testing.T) {
		meta, err := store.Create("object.json", []byte(`{"k":"v"}`))
		require.NoError(t, err)

		n, err := store.Count(meta.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("jsonl", func(t *testing.T) {
		meta, err := store.Create("lines.jsonl", []byte("{\"x\":1}\n{\"x\":2}\n\n"))
		require.NoError(t, err)

		n, err := store.Count(meta.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("txt", func(t *testing.T) {
		meta, err := store.Create("notes.txt", []byte("plain text content"))
		require.NoError(t, err)

		rec, err := store.Record(meta.ID, 0)
		require.NoError(t, err)
		assert.Equal(t, "plain text content", rec)
	})
}

func TestStore_Record_OutOfRange(t *testing.T) {
	store := newTestStore(t)

	meta, err := store.Create("small.json", []byte(`[{"a":1}]`))
	require.NoError(t, err)

	_, err = store.Record(meta.ID, 5)
	assert.Error(t, err)

	_, err = store.Record(meta.ID, -1)
	assert.Error(t, err)
}

func TestStore_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get("no-such-id")
	assert.Error(t, err)

	// Deleting a missing dataset is a no-op
	assert.NoError(t, store.Delete("no-such-id"))
}

func TestStore_Delete(t *testing.T) {
	store := newTestStore(t)

	meta, err := store.Create("gone.json", []byte(`[]`))
	require.NoError(t, err)

	require.NoError(t, store.Delete(meta.ID))

	_, err = store.Get(meta.ID)
	assert.Error(t, err)
}

func TestStore_List_SkipsUnrecognizedFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "stray.json"), []byte("[]"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("#"), 0644))

	_, err = store.Create("real.json", []byte(`[]`))
	require.NoError(t, err)

	list, err := store.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "real", list[0].Name)
}

func TestStore_AppendField(t *testing.T) {
	store := newTestStore(t)

	meta, err := store.Create("merge.jsonl", []byte("{\"q\":\"a\"}\n{\"q\":\"b\"}\n"))
	require.NoError(t, err)

	err = store.AppendField(meta.ID, "answer", map[int]any{0: "A", 1: "B"})
	require.NoError(t, err)

	records, err := store.Records(meta.ID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "A", records[0].(map[string]any)["answer"])
	assert.Equal(t, "B", records[1].(map[string]any)["answer"])

	t.Run("txt dataset rejects merge", func(t *testing.T) {
		txt, err := store.Create("plain.txt", []byte("x"))
		require.NoError(t, err)
		assert.Error(t, store.AppendField(txt.ID, "f", map[int]any{0: 1}))
	})
}
