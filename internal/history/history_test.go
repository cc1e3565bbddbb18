package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/mrefbuilder/internal/foundation/errors"
)

func record(id string, started time.Time) Record {
	return Record{
		ID:         id,
		StartedAt:  started,
		Duration:   1500 * time.Millisecond,
		Status:     "success",
		Output:     "/out/reflection.xml",
		ConfigHash: "abc",
		AddIns:     []string{"extension-methods"},
		Namespaces: 2,
		Types:      10,
		Members:    40,
	}
}

func TestStore_RoundTrip(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	started := time.UnixMilli(1_700_000_000_123)
	require.NoError(t, store.Append(t.Context(), record("b1", started)))

	got, err := store.Get(t.Context(), "b1")
	require.NoError(t, err)
	want := record("b1", started)
	assert.Equal(t, want.ID, got.ID)
	assert.True(t, want.StartedAt.Equal(got.StartedAt))
	assert.Equal(t, want.Duration, got.Duration)
	assert.Equal(t, want.AddIns, got.AddIns)
	assert.Equal(t, 40, got.Members)
	assert.Empty(t, got.Error)
}

func TestStore_RecentAndPrune(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	base := time.Now()
	for i, id := range []string{"b1", "b2", "b3", "b4"} {
		require.NoError(t, store.Append(t.Context(), record(id, base.Add(time.Duration(i)*time.Minute))))
	}

	recent, err := store.Recent(t.Context(), 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "b4", recent[0].ID)
	assert.Equal(t, "b3", recent[1].ID)

	deleted, err := store.Prune(t.Context(), 3)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	all, err := store.Recent(t.Context(), 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestStore_Errors(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	_, err = store.Get(t.Context(), "missing")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryNotFound))

	require.NoError(t, store.Append(t.Context(), record("dup", time.Now())))
	err = store.Append(t.Context(), record("dup", time.Now()))
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryHistory))
}

var _ Store = (*SQLiteStore)(nil)
