package session

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildenergy/epmod/internal/idf"
	"github.com/buildenergy/epmod/internal/testutil"
)

func newArena(t *testing.T) (*Arena, string) {
	t.Helper()
	logger := testutil.TestLogger()
	return NewArena(idf.NewGateway(logger), logger), testutil.WriteSampleDoc(t, t.TempDir())
}

func TestAcquireSharesSessionPerPath(t *testing.T) {
	arena, path := newArena(t)

	first, err := arena.Acquire(path)
	require.NoError(t, err)

	// A relative spelling of the same document resolves to the same session.
	wd, err := filepath.Rel(mustGetwd(t), path)
	if err == nil {
		second, err := arena.Acquire(wd)
		require.NoError(t, err)
		assert.Same(t, first, second)
	}

	again, err := arena.Acquire(path)
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.Equal(t, 1, arena.Len())
}

func TestAcquireMissingDocument(t *testing.T) {
	arena, _ := newArena(t)
	_, err := arena.Acquire(filepath.Join(t.TempDir(), "absent.idf"))
	assert.ErrorIs(t, err, idf.ErrNotFound)
	assert.Equal(t, 0, arena.Len())
}

func TestSnapshotIsIndependent(t *testing.T) {
	arena, path := newArena(t)
	sess, err := arena.Acquire(path)
	require.NoError(t, err)

	snap := sess.Snapshot()
	snap.Objects(idf.ClassPeople)[0].Set("Number_of_People", "99")

	v, _ := sess.Model().Objects(idf.ClassPeople)[0].Get("Number_of_People")
	assert.Equal(t, "5", v)
}

func TestGetAndUnload(t *testing.T) {
	arena, path := newArena(t)
	sess, err := arena.Acquire(path)
	require.NoError(t, err)

	got, ok := arena.Get(sess.ID)
	require.True(t, ok)
	assert.Same(t, sess, got)

	arena.Unload(sess.ID)
	_, ok = arena.Get(sess.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, arena.Len())

	// Re-acquiring after unload reloads from disk as a new session.
	fresh, err := arena.Acquire(path)
	require.NoError(t, err)
	assert.NotEqual(t, sess.ID, fresh.ID)
}

func mustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := filepath.Abs(".")
	require.NoError(t, err)
	return wd
}
