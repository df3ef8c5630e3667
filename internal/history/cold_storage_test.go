package history

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mqd/internal/models"
	"mqd/internal/testutil"
)

func newTestColdStorage(t *testing.T, coldTTL time.Duration) *ColdStorage {
	dir := filepath.Join(t.TempDir(), "authors")
	return NewColdStorage(dir, coldTTL, &testutil.MockCompressor{}, &testutil.MockLogger{})
}

func coldAuthor(userID string, likes int) *models.AuthorPersistence {
	return &models.AuthorPersistence{
		UserID:   userID,
		Username: "user-" + userID,
		Posts:    []models.Post{{ID: userID + "-p1"}},
		Engagement: models.EngagementTotals{
			TotalLikes: likes,
		},
	}
}

func TestColdStorage_Has_Empty(t *testing.T) {
	cs := newTestColdStorage(t, 0)
	assert.False(t, cs.Has("default", "u1"))
}

func TestColdStorage_Evict_AddsToIndex(t *testing.T) {
	cs := newTestColdStorage(t, 0)
	cs.Evict("default", "u1", coldAuthor("u1", 5))

	assert.True(t, cs.Has("default", "u1"))
	assert.False(t, cs.Has("default", "u2"))
	assert.False(t, cs.Has("golang", "u1"))
}

func TestColdStorage_Evict_NoIO(t *testing.T) {
	cs := newTestColdStorage(t, 0)
	cs.Evict("default", "u1", coldAuthor("u1", 1))

	// No file should exist until Flush
	_, err := os.Stat(cs.coldFilePath("default"))
	assert.True(t, os.IsNotExist(err))
}

func TestColdStorage_RestoreFromPending(t *testing.T) {
	cs := newTestColdStorage(t, 0)
	cs.Evict("default", "u1", coldAuthor("u1", 10))

	restored, err := cs.Restore("default", "u1")
	require.NoError(t, err)
	require.NotNil(t, restored)

	assert.Equal(t, "u1", restored.UserID)
	assert.Equal(t, 10, restored.Engagement.TotalLikes)

	// Should be removed from index and pending
	assert.False(t, cs.Has("default", "u1"))
	cs.mu.RLock()
	_, inPending := cs.pending["default"]["u1"]
	cs.mu.RUnlock()
	assert.False(t, inPending)
}

func TestColdStorage_RestoreNonExistent(t *testing.T) {
	cs := newTestColdStorage(t, 0)
	restored, err := cs.Restore("default", "u_missing")
	assert.NoError(t, err)
	assert.Nil(t, restored)
}

func TestColdStorage_EvictFlushRestoreRoundtrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "authors")
	comp := &testutil.MockCompressor{}
	logger := &testutil.MockLogger{}

	cs := NewColdStorage(dir, 0, comp, logger)
	cs.Evict("default", "u1", coldAuthor("u1", 42))
	cs.Evict("golang", "u2", coldAuthor("u2", 100))

	require.NoError(t, cs.Flush())

	_, err := os.Stat(cs.coldFilePath("default"))
	assert.NoError(t, err)
	_, err = os.Stat(cs.coldFilePath("golang"))
	assert.NoError(t, err)

	// Fresh instance over the same directory
	cs2 := NewColdStorage(dir, 0, comp, logger)
	require.NoError(t, cs2.RestoreIndex())

	assert.True(t, cs2.Has("default", "u1"))
	assert.True(t, cs2.Has("golang", "u2"))

	restored, err := cs2.Restore("default", "u1")
	require.NoError(t, err)
	require.NotNil(t, restored)
	assert.Equal(t, "u1", restored.UserID)
	assert.Equal(t, 42, restored.Engagement.TotalLikes)
	require.Len(t, restored.Posts, 1)

	// u1 should no longer be in index
	assert.False(t, cs2.Has("default", "u1"))
	// u2 still there
	assert.True(t, cs2.Has("golang", "u2"))
}

func TestColdStorage_LazyDelete(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "authors")
	comp := &testutil.MockCompressor{}
	logger := &testutil.MockLogger{}

	cs := NewColdStorage(dir, 0, comp, logger)
	cs.Evict("default", "u1", coldAuthor("u1", 1))
	cs.Evict("default", "u2", coldAuthor("u2", 2))
	require.NoError(t, cs.Flush())

	// Restore u1 (lazy delete)
	_, err := cs.Restore("default", "u1")
	require.NoError(t, err)

	// u1 should be in restored set, not yet deleted from file
	cs.mu.RLock()
	_, inRestored := cs.restored["default"]["u1"]
	cs.mu.RUnlock()
	assert.True(t, inRestored)

	// Flush applies lazy deletes
	require.NoError(t, cs.Flush())

	cs2 := NewColdStorage(dir, 0, comp, logger)
	require.NoError(t, cs2.RestoreIndex())

	assert.False(t, cs2.Has("default", "u1"))
	assert.True(t, cs2.Has("default", "u2"))
}

func TestColdStorage_ColdTTL(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "authors")
	comp := &testutil.MockCompressor{}
	logger := &testutil.MockLogger{}

	cs := NewColdStorage(dir, 1*time.Hour, comp, logger)
	cs.Evict("default", "u_old", coldAuthor("u_old", 1))

	// Manually backdate the entry
	cs.mu.Lock()
	cs.pending["default"]["u_old"].EvictedAt = time.Now().Add(-2 * time.Hour)
	cs.mu.Unlock()

	cs.Evict("default", "u_new", coldAuthor("u_new", 2))

	// Flush — u_old should be cleaned by coldTTL
	require.NoError(t, cs.Flush())

	cs2 := NewColdStorage(dir, 1*time.Hour, comp, logger)
	require.NoError(t, cs2.RestoreIndex())

	assert.False(t, cs2.Has("default", "u_old")) // expired
	assert.True(t, cs2.Has("default", "u_new"))  // still valid
}

func TestColdStorage_FlushEmpty(t *testing.T) {
	cs := newTestColdStorage(t, 0)
	require.NoError(t, cs.Flush())
}

func TestColdStorage_FlushRemovesEmptyFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "authors")
	comp := &testutil.MockCompressor{}
	logger := &testutil.MockLogger{}

	cs := NewColdStorage(dir, 0, comp, logger)
	cs.Evict("default", "u1", coldAuthor("u1", 1))
	require.NoError(t, cs.Flush())

	_, err := os.Stat(cs.coldFilePath("default"))
	require.NoError(t, err)

	// Restore the only entry
	_, err = cs.Restore("default", "u1")
	require.NoError(t, err)

	// Flush — file should be removed since it's empty
	require.NoError(t, cs.Flush())

	_, err = os.Stat(cs.coldFilePath("default"))
	assert.True(t, os.IsNotExist(err))
}

func TestColdStorage_RestoreIndex_NoDir(t *testing.T) {
	cs := NewColdStorage(filepath.Join(t.TempDir(), "nonexistent", "authors"), 0, &testutil.MockCompressor{}, &testutil.MockLogger{})
	// Should create dir and succeed
	require.NoError(t, cs.RestoreIndex())
}

func TestColdStorage_RestoreIndex_EmptyDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "authors")
	require.NoError(t, os.MkdirAll(dir, 0755))

	cs := NewColdStorage(dir, 0, &testutil.MockCompressor{}, &testutil.MockLogger{})
	require.NoError(t, cs.RestoreIndex())
	assert.Empty(t, cs.index)
}

func TestColdStorage_CorruptFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "authors")
	require.NoError(t, os.MkdirAll(dir, 0755))

	// MockCompressor passes bytes through, so invalid JSON is enough
	require.NoError(t, os.WriteFile(filepath.Join(dir, "default.cold.zst"), []byte("not json"), 0644))

	cs := NewColdStorage(dir, 0, &testutil.MockCompressor{}, &testutil.MockLogger{})
	require.NoError(t, cs.RestoreIndex())

	assert.False(t, cs.Has("default", "u1"))
}

func TestColdStorage_EvictOverwrite(t *testing.T) {
	cs := newTestColdStorage(t, 0)
	cs.Evict("default", "u1", coldAuthor("u1", 1))
	cs.Evict("default", "u1", coldAuthor("u1", 99))

	restored, err := cs.Restore("default", "u1")
	require.NoError(t, err)
	assert.Equal(t, 99, restored.Engagement.TotalLikes) // latest wins
}

func TestColdStorage_MultipleCommunities(t *testing.T) {
	cs := newTestColdStorage(t, 0)
	cs.Evict("golang", "u1", coldAuthor("u1", 1))
	cs.Evict("devops", "u1", coldAuthor("u1", 2))

	assert.True(t, cs.Has("golang", "u1"))
	assert.True(t, cs.Has("devops", "u1"))

	r1, _ := cs.Restore("golang", "u1")
	assert.Equal(t, 1, r1.Engagement.TotalLikes)

	r2, _ := cs.Restore("devops", "u1")
	assert.Equal(t, 2, r2.Engagement.TotalLikes)
}

func TestColdStorage_RealCompressorRoundtrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "authors")
	comp, err := NewZstdCompressor()
	require.NoError(t, err)
	logger := &testutil.MockLogger{}

	cs := NewColdStorage(dir, 0, comp, logger)
	cs.Evict("default", "u1", coldAuthor("u1", 7))
	require.NoError(t, cs.Flush())

	cs2 := NewColdStorage(dir, 0, comp, logger)
	require.NoError(t, cs2.RestoreIndex())

	restored, err := cs2.Restore("default", "u1")
	require.NoError(t, err)
	require.NotNil(t, restored)
	assert.Equal(t, 7, restored.Engagement.TotalLikes)
}

func TestColdStorage_FlushMergesPendingWithExisting(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "authors")
	comp := &testutil.MockCompressor{}
	logger := &testutil.MockLogger{}

	cs := NewColdStorage(dir, 0, comp, logger)
	cs.Evict("default", "u1", coldAuthor("u1", 1))
	require.NoError(t, cs.Flush())

	cs.Evict("default", "u2", coldAuthor("u2", 2))
	require.NoError(t, cs.Flush())

	cs2 := NewColdStorage(dir, 0, comp, logger)
	require.NoError(t, cs2.RestoreIndex())
	assert.True(t, cs2.Has("default", "u1"))
	assert.True(t, cs2.Has("default", "u2"))
}
