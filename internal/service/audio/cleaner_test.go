package audio

import (
	"BanterStudio/internal/project"
	"BanterStudio/internal/storage"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func touch(t *testing.T, path string, age time.Duration) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	ts := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, ts, ts))
}

func TestCleanRemovesOnlyOldOrphans(t *testing.T) {
	dir := t.TempDir()
	kept := filepath.Join(dir, "Draft_1.mp3")
	orphan := filepath.Join(dir, "Draft_2.mp3")
	fresh := filepath.Join(dir, "Draft_3.wav")
	other := filepath.Join(dir, "notes.txt")
	touch(t, kept, 48*time.Hour)
	touch(t, orphan, 48*time.Hour)
	touch(t, fresh, time.Minute)
	touch(t, other, 48*time.Hour)

	c := NewCleaner(zap.NewNop().Sugar())
	removed := c.Clean(dir, 24*time.Hour, false, map[string]struct{}{kept: {}})

	assert.Equal(t, 1, removed)
	assert.FileExists(t, kept)
	assert.NoFileExists(t, orphan)
	assert.FileExists(t, fresh)
	assert.FileExists(t, other)
}

func TestCleanDebugAndMissingDir(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "a.mp3")
	touch(t, old, 48*time.Hour)

	c := NewCleaner(zap.NewNop().Sugar())
	assert.Zero(t, c.Clean(dir, time.Hour, true, nil))
	assert.FileExists(t, old)
	assert.Zero(t, c.Clean(filepath.Join(dir, "missing"), time.Hour, false, nil))
	assert.Zero(t, c.Clean(dir, 0, false, nil))
}

func TestReferenced(t *testing.T) {
	gw, err := storage.NewFiles(t.TempDir(), zap.NewNop().Sugar())
	require.NoError(t, err)
	p := project.Project{DisplayName: "Draft", Utterances: []project.Utterance{
		{ID: "1", Status: project.StatusSuccess, AudioLocation: "/p/audio/Draft_1.mp3"},
		{ID: "2", Status: project.StatusIdle},
	}}
	require.NoError(t, gw.Write(context.Background(), p.Key(), project.Document{Project: p, UpdatedAt: 1}))

	refs, err := Referenced(context.Background(), gw)
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{filepath.Clean("/p/audio/Draft_1.mp3"): {}}, refs)
}
