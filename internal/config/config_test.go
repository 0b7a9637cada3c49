package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, "files", cfg.StorageBackend)
	assert.Equal(t, "backend", cfg.TTSService)
	assert.Equal(t, 500*time.Millisecond, cfg.BatchCooldown)
	assert.Equal(t, time.Second, cfg.AutosaveDelay)
	assert.Equal(t, 300, cfg.ExportGapMs)
	assert.Equal(t, "http://127.0.0.1:8000", cfg.Backend.URL)
	assert.Equal(t, "Host (Leo)", cfg.Defaults.HostName)
	assert.NotEmpty(t, cfg.ProjectsDir)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PROJECTS_DIR", "/srv/banter")
	t.Setenv("STORAGE_BACKEND", "sqlite")
	t.Setenv("BATCH_COOLDOWN", "2s")
	t.Setenv("EXPORT_GAP_MS", "150")
	t.Setenv("DEFAULT_GUEST_NAME", "Guest (Max)")
	t.Setenv("BACKEND_URL", "http://10.0.0.2:9000")
	t.Setenv("YC_TTS_VOICE", "filipp")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/srv/banter", cfg.ProjectsDir)
	assert.Equal(t, "sqlite", cfg.StorageBackend)
	assert.Equal(t, 2*time.Second, cfg.BatchCooldown)
	assert.Equal(t, 150, cfg.ExportGapMs)
	assert.Equal(t, "Guest (Max)", cfg.Defaults.GuestName)
	assert.Equal(t, "Host (Leo)", cfg.Defaults.HostName)
	assert.Equal(t, "http://10.0.0.2:9000", cfg.Backend.URL)
	assert.Equal(t, "filipp", cfg.YandexTTS.Voice)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("AUTOSAVE_DELAY", "soon")
	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	cfg.ProjectsDir = t.TempDir()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, filepath.Join(cfg.ProjectsDir, "projects.db"), cfg.SQLitePath)

	cfg.StorageBackend = "s3"
	assert.Error(t, cfg.Validate())

	cfg = Defaults()
	cfg.TTSService = "yandex"
	assert.Error(t, cfg.Validate())
	cfg.YandexTTS.APIKey = "key"
	assert.NoError(t, cfg.Validate())

	cfg.TTSService = "espeak"
	assert.Error(t, cfg.Validate())
}

func TestValidateGoogleCredentials(t *testing.T) {
	cred := filepath.Join(t.TempDir(), "sa.json")
	require.NoError(t, os.WriteFile(cred, []byte("{}"), 0o600))
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	cfg := Defaults()
	cfg.TTSService = "google"
	cfg.GoogleTTS.CredentialsPath = filepath.Join(t.TempDir(), "missing.json")
	assert.Error(t, cfg.Validate())

	cfg.GoogleTTS.CredentialsPath = cred
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	require.NoError(t, cfg.Validate())
	assert.Equal(t, cred, os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
}
