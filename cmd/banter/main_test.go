package main

import (
	"BanterStudio/internal/config"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	cfg := config.Defaults()
	cfg.ProjectsDir = dir

	var out bytes.Buffer
	cmd := newRootCommand(cfg)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommandWiresSubcommands(t *testing.T) {
	cmd := newRootCommand(config.Defaults())

	names := map[string]bool{}
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"projects", "import", "utterances", "speaker", "voice", "list-voices", "generate", "play", "export", "serve", "clean-audio"} {
		assert.True(t, names[want], want)
	}
	for _, flag := range []string{"debug", "projects-dir", "storage", "sqlite-path", "tts", "backend-url", "cooldown", "project"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), flag)
	}
}

func TestProjectLifecycleFromCLI(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, dir, "projects", "new", "--name", "Demo")
	require.NoError(t, err)
	assert.Contains(t, out, `Created "Demo" (Demo.json)`)

	out, err = run(t, dir, "-p", "Demo", "utterances", "add", "--role", "guest", "--text", "Hello there")
	require.NoError(t, err)
	id := strings.TrimSpace(out)
	require.NotEmpty(t, id)

	_, err = run(t, dir, "-p", "Demo", "speaker", "guest", "Jane")
	require.NoError(t, err)

	out, err = run(t, dir, "-p", "Demo", "projects", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "guest: Jane")
	assert.Contains(t, out, id)
	assert.Contains(t, out, "Hello there")

	out, err = run(t, dir, "projects", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Demo.json")
}

func TestImportCreatesProject(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(t.TempDir(), "episode.json")
	require.NoError(t, os.WriteFile(script, []byte(`{"dialogue_list":[
		{"id":"1","speaker":"Speaker 2","content":"Hi"},
		{"id":"2","speaker":"Speaker 1","content":"Hello"}
	]}`), 0o644))

	out, err := run(t, dir, "import", script, "--name", "Episode")
	require.NoError(t, err)
	assert.Contains(t, out, `Imported 2 utterances into "Episode"`)
	assert.FileExists(t, filepath.Join(dir, "Episode.json"))

	out, err = run(t, dir, "-p", "Episode", "export", "--plan")
	require.NoError(t, err)
	assert.Contains(t, out, "0 clips")
	assert.Contains(t, out, "2 of 2 utterances without audio")
}

func TestInvalidRoleRejected(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, dir, "projects", "new", "--name", "Demo")
	require.NoError(t, err)

	_, err = run(t, dir, "-p", "Demo", "voice", "narrator", "x")
	assert.ErrorContains(t, err, `unknown role "narrator"`)
}
