package storage

import (
	"BanterStudio/internal/project"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newFilesGateway(t *testing.T) (Gateway, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "projects")
	g, err := NewFiles(dir, zap.NewNop().Sugar())
	require.NoError(t, err)
	return g, dir
}

func newSQLiteGateway(t *testing.T) Gateway {
	t.Helper()
	g, err := OpenSQLite(filepath.Join(t.TempDir(), "db", "projects.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func doc(name string, updatedAt int64) project.Document {
	return project.Document{
		ID:        updatedAt,
		UpdatedAt: updatedAt,
		Project: project.Project{
			DisplayName: name,
			Utterances:  []project.Utterance{{ID: "1", Role: project.RoleHost, Text: "hi", Status: project.StatusIdle}},
		},
	}
}

// Оба хранилища обязаны вести себя одинаково.
func gateways(t *testing.T) map[string]Gateway {
	files, _ := newFilesGateway(t)
	return map[string]Gateway{
		"files":  files,
		"sqlite": newSQLiteGateway(t),
	}
}

func TestGatewayRoundTrip(t *testing.T) {
	for name, g := range gateways(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, g.Write(ctx, "Draft.json", doc("Draft", 100)))

			got, err := g.Read(ctx, "Draft.json")
			require.NoError(t, err)
			assert.Equal(t, "Draft", got.DisplayName)
			assert.Equal(t, int64(100), got.UpdatedAt)
			require.Len(t, got.Utterances, 1)
			assert.Equal(t, "hi", got.Utterances[0].Text)

			// Перезапись того же ключа
			require.NoError(t, g.Write(ctx, "Draft.json", doc("Draft", 200)))
			got, err = g.Read(ctx, "Draft.json")
			require.NoError(t, err)
			assert.Equal(t, int64(200), got.UpdatedAt)
		})
	}
}

func TestGatewayListOrder(t *testing.T) {
	for name, g := range gateways(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, g.Write(ctx, "A.json", doc("A", 1000)))
			require.NoError(t, g.Write(ctx, "B.json", doc("B", 3000)))
			require.NoError(t, g.Write(ctx, "C.json", doc("C", 2000)))

			list, err := g.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 3)
			assert.Equal(t, []string{"B.json", "C.json", "A.json"},
				[]string{list[0].StorageKey, list[1].StorageKey, list[2].StorageKey})
			assert.Equal(t, "B", list[0].DisplayName)
			assert.Equal(t, int64(3000), list[0].LastModified.UnixMilli())
		})
	}
}

func TestGatewayMissing(t *testing.T) {
	for name, g := range gateways(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := g.Read(ctx, "Nope.json")
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, g.Delete(ctx, "Nope.json"), ErrNotFound)
			assert.ErrorIs(t, g.Move(ctx, "Nope.json", "Other.json"), ErrNotFound)

			list, err := g.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, list)
		})
	}
}

func TestGatewayMove(t *testing.T) {
	for name, g := range gateways(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, g.Write(ctx, "Draft.json", doc("Draft", 1)))
			require.NoError(t, g.Write(ctx, "Taken.json", doc("Taken", 2)))

			err := g.Move(ctx, "Draft.json", "Taken.json")
			assert.ErrorIs(t, err, ErrExists)

			// Сам на себя — без изменений
			require.NoError(t, g.Move(ctx, "Draft.json", "Draft.json"))

			require.NoError(t, g.Move(ctx, "Draft.json", "Final.json"))
			_, err = g.Read(ctx, "Draft.json")
			assert.ErrorIs(t, err, ErrNotFound)
			got, err := g.Read(ctx, "Final.json")
			require.NoError(t, err)
			assert.Equal(t, "Draft", got.DisplayName)

			require.NoError(t, g.Delete(ctx, "Final.json"))
			list, err := g.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 1)
			assert.Equal(t, "Taken.json", list[0].StorageKey)
		})
	}
}

func TestGatewayRejectsBadKeys(t *testing.T) {
	for name, g := range gateways(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			assert.ErrorIs(t, g.Write(ctx, "../escape.json", doc("x", 1)), ErrInvalidKey)
			assert.ErrorIs(t, g.Write(ctx, "noext", doc("x", 1)), ErrInvalidKey)
			assert.ErrorIs(t, g.Write(ctx, `a\b.json`, doc("x", 1)), ErrInvalidKey)
		})
	}
}

func TestValidateKey(t *testing.T) {
	assert.NoError(t, ValidateKey("Draft_Final.json"))
	assert.NoError(t, ValidateKey(".json"))
	assert.ErrorIs(t, ValidateKey("dir/Draft.json"), ErrInvalidKey)
	assert.ErrorIs(t, ValidateKey("Draft.txt"), ErrInvalidKey)
}

func TestFilesSkipsCorruptAndForeignFiles(t *testing.T) {
	g, dir := newFilesGateway(t)
	ctx := context.Background()

	require.NoError(t, g.Write(ctx, "Good.json", doc("Good", 10)))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Broken.json"), []byte("{not json"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "audio"), 0o755))

	list, err := g.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Good.json", list[0].StorageKey)
}

func TestFilesWritesIndentedJSON(t *testing.T) {
	g, dir := newFilesGateway(t)
	require.NoError(t, g.Write(context.Background(), "Pretty.json", doc("Pretty", 5)))

	data, err := os.ReadFile(filepath.Join(dir, "Pretty.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"name\": \"Pretty\"")
	assert.Contains(t, string(data), "\"bubbles\"")

	// Временные файлы не остаются в каталоге
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFilesNameFallsBackToKey(t *testing.T) {
	g, dir := newFilesGateway(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Legacy.json"), []byte(`{"bubbles": []}`), 0o644))

	list, err := g.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Legacy", list[0].DisplayName)
	assert.False(t, list[0].LastModified.IsZero())
}
