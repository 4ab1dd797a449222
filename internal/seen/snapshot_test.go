package seen

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSnapshot_RoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "seen.json")
	fs := NewFileSnapshot(path)

	want := Snapshot{
		"iphone":                     {"https://example.com/listing/3", "https://example.com/listing/1"},
		"couch [category=Furniture]": {"42"},
		"empty":                      {},
	}

	require.NoError(t, fs.Save(context.Background(), want))

	got, err := fs.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// Store round trip keeps order as well.
	assert.Equal(t, want, FromSnapshot(got).Snapshot())
}

func TestFileSnapshot_MissingFileIsEmpty(t *testing.T) {
	t.Parallel()

	fs := NewFileSnapshot(filepath.Join(t.TempDir(), "nope.json"))
	snap, err := fs.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap)
}

func TestFileSnapshot_NoPaths(t *testing.T) {
	t.Parallel()

	fs := NewFileSnapshot("")
	snap, err := fs.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap)
	require.NoError(t, fs.Save(context.Background(), Snapshot{"q": {"A"}}))
}

func TestFileSnapshot_CorruptFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{name: "truncated json", content: `{"iphone": ["A",`},
		{name: "wrong shape", content: `["A", "B"]`},
		{name: "wrong value type", content: `{"iphone": "A"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "seen.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			snap, err := NewFileSnapshot(path).Load(context.Background())
			require.Error(t, err)
			require.ErrorIs(t, err, ErrSnapshotCorrupt)
			assert.Empty(t, snap)
		})
	}
}

func TestFileSnapshot_NullDocument(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "seen.json")
	require.NoError(t, os.WriteFile(path, []byte("null"), 0o600))

	snap, err := NewFileSnapshot(path).Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, snap)
	assert.Empty(t, snap)
}

func TestFileSnapshot_SeparateSavePath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	loadPath := filepath.Join(dir, "in.json")
	savePath := filepath.Join(dir, "out.json")
	require.NoError(t, os.WriteFile(loadPath, []byte(`{"q": ["A"]}`), 0o600))

	fs := NewFileSnapshot(loadPath, WithSavePath(savePath))
	assert.Equal(t, loadPath, fs.LoadPath())
	assert.Equal(t, savePath, fs.SavePath())

	snap, err := fs.Load(context.Background())
	require.NoError(t, err)
	snap["q"] = append(snap["q"], "B")
	require.NoError(t, fs.Save(context.Background(), snap))

	in, err := os.ReadFile(loadPath)
	require.NoError(t, err)
	assert.JSONEq(t, `{"q": ["A"]}`, string(in), "load file untouched")

	out, err := os.ReadFile(savePath)
	require.NoError(t, err)
	assert.JSONEq(t, `{"q": ["A", "B"]}`, string(out))
}

func TestFileSnapshot_SaveLeavesNoTempFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "seen.json")
	fs := NewFileSnapshot(path)

	for range 3 {
		require.NoError(t, fs.Save(context.Background(), Snapshot{"q": {"A"}}))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "seen.json", entries[0].Name())
}

func TestFileSnapshot_SaveMissingDirectory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "missing", "seen.json")
	err := NewFileSnapshot(path).Save(context.Background(), Snapshot{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "creating temp snapshot")
}

// compile-time interface check.
var _ SnapshotStore = (*FileSnapshot)(nil)
