package seen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrSnapshotCorrupt is returned when a snapshot file exists but cannot be
// decoded. Callers treat it as an empty record.
var ErrSnapshotCorrupt = errors.New("snapshot corrupt")

// SnapshotStore loads and saves the seen record.
type SnapshotStore interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
}

// FileSnapshot stores the record as an indented JSON object of query key to
// id list.
type FileSnapshot struct {
	loadPath string
	savePath string
}

// FileSnapshotOption configures a FileSnapshot.
type FileSnapshotOption func(*FileSnapshot)

// WithSavePath writes snapshots somewhere other than the load path.
func WithSavePath(path string) FileSnapshotOption {
	return func(f *FileSnapshot) {
		f.savePath = path
	}
}

// NewFileSnapshot creates a FileSnapshot reading from path. Either path may
// be empty to disable that direction.
func NewFileSnapshot(path string, opts ...FileSnapshotOption) *FileSnapshot {
	f := &FileSnapshot{loadPath: path, savePath: path}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// LoadPath returns the file snapshots are read from.
func (f *FileSnapshot) LoadPath() string { return f.loadPath }

// SavePath returns the file snapshots are written to.
func (f *FileSnapshot) SavePath() string { return f.savePath }

// Load reads the snapshot. A missing file (or no load path) yields an empty
// snapshot and no error. An undecodable file yields an empty snapshot and an
// error wrapping ErrSnapshotCorrupt.
func (f *FileSnapshot) Load(_ context.Context) (Snapshot, error) {
	if f.loadPath == "" {
		return Snapshot{}, nil
	}

	data, err := os.ReadFile(f.loadPath) //nolint:gosec // snapshot path from trusted config
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Snapshot{}, nil
		}
		return Snapshot{}, fmt.Errorf("reading snapshot: %w", err)
	}

	snap := Snapshot{}
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %s: %w", ErrSnapshotCorrupt, f.loadPath, err)
	}
	if snap == nil {
		// A literal "null" document.
		snap = Snapshot{}
	}
	return snap, nil
}

// Save writes snap to a temp file beside the target and renames it into
// place so readers never observe a partial file.
func (f *FileSnapshot) Save(_ context.Context, snap Snapshot) error {
	if f.savePath == "" {
		return nil
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	dir := filepath.Dir(f.savePath)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.savePath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("writing temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("syncing temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("closing temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, f.savePath); err != nil {
		cleanup()
		return fmt.Errorf("replacing snapshot: %w", err)
	}
	return nil
}
