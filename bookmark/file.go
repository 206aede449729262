package bookmark

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	yaml "gopkg.in/yaml.v3"
)

type fileEntry struct {
	Offset  int       `yaml:"offset"`
	Updated time.Time `yaml:"updated"`
}

// File is Store keeping all bookmarks in a single YAML file. File is
// rewritten on every save and replaced atomically.
type File struct {
	mu   sync.Mutex
	path string
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) read() (map[string]fileEntry, error) {
	marks := make(map[string]fileEntry)

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return marks, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, &marks); err != nil {
		return nil, fmt.Errorf("unable to decode bookmarks file %q: %w", f.path, err)
	}
	if marks == nil {
		marks = make(map[string]fileEntry)
	}
	return marks, nil
}

func (f *File) Load(ctx context.Context, key string) (int, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	marks, err := f.read()
	if err != nil {
		return 0, false, err
	}
	e, ok := marks[key]
	return e.Offset, ok, nil
}

func (f *File) Save(ctx context.Context, key string, offset int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	marks, err := f.read()
	if err != nil {
		return err
	}
	marks[key] = fileEntry{Offset: offset, Updated: time.Now().UTC().Truncate(time.Second)}

	data, err := yaml.Marshal(marks)
	if err != nil {
		return fmt.Errorf("unable to encode bookmarks: %w", err)
	}
	return writeAtomic(f.path, data)
}

func (f *File) Close() error {
	return nil
}

// writeAtomic writes data to temporary file next to path and renames it over
// path, readers never see partially written file.
func writeAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
