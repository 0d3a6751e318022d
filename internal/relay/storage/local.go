package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

type localProvider struct {
	dir string
}

// NewLocalProvider stores photos as files under dir.
func NewLocalProvider(dir string) Provider {
	return &localProvider{dir: dir}
}

func (p *localProvider) Init(context.Context) error {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create photo directory: %w", err)
	}
	return nil
}

func (p *localProvider) Put(_ context.Context, name string, data []byte) (Photo, error) {
	if err := ValidateName(name); err != nil {
		return Photo{}, err
	}

	path := filepath.Join(p.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return Photo{}, fmt.Errorf("failed to write photo: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return Photo{}, fmt.Errorf("failed to store photo: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return Photo{}, err
	}
	return newPhoto(name, info.Size(), info.ModTime()), nil
}

func (p *localProvider) Open(_ context.Context, name string) (io.ReadCloser, Photo, error) {
	if err := ValidateName(name); err != nil {
		return nil, Photo{}, err
	}

	f, err := os.Open(filepath.Join(p.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, Photo{}, ErrNotFound
	}
	if err != nil {
		return nil, Photo{}, err
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, Photo{}, err
	}
	return f, newPhoto(name, info.Size(), info.ModTime()), nil
}
