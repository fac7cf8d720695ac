// Package osfs adapts an afero.Fs onto fsiface.Fs, giving the sync and
// cache engines a real on-disk filesystem in production and an in-memory
// one in tests without either depending on the other's concrete type.
package osfs

import (
	"context"
	"io"
	"os"

	"github.com/spf13/afero"

	"github.com/chebizarro/nostr-git-sub004/internal/fsiface"
)

// Fs wraps an afero.Fs to satisfy fsiface.Fs.
type Fs struct {
	afero.Fs
}

// New wraps the real OS filesystem.
func New() *Fs {
	return &Fs{Fs: afero.NewOsFs()}
}

// NewMem wraps an in-memory filesystem, for tests.
func NewMem() *Fs {
	return &Fs{Fs: afero.NewMemMapFs()}
}

// NewFrom wraps an arbitrary afero.Fs, e.g. an afero.BasePathFs sandbox.
func NewFrom(fs afero.Fs) *Fs {
	return &Fs{Fs: fs}
}

func (f *Fs) MkdirAll(ctx context.Context, path string) error {
	return f.Fs.MkdirAll(path, 0o755)
}

func (f *Fs) Stat(ctx context.Context, path string) (*fsiface.FileInfo, error) {
	info, err := f.Fs.Stat(path)
	if err != nil {
		return nil, err
	}
	return &fsiface.FileInfo{Path: path, Size: info.Size(), ModTime: info.ModTime(), IsDir: info.IsDir()}, nil
}

func (f *Fs) Exists(ctx context.Context, path string) (bool, error) {
	return afero.Exists(f.Fs, path)
}

func (f *Fs) RemoveAll(ctx context.Context, path string) error {
	return f.Fs.RemoveAll(path)
}

func (f *Fs) ReadDir(ctx context.Context, path string) ([]fsiface.FileInfo, error) {
	entries, err := afero.ReadDir(f.Fs, path)
	if err != nil {
		return nil, err
	}
	out := make([]fsiface.FileInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, fsiface.FileInfo{Path: path + "/" + e.Name(), Size: e.Size(), ModTime: e.ModTime(), IsDir: e.IsDir()})
	}
	return out, nil
}

func (f *Fs) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	return f.Fs.Open(path)
}

func (f *Fs) Create(ctx context.Context, path string) (io.WriteCloser, error) {
	return f.Fs.Create(path)
}

func (f *Fs) DiskUsage(ctx context.Context, path string) (int64, error) {
	var total int64
	err := afero.Walk(f.Fs, path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}
