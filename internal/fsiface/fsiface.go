// Package fsiface declares the filesystem surface the cache and sync
// engines depend on, so the workspace root can be a real directory on disk,
// an in-memory filesystem in tests, or a sandboxed path in an embedded host.
package fsiface

import (
	"context"
	"io"
	"time"
)

// FileInfo is the minimal stat shape the engine needs.
type FileInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
	IsDir   bool
}

// Fs is the filesystem collaborator used by the cache and sync engines.
type Fs interface {
	MkdirAll(ctx context.Context, path string) error
	Stat(ctx context.Context, path string) (*FileInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
	RemoveAll(ctx context.Context, path string) error
	ReadDir(ctx context.Context, path string) ([]FileInfo, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Create(ctx context.Context, path string) (io.WriteCloser, error)
	DiskUsage(ctx context.Context, path string) (int64, error)
}
