// Package fileutil provides case-insensitive file access for projects that
// were authored on case-insensitive file systems.
package fileutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when no file matches, in any case.
var ErrNotFound = errors.New("file not found")

// FindFileCaseInsensitive searches dir for filename ignoring case.
//
// Parameters:
//   - dir: The directory to search in
//   - filename: The filename to search for (case-insensitive)
//
// Returns:
//   - string: The actual path to the file if found
//   - error: ErrNotFound, or the I/O error from reading dir
//
// Example:
//
//	path, err := FindFileCaseInsensitive("/path/to/dir", "Click.WAV")
//	// Will find "click.wav", "CLICK.WAV", "Click.wav", etc.
func FindFileCaseInsensitive(dir, filename string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	if name, ok := matchEntry(entries, filename); ok {
		return filepath.Join(dir, name), nil
	}
	return "", fmt.Errorf("%w: %s (searched in %s)", ErrNotFound, filename, dir)
}

// FindFileCaseInsensitiveFS is FindFileCaseInsensitive over an fs.FS.
// Paths use forward slashes.
func FindFileCaseInsensitiveFS(fsys fs.FS, dir, filename string) (string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	if name, ok := matchEntry(entries, filename); ok {
		return path.Join(dir, name), nil
	}
	return "", fmt.Errorf("%w: %s (searched in %s)", ErrNotFound, filename, dir)
}

func matchEntry(entries []fs.DirEntry, filename string) (string, bool) {
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(entry.Name(), filename) {
			return entry.Name(), true
		}
	}
	return "", false
}

// FileSystem はプロジェクトディレクトリへのアクセスを抽象化する
type FileSystem interface {
	// ReadFile はファイルの内容を読み込む（大文字小文字を無視）
	ReadFile(name string) ([]byte, error)
	// FindFile は大文字小文字を無視してファイルを検索し、実際のパスを返す
	FindFile(name string) (string, error)
	// BasePath はベースパスを返す
	BasePath() string
}

// RealFS は実ファイルシステムへのアクセスを提供する
type RealFS struct {
	basePath string
}

// NewRealFS は実ファイルシステム用のFileSystemを作成する
func NewRealFS(basePath string) *RealFS {
	return &RealFS{basePath: basePath}
}

func (r *RealFS) ReadFile(name string) ([]byte, error) {
	actual, err := r.FindFile(name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(actual)
}

func (r *RealFS) FindFile(name string) (string, error) {
	p := name
	if !filepath.IsAbs(p) && r.basePath != "" {
		p = filepath.Join(r.basePath, p)
	}
	// まず直接アクセスを試みる
	if info, err := os.Stat(p); err == nil && !info.IsDir() {
		return p, nil
	}
	return FindFileCaseInsensitive(filepath.Dir(p), filepath.Base(p))
}

func (r *RealFS) BasePath() string {
	return r.basePath
}

// FS は fs.FS（embed.FS や fstest.MapFS）へのアクセスを提供する
type FS struct {
	fsys fs.FS
}

// NewFS は fs.FS 用のFileSystemを作成する
func NewFS(fsys fs.FS) *FS {
	return &FS{fsys: fsys}
}

func (f *FS) ReadFile(name string) ([]byte, error) {
	actual, err := f.FindFile(name)
	if err != nil {
		return nil, err
	}
	return fs.ReadFile(f.fsys, actual)
}

func (f *FS) FindFile(name string) (string, error) {
	// 先頭の "/" や "\" を除去し、"/" 区切りに揃える
	p := strings.ReplaceAll(name, "\\", "/")
	p = path.Clean(strings.TrimLeft(p, "/"))
	if info, err := fs.Stat(f.fsys, p); err == nil && !info.IsDir() {
		return p, nil
	}
	return FindFileCaseInsensitiveFS(f.fsys, path.Dir(p), path.Base(p))
}

func (f *FS) BasePath() string {
	return "."
}
