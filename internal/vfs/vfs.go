// Package vfs holds the few filesystem primitives the texture engine needs,
// expressed over billy so that tests can run against an in-memory filesystem.
package vfs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

// OS returns the host filesystem rooted at "/" so absolute paths resolve as-is.
func OS() billy.Filesystem {
	return osfs.New("/")
}

// Exists reports whether anything lives at path.
func Exists(fs billy.Basic, path string) bool {
	_, err := fs.Stat(path)
	return err == nil
}

// IsFile reports whether path is a regular file.
func IsFile(fs billy.Basic, path string) bool {
	info, err := fs.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// IsDir reports whether path is a directory.
func IsDir(fs billy.Basic, path string) bool {
	info, err := fs.Stat(path)
	return err == nil && info.IsDir()
}

// ListDir returns the sorted entry names of a directory.
func ListDir(fs billy.Dir, path string) ([]string, error) {
	infos, err := fs.ReadDir(path)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Copy copies the content of src to dst, replacing dst if it exists.
// It returns the number of bytes copied.
func Copy(fs billy.Filesystem, src, dst string) (int64, error) {
	in, err := fs.Open(src)
	if err != nil {
		return 0, fmt.Errorf("copy %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	if err := fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, fmt.Errorf("copy %s: %w", src, err)
	}
	out, err := fs.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("copy %s -> %s: %w", src, dst, err)
	}
	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("copy %s -> %s: %w", src, dst, err)
	}
	return n, nil
}

// Size returns the size of a regular file, or 0 when it cannot be stat'ed.
func Size(fs billy.Basic, path string) int64 {
	info, err := fs.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
