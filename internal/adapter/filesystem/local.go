package filesystem

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

// Local returns the host filesystem chrooted at root. Paths passed to it are
// relative to root, and "/" names root itself. Symlink targets are reported
// exactly as stored on disk.
func Local(root string) billy.Filesystem {
	return &hostFS{Filesystem: osfs.New(root), root: root}
}

// hostFS keeps the chroot for every operation except Readlink, where the
// chroot would rewrite absolute targets relative to root.
type hostFS struct {
	billy.Filesystem
	root string
}

func (h *hostFS) Readlink(link string) (string, error) {
	return os.Readlink(filepath.Join(h.root, filepath.FromSlash(link)))
}

// PrepareOutputDir creates the missing parent directories of path.
func PrepareOutputDir(path string) error {
	_, _, err := outputDir("PrepareOutputDir", path)
	return err
}

// OutputTarget splits an output path into a filesystem rooted at its parent
// directory and the file name inside it, so that temporary files are created
// next to the destination and renamed within one directory. Missing parent
// directories are created.
func OutputTarget(path string) (billy.Filesystem, string, error) {
	dir, name, err := outputDir("OutputTarget", path)
	if err != nil {
		return nil, "", err
	}
	return osfs.New(dir), name, nil
}

func outputDir(op, path string) (dir, name string, err error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", "", writeError(op, path, err)
	}
	dir = filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", writeError(op, path, fmt.Errorf("create parent directory: %w", err))
	}
	return dir, filepath.Base(abs), nil
}

// HostWriter atomically writes files addressed by host paths.
type HostWriter struct{}

// WriteFile writes data to path, creating missing parent directories.
func (HostWriter) WriteFile(path string, data []byte, perm os.FileMode) error {
	fsys, name, err := OutputTarget(path)
	if err != nil {
		return err
	}
	return NewAtomicWriter(fsys).WriteFile(name, data, perm)
}
