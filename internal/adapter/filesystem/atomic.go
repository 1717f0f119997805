package filesystem

import (
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/oklog/ulid/v2"

	"permtemplate/internal/domain"
)

// AtomicWriter writes whole files so that readers observe either the previous
// content or the new content, never a partial write.
type AtomicWriter struct {
	fs billy.Filesystem
}

// NewAtomicWriter creates a writer operating on fsys.
func NewAtomicWriter(fsys billy.Filesystem) *AtomicWriter {
	return &AtomicWriter{fs: fsys}
}

// WriteFile writes data to a temporary sibling of name and renames it into
// place. On failure the temporary file is removed and name is left untouched.
func (w *AtomicWriter) WriteFile(name string, data []byte, perm os.FileMode) (err error) {
	const op = "AtomicWriter.WriteFile"

	tmp := tempName(name)
	f, err := w.fs.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return writeError(op, name, err)
	}
	defer func() {
		if err != nil {
			_ = w.fs.Remove(tmp)
		}
	}()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return writeError(op, name, err)
	}
	if s, ok := f.(interface{ Sync() error }); ok {
		if err := s.Sync(); err != nil {
			_ = f.Close()
			return writeError(op, name, err)
		}
	}
	if err := f.Close(); err != nil {
		return writeError(op, name, err)
	}
	if err := w.fs.Rename(tmp, name); err != nil {
		return writeError(op, name, err)
	}
	return nil
}

// tempName returns a hidden, unique sibling of name.
func tempName(name string) string {
	dir, base := path.Split(name)
	id := strings.ToLower(ulid.Make().String())
	return dir + "." + base + "." + id + ".tmp"
}

func writeError(op, name string, err error) error {
	return domain.NewSubSystemError(domain.SubSystemWriter, op, domain.ErrOutputWrite, fmt.Sprintf("%s: %v", name, err))
}
