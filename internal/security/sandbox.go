package security

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"permtemplate/internal/domain"
)

// Sandbox is the resolved scan root. The scan never leaves it, and paths
// written by the tool can be located relative to it.
type Sandbox struct {
	root string // absolute, symlink-resolved
}

// NewSandbox resolves root and checks that it is an existing directory.
// Errors are DomainErrors tagged with the scanner subsystem so that a
// missing root reports SOURCE_NOT_FOUND and an inaccessible one
// SOURCE_UNREADABLE.
func NewSandbox(root string) (*Sandbox, error) {
	const op = "Sandbox.New"

	if strings.TrimSpace(root) == "" {
		return nil, domain.NewSubSystemError(domain.SubSystemScanner, op, domain.ErrInvalidInput, "source directory is empty")
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, domain.NewSubSystemError(domain.SubSystemScanner, op, domain.ErrInvalidInput, err.Error())
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, rootError(op, root, err)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return nil, rootError(op, root, err)
	}
	if !info.IsDir() {
		return nil, domain.NewSubSystemError(domain.SubSystemScanner, op, domain.ErrInvalidInput,
			fmt.Sprintf("source %q is not a directory", root))
	}

	return &Sandbox{root: resolved}, nil
}

func rootError(op, root string, err error) error {
	detail := fmt.Sprintf("source directory %q", root)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return domain.NewSubSystemError(domain.SubSystemScanner, op, domain.ErrNotFound, detail)
	case errors.Is(err, fs.ErrPermission):
		return domain.NewSubSystemError(domain.SubSystemScanner, op, domain.ErrPermissionDenied, detail)
	default:
		return domain.NewSubSystemError(domain.SubSystemScanner, op, domain.ErrInvalidInput, fmt.Sprintf("%s: %v", detail, err))
	}
}

// Root returns the resolved root directory.
func (s *Sandbox) Root() string { return s.root }

// Rel returns the slash-separated path of p relative to the root and whether
// p lies inside it. p need not exist yet: the nearest existing ancestor is
// resolved and the missing components are joined back on. The root itself is
// not considered inside.
func (s *Sandbox) Rel(p string) (string, bool) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", false
	}

	resolved, ok := resolveExisting(abs)
	if !ok || !s.contains(resolved) {
		return "", false
	}
	rel, err := filepath.Rel(s.root, resolved)
	if err != nil {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func resolveExisting(abs string) (string, bool) {
	var missing []string
	for dir := abs; ; {
		resolved, err := filepath.EvalSymlinks(dir)
		if err == nil {
			parts := append([]string{resolved}, missing...)
			return filepath.Join(parts...), true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		missing = append([]string{filepath.Base(dir)}, missing...)
		dir = parent
	}
}

func (s *Sandbox) contains(path string) bool {
	return strings.HasPrefix(path, s.root+string(os.PathSeparator))
}
