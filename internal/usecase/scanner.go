package usecase

import (
	"context"
	"errors"
	"io/fs"
	"iter"
	"log/slog"
	"path"
	"sort"

	"github.com/go-git/go-billy/v5"

	"permtemplate/internal/domain"
)

// OwnershipResolver reports who owns a file.
type OwnershipResolver interface {
	Resolve(info fs.FileInfo) domain.Ownership
}

// Scanner walks a filesystem from its root and reports one PermissionEntry
// per file, directory and symlink. Symlinks are never followed. The walk is
// depth-first with siblings sorted by name, so repeated scans of an
// unchanged tree yield identical sequences.
type Scanner struct {
	fs     billy.Filesystem
	owners OwnershipResolver
	logger *slog.Logger
}

// NewScanner creates a Scanner over fsys, whose root ("/") is the scan root.
func NewScanner(fsys billy.Filesystem, owners OwnershipResolver, logger *slog.Logger) *Scanner {
	return &Scanner{fs: fsys, owners: owners, logger: logger}
}

// Scan lists the root and returns the lazy entry sequence. An unreadable
// root fails here; failures below the root are logged and skipped while the
// sequence is consumed. The sequence yields a non-nil error only when ctx is
// done or when it is iterated a second time.
func (s *Scanner) Scan(ctx context.Context) (iter.Seq2[domain.PermissionEntry, error], error) {
	const op = "Scanner.Scan"

	infos, err := s.readDir("/")
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil, domain.NewSubSystemError(domain.SubSystemScanner, op, domain.ErrNotFound, err.Error())
		case errors.Is(err, fs.ErrPermission):
			return nil, domain.NewSubSystemError(domain.SubSystemScanner, op, domain.ErrPermissionDenied, err.Error())
		default:
			return nil, domain.WrapOp(op, err)
		}
	}

	consumed := false
	return func(yield func(domain.PermissionEntry, error) bool) {
		if consumed {
			yield(domain.PermissionEntry{}, domain.NewDomainError(op, domain.ErrInvalidInput, "scan sequence already consumed"))
			return
		}
		consumed = true
		s.walk(ctx, "", infos, yield)
	}, nil
}

func (s *Scanner) walk(ctx context.Context, dir string, infos []fs.FileInfo, yield func(domain.PermissionEntry, error) bool) bool {
	for _, info := range infos {
		if err := ctx.Err(); err != nil {
			yield(domain.PermissionEntry{}, err)
			return false
		}

		rel := path.Join(dir, info.Name())
		entry, ok := s.entry(rel)
		if !ok {
			continue
		}
		if !yield(entry, nil) {
			return false
		}
		if entry.Kind != domain.KindDirectory {
			continue
		}

		children, err := s.readDir(rel)
		if err != nil {
			s.logger.Warn("skipping unreadable directory contents", "path", rel, "error", err)
			continue
		}
		if !s.walk(ctx, rel, children, yield) {
			return false
		}
	}
	return true
}

// entry stats rel without following symlinks. ok is false when the node
// must be skipped.
func (s *Scanner) entry(rel string) (domain.PermissionEntry, bool) {
	info, err := s.fs.Lstat(rel)
	if err != nil {
		s.logger.Warn("skipping unreadable entry", "path", rel, "error", err)
		return domain.PermissionEntry{}, false
	}

	kind, ok := domain.KindOf(info.Mode())
	if !ok {
		s.logger.Debug("skipping special file", "path", rel, "mode", info.Mode().String())
		return domain.PermissionEntry{}, false
	}

	own := s.owners.Resolve(info)
	entry := domain.PermissionEntry{
		Path:  rel,
		Kind:  kind,
		Owner: own.Owner,
		Group: own.Group,
		UID:   own.UID,
		GID:   own.GID,
		Mode:  domain.ModeFromFileMode(info.Mode()),
		Size:  info.Size(),
	}

	if kind == domain.KindSymlink {
		target, err := s.fs.Readlink(rel)
		if err != nil {
			s.logger.Warn("cannot read symlink target", "path", rel, "error", err)
		}
		entry.Target = target
	}
	return entry, true
}

func (s *Scanner) readDir(dir string) ([]fs.FileInfo, error) {
	infos, err := s.fs.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name() < infos[j].Name() })
	return infos, nil
}
