package usecase

import (
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/require"

	"permtemplate/internal/domain"
	"permtemplate/internal/infra/logger"
)

// --- Mocks ---

type fixedOwners struct{}

func (fixedOwners) Resolve(fs.FileInfo) domain.Ownership {
	return domain.Ownership{UID: 1000, GID: 100, Owner: "alice", Group: "users"}
}

type recordingWriter struct {
	calls int
	name  string
	data  []byte
	perm  os.FileMode
	err   error
}

func (w *recordingWriter) WriteFile(name string, data []byte, perm os.FileMode) error {
	w.calls++
	if w.err != nil {
		return w.err
	}
	w.name, w.data, w.perm = name, append([]byte(nil), data...), perm
	return nil
}

// --- Helpers ---

func discardLogger() *slog.Logger {
	return logger.Discard()
}

// sampleTree builds:
//
//	a.txt          0644 "hello"
//	bin/           0755
//	bin/run.sh     0755 "#!/bin/sh"
//	link -> a.txt
//	secret/        0700
//	secret/b.key   0600 "k"
func sampleTree(t *testing.T) billy.Filesystem {
	t.Helper()
	mem := memfs.New()
	require.NoError(t, util.WriteFile(mem, "a.txt", []byte("hello"), 0o644))
	require.NoError(t, mem.MkdirAll("bin", 0o755))
	require.NoError(t, util.WriteFile(mem, "bin/run.sh", []byte("#!/bin/sh"), 0o755))
	require.NoError(t, mem.MkdirAll("secret", 0o700))
	require.NoError(t, util.WriteFile(mem, "secret/b.key", []byte("k"), 0o600))
	require.NoError(t, mem.Symlink("a.txt", "link"))
	return mem
}

func scanAll(t *testing.T, seq iter.Seq2[domain.PermissionEntry, error]) []domain.PermissionEntry {
	t.Helper()
	var out []domain.PermissionEntry
	for e, err := range seq {
		require.NoError(t, err)
		out = append(out, e)
	}
	return out
}

func paths(entries []domain.PermissionEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Path)
	}
	return out
}

func seqOf(entries ...domain.PermissionEntry) iter.Seq2[domain.PermissionEntry, error] {
	return func(yield func(domain.PermissionEntry, error) bool) {
		for _, e := range entries {
			if !yield(e, nil) {
				return
			}
		}
	}
}

func fileEntry(path string, mode domain.Mode) domain.PermissionEntry {
	return domain.PermissionEntry{Path: path, Kind: domain.KindFile, Owner: "alice", Group: "users", UID: 1000, GID: 100, Mode: mode}
}

func dirEntry(path string, mode domain.Mode) domain.PermissionEntry {
	return domain.PermissionEntry{Path: path, Kind: domain.KindDirectory, Owner: "alice", Group: "users", UID: 1000, GID: 100, Mode: mode}
}
