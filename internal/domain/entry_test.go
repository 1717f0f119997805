package domain

import (
	"encoding/json"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		mode fs.FileMode
		want EntryKind
		ok   bool
	}{
		{0o644, KindFile, true},
		{fs.ModeDir | 0o755, KindDirectory, true},
		{fs.ModeSymlink | 0o777, KindSymlink, true},
		{fs.ModeNamedPipe | 0o600, "", false},
		{fs.ModeSocket | 0o600, "", false},
		{fs.ModeDevice | fs.ModeCharDevice | 0o666, "", false},
	}
	for _, tt := range tests {
		got, ok := KindOf(tt.mode)
		assert.Equal(t, tt.ok, ok, "mode %v", tt.mode)
		assert.Equal(t, tt.want, got, "mode %v", tt.mode)
	}
}

func TestModeFromFileMode(t *testing.T) {
	assert.Equal(t, Mode(0o644), ModeFromFileMode(0o644))
	assert.Equal(t, Mode(0o755), ModeFromFileMode(fs.ModeDir|0o755))
	assert.Equal(t, Mode(0o4755), ModeFromFileMode(fs.ModeSetuid|0o755))
	assert.Equal(t, Mode(0o2750), ModeFromFileMode(fs.ModeSetgid|0o750))
	assert.Equal(t, Mode(0o1777), ModeFromFileMode(fs.ModeDir|fs.ModeSticky|0o777))
}

func TestModeFileModeRoundTrip(t *testing.T) {
	for _, m := range []Mode{0, 0o600, 0o644, 0o755, 0o4755, 0o2711, 0o1777, 0o7777} {
		assert.Equal(t, m, ModeFromFileMode(m.FileMode()), "mode %s", m.Octal())
		assert.True(t, m.Valid())
	}
	assert.False(t, Mode(0o10000).Valid())
}

func TestModeOctal(t *testing.T) {
	assert.Equal(t, "0644", Mode(0o644).Octal())
	assert.Equal(t, "0000", Mode(0).Octal())
	assert.Equal(t, "4755", Mode(0o4755).Octal())
	assert.Equal(t, "1777", Mode(0o1777).Octal())
}

func TestModeClasses(t *testing.T) {
	m := Mode(0o751)
	assert.Equal(t, Access{Read: true, Write: true, Execute: true}, m.User())
	assert.Equal(t, Access{Read: true, Write: false, Execute: true}, m.Group())
	assert.Equal(t, Access{Read: false, Write: false, Execute: true}, m.Other())
}

func TestModeSymbolic(t *testing.T) {
	tests := []struct {
		mode Mode
		kind EntryKind
		want string
	}{
		{0o644, KindFile, "-rw-r--r--"},
		{0o755, KindDirectory, "drwxr-xr-x"},
		{0o777, KindSymlink, "lrwxrwxrwx"},
		{0o600, KindFile, "-rw-------"},
		{0o4755, KindFile, "-rwsr-xr-x"},
		{0o4644, KindFile, "-rwSr--r--"},
		{0o2755, KindDirectory, "drwxr-sr-x"},
		{0o1777, KindDirectory, "drwxrwxrwt"},
		{0o1776, KindDirectory, "drwxrwxrwT"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.mode.Symbolic(tt.kind), "mode %s", tt.mode.Octal())
	}
}

func TestRecordFields(t *testing.T) {
	e := PermissionEntry{
		Path: "bin/tool", Kind: KindFile, Owner: "root", Group: "wheel",
		UID: 0, GID: 0, Mode: 0o755, Size: 42,
	}
	r := e.Record()
	assert.Equal(t, "0755", r.Octal)
	assert.Equal(t, "-rwxr-xr-x", r.Symbolic)
	assert.True(t, r.Permissions.Other.Execute)
	assert.False(t, r.Permissions.Group.Write)
}

func TestNewDocumentPreservesOrder(t *testing.T) {
	doc := NewDocument([]PermissionEntry{
		{Path: "z", Kind: KindFile},
		{Path: "a", Kind: KindFile},
	})
	require.Len(t, doc.Entries, 2)
	assert.Equal(t, DocumentVersion, doc.Version)
	assert.Equal(t, "z", doc.Entries[0].Path)
	assert.Equal(t, "a", doc.Entries[1].Path)
}

func TestRecordJSONOmitsEmptyTarget(t *testing.T) {
	data, err := json.Marshal(PermissionEntry{Path: "f", Kind: KindFile, Mode: 0o644}.Record())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "target")
	assert.Contains(t, string(data), `"mode":420`)

	data, err = json.Marshal(PermissionEntry{Path: "l", Kind: KindSymlink, Target: "f"}.Record())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"target":"f"`)
}
