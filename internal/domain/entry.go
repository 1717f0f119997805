package domain

import (
	"io/fs"
	"strings"
)

// EntryKind classifies a scanned filesystem node.
type EntryKind string

const (
	KindFile      EntryKind = "file"
	KindDirectory EntryKind = "directory"
	KindSymlink   EntryKind = "symlink"
)

// KindOf maps a file mode to an EntryKind. ok is false for special files
// (devices, fifos, sockets) which are not part of the permission template.
func KindOf(m fs.FileMode) (kind EntryKind, ok bool) {
	switch {
	case m&fs.ModeSymlink != 0:
		return KindSymlink, true
	case m.IsDir():
		return KindDirectory, true
	case m.IsRegular():
		return KindFile, true
	default:
		return "", false
	}
}

// Unix permission bits.
const (
	ModeSetuid Mode = 0o4000
	ModeSetgid Mode = 0o2000
	ModeSticky Mode = 0o1000
	ModeMask   Mode = 0o7777
)

// Mode is the numeric Unix permission mask of an entry (rwx for user, group
// and other plus setuid, setgid and sticky). It never carries type bits.
type Mode uint32

// ModeFromFileMode converts Go's fs.FileMode into the Unix numeric layout.
func ModeFromFileMode(fm fs.FileMode) Mode {
	m := Mode(fm.Perm())
	if fm&fs.ModeSetuid != 0 {
		m |= ModeSetuid
	}
	if fm&fs.ModeSetgid != 0 {
		m |= ModeSetgid
	}
	if fm&fs.ModeSticky != 0 {
		m |= ModeSticky
	}
	return m
}

// FileMode converts m back into an fs.FileMode (permission and special bits only).
func (m Mode) FileMode() fs.FileMode {
	fm := fs.FileMode(m & 0o777)
	if m&ModeSetuid != 0 {
		fm |= fs.ModeSetuid
	}
	if m&ModeSetgid != 0 {
		fm |= fs.ModeSetgid
	}
	if m&ModeSticky != 0 {
		fm |= fs.ModeSticky
	}
	return fm
}

// Valid reports whether m stays inside the Unix permission bit space.
func (m Mode) Valid() bool { return m&^ModeMask == 0 }

// Octal returns the four digit octal form, e.g. "0644".
func (m Mode) Octal() string {
	const digits = "01234567"
	var b [4]byte
	for i := 3; i >= 0; i-- {
		b[i] = digits[m&7]
		m >>= 3
	}
	return string(b[:])
}

// User returns the owner permission class.
func (m Mode) User() Access { return accessOf(m >> 6) }

// Group returns the group permission class.
func (m Mode) Group() Access { return accessOf(m >> 3) }

// Other returns the permission class for everyone else.
func (m Mode) Other() Access { return accessOf(m) }

// Symbolic renders m the way ls(1) does, with the kind as the leading character.
func (m Mode) Symbolic(kind EntryKind) string {
	var sb strings.Builder
	sb.Grow(10)
	switch kind {
	case KindDirectory:
		sb.WriteByte('d')
	case KindSymlink:
		sb.WriteByte('l')
	default:
		sb.WriteByte('-')
	}
	writeClass(&sb, m.User(), m&ModeSetuid != 0, 's')
	writeClass(&sb, m.Group(), m&ModeSetgid != 0, 's')
	writeClass(&sb, m.Other(), m&ModeSticky != 0, 't')
	return sb.String()
}

func writeClass(sb *strings.Builder, a Access, special bool, mark byte) {
	sb.WriteByte(pick(a.Read, 'r'))
	sb.WriteByte(pick(a.Write, 'w'))
	switch {
	case special && a.Execute:
		sb.WriteByte(mark)
	case special:
		sb.WriteByte(mark - 'a' + 'A')
	default:
		sb.WriteByte(pick(a.Execute, 'x'))
	}
}

func pick(set bool, c byte) byte {
	if set {
		return c
	}
	return '-'
}

// Access is the read/write/execute triple of one permission class.
type Access struct {
	Read    bool `json:"read" yaml:"read"`
	Write   bool `json:"write" yaml:"write"`
	Execute bool `json:"execute" yaml:"execute"`
}

func accessOf(bits Mode) Access {
	return Access{
		Read:    bits&4 != 0,
		Write:   bits&2 != 0,
		Execute: bits&1 != 0,
	}
}

// Ownership identifies the user and group owning an entry. Names fall back
// to the decimal id when they cannot (or should not) be resolved.
type Ownership struct {
	UID   int
	GID   int
	Owner string
	Group string
}

// PermissionEntry is one observed filesystem node. Entries are created by the
// scanner and never mutated afterwards.
type PermissionEntry struct {
	Path   string // slash separated, relative to the scan root
	Kind   EntryKind
	Owner  string
	Group  string
	UID    int
	GID    int
	Mode   Mode
	Size   int64
	Target string // symlink target, empty for other kinds
}

// IsDir reports whether the entry is a directory.
func (e PermissionEntry) IsDir() bool { return e.Kind == KindDirectory }

// Octal is a template convenience for e.Mode.Octal().
func (e PermissionEntry) Octal() string { return e.Mode.Octal() }

// Symbolic is a template convenience for the ls-style mode string.
func (e PermissionEntry) Symbolic() string { return e.Mode.Symbolic(e.Kind) }
