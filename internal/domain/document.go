package domain

// DocumentVersion is the version stamped on raw permission documents.
const DocumentVersion = 1

// Document is the raw (template-less) serialization of a scan.
type Document struct {
	Version int           `json:"version" yaml:"version"`
	Entries []EntryRecord `json:"entries" yaml:"entries"`
}

// EntryRecord is the serialized shape of a PermissionEntry.
type EntryRecord struct {
	Path        string      `json:"path" yaml:"path"`
	Kind        EntryKind   `json:"kind" yaml:"kind"`
	Owner       string      `json:"owner" yaml:"owner"`
	Group       string      `json:"group" yaml:"group"`
	UID         int         `json:"uid" yaml:"uid"`
	GID         int         `json:"gid" yaml:"gid"`
	Mode        Mode        `json:"mode" yaml:"mode"`
	Octal       string      `json:"octal" yaml:"octal"`
	Symbolic    string      `json:"symbolic" yaml:"symbolic"`
	Size        int64       `json:"size" yaml:"size"`
	Target      string      `json:"target,omitempty" yaml:"target,omitempty"`
	Permissions Permissions `json:"permissions" yaml:"permissions"`
}

// Permissions groups the per-class access triples.
type Permissions struct {
	User  Access `json:"user" yaml:"user"`
	Group Access `json:"group" yaml:"group"`
	Other Access `json:"other" yaml:"other"`
}

// Record converts e into its serialized shape.
func (e PermissionEntry) Record() EntryRecord {
	return EntryRecord{
		Path:     e.Path,
		Kind:     e.Kind,
		Owner:    e.Owner,
		Group:    e.Group,
		UID:      e.UID,
		GID:      e.GID,
		Mode:     e.Mode,
		Octal:    e.Mode.Octal(),
		Symbolic: e.Mode.Symbolic(e.Kind),
		Size:     e.Size,
		Target:   e.Target,
		Permissions: Permissions{
			User:  e.Mode.User(),
			Group: e.Mode.Group(),
			Other: e.Mode.Other(),
		},
	}
}

// NewDocument builds a Document preserving the order of entries.
func NewDocument(entries []PermissionEntry) Document {
	doc := Document{Version: DocumentVersion, Entries: make([]EntryRecord, 0, len(entries))}
	for _, e := range entries {
		doc.Entries = append(doc.Entries, e.Record())
	}
	return doc
}
