package filesystem

import (
	"io/fs"
	"os/user"
	"strconv"

	"permtemplate/internal/domain"
)

// OwnerResolver turns the raw ids of a file into an Ownership. Name lookups
// are cached for the lifetime of the resolver.
type OwnerResolver struct {
	numeric     bool
	users       map[int]string
	groups      map[int]string
	lookupUser  func(uid string) (*user.User, error)
	lookupGroup func(gid string) (*user.Group, error)
}

// NewOwnerResolver creates a resolver. With numeric set, names are never
// looked up and the decimal ids are used instead.
func NewOwnerResolver(numeric bool) *OwnerResolver {
	return &OwnerResolver{
		numeric:     numeric,
		users:       make(map[int]string),
		groups:      make(map[int]string),
		lookupUser:  user.LookupId,
		lookupGroup: user.LookupGroupId,
	}
}

// Resolve reports the owner and group of info. When the platform exposes no
// ids (or info comes from an in-memory filesystem) both ids are -1 and the
// names are empty.
func (r *OwnerResolver) Resolve(info fs.FileInfo) domain.Ownership {
	uid, gid, ok := statIDs(info)
	if !ok {
		return domain.Ownership{UID: -1, GID: -1}
	}
	return domain.Ownership{
		UID:   uid,
		GID:   gid,
		Owner: r.userName(uid),
		Group: r.groupName(gid),
	}
}

func (r *OwnerResolver) userName(uid int) string {
	if r.numeric {
		return strconv.Itoa(uid)
	}
	if name, ok := r.users[uid]; ok {
		return name
	}
	name := strconv.Itoa(uid)
	if u, err := r.lookupUser(name); err == nil && u.Username != "" {
		name = u.Username
	}
	r.users[uid] = name
	return name
}

func (r *OwnerResolver) groupName(gid int) string {
	if r.numeric {
		return strconv.Itoa(gid)
	}
	if name, ok := r.groups[gid]; ok {
		return name
	}
	name := strconv.Itoa(gid)
	if g, err := r.lookupGroup(name); err == nil && g.Name != "" {
		name = g.Name
	}
	r.groups[gid] = name
	return name
}
