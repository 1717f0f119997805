package usecase

import (
	"fmt"
	"iter"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"permtemplate/internal/domain"
)

// Filter drops entries whose relative path matches an exclude pattern.
//
// Patterns are doublestar globs matched against the slash-separated path
// relative to the scan root: `*` and `?` never cross `/`, `**` spans
// directories, `[...]` and `{a,b}` work as in the shell. On top of that:
//
//   - a pattern without `/` (ignoring a trailing one) is also matched against
//     the base name, so `*.log` excludes `logs/app.log`;
//   - a leading `/` anchors the pattern to the scan root, so `/build` excludes
//     build at the top only;
//   - directories are also matched with a trailing `/`, so `build/` only
//     excludes directories named build;
//   - `dir/*` and `dir/**` exclude dir itself;
//   - an excluded directory excludes everything below it.
type Filter struct {
	rules []rule
	exact map[string]bool
}

type rule struct {
	glob     string
	anchored bool
}

func (r rule) String() string {
	if r.anchored {
		return "/" + r.glob
	}
	return r.glob
}

// NewFilter validates patterns. An empty list yields a pass-through filter.
func NewFilter(patterns []string) (*Filter, error) {
	const op = "Filter.New"

	rules := make([]rule, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, domain.NewSubSystemError(domain.SubSystemFilter, op, domain.ErrInvalidInput, "empty exclude pattern")
		}
		orig := p
		p = strings.TrimPrefix(p, "./")
		r := rule{glob: strings.TrimLeft(p, "/")}
		r.anchored = r.glob != p
		if r.glob == "" || r.glob == "/" || !doublestar.ValidatePattern(r.glob) {
			return nil, domain.NewSubSystemError(domain.SubSystemFilter, op, domain.ErrInvalidInput,
				fmt.Sprintf("invalid exclude pattern %q", orig))
		}
		rules = append(rules, r)
	}
	return &Filter{rules: rules}, nil
}

// Patterns returns the validated patterns in normalized form.
func (f *Filter) Patterns() []string {
	out := make([]string, len(f.rules))
	for i, r := range f.rules {
		out[i] = r.String()
	}
	return out
}

// ExcludePath excludes exactly the entry at rel, without glob semantics.
func (f *Filter) ExcludePath(rel string) {
	if f.exact == nil {
		f.exact = make(map[string]bool)
	}
	f.exact[path.Clean(rel)] = true
}

// Match reports whether the entry at rel is excluded on its own, ignoring
// its ancestors.
func (f *Filter) Match(rel string, isDir bool) bool {
	if f.exact[rel] {
		return true
	}
	base := path.Base(rel)
	for _, r := range f.rules {
		if matchRule(r, rel, base, isDir) {
			return true
		}
	}
	return false
}

func matchRule(r rule, rel, base string, isDir bool) bool {
	p := r.glob
	if glob(p, rel) || (isDir && glob(p, rel+"/")) {
		return true
	}
	if isDir {
		for _, suffix := range []string{"/**", "/*"} {
			if parent, ok := strings.CutSuffix(p, suffix); ok && parent != "" && glob(parent, rel) {
				return true
			}
		}
	}
	if !r.anchored && !strings.Contains(strings.TrimSuffix(p, "/"), "/") && base != rel {
		return glob(p, base) || (isDir && glob(p, base+"/"))
	}
	return false
}

func glob(pattern, name string) bool {
	ok, err := doublestar.Match(pattern, name)
	return err == nil && ok
}

// Apply returns entries minus the excluded ones. Errors in the input
// sequence are passed through unchanged.
func (f *Filter) Apply(entries iter.Seq2[domain.PermissionEntry, error]) iter.Seq2[domain.PermissionEntry, error] {
	if len(f.rules) == 0 && len(f.exact) == 0 {
		return entries
	}
	return func(yield func(domain.PermissionEntry, error) bool) {
		pruned := make(map[string]bool)
		for e, err := range entries {
			if err != nil {
				if !yield(e, err) {
					return
				}
				continue
			}
			if underPruned(pruned, e.Path) {
				continue
			}
			if f.Match(e.Path, e.IsDir()) {
				if e.IsDir() {
					pruned[e.Path] = true
				}
				continue
			}
			if !yield(e, nil) {
				return
			}
		}
	}
}

func underPruned(pruned map[string]bool, rel string) bool {
	if len(pruned) == 0 {
		return false
	}
	for dir := path.Dir(rel); dir != "." && dir != "/"; dir = path.Dir(dir) {
		if pruned[dir] {
			return true
		}
	}
	return false
}
