package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"permtemplate/internal/domain"
)

func TestFilterMatch(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		path    string
		isDir   bool
		want    bool
	}{
		{"exact", "a.txt", "a.txt", false, true},
		{"basename at depth", "*.log", "logs/app.log", false, true},
		{"basename no match", "*.log", "logs/app.txt", false, false},
		{"star does not cross slash", "src/*.go", "src/pkg/a.go", false, false},
		{"star in segment", "src/*.go", "src/a.go", false, true},
		{"globstar", "src/**/*.go", "src/pkg/deep/a.go", false, true},
		{"leading globstar", "**/node_modules", "web/app/node_modules", true, true},
		{"dir contents pattern excludes dir", "secret/*", "secret", true, true},
		{"dir globstar excludes dir", "cache/**", "cache", true, true},
		{"dir contents pattern does not match file of same name", "secret/*", "secret", false, false},
		{"trailing slash matches dir", "build/", "build", true, true},
		{"trailing slash skips file", "build/", "build", false, false},
		{"trailing slash nested dir", "build/", "pkg/build", true, true},
		{"anchored pattern is not a basename", "docs/README.md", "x/docs/README.md", false, false},
		{"leading slash anchors to root", "/build", "build", true, true},
		{"leading slash skips nested", "/build", "pkg/build", true, false},
		{"leading slash with glob", "/*.log", "app.log", false, true},
		{"leading slash glob stays at root", "/*.log", "logs/app.log", false, false},
		{"leading slash dir contents", "/secret/*", "secret", true, true},
		{"char class", "file[0-9].txt", "file7.txt", false, true},
		{"alternation", "*.{key,pem}", "certs/tls.pem", false, true},
		{"question mark", "a?.txt", "ab.txt", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewFilter([]string{tt.pattern})
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Match(tt.path, tt.isDir))
		})
	}
}

func TestNewFilterRejectsInvalidPatterns(t *testing.T) {
	for _, p := range []string{"", "   ", "/", "//", "[unclosed", "{a,b"} {
		_, err := NewFilter([]string{"ok/*", p})
		require.Error(t, err, "pattern %q", p)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		assert.Equal(t, domain.CodeInvalidPattern, domain.ErrorCodeOf(err))
	}
}

func TestNewFilterNormalizesPatterns(t *testing.T) {
	f, err := NewFilter([]string{" ./tmp/* ", "*.log", "//build"})
	require.NoError(t, err)
	assert.Equal(t, []string{"tmp/*", "*.log", "/build"}, f.Patterns())
}

func TestFilterApplyPrunesExcludedDirectories(t *testing.T) {
	s := NewScanner(sampleTree(t), fixedOwners{}, discardLogger())
	seq, err := s.Scan(context.Background())
	require.NoError(t, err)

	f, err := NewFilter([]string{"secret/*"})
	require.NoError(t, err)

	assert.Equal(t, []string{"a.txt", "bin", "bin/run.sh", "link"}, paths(scanAll(t, f.Apply(seq))))
}

func TestFilterApplyKeepsOrder(t *testing.T) {
	f, err := NewFilter([]string{"*.tmp", "vendor"})
	require.NoError(t, err)

	in := seqOf(
		fileEntry("a.go", 0o644),
		fileEntry("b.tmp", 0o644),
		dirEntry("vendor", 0o755),
		fileEntry("vendor/x.go", 0o644),
		dirEntry("vendor/sub", 0o755),
		fileEntry("vendor/sub/y.go", 0o644),
		fileEntry("vendored.go", 0o644),
		fileEntry("z.go", 0o644),
	)
	assert.Equal(t, []string{"a.go", "vendored.go", "z.go"}, paths(scanAll(t, f.Apply(in))))
}

func TestFilterApplyWithoutPatternsIsIdentity(t *testing.T) {
	f, err := NewFilter(nil)
	require.NoError(t, err)

	in := seqOf(fileEntry("a", 0o644), dirEntry("b", 0o755))
	assert.Equal(t, []string{"a", "b"}, paths(scanAll(t, f.Apply(in))))
}

func TestFilterApplyPassesErrorsThrough(t *testing.T) {
	f, err := NewFilter([]string{"*.tmp"})
	require.NoError(t, err)

	boom := errors.New("boom")
	in := func(yield func(domain.PermissionEntry, error) bool) {
		if !yield(fileEntry("x.tmp", 0o644), nil) {
			return
		}
		yield(domain.PermissionEntry{}, boom)
	}

	var got error
	for _, err := range f.Apply(in) {
		got = err
	}
	assert.ErrorIs(t, got, boom)
}

func TestFilterExcludePathIsLiteral(t *testing.T) {
	f, err := NewFilter(nil)
	require.NoError(t, err)
	f.ExcludePath("out/perms[1].json")

	assert.True(t, f.Match("out/perms[1].json", false))
	assert.False(t, f.Match("out/perms1.json", false))
	assert.False(t, f.Match("nested/out/perms[1].json", false))

	in := seqOf(dirEntry("out", 0o755), fileEntry("out/perms[1].json", 0o644), fileEntry("out/x", 0o644))
	assert.Equal(t, []string{"out", "out/x"}, paths(scanAll(t, f.Apply(in))))
}

func TestFilterApplyAnchoredPattern(t *testing.T) {
	f, err := NewFilter([]string{"/build"})
	require.NoError(t, err)

	in := seqOf(
		dirEntry("build", 0o755),
		fileEntry("build/out.bin", 0o755),
		dirEntry("pkg", 0o755),
		dirEntry("pkg/build", 0o755),
		fileEntry("pkg/build/x.o", 0o644),
	)
	assert.Equal(t, []string{"pkg", "pkg/build", "pkg/build/x.o"}, paths(scanAll(t, f.Apply(in))))
}
