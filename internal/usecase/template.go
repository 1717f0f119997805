package usecase

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"gopkg.in/yaml.v3"

	"permtemplate/internal/domain"
)

// TemplateData is the value a user template is executed against.
//
//	{{ range .Entries }}{{ .Path }} {{ .Octal }} {{ .Owner }}{{ "\n" }}{{ end }}
type TemplateData struct {
	SourceDir string
	Entries   []domain.PermissionEntry
}

// Files returns the regular-file entries.
func (d TemplateData) Files() []domain.PermissionEntry { return d.ofKind(domain.KindFile) }

// Directories returns the directory entries.
func (d TemplateData) Directories() []domain.PermissionEntry { return d.ofKind(domain.KindDirectory) }

// Symlinks returns the symlink entries.
func (d TemplateData) Symlinks() []domain.PermissionEntry { return d.ofKind(domain.KindSymlink) }

// Count returns the number of entries.
func (d TemplateData) Count() int { return len(d.Entries) }

func (d TemplateData) ofKind(kind domain.EntryKind) []domain.PermissionEntry {
	out := make([]domain.PermissionEntry, 0, len(d.Entries))
	for _, e := range d.Entries {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Template is a parsed user template. Referencing a field or map key that
// does not exist is an execution error rather than an empty string.
type Template struct {
	name string
	tmpl *template.Template
}

// LoadTemplate reads and parses the template file at path.
func LoadTemplate(path string) (*Template, error) {
	const op = "Template.Load"

	data, err := os.ReadFile(path)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil, domain.NewSubSystemError(domain.SubSystemTemplate, op, domain.ErrNotFound, fmt.Sprintf("template file %q", path))
		case errors.Is(err, fs.ErrPermission):
			return nil, domain.NewSubSystemError(domain.SubSystemTemplate, op, domain.ErrPermissionDenied, fmt.Sprintf("template file %q", path))
		default:
			return nil, domain.NewSubSystemError(domain.SubSystemTemplate, op, domain.ErrInvalidInput, err.Error())
		}
	}
	return ParseTemplate(filepath.Base(path), string(data))
}

// ParseTemplate parses text as a template called name.
func ParseTemplate(name, text string) (*Template, error) {
	tmpl, err := template.New(name).
		Option("missingkey=error").
		Funcs(templateFuncs()).
		Parse(text)
	if err != nil {
		return nil, domain.NewSubSystemError(domain.SubSystemTemplate, "Template.Parse", domain.ErrTemplate, err.Error())
	}
	return &Template{name: name, tmpl: tmpl}, nil
}

// Name returns the template name used in error messages.
func (t *Template) Name() string { return t.name }

// Execute renders the template against data.
func (t *Template) Execute(data TemplateData) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, data); err != nil {
		return nil, domain.NewSubSystemError(domain.SubSystemTemplate, "Template.Execute", domain.ErrTemplate, err.Error())
	}
	return buf.Bytes(), nil
}

// templateFuncs is sprig's text function map plus a few helpers for
// permission entries.
func templateFuncs() template.FuncMap {
	funcs := sprig.TxtFuncMap()
	funcs["toYaml"] = toYAML
	funcs["octal"] = func(m domain.Mode) string { return m.Octal() }
	funcs["record"] = func(e domain.PermissionEntry) domain.EntryRecord { return e.Record() }
	return funcs
}

func toYAML(v any) (string, error) {
	out, err := yaml.Marshal(v)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(string(out), "\n"), nil
}
