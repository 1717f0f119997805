package usecase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"
	"strings"

	"gopkg.in/yaml.v3"

	"permtemplate/internal/domain"
)

// Format is an output serialization.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatText Format = "text"
)

// ParseFormat parses a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatYAML, FormatText:
		return f, nil
	default:
		return "", domain.NewSubSystemError(domain.SubSystemRenderer, "ParseFormat", domain.ErrInvalidInput,
			fmt.Sprintf("unsupported output format %q (want json, yaml or text)", s))
	}
}

// RenderOptions configures a Renderer.
type RenderOptions struct {
	Format Format
	// Template, when set, produces the output instead of the raw document.
	Template *Template
	// Normalize re-emits templated json/yaml output in canonical indentation.
	Normalize bool
	// Schema, when set, is checked against the parsed output.
	Schema    *Schema
	SourceDir string
}

// Renderer turns a sequence of entries into output bytes.
type Renderer struct {
	opts RenderOptions
}

// NewRenderer validates opts.
func NewRenderer(opts RenderOptions) (*Renderer, error) {
	const op = "Renderer.New"

	if _, err := ParseFormat(string(opts.Format)); err != nil {
		return nil, err
	}
	if opts.Format == FormatText {
		switch {
		case opts.Template == nil:
			return nil, domain.NewSubSystemError(domain.SubSystemRenderer, op, domain.ErrInvalidInput, "text format requires a template")
		case opts.Schema != nil:
			return nil, domain.NewSubSystemError(domain.SubSystemRenderer, op, domain.ErrInvalidInput, "schema validation requires json or yaml format")
		case opts.Normalize:
			return nil, domain.NewSubSystemError(domain.SubSystemRenderer, op, domain.ErrInvalidInput, "normalize requires json or yaml format")
		}
	}
	return &Renderer{opts: opts}, nil
}

// Render consumes entries and returns the complete output. Nothing is
// returned on error, so a failed render never produces partial output.
func (r *Renderer) Render(entries iter.Seq2[domain.PermissionEntry, error]) ([]byte, error) {
	var list []domain.PermissionEntry
	for e, err := range entries {
		if err != nil {
			return nil, err
		}
		list = append(list, e)
	}

	if r.opts.Template == nil {
		return r.renderDocument(domain.NewDocument(list))
	}

	out, err := r.opts.Template.Execute(TemplateData{SourceDir: r.opts.SourceDir, Entries: list})
	if err != nil {
		return nil, err
	}
	switch r.opts.Format {
	case FormatJSON:
		return r.checkJSON(out)
	case FormatYAML:
		return r.checkYAML(out)
	default:
		return out, nil
	}
}

func (r *Renderer) renderDocument(doc domain.Document) ([]byte, error) {
	const op = "Renderer.Render"

	if r.opts.Schema != nil {
		v, err := jsonValue(doc)
		if err != nil {
			return nil, domain.WrapOp(op, err)
		}
		if err := r.opts.Schema.Validate(v); err != nil {
			return nil, err
		}
	}

	var (
		out []byte
		err error
	)
	if r.opts.Format == FormatYAML {
		out, err = encodeYAML(doc)
	} else {
		out, err = encodeJSON(doc)
	}
	if err != nil {
		return nil, domain.WrapOp(op, err)
	}
	return out, nil
}

// checkJSON verifies templated output parses as JSON.
func (r *Renderer) checkJSON(out []byte) ([]byte, error) {
	v, err := decodeJSON(out)
	if err != nil {
		return nil, r.invalidOutput("json", err)
	}
	if r.opts.Schema != nil {
		if err := r.opts.Schema.Validate(v); err != nil {
			return nil, err
		}
	}
	if !r.opts.Normalize {
		return out, nil
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(out), "", "    "); err != nil {
		return nil, r.invalidOutput("json", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// checkYAML verifies templated output parses as YAML. Normalizing keeps
// key order and comments.
func (r *Renderer) checkYAML(out []byte) ([]byte, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(out, &node); err != nil {
		return nil, r.invalidOutput("yaml", err)
	}
	if node.Kind == 0 {
		return nil, r.invalidOutput("yaml", fmt.Errorf("document is empty"))
	}

	if r.opts.Schema != nil {
		var raw any
		if err := node.Decode(&raw); err != nil {
			return nil, r.invalidOutput("yaml", err)
		}
		v, err := jsonValue(raw)
		if err != nil {
			return nil, r.invalidOutput("yaml", err)
		}
		if err := r.opts.Schema.Validate(v); err != nil {
			return nil, err
		}
	}
	if !r.opts.Normalize {
		return out, nil
	}

	normalized, err := encodeYAML(&node)
	if err != nil {
		return nil, r.invalidOutput("yaml", err)
	}
	return normalized, nil
}

func (r *Renderer) invalidOutput(format string, err error) error {
	return domain.NewSubSystemError(domain.SubSystemTemplate, "Renderer.Render", domain.ErrTemplate,
		fmt.Sprintf("template %q did not produce valid %s: %v", r.opts.Template.Name(), format, err))
}

func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeYAML(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
