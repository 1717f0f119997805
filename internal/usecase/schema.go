package usecase

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"permtemplate/internal/domain"
)

//go:embed document.schema.json
var documentSchema []byte

// DocumentSchema returns the JSON Schema describing raw documents.
func DocumentSchema() []byte {
	return bytes.Clone(documentSchema)
}

// Schema is a compiled JSON Schema that rendered output is checked against.
type Schema struct {
	name   string
	schema *jsonschema.Schema
}

// LoadSchema reads a JSON or YAML (by .yaml/.yml extension) schema file.
func LoadSchema(path string) (*Schema, error) {
	const op = "Schema.Load"

	data, err := os.ReadFile(path)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil, domain.NewDomainError(op, domain.ErrNotFound, fmt.Sprintf("schema file %q", path))
		case errors.Is(err, fs.ErrPermission):
			return nil, domain.NewDomainError(op, domain.ErrPermissionDenied, fmt.Sprintf("schema file %q", path))
		default:
			return nil, domain.NewDomainError(op, domain.ErrInvalidInput, err.Error())
		}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var v any
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, domain.NewDomainError(op, domain.ErrInvalidInput, fmt.Sprintf("schema file %q: %v", path, err))
		}
		data, err = json.Marshal(v)
		if err != nil {
			return nil, domain.NewDomainError(op, domain.ErrInvalidInput, fmt.Sprintf("schema file %q: %v", path, err))
		}
	}
	return CompileSchema(filepath.Base(path), data)
}

// CompileSchema compiles a JSON Schema document.
func CompileSchema(name string, data []byte) (*Schema, error) {
	const op = "Schema.Compile"

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(data)); err != nil {
		return nil, domain.NewDomainError(op, domain.ErrInvalidInput, fmt.Sprintf("add schema %q: %v", name, err))
	}
	compiled, err := compiler.Compile(name)
	if err != nil {
		return nil, domain.NewDomainError(op, domain.ErrInvalidInput, fmt.Sprintf("compile schema %q: %v", name, err))
	}
	return &Schema{name: name, schema: compiled}, nil
}

// Validate checks v, a value shaped like decoded JSON, against the schema.
func (s *Schema) Validate(v any) error {
	if err := s.schema.Validate(v); err != nil {
		return domain.NewSubSystemError(domain.SubSystemRenderer, "Schema.Validate", domain.ErrSchemaViolation, err.Error())
	}
	return nil
}

// jsonValue converts an arbitrary decoded value (typically from YAML) into
// the map[string]any / []any / json.Number shape the validator expects.
func jsonValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return decodeJSON(data)
}

func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("unexpected data after top-level value")
	}
	return v, nil
}
