// Package schema declares tool parameter shapes and validates call arguments
// against them.
package schema

import (
	"errors"
	"fmt"
	"slices"

	"github.com/slighter12/vault-mcp-go/mcp"
)

// Type is a declared parameter type.
type Type string

const (
	String  Type = "string"
	Integer Type = "integer"
	Number  Type = "number"
	Boolean Type = "boolean"
	Array   Type = "array"
	Object  Type = "object"
)

var validTypes = map[Type]struct{}{
	String:  {},
	Integer: {},
	Number:  {},
	Boolean: {},
	Array:   {},
	Object:  {},
}

// ErrInvalidSchema is returned by Check for malformed declarations.
var ErrInvalidSchema = errors.New("invalid schema")

// Field declares one named parameter.
type Field struct {
	Name        string
	Type        Type
	Required    bool
	Default     any
	Description string
	Enum        []string
	// Items is the element type when Type is Array. Empty means any.
	Items Type
}

// Schema is an ordered set of fields describing a tool's arguments.
type Schema struct {
	Title  string
	Fields []Field
}

// New builds a schema from fields.
func New(title string, fields ...Field) Schema {
	return Schema{Title: title, Fields: fields}
}

// Required declares a mandatory field.
func Required(name string, t Type, description string) Field {
	return Field{Name: name, Type: t, Required: true, Description: description}
}

// Optional declares a field that may be omitted.
func Optional(name string, t Type, description string) Field {
	return Field{Name: name, Type: t, Description: description}
}

// WithDefault returns a copy of f filled with value when the field is absent.
func (f Field) WithDefault(value any) Field {
	f.Default = value
	return f
}

// WithEnum restricts a string field to the given values.
func (f Field) WithEnum(values ...string) Field {
	f.Enum = append([]string(nil), values...)
	return f
}

// Of sets the element type of an array field.
func (f Field) Of(items Type) Field {
	f.Items = items
	return f
}

// Field returns the declaration for name.
func (s Schema) Field(name string) (Field, bool) {
	for _, field := range s.Fields {
		if field.Name == name {
			return field, true
		}
	}
	return Field{}, false
}

// Check validates the declaration itself: field names are unique and non-empty,
// types are known, and defaults conform to their declared type.
func (s Schema) Check() error {
	seen := make(map[string]struct{}, len(s.Fields))
	for _, field := range s.Fields {
		if field.Name == "" {
			return fmt.Errorf("%w: field name is empty", ErrInvalidSchema)
		}
		if _, dup := seen[field.Name]; dup {
			return fmt.Errorf("%w: duplicate field %q", ErrInvalidSchema, field.Name)
		}
		seen[field.Name] = struct{}{}
		if _, ok := validTypes[field.Type]; !ok {
			return fmt.Errorf("%w: field %q has unsupported type %q", ErrInvalidSchema, field.Name, field.Type)
		}
		if field.Items != "" {
			if field.Type != Array {
				return fmt.Errorf("%w: field %q declares items but is not an array", ErrInvalidSchema, field.Name)
			}
			if _, ok := validTypes[field.Items]; !ok {
				return fmt.Errorf("%w: field %q has unsupported item type %q", ErrInvalidSchema, field.Name, field.Items)
			}
		}
		if field.Default != nil {
			if field.Required {
				return fmt.Errorf("%w: required field %q cannot declare a default", ErrInvalidSchema, field.Name)
			}
			if _, ok := coerce(field.Type, field.Items, field.Default); !ok {
				return fmt.Errorf("%w: default for %q is not a %s", ErrInvalidSchema, field.Name, field.Type)
			}
		}
		if len(field.Enum) > 0 && field.Type != String {
			return fmt.Errorf("%w: enum on non-string field %q", ErrInvalidSchema, field.Name)
		}
	}
	return nil
}

// InputSchema renders the advertised JSON schema.
func (s Schema) InputSchema() mcp.InputSchema {
	properties := make(map[string]any, len(s.Fields))
	required := make([]string, 0)
	for _, field := range s.Fields {
		prop := map[string]any{"type": string(field.Type)}
		if field.Description != "" {
			prop["description"] = field.Description
		}
		if field.Default != nil {
			prop["default"] = field.Default
		}
		if len(field.Enum) > 0 {
			prop["enum"] = slices.Clone(field.Enum)
		}
		if field.Type == Array && field.Items != "" {
			prop["items"] = map[string]any{"type": string(field.Items)}
		}
		properties[field.Name] = prop
		if field.Required {
			required = append(required, field.Name)
		}
	}
	return mcp.InputSchema{
		Type:       "object",
		Properties: properties,
		Required:   required,
		Title:      s.Title,
	}
}
