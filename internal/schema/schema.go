// ABOUTME: JSON Schema inference for tool input parameters.
// ABOUTME: Maps loose type annotations onto JSON types; required means no default.

package schema

import (
	"encoding/json"
	"strings"
	"unicode"
)

// JSON Schema primitive type names.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeObject  = "object"
	TypeArray   = "array"
)

// Param describes one tool parameter as declared by its handler.
type Param struct {
	Name        string
	Type        string // free-form annotation, e.g. "str", "int64", "map[string]any"
	Description string
	HasDefault  bool
	Default     any
}

// Property is a single entry under "properties".
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Default     any    `json:"default,omitempty"`
}

// Schema is the object-typed input schema of a tool.
type Schema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required"`
}

// typeNames maps annotation identifiers onto JSON types. Sized numeric
// names ("int64", "float32") are looked up without their digits.
var typeNames = map[string]string{
	"bool": TypeBoolean, "boolean": TypeBoolean,

	"list": TypeArray, "array": TypeArray, "slice": TypeArray, "sequence": TypeArray,
	"tuple": TypeArray, "set": TypeArray, "frozenset": TypeArray,

	"map": TypeObject, "dict": TypeObject, "object": TypeObject, "struct": TypeObject,
	"mapping": TypeObject,

	"float": TypeNumber, "double": TypeNumber, "decimal": TypeNumber, "number": TypeNumber,
	"numeric": TypeNumber,

	"int": TypeInteger, "uint": TypeInteger, "integer": TypeInteger, "long": TypeInteger,
	"uintptr": TypeInteger,

	"str": TypeString, "string": TypeString, "text": TypeString, "char": TypeString,
	"rune": TypeString,
}

// TypeOf maps a type annotation to a JSON Schema type. The first identifier
// that names a known type decides, so the outer type of a generic wins
// ("List[str]" is an array). Empty or unknown annotations map to "string".
func TypeOf(annotation string) string {
	a := strings.ToLower(strings.TrimSpace(annotation))
	// Go slice and array syntax: "[]T", "[4]T".
	if strings.HasPrefix(a, "[") {
		return TypeArray
	}
	for _, tok := range identifiers(a) {
		if kind, ok := typeNames[tok]; ok {
			return kind
		}
		if kind, ok := typeNames[strings.TrimRight(tok, "0123456789")]; ok {
			return kind
		}
	}
	return TypeString
}

// identifiers splits s into runs of letters, digits and underscores.
func identifiers(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}

// Infer builds an object schema from a parameter list. Parameters without a
// default are required. Properties keep no order (JSON objects), but Required
// follows declaration order.
func Infer(params []Param) *Schema {
	s := &Schema{
		Type:       TypeObject,
		Properties: make(map[string]Property, len(params)),
		Required:   []string{},
	}
	for _, p := range params {
		if p.Name == "" {
			continue
		}
		prop := Property{
			Type:        TypeOf(p.Type),
			Description: p.Description,
		}
		if p.HasDefault {
			prop.Default = p.Default
		} else {
			s.Required = append(s.Required, p.Name)
		}
		s.Properties[p.Name] = prop
	}
	return s
}

// JSON returns the schema encoded as a raw JSON message.
func (s *Schema) JSON() json.RawMessage {
	b, err := json.Marshal(s)
	if err != nil {
		// Defaults come from handler declarations; fall back to an open object.
		return json.RawMessage(`{"type":"object","properties":{},"required":[]}`)
	}
	return b
}

// Empty is the schema of a tool that takes no arguments.
func Empty() *Schema {
	return Infer(nil)
}
