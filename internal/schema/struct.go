// ABOUTME: Struct-based schema inference for typed tool argument structs.
// ABOUTME: Reads json, desc and default tags to build a Param list.

package schema

import (
	"encoding/json"
	"reflect"
	"strings"
)

// FromStruct infers a schema from the exported fields of v, which must be a
// struct or pointer to struct. Non-struct values produce an empty schema.
//
// Recognized tags:
//
//	json:"name,omitempty"  property name; omitempty makes it optional
//	desc:"..."             property description
//	default:"..."          default value (decoded as JSON when possible)
func FromStruct(v any) *Schema {
	return Infer(ParamsOf(v))
}

// ParamsOf returns the Param list FromStruct would infer from.
func ParamsOf(v any) []Param {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}

	params := make([]Param, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}

		name, opts, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}

		p := Param{
			Name:        name,
			Type:        annotationOf(f.Type),
			Description: f.Tag.Get("desc"),
		}

		if def, ok := f.Tag.Lookup("default"); ok {
			p.HasDefault = true
			p.Default = decodeDefault(def)
		} else if f.Type.Kind() == reflect.Pointer || strings.Contains(opts, "omitempty") {
			p.HasDefault = true
		}

		params = append(params, p)
	}
	return params
}

// annotationOf renders a Go type as an annotation TypeOf understands.
func annotationOf(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		// time.Time and friends serialize as strings.
		if t.Kind() == reflect.Struct && t.Implements(textMarshalerType) {
			return "string"
		}
		return "object"
	case reflect.Interface:
		return "any"
	default:
		return t.Kind().String()
	}
}

var textMarshalerType = reflect.TypeOf((*interface{ MarshalText() ([]byte, error) })(nil)).Elem()

func decodeDefault(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}
