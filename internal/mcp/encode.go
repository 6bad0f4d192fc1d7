// ABOUTME: Permissive JSON encoding that never fails on odd values.
// ABOUTME: Anything encoding/json rejects is replaced by its display string.

package mcp

import (
	"bytes"
	"encoding"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"
)

const (
	// maxSanitizeDepth bounds nesting.
	maxSanitizeDepth = 64
	// maxSanitizeNodes bounds the values visited in one rewrite; everything
	// past it is stringified.
	maxSanitizeNodes = 10000
)

// Marshal encodes v as JSON. When encoding/json fails, v is rewritten into
// plain maps, slices and scalars, and every value that still cannot be
// encoded is replaced by its string form.
func Marshal(v any) []byte {
	if b, err := json.Marshal(v); err == nil {
		return b
	}
	b, err := json.Marshal(newSanitizer().sanitize(reflect.ValueOf(v), 0))
	if err != nil {
		// sanitize only produces encodable values; keep the contract anyway.
		b, _ = json.Marshal(fmt.Sprint(v))
	}
	return b
}

// MarshalIndent is Marshal with two-space indentation.
func MarshalIndent(v any) []byte {
	b := Marshal(v)
	var out bytes.Buffer
	if err := json.Indent(&out, b, "", "  "); err != nil {
		return b
	}
	return out.Bytes()
}

// ToText renders a tool result as text: strings verbatim, everything else
// as indented JSON.
func ToText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case json.RawMessage:
		if json.Valid(t) {
			return string(MarshalIndent(t))
		}
		return string(t)
	}
	return string(MarshalIndent(v))
}

// sanitizer rewrites a value into encodable maps, slices and scalars.
// References already on the current path are stringified, which cuts cycles.
type sanitizer struct {
	path  map[ref]bool
	nodes int
}

// ref identifies a pointer, map or slice target.
type ref struct {
	ptr uintptr
	typ reflect.Type
	len int
}

func newSanitizer() *sanitizer {
	return &sanitizer{path: make(map[ref]bool)}
}

func (s *sanitizer) sanitize(v reflect.Value, depth int) any {
	if !v.IsValid() {
		return nil
	}
	s.nodes++
	if depth > maxSanitizeDepth || s.nodes > maxSanitizeNodes {
		return elide(v)
	}

	// Values with their own encoding are tried as a unit.
	if v.CanInterface() && implementsEncoder(v.Type()) {
		if b, err := json.Marshal(v.Interface()); err == nil {
			return json.RawMessage(b)
		}
		return stringify(v)
	}

	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return s.sanitize(v.Elem(), depth+1)

	case reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		return s.enter(v, func() any { return s.sanitize(v.Elem(), depth+1) })

	case reflect.Map:
		if v.IsNil() {
			return nil
		}
		return s.enter(v, func() any {
			out := make(map[string]any, v.Len())
			iter := v.MapRange()
			for iter.Next() {
				out[mapKey(iter.Key())] = s.sanitize(iter.Value(), depth+1)
			}
			return out
		})

	case reflect.Slice:
		if v.IsNil() {
			return nil
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return v.Bytes()
		}
		return s.enter(v, func() any { return s.sanitizeList(v, depth) })

	case reflect.Array:
		return s.sanitizeList(v, depth)

	case reflect.Struct:
		return s.sanitizeStruct(v, depth)

	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return stringify(v)
		}
		return f

	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if v.CanInterface() {
			return v.Interface()
		}
		return stringify(v)

	default:
		// complex numbers, channels, functions, unsafe pointers
		return stringify(v)
	}
}

// enter runs fn with v's target marked as on the path. A target that is
// already on the path is stringified instead.
func (s *sanitizer) enter(v reflect.Value, fn func() any) any {
	r := ref{ptr: v.Pointer(), typ: v.Type()}
	if v.Kind() == reflect.Slice {
		r.len = v.Len()
	}
	if s.path[r] {
		return elide(v)
	}
	s.path[r] = true
	defer delete(s.path, r)
	return fn()
}

func (s *sanitizer) sanitizeList(v reflect.Value, depth int) any {
	out := make([]any, v.Len())
	for i := range out {
		out[i] = s.sanitize(v.Index(i), depth+1)
	}
	return out
}

func (s *sanitizer) sanitizeStruct(v reflect.Value, depth int) any {
	t := v.Type()
	out := make(map[string]any, t.NumField())
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
		fv := v.Field(i)
		if strings.Contains(opts, "omitempty") && fv.IsZero() {
			continue
		}
		out[name] = s.sanitize(fv, depth+1)
	}
	return out
}

var (
	jsonMarshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
	textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
)

func implementsEncoder(t reflect.Type) bool {
	return t.Implements(jsonMarshalerType) || t.Implements(textMarshalerType)
}

func mapKey(k reflect.Value) string {
	if k.Kind() == reflect.String {
		return k.String()
	}
	return stringify(k)
}

// stringify returns the display form of a value: error text, Stringer output,
// or the default fmt formatting.
func stringify(v reflect.Value) string {
	if !v.CanInterface() {
		return fmt.Sprint(v)
	}
	switch x := v.Interface().(type) {
	case error:
		return x.Error()
	case fmt.Stringer:
		return safeString(x)
	default:
		return fmt.Sprint(x)
	}
}

// elide renders v without descending into it. fmt would recurse forever
// through a map or slice that contains itself.
func elide(v reflect.Value) string {
	switch v.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct, reflect.Pointer, reflect.Interface:
		if v.CanInterface() {
			switch x := v.Interface().(type) {
			case error:
				return x.Error()
			case fmt.Stringer:
				return safeString(x)
			}
		}
		return fmt.Sprintf("<%s>", v.Type())
	}
	return stringify(v)
}

// safeString guards against String methods that panic on nil receivers.
func safeString(s fmt.Stringer) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = "<unprintable>"
		}
	}()
	return s.String()
}
