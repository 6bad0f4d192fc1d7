// Package schema derives JSON Schema input descriptions for tools.
//
// # Overview
//
// Every tool exposed over MCP publishes an inputSchema. Tools that ship an
// explicit schema use it verbatim; the rest get one inferred from their
// parameter list:
//
//	schema.Infer([]schema.Param{
//	    {Name: "key", Type: "string"},
//	    {Name: "limit", Type: "int", HasDefault: true, Default: 10},
//	})
//
// produces
//
//	{"type":"object","properties":{"key":{"type":"string"},"limit":{"type":"integer","default":10}},"required":["key"]}
//
// # Type Mapping
//
// Annotations are matched loosely so that Go type names, JSON Schema names and
// the names used by external tool manifests all land on the same JSON type.
// Anything unrecognized becomes "string". Inference never fails.
//
// # Struct Inference
//
// FromStruct walks the exported fields of a struct (the typed argument struct
// of a builtin tool) and infers one Param per field using its json tag. A
// field is optional when it is a pointer, tagged omitempty, or carries a
// default tag.
package schema
