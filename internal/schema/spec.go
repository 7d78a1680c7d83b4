// Package schema holds the static operation catalog and the declarative
// input validation it drives. New operations are table entries, not code.
package schema

import "regexp"

// BodyKind selects how validated arguments are encoded on the wire.
type BodyKind string

const (
	BodyJSON      BodyKind = "json"
	BodyMultipart BodyKind = "multipart"
	BodyNone      BodyKind = "none" // GET requests and path-parameter lookups
)

// ResponseKind describes the upstream response shape the caller should expect.
type ResponseKind string

const (
	ResponseSyncResult    ResponseKind = "sync-result"
	ResponseAsyncTask     ResponseKind = "async-task"
	ResponseArbitraryJSON ResponseKind = "arbitrary-json"
)

// FieldType is the strict wire type of an input field. No implicit
// string-to-number coercion happens anywhere.
type FieldType string

const (
	TypeString   FieldType = "string"
	TypeInt      FieldType = "int"
	TypeFloat    FieldType = "float"
	TypeBytes    FieldType = "bytes"    // base64 string or raw []byte
	TypeMap      FieldType = "map"      // free-form JSON object
	TypeMessages FieldType = "messages" // chat message list
)

// Field declares one input field with its constraints.
type Field struct {
	Name     string
	Type     FieldType
	Required bool

	// String constraints. MaxLen == 0 means unbounded.
	MinLen  int
	MaxLen  int
	Pattern *regexp.Regexp

	// Numeric constraints, inclusive. Nil means unbounded.
	Min *float64
	Max *float64

	// File marks a multipart field that is sent as a file part.
	File bool

	// PathParam marks a field substituted into the path template.
	PathParam bool

	Description string
}

// Issue is one validation problem, addressed by field path.
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Issue codes emitted by the validator.
const (
	CodeRequired      = "required"
	CodeUnknownField  = "unknown_field"
	CodeInvalidType   = "invalid_type"
	CodeMinLength     = "min_length"
	CodeMaxLength     = "max_length"
	CodeOutOfRange    = "out_of_range"
	CodeInvalidFormat = "invalid_format"
	CodeInvalidEnum   = "invalid_enum"
	CodeConstraint    = "constraint"
)

// OperationSpec maps one operation name onto its upstream endpoint, encoding,
// input schema and expected response shape.
type OperationSpec struct {
	Name     string
	Path     string // may contain {param} placeholders
	Method   string
	Body     BodyKind
	Response ResponseKind
	Fields   []Field

	// Check runs cross-field rules after per-field validation passed.
	Check func(args map[string]any) []Issue
}

// FieldByName returns the field declaration, or nil when unknown.
func (s *OperationSpec) FieldByName(name string) *Field {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return &s.Fields[i]
		}
	}
	return nil
}

func f64(v float64) *float64 { return &v }
