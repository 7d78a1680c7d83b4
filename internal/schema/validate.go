package schema

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"
)

var chatRoles = map[string]bool{"system": true, "user": true, "assistant": true}

// Validate checks raw arguments against the operation and returns a normalized
// copy: ints as int64, floats as float64, bytes fields decoded to []byte.
// A non-empty issue list means the arguments were rejected; the normalized
// map is then nil.
func Validate(spec *OperationSpec, args map[string]any) (map[string]any, []Issue) {
	var issues []Issue
	normalized := make(map[string]any, len(args))

	// Unknown fields are rejected outright. Sorted for deterministic output.
	var unknown []string
	for name := range args {
		if spec.FieldByName(name) == nil {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	for _, name := range unknown {
		issues = append(issues, Issue{
			Path:    name,
			Message: fmt.Sprintf("unknown field %q", name),
			Code:    CodeUnknownField,
		})
	}

	for i := range spec.Fields {
		field := &spec.Fields[i]
		raw, present := args[field.Name]
		if !present || raw == nil {
			if field.Required {
				issues = append(issues, Issue{
					Path:    field.Name,
					Message: fmt.Sprintf("field %q is required", field.Name),
					Code:    CodeRequired,
				})
			}
			continue
		}

		value, fieldIssues := validateField(field, raw)
		if len(fieldIssues) > 0 {
			issues = append(issues, fieldIssues...)
			continue
		}
		normalized[field.Name] = value
	}

	if len(issues) == 0 && spec.Check != nil {
		issues = append(issues, spec.Check(normalized)...)
	}

	if len(issues) > 0 {
		return nil, issues
	}
	return normalized, nil
}

func validateField(field *Field, raw any) (any, []Issue) {
	switch field.Type {
	case TypeString:
		return validateString(field, raw)
	case TypeInt:
		return validateInt(field, raw)
	case TypeFloat:
		return validateFloat(field, raw)
	case TypeBytes:
		return validateBytes(field, raw)
	case TypeMap:
		return validateMap(field, raw)
	case TypeMessages:
		return validateMessages(field, raw)
	default:
		return nil, []Issue{{Path: field.Name, Message: "unsupported field type", Code: CodeInvalidType}}
	}
}

func validateString(field *Field, raw any) (any, []Issue) {
	s, ok := raw.(string)
	if !ok {
		return nil, typeIssue(field, "string", raw)
	}
	n := utf8.RuneCountInString(s)
	if n < field.MinLen {
		return nil, []Issue{{
			Path:    field.Name,
			Message: fmt.Sprintf("must be at least %d characters, got %d", field.MinLen, n),
			Code:    CodeMinLength,
		}}
	}
	if field.MaxLen > 0 && n > field.MaxLen {
		return nil, []Issue{{
			Path:    field.Name,
			Message: fmt.Sprintf("must be at most %d characters, got %d", field.MaxLen, n),
			Code:    CodeMaxLength,
		}}
	}
	if field.Pattern != nil && !field.Pattern.MatchString(s) {
		return nil, []Issue{{
			Path:    field.Name,
			Message: fmt.Sprintf("does not match required pattern %s", field.Pattern),
			Code:    CodeInvalidFormat,
		}}
	}
	return s, nil
}

// asInt64 accepts the integer shapes a JSON decode can produce. Strings are
// never coerced.
func asInt64(raw any) (int64, bool) {
	switch v := raw.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return int64(v), true
		}
		return 0, false
	case json.Number:
		i, err := v.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}

func asFloat64(raw any) (float64, bool) {
	switch v := raw.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func validateInt(field *Field, raw any) (any, []Issue) {
	i, ok := asInt64(raw)
	if !ok {
		return nil, typeIssue(field, "integer", raw)
	}
	if iss := checkRange(field, float64(i), fmt.Sprintf("%d", i)); iss != nil {
		return nil, iss
	}
	return i, nil
}

func validateFloat(field *Field, raw any) (any, []Issue) {
	f, ok := asFloat64(raw)
	if !ok {
		return nil, typeIssue(field, "number", raw)
	}
	if iss := checkRange(field, f, fmt.Sprintf("%g", f)); iss != nil {
		return nil, iss
	}
	return f, nil
}

func checkRange(field *Field, v float64, shown string) []Issue {
	if (field.Min != nil && v < *field.Min) || (field.Max != nil && v > *field.Max) {
		return []Issue{{
			Path:    field.Name,
			Message: fmt.Sprintf("value %s is outside the allowed range %s", shown, rangeText(field)),
			Code:    CodeOutOfRange,
		}}
	}
	return nil
}

func rangeText(field *Field) string {
	switch {
	case field.Min != nil && field.Max != nil:
		return fmt.Sprintf("[%g, %g]", *field.Min, *field.Max)
	case field.Min != nil:
		return fmt.Sprintf(">= %g", *field.Min)
	case field.Max != nil:
		return fmt.Sprintf("<= %g", *field.Max)
	default:
		return "(unbounded)"
	}
}

// validateBytes accepts raw bytes or a base64 string. Data-URI prefixes
// ("data:image/png;base64,...") are stripped before decoding.
func validateBytes(field *Field, raw any) (any, []Issue) {
	switch v := raw.(type) {
	case []byte:
		if len(v) == 0 {
			return nil, []Issue{{Path: field.Name, Message: "must not be empty", Code: CodeMinLength}}
		}
		return v, nil
	case string:
		payload := v
		if strings.HasPrefix(payload, "data:") {
			if idx := strings.Index(payload, ","); idx >= 0 {
				payload = payload[idx+1:]
			}
		}
		decoded, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, []Issue{{
				Path:    field.Name,
				Message: "must be valid base64",
				Code:    CodeInvalidFormat,
			}}
		}
		if len(decoded) == 0 {
			return nil, []Issue{{Path: field.Name, Message: "must not be empty", Code: CodeMinLength}}
		}
		return decoded, nil
	default:
		return nil, typeIssue(field, "base64 string or bytes", raw)
	}
}

func validateMap(field *Field, raw any) (any, []Issue) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, typeIssue(field, "object", raw)
	}
	return m, nil
}

// validateMessages checks the chat message list: non-empty, every entry an
// object with exactly a known role and a string content.
func validateMessages(field *Field, raw any) (any, []Issue) {
	list, ok := asAnySlice(raw)
	if !ok {
		return nil, typeIssue(field, "array", raw)
	}
	if len(list) == 0 {
		return nil, []Issue{{
			Path:    field.Name,
			Message: "must contain at least one message",
			Code:    CodeMinLength,
		}}
	}

	var issues []Issue
	messages := make([]map[string]any, 0, len(list))
	for i, entry := range list {
		path := fmt.Sprintf("%s[%d]", field.Name, i)
		m, ok := entry.(map[string]any)
		if !ok {
			issues = append(issues, Issue{Path: path, Message: "each message must be an object", Code: CodeInvalidType})
			continue
		}
		role, _ := m["role"].(string)
		content, hasContent := m["content"].(string)
		switch {
		case role == "":
			issues = append(issues, Issue{Path: path + ".role", Message: "role is required", Code: CodeRequired})
		case !chatRoles[role]:
			issues = append(issues, Issue{Path: path + ".role", Message: "role must be one of: system, user, assistant", Code: CodeInvalidEnum})
		}
		if !hasContent {
			issues = append(issues, Issue{Path: path + ".content", Message: "content must be a string", Code: CodeInvalidType})
		}
		for key := range m {
			if key != "role" && key != "content" {
				issues = append(issues, Issue{Path: path + "." + key, Message: fmt.Sprintf("unknown message field %q", key), Code: CodeUnknownField})
			}
		}
		if len(issues) == 0 {
			messages = append(messages, map[string]any{"role": role, "content": content})
		}
	}
	if len(issues) > 0 {
		return nil, issues
	}
	return messages, nil
}

func asAnySlice(raw any) ([]any, bool) {
	switch v := raw.(type) {
	case []any:
		return v, true
	case []map[string]any:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out, true
	default:
		return nil, false
	}
}

func typeIssue(field *Field, want string, got any) []Issue {
	return []Issue{{
		Path:    field.Name,
		Message: fmt.Sprintf("expected %s, got %T", want, got),
		Code:    CodeInvalidType,
	}}
}
