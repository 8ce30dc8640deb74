package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// BodyPath is the violation path used when the payload as a whole is unusable.
const BodyPath = "body"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Violation is a single field-level validation failure.
type Violation struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Violations is the failure side of every schema. It implements error so checks made
// after decoding (e.g. a referenced row that does not exist) travel through ordinary
// error returns and still map to a 400.
type Violations []Violation

func (v Violations) Error() string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = x.Path + ": " + x.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Has reports whether any violation names path.
func (v Violations) Has(path string) bool {
	for _, x := range v {
		if x.Path == path {
			return true
		}
	}
	return false
}

// Field returns a single-violation list for path.
func Field(path, message string) Violations {
	return Violations{{Path: path, Message: message}}
}

// decode reads raw into a fresh T one field at a time, applies normalize, then runs the
// struct's validate tags. Every mistyped field is reported, and once per field. An explicit
// null counts as a mistyped value.
func decode[T any](raw []byte, normalize func(*T)) (T, Violations) {
	var payload T
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return payload, Field(BodyPath, "must be a JSON object")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return payload, Field(BodyPath, "malformed JSON")
	}

	var out Violations
	seen := make(map[string]bool)
	rv := reflect.ValueOf(&payload).Elem()
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		name := jsonName(sf)
		if name == "" {
			continue
		}
		value, ok := lookupField(fields, name)
		if !ok {
			continue
		}
		dst := reflect.New(sf.Type)
		if bytes.Equal(bytes.TrimSpace(value), []byte("null")) || json.Unmarshal(value, dst.Interface()) != nil {
			out = append(out, Violation{Path: name, Message: "must be " + describeType(sf.Type)})
			seen[name] = true
			continue
		}
		rv.Field(i).Set(dst.Elem())
	}

	if normalize != nil {
		normalize(&payload)
	}

	if err := validate.Struct(payload); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return payload, append(out, Violation{Path: BodyPath, Message: err.Error()})
		}
		for _, fe := range fieldErrs {
			path := fe.Field()
			if seen[path] {
				continue
			}
			seen[path] = true
			out = append(out, Violation{Path: path, Message: message(fe)})
		}
	}
	return payload, out
}

func jsonName(sf reflect.StructField) string {
	if sf.PkgPath != "" {
		return ""
	}
	name := strings.SplitN(sf.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return sf.Name
	}
	return name
}

// lookupField prefers an exact key and falls back to a case-insensitive one, as
// encoding/json does for struct fields.
func lookupField(fields map[string]json.RawMessage, name string) (json.RawMessage, bool) {
	if v, ok := fields[name]; ok {
		return v, true
	}
	for k, v := range fields {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

func describeType(t reflect.Type) string {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil {
		return "a valid value"
	}
	switch t.Kind() {
	case reflect.String:
		return "a string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "an integer"
	case reflect.Float32, reflect.Float64:
		return "a number"
	case reflect.Struct, reflect.Map:
		return "an object"
	default:
		return "a valid " + t.Kind().String()
	}
}

func message(fe validator.FieldError) string {
	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if isString {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return "must be greater than or equal to " + fe.Param()
	case "max":
		if isString {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return "must be less than or equal to " + fe.Param()
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "alpha":
		return "must contain only letters"
	case "email":
		return "must be a valid email address"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	case "datetime":
		return "must be an ISO 8601 timestamp"
	default:
		return "is invalid"
	}
}

func trim(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}

func upper(s *string) {
	if s != nil {
		*s = strings.ToUpper(*s)
	}
}
