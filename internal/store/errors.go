package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when no row matches the requested id.
var ErrNotFound = errors.New("record not found")

// ConstraintKind identifies which integrity rule a write violated.
type ConstraintKind string

const (
	KindUnique     ConstraintKind = "unique"
	KindForeignKey ConstraintKind = "foreign_key"
)

// Constraint names shared by the schema and the in-memory store.
const (
	ConstraintProvinceCode    = "provinces_code_key"
	ConstraintUserEmail       = "users_email_key"
	ConstraintWeatherProvince = "weather_data_province_id_fkey"
)

// constraintFields maps constraint names to the API field they guard.
var constraintFields = map[string]string{
	ConstraintProvinceCode:    "code",
	ConstraintUserEmail:       "email",
	ConstraintWeatherProvince: "provinceId",
}

// ConstraintError reports a unique or foreign-key violation.
type ConstraintError struct {
	Kind       ConstraintKind
	Field      string
	Constraint string
	Err        error
}

func (e *ConstraintError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s constraint %s violated on %s: %v", e.Kind, e.Constraint, e.Field, e.Err)
	}
	return fmt.Sprintf("%s constraint %s violated on %s", e.Kind, e.Constraint, e.Field)
}

func (e *ConstraintError) Unwrap() error {
	return e.Err
}

func newConstraintError(kind ConstraintKind, constraint string, err error) *ConstraintError {
	return &ConstraintError{
		Kind:       kind,
		Field:      constraintFields[constraint],
		Constraint: constraint,
		Err:        err,
	}
}

// AsConstraint returns the ConstraintError in err's chain, if any.
func AsConstraint(err error) (*ConstraintError, bool) {
	var ce *ConstraintError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// IsUnique reports whether err is a unique violation.
func IsUnique(err error) bool {
	ce, ok := AsConstraint(err)
	return ok && ce.Kind == KindUnique
}

// IsForeignKey reports whether err is a foreign-key violation.
func IsForeignKey(err error) bool {
	ce, ok := AsConstraint(err)
	return ok && ce.Kind == KindForeignKey
}
