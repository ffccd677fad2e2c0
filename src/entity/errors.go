package entity

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownIssuer is returned when no public key is known for the issuer
	// of a statement.
	ErrUnknownIssuer = errors.New("unknown issuer")
	// ErrBadSignature is returned when a signature does not verify.
	ErrBadSignature = errors.New("signature does not match")
)

// SchemaError is returned when a record cannot be turned into a typed entity,
// because a field is missing, unknown, or has the wrong type.
type SchemaError struct {
	Entity string
	Field  string
	Err    error
}

func (e *SchemaError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: field %q: %v", e.Entity, e.Field, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Entity, e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}
