package reconstruct

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is on a returned *Error.
var (
	ErrMissingField            = errors.New("missing field")
	ErrInvalidEncoding         = errors.New("invalid encoding")
	ErrUnknownOperationVariant = errors.New("unknown operation variant")
	ErrAmountOverflow          = errors.New("amount overflow")
	ErrInvalidSignature        = errors.New("invalid signature")
	ErrUnsupportedDenunciation = errors.New("unsupported denunciation")
)

// Error is a reconstruction failure located at a field path such as
// "block.operations[2].content.fee".
type Error struct {
	Kind  error
	Field string
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Field, e.Kind)
	}

	return fmt.Sprintf("%s: %v: %v", e.Field, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}

	return []error{e.Kind, e.Err}
}

func missing(field string) error {
	return &Error{Kind: ErrMissingField, Field: field}
}

func invalid(field string, err error) error {
	return &Error{Kind: ErrInvalidEncoding, Field: field, Err: err}
}

// nested prefixes the field path of a nested reconstruction error.
func nested(prefix string, err error) error {
	var re *Error
	if errors.As(err, &re) {
		return &Error{Kind: re.Kind, Field: prefix + "." + re.Field, Err: re.Err}
	}

	return fmt.Errorf("%s:\n%w", prefix, err)
}
