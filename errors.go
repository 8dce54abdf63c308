package vexgraph

import (
	"errors"
	"strings"
)

// Error is the vexgraph error domain type.
//
// Errors coming from vexgraph components should be inspectable as
// ([errors.As]) an *Error at some point in the error chain.
//
// Components should create an Error at the system boundary (database client,
// storage backend, malformed input) and intermediate layers should prefer
// [fmt.Errorf] with a "%w" verb over creating another containing Error.
type Error struct {
	Inner   error
	Kind    ErrorKind
	Message string
	Op      string
}

var (
	_ error                       = (*Error)(nil)
	_ interface{ Is(error) bool } = (*Error)(nil)
	_ interface{ Unwrap() error } = (*Error)(nil)
)

// Error implements error.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(" ")
	}
	b.WriteString("[")
	switch e.Kind {
	case ErrInputParse, ErrUnsupportedFormat, ErrPayloadTooLarge, ErrStorage,
		ErrDatabase, ErrMidAirCollision, ErrNotFound, ErrValidation:
		b.WriteString(string(e.Kind))
	default:
		b.WriteString("???")
	}
	b.WriteString("]: ")
	if e.Message != "" {
		b.WriteString(e.Message)
	}
	if e.Message != "" && e.Inner != nil {
		b.WriteString(": ")
	}
	if e.Op == "" && e.Message == "" {
		b.Reset()
	}
	if e.Inner != nil {
		b.WriteString(e.Inner.Error())
	}
	return b.String()
}

// Is enables [errors.Is].
func (e *Error) Is(kind error) bool {
	return errors.Is(e.Kind, kind)
}

// Unwrap enables [errors.Unwrap].
func (e *Error) Unwrap() error {
	return e.Inner
}

// ErrorKind represents the error taxonomy from the design's error handling
// section.
type ErrorKind string

// Defined error kinds. Callers should compare with [errors.Is] against these
// values.
var (
	ErrInputParse        = ErrorKind("input-parse")        // malformed input document; 400
	ErrUnsupportedFormat = ErrorKind("unsupported-format") // detector could not classify bytes; 400
	ErrPayloadTooLarge   = ErrorKind("payload-too-large")  // decompression exceeded byte limit; 413
	ErrStorage           = ErrorKind("storage")            // blob backend failure; 5xx
	ErrDatabase          = ErrorKind("database")           // non-idempotence database failure; 5xx
	ErrMidAirCollision   = ErrorKind("mid-air-collision")  // stale trust-anchor revision on update; 412
	ErrNotFound          = ErrorKind("not-found")          // referenced entity does not exist; 404
	ErrValidation        = ErrorKind("validation")         // invalid status slug, CWE id, PURL, CPE; 400
)

// Error implements error.
func (k ErrorKind) Error() string {
	return string(k)
}
