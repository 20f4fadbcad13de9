package domain

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Error kinds shared by every layer. Wrap them with errors.Wrap or errors.Mark to add
// context and match them with errors.Is.
var (
	// ErrValidation marks caller input that can never succeed as given.
	ErrValidation = errors.New("validation failed")

	// ErrUnknownClassifierType is returned for backend keys outside the closed set.
	ErrUnknownClassifierType = errors.New("unknown classifier type")

	// ErrModelUnavailable means the scoring model could not be loaded or reached.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrBackendUnreachable means the generation endpoint kept failing after retries.
	ErrBackendUnreachable = errors.New("generation backend unreachable")

	// ErrInferenceFailed covers malformed or failed backend inference.
	ErrInferenceFailed = errors.New("inference failed")

	// ErrParse means generated text did not map to any known label.
	ErrParse = errors.New("unparseable generation output")

	// ErrSchema marks tabular input without the mandatory columns.
	ErrSchema = errors.New("input schema mismatch")

	// ErrNotFound is returned for missing artifacts or snapshots.
	ErrNotFound = errors.New("not found")
)

// ParseError keeps the raw generated text so callers can inspect what the backend said.
type ParseError struct {
	Raw    string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse generation output: %s", e.Reason)
}

// Is lets errors.Is(err, ErrParse) match a bare *ParseError.
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// NewParseError builds a ParseError marked as ErrParse.
func NewParseError(raw, reason string) error {
	return errors.Mark(&ParseError{Raw: raw, Reason: reason}, ErrParse)
}

// NewValidationError builds a message marked as ErrValidation.
func NewValidationError(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrValidation)
}

// NewSchemaError builds a message marked as ErrSchema.
func NewSchemaError(format string, args ...any) error {
	err := errors.Mark(errors.Newf(format, args...), ErrSchema)
	return errors.WithHint(err, "the input must be CSV with a header row containing title and abstract columns")
}

// NewNotFoundError builds a message marked as ErrNotFound.
func NewNotFoundError(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrNotFound)
}

// MarkAs wraps err with msg and tags it with kind. A nil err yields a bare kind error.
func MarkAs(err error, kind error, msg string) error {
	if err == nil {
		return errors.Wrap(kind, msg)
	}
	return errors.Mark(errors.Wrap(err, msg), kind)
}

// IsValidation reports input errors: the caller should fix the request.
func IsValidation(err error) bool {
	return err != nil && errors.IsAny(err, ErrValidation, ErrSchema, ErrUnknownClassifierType)
}

// IsUnavailable reports backend outages: the request may succeed later.
func IsUnavailable(err error) bool {
	return err != nil && errors.IsAny(err, ErrModelUnavailable, ErrBackendUnreachable)
}

// IsParse reports generation output that could not be interpreted.
func IsParse(err error) bool {
	return err != nil && errors.Is(err, ErrParse)
}

// IsNotFound reports a missing artifact or snapshot.
func IsNotFound(err error) bool {
	return err != nil && errors.Is(err, ErrNotFound)
}
