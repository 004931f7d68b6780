package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrCodecNotFound is returned when a codec is not found in the registry.
	ErrCodecNotFound = errors.New("codec not found")

	// ErrSyntax indicates an impossible or truncated bitstream construct.
	ErrSyntax = errors.New("bitstream syntax error")

	// ErrSemantic indicates decoded values violating declared bounds.
	ErrSemantic = errors.New("bitstream semantic error")

	// ErrConfig indicates an unsupported parameter combination,
	// rejected before decode begins.
	ErrConfig = errors.New("invalid configuration")
)

// SliceError is the single failure a coder surfaces per slice. The
// coder never best-effort continues past it.
type SliceError struct {
	Category error // one of ErrSyntax, ErrSemantic, ErrConfig
	Offset   int   // byte offset into the payload, -1 if not applicable
	Detail   string
}

// Error implements the error interface.
func (e *SliceError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("%v at offset %d: %s", e.Category, e.Offset, e.Detail)
	}
	return fmt.Sprintf("%v: %s", e.Category, e.Detail)
}

// Unwrap exposes the category sentinel to errors.Is.
func (e *SliceError) Unwrap() error { return e.Category }

// SyntaxError builds a syntax-category slice error.
func SyntaxError(offset int, format string, args ...any) error {
	return &SliceError{Category: ErrSyntax, Offset: offset, Detail: fmt.Sprintf(format, args...)}
}

// SemanticError builds a semantic-category slice error.
func SemanticError(format string, args ...any) error {
	return &SliceError{Category: ErrSemantic, Offset: -1, Detail: fmt.Sprintf(format, args...)}
}

// ConfigError builds a configuration-category error.
func ConfigError(format string, args ...any) error {
	return &SliceError{Category: ErrConfig, Offset: -1, Detail: fmt.Sprintf(format, args...)}
}
