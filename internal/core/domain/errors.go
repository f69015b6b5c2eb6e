package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrTemplateNotFound = errors.New("template not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrIllegalState     = errors.New("illegal state transition")
	ErrCancelled        = errors.New("processing cancelled")
	ErrTemporary        = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
