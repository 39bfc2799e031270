package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidQuery         = errors.New("invalid query")
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
	ErrTimeoutExceeded      = errors.New("timeout exceeded")
	ErrKBAccessDenied       = errors.New("knowledge base access denied")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrTemporary            = errors.New("temporary failure")
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
