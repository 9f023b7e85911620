package ledger

import (
	"errors"
	"fmt"
)

// Kind classifies ledger failures. Every error the ledger produces on its own
// carries exactly one kind; anything else is a persistence failure.
type Kind int

// Error kinds.
const (
	KindValidation Kind = iota + 1
	KindAuthorization
	KindInvalidState
	KindInsufficientInventory
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation error"
	case KindAuthorization:
		return "authorization error"
	case KindInvalidState:
		return "invalid state"
	case KindInsufficientInventory:
		return "insufficient inventory"
	case KindNotFound:
		return "not found"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a ledger failure with a caller-safe message.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return e.Message
}

// Is matches the kind sentinels, so errors.Is(err, ErrNotFound) holds for any
// not-found error regardless of its message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrValidation            = &Error{Kind: KindValidation}
	ErrAuthorization         = &Error{Kind: KindAuthorization}
	ErrInvalidState          = &Error{Kind: KindInvalidState}
	ErrInsufficientInventory = &Error{Kind: KindInsufficientInventory}
	ErrNotFound              = &Error{Kind: KindNotFound}
)

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of a ledger error anywhere in err's chain.
func KindOf(err error) (Kind, bool) {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind, true
	}
	return 0, false
}
