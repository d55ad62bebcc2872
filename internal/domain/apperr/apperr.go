package apperr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a wallet failure.
type Kind string

const (
	IdNotFound         Kind = "IdNotFound"
	UnknownCurrency    Kind = "UnknownCurrency"
	InvalidAmount      Kind = "InvalidAmount"
	InvalidAddress     Kind = "InvalidAddress"
	RpcUnavailable     Kind = "RpcUnavailable"
	InvalidNonce       Kind = "InvalidNonce"
	InsufficientFunds  Kind = "InsufficientFunds"
	RevertedExecution  Kind = "RevertedExecution"
	SubmissionError    Kind = "SubmissionError"
	ReceiptTimeout     Kind = "ReceiptTimeout"
	KeyGenerationError Kind = "KeyGenerationError"
	StorageConflict    Kind = "StorageConflict"
	StorageError       Kind = "StorageError"
	Internal           Kind = "Internal"
)

// Error carries a Kind, the operation that failed and the underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns an error of the given kind with a formatted message.
func New(kind Kind, op string, format string, args ...interface{}) error {
	return &Error{Kind: kind, Op: op, Err: errors.Errorf(format, args...)}
}

// Wrap attaches a kind to err. A nil err stays nil.
func Wrap(err error, kind Kind, op string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: errors.WithStack(err)}
}

// KindOf reports the kind of the outermost *Error in err's chain.
// Errors without a kind are Internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
