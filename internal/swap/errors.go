package swap

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure for retry decisions and reporting.
type ErrorKind string

const (
	KindTransport           ErrorKind = "transport"
	KindRateLimited         ErrorKind = "rate_limited"
	KindQuote               ErrorKind = "quote"
	KindSlippage            ErrorKind = "slippage"
	KindQuoteStale          ErrorKind = "quote_stale"
	KindInsufficientBalance ErrorKind = "insufficient_balance"
	KindAuth                ErrorKind = "auth"
	KindVerification        ErrorKind = "verification"
	KindConfig              ErrorKind = "config"
	KindUnknown             ErrorKind = "unknown"
)

// Error is the typed failure surfaced by the DexClient and the runner. The
// runner decides retry vs terminal from Kind, never from message matching.
type Error struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a classified error with a formatted detail message.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// WrapError classifies an underlying error.
func WrapError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the classification from an error chain. Unclassified
// failures map to KindUnknown, which is treated as non-retryable.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

// Retryable reports whether the runner may retry a failure of this kind
// within its budget.
func Retryable(kind ErrorKind) bool {
	switch kind {
	case KindTransport, KindRateLimited, KindSlippage, KindQuoteStale:
		return true
	}
	return false
}

// NeedsFreshQuote reports whether a retry must discard the current quote.
func NeedsFreshQuote(kind ErrorKind) bool {
	return kind == KindSlippage || kind == KindQuoteStale
}
