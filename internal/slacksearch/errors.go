package slacksearch

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures raised while binding, fetching or parsing a Slack search.
type ErrorKind int

const (
	KindConfiguration ErrorKind = iota + 1
	KindArgument
	KindType
	KindTransport
	KindHTTPStatus
	KindAPI
	KindParse
	KindExecution
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindArgument:
		return "argument"
	case KindType:
		return "type"
	case KindTransport:
		return "transport"
	case KindHTTPStatus:
		return "http_status"
	case KindAPI:
		return "api"
	case KindParse:
		return "parse"
	case KindExecution:
		return "execution"
	default:
		return "unknown"
	}
}

// Sentinels usable with errors.Is. They match any *Error of the same kind anywhere in the chain.
var (
	ErrConfiguration = &Error{Kind: KindConfiguration}
	ErrArgument      = &Error{Kind: KindArgument}
	ErrType          = &Error{Kind: KindType}
	ErrTransport     = &Error{Kind: KindTransport}
	ErrHTTPStatus    = &Error{Kind: KindHTTPStatus}
	ErrAPI           = &Error{Kind: KindAPI}
	ErrParse         = &Error{Kind: KindParse}
	ErrExecution     = &Error{Kind: KindExecution}
)

// Error describes a failure of the search pipeline. Only the fields relevant to Kind are populated.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	// StatusCode and Body are set for KindHTTPStatus; Body is also set for KindAPI when no error
	// string could be extracted.
	StatusCode int    `json:"status_code,omitempty"`
	Body       string `json:"body,omitempty"`
	// Offset is the byte offset of a KindParse failure.
	Offset int64 `json:"offset,omitempty"`
	Cause  error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}

	var msg string
	switch e.Kind {
	case KindHTTPStatus:
		msg = fmt.Sprintf("slack api returned status %d: %s", e.StatusCode, e.Body)
	case KindAPI:
		msg = "slack api error: " + e.Message
	case KindParse:
		msg = fmt.Sprintf("parse slack response at offset %d: %s", e.Offset, e.Message)
	default:
		msg = e.Message
	}

	if e.Cause != nil && e.Kind != KindHTTPStatus && e.Kind != KindAPI && e.Kind != KindParse {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap exposes the underlying cause for errors.Unwrap compatibility.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is reports whether target is a sentinel (or any *Error) of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var serr *Error
	if errors.As(err, &serr) {
		return serr.Kind, true
	}
	return 0, false
}

// RootKind returns the kind of the innermost *Error in err's chain, looking through
// execution wrappers to the failure that actually aborted the scan.
func RootKind(err error) (ErrorKind, bool) {
	var (
		kind  ErrorKind
		found bool
	)
	for err != nil {
		if serr, ok := err.(*Error); ok {
			kind, found = serr.Kind, true
		}
		err = errors.Unwrap(err)
	}
	return kind, found
}

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrapExecution(err error) *Error {
	return &Error{Kind: KindExecution, Message: "failed to search slack", Cause: err}
}
