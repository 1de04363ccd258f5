package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrDecoding          = errors.New("protocol: decoding failed")
	ErrEncoding          = errors.New("protocol: encoding failed")
	ErrUnsupportedFormat = errors.New("protocol: unsupported format")
	ErrHTTP              = errors.New("protocol: http exchange failed")
	ErrServer            = errors.New("protocol: server failed")
)

// FormatKind classifies a structural conversion failure.
type FormatKind int

const (
	Decoding FormatKind = iota
	Encoding
	UnsupportedFormat
)

// FormatError is a failed conversion between bytes, the value tree and
// application data.
type FormatError struct {
	Kind   FormatKind
	Detail string
}

func (e *FormatError) Error() string {
	switch e.Kind {
	case Encoding:
		return "Issue while encoding data structure: " + e.Detail
	case UnsupportedFormat:
		return "Given structure is not supported: " + e.Detail
	default:
		return "Issue while decoding data structure: " + e.Detail
	}
}

// Is matches the kind sentinels ErrDecoding, ErrEncoding and ErrUnsupportedFormat.
func (e *FormatError) Is(target error) bool {
	switch target {
	case ErrDecoding:
		return e.Kind == Decoding
	case ErrEncoding:
		return e.Kind == Encoding
	case ErrUnsupportedFormat:
		return e.Kind == UnsupportedFormat
	}
	return false
}

func Decodingf(format string, args ...any) *FormatError {
	return &FormatError{Kind: Decoding, Detail: fmt.Sprintf(format, args...)}
}

func Encodingf(format string, args ...any) *FormatError {
	return &FormatError{Kind: Encoding, Detail: fmt.Sprintf(format, args...)}
}

func Unsupportedf(format string, args ...any) *FormatError {
	return &FormatError{Kind: UnsupportedFormat, Detail: fmt.Sprintf(format, args...)}
}

// ErrorKind separates a broken protocol exchange from a broken conversion.
type ErrorKind int

const (
	KindFormat ErrorKind = iota
	KindHTTP
	KindServer
)

// Error is the outer classification returned by client and server code.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindHTTP:
		return fmt.Sprintf("HTTP error: %v", e.Err)
	case KindServer:
		return fmt.Sprintf("Server error: %v", e.Err)
	default:
		return fmt.Sprintf("Format error: %v", e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches ErrHTTP and ErrServer by kind; format kinds match through Unwrap.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrHTTP:
		return e.Kind == KindHTTP
	case ErrServer:
		return e.Kind == KindServer
	}
	return false
}

// FormatFailure wraps err as a format-level Error. A FormatError nested
// anywhere in err is kept as the cause.
func FormatFailure(err error) *Error {
	var fe *FormatError
	if errors.As(err, &fe) {
		return &Error{Kind: KindFormat, Err: err}
	}
	return &Error{Kind: KindFormat, Err: Decodingf("%v", err)}
}

func HTTPError(err error) *Error {
	return &Error{Kind: KindHTTP, Err: err}
}

func ServerError(err error) *Error {
	return &Error{Kind: KindServer, Err: err}
}
