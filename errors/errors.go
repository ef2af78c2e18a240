package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the category of error
type ErrorType int

const (
	ErrorNone ErrorType = iota
	ErrorTransport
	ErrorFraming
	ErrorProtocol
	ErrorResolution
	ErrorBuild
	ErrorInvalidArgument
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTransport:
		return "Transport error"
	case ErrorFraming:
		return "Framing error"
	case ErrorProtocol:
		return "Protocol error"
	case ErrorResolution:
		return "Resolution error"
	case ErrorBuild:
		return "Build error"
	case ErrorInvalidArgument:
		return "Invalid argument"
	default:
		return "Unknown error"
	}
}

// TransportError represents socket-level errors below the HTTP layer
type TransportError int

const (
	TransportErrorNone TransportError = iota
	TransportErrorDnsFailure
	TransportErrorConnectFailure
	TransportErrorListenFailure
	TransportErrorAcceptFailure
	TransportErrorSocketReadFailure
	TransportErrorSocketWriteFailure
	TransportErrorConnectionClosed
	TransportErrorTimeout
	TransportErrorIoUringInit
	TransportErrorIoUringSubmit
)

// FramingError represents failures to delimit a request in the byte stream
type FramingError int

const (
	FramingErrorNone FramingError = iota
	// FramingErrorNoData means the connection ended before the first byte.
	FramingErrorNoData
	FramingErrorTimeout
	FramingErrorHeadTooLarge
	FramingErrorBodyTruncated
)

// ProtocolError represents malformed or unsupported HTTP messages
type ProtocolError int

const (
	ProtocolErrorNone ProtocolError = iota
	ProtocolErrorBadRequest
	ProtocolErrorFieldNotFound
	ProtocolErrorInvalidContentLength
	ProtocolErrorInvalidStatusLine
	ProtocolErrorIncompleteResponse
)

// ResolutionError represents failures to map a request path to content
type ResolutionError int

const (
	ResolutionErrorNone ResolutionError = iota
	ResolutionErrorNotFound
	ResolutionErrorErrorPageMissing
)

// BuildError represents failures to serialize a response
type BuildError int

const (
	BuildErrorNone BuildError = iota
	BuildErrorNotReady
	BuildErrorContentRead
)

// HttpError is the main error type of the server
type HttpError struct {
	Type          ErrorType
	TransportErr  TransportError
	FramingErr    FramingError
	ProtocolErr   ProtocolError
	ResolutionErr ResolutionError
	BuildErr      BuildError
	Message       string
	UnderlyingErr error
}

// Error implements the error interface
func (e *HttpError) Error() string {
	if e == nil {
		return "no error"
	}

	var typeStr string
	switch e.Type {
	case ErrorTransport:
		typeStr = fmt.Sprintf("%s (%d)", e.Type, e.TransportErr)
	case ErrorFraming:
		typeStr = fmt.Sprintf("%s (%d)", e.Type, e.FramingErr)
	case ErrorProtocol:
		typeStr = fmt.Sprintf("%s (%d)", e.Type, e.ProtocolErr)
	case ErrorResolution:
		typeStr = fmt.Sprintf("%s (%d)", e.Type, e.ResolutionErr)
	case ErrorBuild:
		typeStr = fmt.Sprintf("%s (%d)", e.Type, e.BuildErr)
	default:
		typeStr = e.Type.String()
	}

	if e.Message != "" {
		typeStr = fmt.Sprintf("%s: %s", typeStr, e.Message)
	}

	if e.UnderlyingErr != nil {
		return fmt.Sprintf("%s (caused by: %v)", typeStr, e.UnderlyingErr)
	}

	return typeStr
}

// Unwrap returns the underlying error for error chain support
func (e *HttpError) Unwrap() error {
	return e.UnderlyingErr
}

// NewTransportError creates a new transport error
func NewTransportError(err TransportError, message string, underlying error) *HttpError {
	return &HttpError{
		Type:          ErrorTransport,
		TransportErr:  err,
		Message:       message,
		UnderlyingErr: underlying,
	}
}

// NewFramingError creates a new framing error
func NewFramingError(err FramingError, message string, underlying error) *HttpError {
	return &HttpError{
		Type:          ErrorFraming,
		FramingErr:    err,
		Message:       message,
		UnderlyingErr: underlying,
	}
}

// NewProtocolError creates a new protocol error
func NewProtocolError(err ProtocolError, message string) *HttpError {
	return &HttpError{
		Type:        ErrorProtocol,
		ProtocolErr: err,
		Message:     message,
	}
}

// NewResolutionError creates a new resolution error
func NewResolutionError(err ResolutionError, message string, underlying error) *HttpError {
	return &HttpError{
		Type:          ErrorResolution,
		ResolutionErr: err,
		Message:       message,
		UnderlyingErr: underlying,
	}
}

// NewBuildError creates a new response build error
func NewBuildError(err BuildError, message string, underlying error) *HttpError {
	return &HttpError{
		Type:          ErrorBuild,
		BuildErr:      err,
		Message:       message,
		UnderlyingErr: underlying,
	}
}

// NewInvalidArgumentError creates a new invalid argument error
func NewInvalidArgumentError(message string) *HttpError {
	return &HttpError{
		Type:    ErrorInvalidArgument,
		Message: message,
	}
}

// As reports whether err carries an *HttpError and returns it.
func As(err error) (*HttpError, bool) {
	var httpErr *HttpError
	if stderrors.As(err, &httpErr) {
		return httpErr, true
	}
	return nil, false
}

// IsTransport reports whether err is the given transport error.
func IsTransport(err error, code TransportError) bool {
	httpErr, ok := As(err)
	return ok && httpErr.Type == ErrorTransport && httpErr.TransportErr == code
}

// IsFraming reports whether err is the given framing error.
func IsFraming(err error, code FramingError) bool {
	httpErr, ok := As(err)
	return ok && httpErr.Type == ErrorFraming && httpErr.FramingErr == code
}

// IsProtocol reports whether err is the given protocol error.
func IsProtocol(err error, code ProtocolError) bool {
	httpErr, ok := As(err)
	return ok && httpErr.Type == ErrorProtocol && httpErr.ProtocolErr == code
}

// IsResolution reports whether err is the given resolution error.
func IsResolution(err error, code ResolutionError) bool {
	httpErr, ok := As(err)
	return ok && httpErr.Type == ErrorResolution && httpErr.ResolutionErr == code
}

// IsBuild reports whether err is the given build error.
func IsBuild(err error, code BuildError) bool {
	httpErr, ok := As(err)
	return ok && httpErr.Type == ErrorBuild && httpErr.BuildErr == code
}
