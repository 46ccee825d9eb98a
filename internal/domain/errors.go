package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode is the wire-level error identifier sent to clients.
type ErrorCode string

const (
	CodeMalformedMessage   ErrorCode = "MalformedMessage"
	CodeInvalidState       ErrorCode = "InvalidState"
	CodeUnknownTarget      ErrorCode = "UnknownTarget"
	CodeRoomFull           ErrorCode = "RoomFull"
	CodeEngineUnavailable  ErrorCode = "EngineUnavailable"
	CodeResourceExhausted  ErrorCode = "ResourceExhausted"
	CodeDuplicateIdentity  ErrorCode = "DuplicateIdentity"
	CodePendingJoinTimeout ErrorCode = "PendingJoinTimeout"
	CodeInternal           ErrorCode = "Internal"
)

// Error is a signaling error carrying a code the client can act on.
// Two errors match under errors.Is when their codes are equal.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

var (
	ErrMalformedMessage   = &Error{Code: CodeMalformedMessage, Message: "malformed message"}
	ErrInvalidState       = &Error{Code: CodeInvalidState, Message: "message not allowed in current state"}
	ErrUnknownTarget      = &Error{Code: CodeUnknownTarget, Message: "target is not in the room"}
	ErrRoomFull           = &Error{Code: CodeRoomFull, Message: "room is full"}
	ErrEngineUnavailable  = &Error{Code: CodeEngineUnavailable, Message: "media engine unavailable"}
	ErrResourceExhausted  = &Error{Code: CodeResourceExhausted, Message: "outbound queue overflow"}
	ErrDuplicateIdentity  = &Error{Code: CodeDuplicateIdentity, Message: "identity already active"}
	ErrPendingJoinTimeout = &Error{Code: CodePendingJoinTimeout, Message: "join not completed in time"}
)

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// HTTPStatus maps the code onto a status for the REST surface.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeMalformedMessage, CodeInvalidState:
		return http.StatusBadRequest
	case CodeUnknownTarget:
		return http.StatusNotFound
	case CodeDuplicateIdentity:
		return http.StatusConflict
	case CodeRoomFull, CodeEngineUnavailable, CodeResourceExhausted:
		return http.StatusServiceUnavailable
	case CodePendingJoinTimeout:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Errorf builds an error with the given code and a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches cause to a new error with the given code.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf extracts the signaling code from err, CodeInternal if none.
func CodeOf(err error) ErrorCode {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
