package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for retry decisions and HTTP status mapping.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidInput
	KindNotFound
	KindStorageFailure
	KindPersistenceFailure
	KindMetadataServiceFailure
	KindPublishFailure
)

const (
	CodeBadRequest          = "400"
	CodeNotFound            = "404"
	CodeInternalServerError = "500"
	CodeServiceUnavailable  = "503"
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "InvalidInput"
	case KindNotFound:
		return "NotFound"
	case KindStorageFailure:
		return "StorageFailure"
	case KindPersistenceFailure:
		return "PersistenceFailure"
	case KindMetadataServiceFailure:
		return "MetadataServiceFailure"
	case KindPublishFailure:
		return "PublishFailure"
	}
	return "Unknown"
}

// Code returns the user-facing error code associated with the kind.
func (k Kind) Code() string {
	switch k {
	case KindInvalidInput:
		return CodeBadRequest
	case KindNotFound:
		return CodeNotFound
	case KindStorageFailure, KindMetadataServiceFailure:
		return CodeServiceUnavailable
	}
	return CodeInternalServerError
}

// ErrorResponse is the uniform {code, message} body returned for every
// user-facing failure.
type ErrorResponse struct {
	ErrorMessage string `json:"errorMessage"`
	ErrorCode    string `json:"errorCode"`
}

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Response() ErrorResponse {
	return ErrorResponse{
		ErrorMessage: e.Message,
		ErrorCode:    e.Kind.Code(),
	}
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the failure kind from an error chain.
// Errors outside the taxonomy report KindUnknown.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}
