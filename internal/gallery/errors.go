package gallery

import (
	"errors"
	"net/http"
)

// Kind classifies a gallery failure.
type Kind int

const (
	InternalError Kind = iota
	InvalidInput
	PayloadTooLarge
	UnsupportedMediaType
	NotFound
	StorageWriteFailed
	StorageReadFailed
	DeleteFailed
)

var kindNames = [...]string{
	InternalError:        "InternalError",
	InvalidInput:         "InvalidInput",
	PayloadTooLarge:      "PayloadTooLarge",
	UnsupportedMediaType: "UnsupportedMediaType",
	NotFound:             "NotFound",
	StorageWriteFailed:   "StorageWriteFailed",
	StorageReadFailed:    "StorageReadFailed",
	DeleteFailed:         "DeleteFailed",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Unknown"
}

// Status maps the kind to the HTTP status returned to clients. Oversized and
// non-image uploads answer 400 like the rest of the validation failures.
func (k Kind) Status() int {
	switch k {
	case InvalidInput, PayloadTooLarge, UnsupportedMediaType:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified failure carrying a client-facing message and the
// underlying cause, which is logged but never sent to the client.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Kind.String() + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Kind.String() + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// KindOf returns the Kind of err, or InternalError for unclassified errors.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return InternalError
}
