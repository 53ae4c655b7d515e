package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers and for the HTTP layer.
type Kind string

const (
	KindNotFound               Kind = "NOT_FOUND"
	KindNotFoundForPatientFile Kind = "NOT_FOUND_FOR_PATIENT_FILE"
	KindForbiddenVisibility    Kind = "FORBIDDEN_VISIBILITY"
	KindForbiddenAuthorship    Kind = "FORBIDDEN_AUTHORSHIP"
	KindForbidden              Kind = "FORBIDDEN"
	KindConflictDuplicateKey   Kind = "CONFLICT_DUPLICATE_KEY"
	KindConflictSelfDelegation Kind = "CONFLICT_SELF_DELEGATION"
	KindConflictTypeMismatch   Kind = "CONFLICT_TYPE_MISMATCH"
	KindConflict               Kind = "CONFLICT"
	KindCreateFailed           Kind = "CREATE_FAILED"
	KindUpdateFailed           Kind = "UPDATE_FAILED"
	KindDeleteFailed           Kind = "DELETE_FAILED"
	KindExternalRejection      Kind = "EXTERNAL_REJECTION"
	KindBadRequest             Kind = "BAD_REQUEST"
	KindUnauthorized           Kind = "UNAUTHORIZED"
	KindInternal               Kind = "INTERNAL_ERROR"
)

var statusByKind = map[Kind]int{
	KindNotFound:               http.StatusNotFound,
	KindNotFoundForPatientFile: http.StatusNotFound,
	KindForbiddenVisibility:    http.StatusForbidden,
	KindForbiddenAuthorship:    http.StatusForbidden,
	KindForbidden:              http.StatusForbidden,
	KindConflictDuplicateKey:   http.StatusConflict,
	KindConflictSelfDelegation: http.StatusConflict,
	KindConflictTypeMismatch:   http.StatusConflict,
	KindConflict:               http.StatusConflict,
	KindCreateFailed:           http.StatusInternalServerError,
	KindUpdateFailed:           http.StatusInternalServerError,
	KindDeleteFailed:           http.StatusInternalServerError,
	KindExternalRejection:      http.StatusUnprocessableEntity,
	KindBadRequest:             http.StatusBadRequest,
	KindUnauthorized:           http.StatusUnauthorized,
	KindInternal:               http.StatusInternalServerError,
}

// Error is the single outward error value produced by the services. Err keeps
// the underlying cause for logging and is never rendered to clients.
type Error struct {
	Kind    Kind              `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
	Err     error             `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code associated with the error kind.
func (e *Error) HTTPStatus() int {
	if s, ok := statusByKind[e.Kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// NotFound creates a not found error for the named resource ("patient file", "entry", ...).
func NotFound(resource, id string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Details: map[string]string{"resource": resource, "id": id},
	}
}

// NotFoundForPatientFile is returned when a resource exists but belongs to a
// different patient file than the one named in the request.
func NotFoundForPatientFile(resource, id, patientFileID string) *Error {
	return &Error{
		Kind:    KindNotFoundForPatientFile,
		Message: fmt.Sprintf("%s not found for this patient file", resource),
		Details: map[string]string{"resource": resource, "id": id, "patient_file": patientFileID},
	}
}

func ForbiddenVisibility() *Error {
	return &Error{
		Kind:    KindForbiddenVisibility,
		Message: "not referring nor corresponding doctor of this patient file",
	}
}

func ForbiddenAuthorship(action string) *Error {
	return &Error{
		Kind:    KindForbiddenAuthorship,
		Message: fmt.Sprintf("not the author of this entry, cannot %s it", action),
	}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

func DuplicateKey(resource, id string) *Error {
	return &Error{
		Kind:    KindConflictDuplicateKey,
		Message: fmt.Sprintf("%s %s already exists", resource, id),
		Details: map[string]string{"resource": resource, "id": id},
	}
}

func SelfDelegation() *Error {
	return &Error{
		Kind:    KindConflictSelfDelegation,
		Message: "referring doctor cannot be the target of a correspondence",
	}
}

func TypeMismatch(persisted, incoming string) *Error {
	return &Error{
		Kind:    KindConflictTypeMismatch,
		Message: "entry exists but is of a different type",
		Details: map[string]string{"persisted": persisted, "incoming": incoming},
	}
}

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// CreateFailed, UpdateFailed and DeleteFailed wrap unexpected storage errors
// behind a fixed message.
func CreateFailed(resource string, err error) *Error {
	return &Error{Kind: KindCreateFailed, Message: fmt.Sprintf("could not create %s", resource), Err: err}
}

func UpdateFailed(resource string, err error) *Error {
	return &Error{Kind: KindUpdateFailed, Message: fmt.Sprintf("could not update %s", resource), Err: err}
}

func DeleteFailed(resource string, err error) *Error {
	return &Error{Kind: KindDeleteFailed, Message: fmt.Sprintf("could not delete %s", resource), Err: err}
}

// ExternalRejection carries the structured reasons returned by an external verifier.
func ExternalRejection(message string, reasons map[string]string) *Error {
	return &Error{Kind: KindExternalRejection, Message: message, Details: reasons}
}

func BadRequest(message string) *Error {
	return &Error{Kind: KindBadRequest, Message: message}
}

func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal server error", Err: err}
}
