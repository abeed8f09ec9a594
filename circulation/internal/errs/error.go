package errs

import (
	"net/http"

	"github.com/pkg/errors"
)

type Kind string

const (
	KindNotFound          Kind = "NOT_FOUND"
	KindPrecondition      Kind = "PRECONDITION_FAILED"
	KindInsufficientStock Kind = "INSUFFICIENT_STOCK"
	KindConflict          Kind = "CONFLICT"
	KindValidation        Kind = "VALIDATION_ERROR"
	KindInternal          Kind = "INTERNAL_ERROR"
)

type Metadata struct {
	HTTPStatus int
	Retryable  bool
	// Skippable kinds are recorded per item by bulk operations instead of aborting the batch.
	Skippable bool
}

var metadataByKind = map[Kind]Metadata{
	KindNotFound:          {HTTPStatus: http.StatusNotFound, Skippable: true},
	KindPrecondition:      {HTTPStatus: http.StatusUnprocessableEntity, Skippable: true},
	KindInsufficientStock: {HTTPStatus: http.StatusConflict, Skippable: true},
	KindConflict:          {HTTPStatus: http.StatusConflict, Retryable: true},
	KindValidation:        {HTTPStatus: http.StatusBadRequest},
	KindInternal:          {HTTPStatus: http.StatusInternalServerError},
}

func MetadataFor(kind Kind) Metadata {
	if meta, ok := metadataByKind[kind]; ok {
		return meta
	}
	return metadataByKind[KindInternal]
}

type Error struct {
	kind    Kind
	message string
}

func New(kind Kind, message string) *Error {
	return &Error{kind: kind, message: message}
}

func (e *Error) Kind() Kind { return e.kind }

func (e *Error) Error() string { return e.message }

var (
	ErrTitleNotFound       = New(KindNotFound, "title not found")
	ErrMemberNotFound      = New(KindNotFound, "member not found")
	ErrLoanNotFound        = New(KindNotFound, "loan not found")
	ErrReservationNotFound = New(KindNotFound, "reservation not found")

	ErrMemberInactive       = New(KindPrecondition, "member is not active")
	ErrDuplicateActiveLoan  = New(KindPrecondition, "member already has an open loan for this title")
	ErrLoanLimitReached     = New(KindPrecondition, "member reached the open loan limit")
	ErrLoanClosed           = New(KindPrecondition, "loan is already closed")
	ErrTitleAvailable       = New(KindPrecondition, "title still has available copies")
	ErrDuplicateReservation = New(KindPrecondition, "member already has an active reservation for this title")
	ErrReservationNotActive = New(KindPrecondition, "reservation is no longer active")
	ErrTitleOnLoan          = New(KindPrecondition, "title has open loans")
	ErrMemberOnLoan         = New(KindPrecondition, "member has open loans")
	ErrDuplicateISBN        = New(KindPrecondition, "isbn already exists")
	ErrDuplicateMemberCode  = New(KindPrecondition, "member code already exists")
	ErrStillReferenced      = New(KindPrecondition, "record is still referenced")
	ErrInvalidStatusChange  = New(KindValidation, "status must be fulfilled or cancelled")
	ErrInsufficientStock    = New(KindInsufficientStock, "insufficient stock")
	ErrConflict             = New(KindConflict, "concurrent update conflict, retry")
	ErrInvalidArgument      = New(KindValidation, "invalid argument")
	ErrUnknownBulkAction    = New(KindValidation, "unknown bulk action")
	ErrEmptyBatch           = New(KindValidation, "ids are required")
)

// KindOf classifies err; untyped errors are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed.kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
