package clone

import (
	"errors"
	"fmt"

	"github.com/gotrs-io/eventclone/internal/database"
	"github.com/gotrs-io/eventclone/internal/models"
	"github.com/gotrs-io/eventclone/internal/repository"
	"github.com/gotrs-io/eventclone/internal/storage"
)

// ErrorCode classifies clone failures. Codes are strings so they read well in
// logs and stored failure reasons.
type ErrorCode string

const (
	// CodeValidation marks a request rejected before a job exists.
	CodeValidation ErrorCode = "VALIDATION"
	// CodeTopologyViolation marks a child kind requested without its parent kind.
	CodeTopologyViolation ErrorCode = "TOPOLOGY_VIOLATION"
	// CodeTransientStore marks store failures worth retrying.
	CodeTransientStore ErrorCode = "TRANSIENT_STORE"
	// CodeConstraintConflict marks a lost uniqueness race. It is never surfaced as a failure.
	CodeConstraintConflict ErrorCode = "CONSTRAINT_CONFLICT"
	// CodeCancelled marks work stopped by a cancel request.
	CodeCancelled ErrorCode = "CANCELLED"
	// CodeInternal covers everything else.
	CodeInternal ErrorCode = "INTERNAL"
)

var (
	// ErrOrphanReference is reported when a record's parent has no mapping in the job.
	ErrOrphanReference = errors.New("parent record was not cloned by this job")
	// ErrAssetMissing is reported when a reference material's asset is absent from storage.
	ErrAssetMissing = errors.New("reference material asset is missing")
	// ErrCancelled is returned by the orchestrator when a job stops on request.
	ErrCancelled = errors.New("job cancelled")
)

// Error carries the structured context an operator needs to narrow a resubmission.
type Error struct {
	Code     ErrorCode
	Kind     models.EntityKind
	SourceID string
	Op       string
	Err      error
}

func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Kind != "" {
		msg += ": " + string(e.Kind)
	}
	if e.SourceID != "" {
		msg += " " + e.SourceID
	}
	if e.Op != "" {
		msg += " (" + e.Op + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// NewTopologyViolation reports a step whose parent kind is not part of the plan.
func NewTopologyViolation(kind, parent models.EntityKind) *Error {
	return &Error{
		Code: CodeTopologyViolation,
		Kind: kind,
		Op:   string(models.OpCopy),
		Err:  fmt.Errorf("parent kind %s is not selected", parent),
	}
}

// NewValidationError reports a rejected request.
func NewValidationError(format string, args ...interface{}) *Error {
	return &Error{Code: CodeValidation, Err: fmt.Errorf(format, args...)}
}

// wrapError classifies err and attaches kind and source id. Errors that are
// already classified keep their code.
func wrapError(err error, kind models.EntityKind, sourceID, op string) error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return err
	}
	code := CodeInternal
	switch {
	case errors.Is(err, ErrCancelled):
		code = CodeCancelled
	case errors.Is(err, ErrOrphanReference):
		code = CodeTopologyViolation
	case errors.Is(err, repository.ErrAlreadyExists):
		code = CodeConstraintConflict
	case transient(err):
		code = CodeTransientStore
	}
	return &Error{Code: code, Kind: kind, SourceID: sourceID, Op: op, Err: err}
}

// CodeOf returns the error's code, or CodeInternal for unclassified errors.
func CodeOf(err error) ErrorCode {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	if transient(err) {
		return CodeTransientStore
	}
	return CodeInternal
}

func transient(err error) bool {
	return errors.Is(err, repository.ErrUnavailable) ||
		errors.Is(err, storage.ErrUnavailable) ||
		database.IsConnectionError(err)
}

// IsTransient reports whether retrying err may succeed.
func IsTransient(err error) bool {
	return err != nil && CodeOf(err) == CodeTransientStore
}

// IsTopologyViolation reports whether err is a topology violation.
func IsTopologyViolation(err error) bool {
	return err != nil && CodeOf(err) == CodeTopologyViolation
}

// IsValidation reports whether err rejects a request.
func IsValidation(err error) bool {
	return err != nil && CodeOf(err) == CodeValidation
}
