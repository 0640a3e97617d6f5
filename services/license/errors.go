package license

import (
	"errors"
	"fmt"

	"license-service/pkg/errutil"
)

// Kind names why a license operation was rejected.
type Kind string

const (
	KindProductNotFound           Kind = "ProductNotFound"
	KindProductDisabled           Kind = "ProductDisabled"
	KindLicenseNotFound           Kind = "LicenseNotFound"
	KindWrongProduct              Kind = "WrongProduct"
	KindActivationRecordMismatch  Kind = "ActivationRecordMismatch"
	KindAlreadyActivatedElsewhere Kind = "AlreadyActivatedElsewhere"
	KindLicenseDisabled           Kind = "LicenseDisabled"
	KindLicenseNotAvailable       Kind = "LicenseNotAvailable"
	KindInvalidToken              Kind = "InvalidToken"
	KindOrphanedActivation        Kind = "OrphanedActivation"
	KindLicenseNotValid           Kind = "LicenseNotValid"
	KindTransactionFailure        Kind = "TransactionFailure"
)

var kindStatus = map[Kind]errutil.CoreStatus{
	KindProductNotFound:           errutil.StatusNotFound,
	KindLicenseNotFound:           errutil.StatusNotFound,
	KindInvalidToken:              errutil.StatusNotFound,
	KindProductDisabled:           errutil.StatusForbidden,
	KindLicenseDisabled:           errutil.StatusForbidden,
	KindWrongProduct:              errutil.StatusBadRequest,
	KindAlreadyActivatedElsewhere: errutil.StatusConflict,
	KindLicenseNotAvailable:       errutil.StatusUnprocessableEntity,
	KindLicenseNotValid:           errutil.StatusUnprocessableEntity,
	KindActivationRecordMismatch:  errutil.StatusInternal,
	KindOrphanedActivation:        errutil.StatusInternal,
	KindTransactionFailure:        errutil.StatusServiceUnavailable,
}

// Error is returned by every Service operation that rejects its input.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// PublicMessage is the text shown to clients, without the wrapped cause.
func (e *Error) PublicMessage() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Status() errutil.CoreStatus {
	if s, ok := kindStatus[e.Kind]; ok {
		return s
	}
	return errutil.StatusInternal
}

func (e *Error) JSON() interface{} {
	return map[string]interface{}{
		"success": false,
		"error": map[string]interface{}{
			"code":    e.Status(),
			"kind":    e.Kind,
			"message": e.Message,
		},
	}
}

// KindOf returns the Kind carried by err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRetryable reports whether the caller may retry the same request.
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransactionFailure
}

func isInternalFault(k Kind) bool {
	return k == KindActivationRecordMismatch || k == KindOrphanedActivation
}
