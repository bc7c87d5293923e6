package model

import "fmt"

type ErrorKind string

const (
	KindConnectionUnavailable ErrorKind = "connection_unavailable"
	KindDeviceNotFound        ErrorKind = "device_not_found"
	KindEncode                ErrorKind = "encode_error"
	KindSendFailure           ErrorKind = "send_failure"
	KindPartialCompletion     ErrorKind = "partial_completion"
)

// PrintError is the error type of the print pipeline.
type PrintError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *PrintError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *PrintError) Unwrap() error { return e.Err }

// Is matches on kind so errors.Is(err, ErrDeviceNotFound) works for any
// PrintError of that kind.
func (e *PrintError) Is(target error) bool {
	t, ok := target.(*PrintError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// Sentinels for errors.Is
var (
	ErrConnectionUnavailable = &PrintError{Kind: KindConnectionUnavailable}
	ErrDeviceNotFound        = &PrintError{Kind: KindDeviceNotFound}
	ErrEncode                = &PrintError{Kind: KindEncode}
	ErrSendFailure           = &PrintError{Kind: KindSendFailure}
	ErrPartialCompletion     = &PrintError{Kind: KindPartialCompletion}
)

func NewPrintError(kind ErrorKind, message string, err error) *PrintError {
	return &PrintError{Kind: kind, Message: message, Err: err}
}
