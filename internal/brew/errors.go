package brew

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by keyed lookups that match no record.
var ErrNotFound = errors.New("not found")

// ErrorCode categorizes domain errors.
type ErrorCode string

const (
	// CodeMalformedSchedule means recipe stages violate ordering invariants.
	// Batch creation must not proceed.
	CodeMalformedSchedule ErrorCode = "MALFORMED_SCHEDULE"

	// CodeStoreUnavailable is a transient storage failure.
	CodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"

	// CodeRegistrationFailed is a transient deferred-task registration failure.
	CodeRegistrationFailed ErrorCode = "REGISTRATION_FAILED"

	// CodeImmutableSchedule rejects a time change on a planner-owned alarm.
	CodeImmutableSchedule ErrorCode = "IMMUTABLE_SCHEDULE"

	// CodeInvalidAlarm rejects an alarm record that cannot be armed or stored.
	CodeInvalidAlarm ErrorCode = "INVALID_ALARM"
)

// Error is a domain error with enough context to log per alarm.
type Error struct {
	Code    ErrorCode
	Message string
	AlarmID int64
	BatchID int64
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.AlarmID != 0 {
		msg += fmt.Sprintf(" (alarm=%d)", e.AlarmID)
	} else if e.BatchID != 0 {
		msg += fmt.Sprintf(" (batch=%d)", e.BatchID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// MalformedSchedule builds a CodeMalformedSchedule error.
func MalformedSchedule(format string, args ...any) *Error {
	return &Error{Code: CodeMalformedSchedule, Message: fmt.Sprintf(format, args...)}
}

// StoreUnavailable wraps a storage failure.
func StoreUnavailable(op string, err error) *Error {
	return &Error{Code: CodeStoreUnavailable, Message: op, Err: err}
}

// RegistrationFailed wraps a deferred-task registration failure.
func RegistrationFailed(alarmID int64, err error) *Error {
	return &Error{Code: CodeRegistrationFailed, Message: "register deferred task", AlarmID: alarmID, Err: err}
}

// ImmutableSchedule rejects a time change on a planner-owned alarm.
func ImmutableSchedule(alarmID int64, t AlarmType) *Error {
	return &Error{Code: CodeImmutableSchedule, Message: fmt.Sprintf("%s alarms keep their planned time", t), AlarmID: alarmID}
}

// InvalidAlarm rejects an alarm record that cannot be stored or armed.
func InvalidAlarm(alarmID int64, format string, args ...any) *Error {
	return &Error{Code: CodeInvalidAlarm, Message: fmt.Sprintf(format, args...), AlarmID: alarmID}
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsMalformedSchedule reports whether err carries CodeMalformedSchedule.
func IsMalformedSchedule(err error) bool { return hasCode(err, CodeMalformedSchedule) }

// IsStoreUnavailable reports whether err carries CodeStoreUnavailable.
func IsStoreUnavailable(err error) bool { return hasCode(err, CodeStoreUnavailable) }

// IsRegistrationFailed reports whether err carries CodeRegistrationFailed.
func IsRegistrationFailed(err error) bool { return hasCode(err, CodeRegistrationFailed) }

// IsImmutableSchedule reports whether err carries CodeImmutableSchedule.
func IsImmutableSchedule(err error) bool { return hasCode(err, CodeImmutableSchedule) }

// IsInvalidAlarm reports whether err carries CodeInvalidAlarm.
func IsInvalidAlarm(err error) bool { return hasCode(err, CodeInvalidAlarm) }
