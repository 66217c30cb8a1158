package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// ERROR CODES
// =============================================================================

// Error code constants for structured errors
const (
	CodeConfigError             = "CONFIG_ERROR"
	CodeServiceNotFound         = "SERVICE_NOT_FOUND"
	CodeCircularDependency      = "CIRCULAR_DEPENDENCY"
	CodeInvalidProducer         = "INVALID_PRODUCER"
	CodeInvalidOverride         = "INVALID_OVERRIDE"
	CodeConstructionFailed      = "CONSTRUCTION_FAILED"
	CodePropertyInjectionFailed = "PROPERTY_INJECTION_FAILED"
	CodeMethodNotFound          = "METHOD_NOT_FOUND"
	CodeInvalidSchedule         = "INVALID_SCHEDULE"
	CodeScheduleUnresolvable    = "SCHEDULE_UNRESOLVABLE"
	CodeInvalidToken            = "INVALID_TOKEN"
)

// Plain sentinels that carry no structured context.
var (
	ErrTypeMismatch     = errors.New("service type mismatch")
	ErrNotInterceptable = errors.New("instance is not addressable for interception")
	ErrJobStopped       = errors.New("scheduled job stopped")
)

// =============================================================================
// SERVICE ERROR
// =============================================================================

// ServiceError wraps service-specific errors
type ServiceError struct {
	Service   string
	Operation string
	Err       error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("service %s: %s: %v", e.Service, e.Operation, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is interface for ServiceError
func (e *ServiceError) Is(target error) bool {
	t, ok := target.(*ServiceError)
	if !ok {
		return false
	}
	return (e.Service == "" || t.Service == "" || e.Service == t.Service) &&
		(e.Operation == "" || t.Operation == "" || e.Operation == t.Operation)
}

// NewServiceError creates a new service error
func NewServiceError(service, operation string, err error) *ServiceError {
	return &ServiceError{
		Service:   service,
		Operation: operation,
		Err:       err,
	}
}

// =============================================================================
// STRUCTURED ERROR
// =============================================================================

// Error represents a structured error with context
type Error struct {
	Code      string
	Message   string
	Cause     error
	Timestamp time.Time
	Context   map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches by error code, so sentinels built with only a Code compare equal
// to any error carrying the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code != "" && e.Code == t.Code
}

// WithContext adds context to the error
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

func newError(code, message string, cause error, ctx map[string]any) *Error {
	if ctx == nil {
		ctx = make(map[string]any)
	}
	return &Error{
		Code:      code,
		Message:   message,
		Cause:     cause,
		Timestamp: time.Now(),
		Context:   ctx,
	}
}

// ErrConfigError creates a config error
func ErrConfigError(message string, cause error) *Error {
	return newError(CodeConfigError, message, cause, nil)
}

// ErrServiceNotFound reports a token without a definition.
func ErrServiceNotFound(token string) *Error {
	return newError(CodeServiceNotFound, "service '"+token+"' is not registered", nil,
		map[string]any{"service_name": token})
}

// ErrCircularDependency reports a cycle; chain ends with the repeated token.
func ErrCircularDependency(chain []string) *Error {
	return newError(CodeCircularDependency, "circular dependency detected: "+strings.Join(chain, " -> "), nil,
		map[string]any{"services": chain})
}

// ErrInvalidProducer reports a constructor or factory with an unsupported shape.
func ErrInvalidProducer(name, reason string) *Error {
	return newError(CodeInvalidProducer, "invalid producer for '"+name+"': "+reason, nil,
		map[string]any{"service_name": name})
}

// ErrInvalidOverride reports a construct override that cannot be assigned to its parameter.
func ErrInvalidOverride(name string, position int, cause error) *Error {
	return newError(CodeInvalidOverride, fmt.Sprintf("invalid override for '%s' at position %d", name, position), cause,
		map[string]any{"service_name": name, "position": position})
}

// ErrConstructionFailed wraps an error returned by a constructor or factory.
func ErrConstructionFailed(name string, cause error) *Error {
	return newError(CodeConstructionFailed, "failed to construct '"+name+"'", cause,
		map[string]any{"service_name": name})
}

// ErrPropertyInjection reports a property dependency that could not be assigned.
func ErrPropertyInjection(class, field string, cause error) *Error {
	return newError(CodePropertyInjectionFailed, "cannot inject property '"+field+"' of '"+class+"'", cause,
		map[string]any{"class": class, "field": field})
}

// ErrMethodNotFound reports a metadata-bound or invoked method that does not exist.
func ErrMethodNotFound(class, method string) *Error {
	return newError(CodeMethodNotFound, "method '"+method+"' not found on '"+class+"'", nil,
		map[string]any{"class": class, "method": method})
}

// ErrInvalidSchedule reports a schedule expression that cannot be parsed.
func ErrInvalidSchedule(expr string, cause error) *Error {
	return newError(CodeInvalidSchedule, "invalid schedule '"+expr+"'", cause,
		map[string]any{"expression": expr})
}

// ErrScheduleUnresolvable reports a schedule with no occurrence inside the search horizon.
func ErrScheduleUnresolvable(expr string, horizon time.Duration) *Error {
	return newError(CodeScheduleUnresolvable,
		"schedule '"+expr+"' has no occurrence within "+horizon.String(), nil,
		map[string]any{"expression": expr, "horizon": horizon.String()})
}

// ErrInvalidToken reports a value that cannot identify a service.
func ErrInvalidToken(token any) *Error {
	return newError(CodeInvalidToken, fmt.Sprintf("invalid service token of type %T", token), nil, nil)
}

// =============================================================================
// SENTINELS AND HELPERS
// =============================================================================

// Sentinel errors for use with errors.Is.
var (
	ErrServiceNotFoundSentinel      = &Error{Code: CodeServiceNotFound}
	ErrCircularDependencySentinel   = &Error{Code: CodeCircularDependency}
	ErrInvalidProducerSentinel      = &Error{Code: CodeInvalidProducer}
	ErrInvalidOverrideSentinel      = &Error{Code: CodeInvalidOverride}
	ErrConstructionFailedSentinel   = &Error{Code: CodeConstructionFailed}
	ErrPropertyInjectionSentinel    = &Error{Code: CodePropertyInjectionFailed}
	ErrMethodNotFoundSentinel       = &Error{Code: CodeMethodNotFound}
	ErrInvalidScheduleSentinel      = &Error{Code: CodeInvalidSchedule}
	ErrScheduleUnresolvableSentinel = &Error{Code: CodeScheduleUnresolvable}
	ErrConfigErrorSentinel          = &Error{Code: CodeConfigError}
	ErrInvalidTokenSentinel         = &Error{Code: CodeInvalidToken}
)

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// New returns an error that formats as the given text.
func New(text string) error {
	return errors.New(text)
}

// Join returns an error that wraps the given errors.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// IsServiceNotFound checks if the error is a service not found error
func IsServiceNotFound(err error) bool {
	return Is(err, ErrServiceNotFoundSentinel)
}

// IsCircularDependency checks if the error is a circular dependency error
func IsCircularDependency(err error) bool {
	return Is(err, ErrCircularDependencySentinel)
}

// IsScheduleUnresolvable checks if the error is an unresolvable schedule error
func IsScheduleUnresolvable(err error) bool {
	return Is(err, ErrScheduleUnresolvableSentinel)
}

// IsInvalidSchedule checks if the error is a schedule parse error
func IsInvalidSchedule(err error) bool {
	return Is(err, ErrInvalidScheduleSentinel)
}

// IsPropertyInjection checks if the error is a property injection failure
func IsPropertyInjection(err error) bool {
	return Is(err, ErrPropertyInjectionSentinel)
}

// IsConstructionFailed checks if the error is a failed constructor or factory call
func IsConstructionFailed(err error) bool {
	return Is(err, ErrConstructionFailedSentinel)
}

// IsInvalidOverride checks if the error is a rejected construct override
func IsInvalidOverride(err error) bool {
	return Is(err, ErrInvalidOverrideSentinel)
}

// IsMethodNotFound checks if the error is a missing method lookup
func IsMethodNotFound(err error) bool {
	return Is(err, ErrMethodNotFoundSentinel)
}
