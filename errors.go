package conductor

import (
	"github.com/xraph/conductor/internal/errors"
)

// Error is the structured error returned by the registry and scheduler.
type Error = errors.Error

// ServiceError wraps an error with the service and operation it came from.
type ServiceError = errors.ServiceError

// Sentinels for errors.Is.
var (
	ErrServiceNotFound      = errors.ErrServiceNotFoundSentinel
	ErrCircularDependency   = errors.ErrCircularDependencySentinel
	ErrInvalidProducer      = errors.ErrInvalidProducerSentinel
	ErrInvalidOverride      = errors.ErrInvalidOverrideSentinel
	ErrConstructionFailed   = errors.ErrConstructionFailedSentinel
	ErrPropertyInjection    = errors.ErrPropertyInjectionSentinel
	ErrMethodNotFound       = errors.ErrMethodNotFoundSentinel
	ErrInvalidSchedule      = errors.ErrInvalidScheduleSentinel
	ErrScheduleUnresolvable = errors.ErrScheduleUnresolvableSentinel
	ErrInvalidToken         = errors.ErrInvalidTokenSentinel
	ErrTypeMismatch         = errors.ErrTypeMismatch
	ErrNotInterceptable     = errors.ErrNotInterceptable
)

// Predicates.
var (
	IsServiceNotFound      = errors.IsServiceNotFound
	IsCircularDependency   = errors.IsCircularDependency
	IsScheduleUnresolvable = errors.IsScheduleUnresolvable
	IsInvalidSchedule      = errors.IsInvalidSchedule
	IsPropertyInjection    = errors.IsPropertyInjection
	IsConstructionFailed   = errors.IsConstructionFailed
	IsInvalidOverride      = errors.IsInvalidOverride
	IsMethodNotFound       = errors.IsMethodNotFound
)
