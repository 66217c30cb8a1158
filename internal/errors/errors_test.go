package errors

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestErrorIs(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{
			name:   "same error code matches",
			err:    ErrServiceNotFound("Mailer"),
			target: ErrServiceNotFoundSentinel,
			want:   true,
		},
		{
			name:   "different error code does not match",
			err:    ErrServiceNotFound("Mailer"),
			target: ErrCircularDependencySentinel,
			want:   false,
		},
		{
			name:   "wrapped error matches",
			err:    ErrConstructionFailed("Billing", ErrServiceNotFound("db")),
			target: ErrServiceNotFoundSentinel,
			want:   true,
		},
		{
			name:   "service error wrapping structured error matches",
			err:    NewServiceError("Billing", "schedule", ErrInvalidSchedule("x", nil)),
			target: ErrInvalidScheduleSentinel,
			want:   true,
		},
		{
			name:   "nil target does not match",
			err:    ErrServiceNotFound("Mailer"),
			target: nil,
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Is(tt.err, tt.target))
		})
	}
}

func TestServiceErrorIs(t *testing.T) {
	err := NewServiceError("db", "connect", errors.New("timeout"))

	assert.True(t, errors.Is(err, NewServiceError("db", "connect", nil)))
	assert.True(t, errors.Is(err, NewServiceError("", "connect", nil)))
	assert.True(t, errors.Is(err, NewServiceError("db", "", nil)))
	assert.False(t, errors.Is(err, NewServiceError("cache", "connect", nil)))
	assert.Equal(t, "service db: connect: timeout", err.Error())
}

func TestMessages(t *testing.T) {
	assert.Equal(t, "service 'Mailer' is not registered", ErrServiceNotFound("Mailer").Error())
	assert.Equal(t,
		"circular dependency detected: A -> B -> A",
		ErrCircularDependency([]string{"A", "B", "A"}).Error())
	assert.Equal(t,
		"schedule '0 0 30 2 *' has no occurrence within 1h0m0s",
		ErrScheduleUnresolvable("0 0 30 2 *", time.Hour).Error())
	assert.Equal(t,
		"failed to construct 'Billing': boom",
		ErrConstructionFailed("Billing", errors.New("boom")).Error())
}

func TestPredicates(t *testing.T) {
	assert.True(t, IsServiceNotFound(ErrServiceNotFound("x")))
	assert.True(t, IsCircularDependency(ErrCircularDependency([]string{"a", "a"})))
	assert.True(t, IsScheduleUnresolvable(ErrScheduleUnresolvable("x", time.Minute)))
	assert.True(t, IsInvalidSchedule(ErrInvalidSchedule("x", nil)))
	assert.True(t, IsPropertyInjection(ErrPropertyInjection("A", "B", nil)))
	assert.True(t, IsConstructionFailed(ErrConstructionFailed("A", nil)))
	assert.True(t, IsInvalidOverride(ErrInvalidOverride("A", 1, nil)))
	assert.True(t, IsMethodNotFound(ErrMethodNotFound("A", "Run")))
	assert.True(t, Is(ErrInvalidToken(42), ErrInvalidTokenSentinel))
	assert.Equal(t, "invalid service token of type int", ErrInvalidToken(42).Error())
	assert.False(t, IsServiceNotFound(errors.New("service not found")))
}

func TestWithContext(t *testing.T) {
	err := ErrConfigError("bad", nil).WithContext("path", "conductor.yaml")
	assert.Equal(t, "conductor.yaml", err.Context["path"])
	assert.Equal(t, CodeConfigError, err.Code)
}
