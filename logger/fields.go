package logger

import (
	"time"

	"go.uber.org/zap"
)

// zapField pairs a zap.Field with the raw value it was built from.
type zapField struct {
	value any
	field zap.Field
}

func (f zapField) Key() string         { return f.field.Key }
func (f zapField) Value() any          { return f.value }
func (f zapField) ZapField() zap.Field { return f.field }

// String creates a string field.
func String(key, value string) Field {
	return zapField{value: value, field: zap.String(key, value)}
}

// Strings creates a string slice field.
func Strings(key string, value []string) Field {
	return zapField{value: value, field: zap.Strings(key, value)}
}

// Int creates an int field.
func Int(key string, value int) Field {
	return zapField{value: value, field: zap.Int(key, value)}
}

// Int64 creates an int64 field.
func Int64(key string, value int64) Field {
	return zapField{value: value, field: zap.Int64(key, value)}
}

// Float64 creates a float64 field.
func Float64(key string, value float64) Field {
	return zapField{value: value, field: zap.Float64(key, value)}
}

// Bool creates a bool field.
func Bool(key string, value bool) Field {
	return zapField{value: value, field: zap.Bool(key, value)}
}

// Time creates a time field.
func Time(key string, value time.Time) Field {
	return zapField{value: value, field: zap.Time(key, value)}
}

// Duration creates a duration field.
func Duration(key string, value time.Duration) Field {
	return zapField{value: value, field: zap.Duration(key, value)}
}

// Error creates an error field under the "error" key.
func Error(err error) Field {
	return zapField{value: err, field: zap.Error(err)}
}

// Any creates a field with an arbitrary value.
func Any(key string, value any) Field {
	return zapField{value: value, field: zap.Any(key, value)}
}

// Stack captures the current stack trace.
func Stack(key string) Field {
	f := zap.Stack(key)
	return zapField{value: f.String, field: f}
}

// fieldsToZap converts Field interfaces to zap.Field
func fieldsToZap(fields []Field) []zap.Field {
	zapFields := make([]zap.Field, len(fields))
	for i, field := range fields {
		zapFields[i] = field.ZapField()
	}
	return zapFields
}
