// Package log defines the application logging surface. Server wiring depends
// on the Logger contract rather than a concrete backend; the zerolog adapter
// is the only implementation.
package log

import "context"

// Logger is the leveled, context-aware logging contract. The context carries
// trace correlation; Error and Fatal take the error as a first-class argument,
// and Fatal exits the process.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...map[string]interface{})
	Info(ctx context.Context, msg string, fields ...map[string]interface{})
	Warn(ctx context.Context, msg string, fields ...map[string]interface{})
	Error(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	Fatal(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	With(fields map[string]interface{}) Logger
}
