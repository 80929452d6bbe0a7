// Package log wires go.uber.org/zap into the clearing core's components,
// replacing the teacher's bare log.Printf calls with structured,
// component-scoped loggers.
package log

import (
	"go.uber.org/zap"
)

var base *zap.Logger

func init() {
	l, err := zap.NewProduction()
	if err != nil {
		l = zap.NewNop()
	}
	base = l
}

// For returns a logger scoped to component, e.g. For("clearing.window").
func For(component string) *zap.Logger {
	return base.With(zap.String("component", component))
}

// SetDevelopment swaps the base logger for a human-readable development
// configuration; intended for cmd/nexusctl when run with --dev.
func SetDevelopment() error {
	l, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	base = l
	return nil
}

// Sync flushes any buffered log entries. Call before process exit.
func Sync() {
	_ = base.Sync()
}
