// Package logger is the process-wide structured logger. Messages go to every
// backend passed to Init; calls made before Init are dropped.
//
// Messages carry a bracketed component prefix ("[Stream] Building graph")
// followed by key/value pairs.
package logger

import "sync/atomic"

// LoggerInstance is a logging backend.
type LoggerInstance interface {
	Log(message string, keyvals ...any)
	Debug(message string, keyvals ...any)
	Info(message string, keyvals ...any)
	Warn(message string, keyvals ...any)
	Error(message string, keyvals ...any)
	Fatal(message string, keyvals ...any)
}

// Logger fans a call out to its backends.
type Logger struct {
	instances []LoggerInstance
}

var current atomic.Pointer[Logger]

// Init replaces the global logger. It is safe to call while other
// goroutines log.
func Init(instances ...LoggerInstance) {
	current.Store(&Logger{instances: instances})
}

func each(fn func(LoggerInstance)) {
	l := current.Load()
	if l == nil {
		return
	}
	for _, instance := range l.instances {
		fn(instance)
	}
}

func Log(message string, keyvals ...any) {
	each(func(i LoggerInstance) { i.Log(message, keyvals...) })
}

func Debug(message string, keyvals ...any) {
	each(func(i LoggerInstance) { i.Debug(message, keyvals...) })
}

func Info(message string, keyvals ...any) {
	each(func(i LoggerInstance) { i.Info(message, keyvals...) })
}

func Warn(message string, keyvals ...any) {
	each(func(i LoggerInstance) { i.Warn(message, keyvals...) })
}

func Error(message string, keyvals ...any) {
	each(func(i LoggerInstance) { i.Error(message, keyvals...) })
}

// Fatal logs to every backend. Backends exit the process, so with several
// backends only the first one may get to write.
func Fatal(message string, keyvals ...any) {
	each(func(i LoggerInstance) { i.Fatal(message, keyvals...) })
}
