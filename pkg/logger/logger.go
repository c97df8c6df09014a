package logger

// Instance is a logging backend. The facade fans every call out to all
// configured backends.
type Instance interface {
	Debug(message string, keyvals ...any)
	Info(message string, keyvals ...any)
	Warn(message string, keyvals ...any)
	Error(message string, keyvals ...any)
	Fatal(message string, keyvals ...any)
}

type facade struct {
	instances []Instance
}

var singleton *facade

// Init configures the global logger with one or more backends. Call this
// before any logging function; calls made before Init are dropped.
func Init(instances ...Instance) {
	singleton = &facade{instances: instances}
}

// Debug writes a message at DEBUG level.
func Debug(message string, keyvals ...any) {
	if singleton == nil {
		return
	}
	for _, in := range singleton.instances {
		in.Debug(message, keyvals...)
	}
}

// Info writes a message at INFO level.
func Info(message string, keyvals ...any) {
	if singleton == nil {
		return
	}
	for _, in := range singleton.instances {
		in.Info(message, keyvals...)
	}
}

// Warn writes a message at WARN level.
func Warn(message string, keyvals ...any) {
	if singleton == nil {
		return
	}
	for _, in := range singleton.instances {
		in.Warn(message, keyvals...)
	}
}

// Error writes a message at ERROR level.
func Error(message string, keyvals ...any) {
	if singleton == nil {
		return
	}
	for _, in := range singleton.instances {
		in.Error(message, keyvals...)
	}
}

// Fatal writes a message at FATAL level and terminates the program.
func Fatal(message string, keyvals ...any) {
	if singleton == nil {
		return
	}
	for _, in := range singleton.instances {
		in.Fatal(message, keyvals...)
	}
}
