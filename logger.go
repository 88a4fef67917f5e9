package ddtracer

// Logger accepts deferred-formatted diagnostic messages as alternating
// key/value pairs. Implementations must be safe for concurrent use and
// should never block the calling goroutine on delivery guarantees.
type Logger interface {
	Log(keyvals ...interface{}) error
}

// LoggerFunc is an adapter to allow use of ordinary functions as Loggers.
type LoggerFunc func(keyvals ...interface{}) error

// Log implements Logger.
func (f LoggerFunc) Log(keyvals ...interface{}) error { return f(keyvals...) }

type nopLogger struct{}

// NewNopLogger returns a Logger that discards everything. It is the default
// for tracers and collectors; production services should install a real one.
func NewNopLogger() Logger { return nopLogger{} }

func (nopLogger) Log(...interface{}) error { return nil }
