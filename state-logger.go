package ddtracer

import (
	"fmt"
	"sync"
	"time"

	"github.com/zoobzio/clockz"
)

var errNoError = fmt.Errorf("not an error")

// StateLogger wraps a Logger and suppresses repeats: an error is logged only
// if it differs from the last seen error, or logErrorInterval has passed
// since the last report. The agent collector uses it so an unreachable agent
// does not flood the log on every send attempt.
type StateLogger struct {
	logger           Logger
	logErrorInterval time.Duration
	clock            clockz.Clock
	lastError        error
	lastErrorTime    time.Time
	mutex            sync.Mutex
}

// NewStateLogger creates a StateLogger. An interval of zero disables
// suppression of repeated errors.
func NewStateLogger(logger Logger, logErrorInterval time.Duration) *StateLogger {
	return &StateLogger{
		logger:           logger,
		logErrorInterval: logErrorInterval,
		clock:            clockz.RealClock,
		lastError:        errNoError,
	}
}

// LogError logs err unless it repeats the previously seen error within the
// suppression interval. Errors compare by message. A nil err is ignored.
func (se *StateLogger) LogError(err error) {
	if err == nil {
		return
	}
	se.mutex.Lock()
	defer se.mutex.Unlock()
	if se.lastError != nil &&
		err.Error() == se.lastError.Error() &&
		se.clock.Now().Sub(se.lastErrorTime) < se.logErrorInterval {
		return
	}
	se.logger.Log("err", err.Error())
	se.lastError = err
	se.lastErrorTime = se.clock.Now()
}

// Fixed tells the StateLogger the failing condition has cleared. It logs the
// given key/values once and arms the logger so that the next error, even an
// identical one, is reported again.
func (se *StateLogger) Fixed(keyvals ...interface{}) {
	se.mutex.Lock()
	defer se.mutex.Unlock()
	if se.logErrorInterval == 0 || se.lastError == nil || se.lastError == errNoError {
		return
	}
	se.logger.Log(keyvals...)
	se.lastError = nil
}
