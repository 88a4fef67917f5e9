package ddtracer

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/clockz"
)

// logCapture collects everything a Logger receives.
type logCapture struct {
	mu    sync.Mutex
	lines [][]interface{}
}

func (c *logCapture) log(keyvals ...interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, keyvals)
	return nil
}

func (c *logCapture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines)
}

func (c *logCapture) last() []interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.lines) == 0 {
		return nil
	}
	return c.lines[len(c.lines)-1]
}

func newCapturedStateLogger(interval time.Duration) (*StateLogger, *logCapture, *clockz.FakeClock) {
	capture := &logCapture{}
	clock := clockz.NewFakeClock()
	l := NewStateLogger(LoggerFunc(capture.log), interval)
	l.clock = clock
	return l, capture, clock
}

func TestStateLoggerSuppressesRepeatedSubmissionErrors(t *testing.T) {
	l, capture, clock := newCapturedStateLogger(time.Minute)

	unavailable := errors.New("agent returned 503 Service Unavailable for trace submission")
	l.LogError(unavailable)
	require.Equal(t, 1, capture.count())
	assert.Equal(t, []interface{}{"err", unavailable.Error()}, capture.last())

	// Every failed flush produces a fresh error value with the same message;
	// suppression must compare messages, not identities.
	l.LogError(fmt.Errorf("agent returned 503 Service Unavailable for trace submission"))
	l.LogError(fmt.Errorf("agent returned 503 Service Unavailable for trace submission"))
	assert.Equal(t, 1, capture.count())

	// A different failure is news.
	refused := errors.New("dial tcp 127.0.0.1:8126: connect: connection refused")
	l.LogError(refused)
	require.Equal(t, 2, capture.count())
	assert.Equal(t, []interface{}{"err", refused.Error()}, capture.last())

	// And so is the old one once the interval has elapsed.
	l.LogError(unavailable)
	require.Equal(t, 3, capture.count())
	l.LogError(unavailable)
	require.Equal(t, 3, capture.count())
	clock.Advance(time.Minute)
	l.LogError(unavailable)
	assert.Equal(t, 4, capture.count())
}

func TestStateLoggerFixedRearmsReporting(t *testing.T) {
	l, capture, _ := newCapturedStateLogger(time.Minute)

	// Nothing was ever wrong; a recovery note would be noise.
	l.Fixed("msg", "agent connection established")
	assert.Equal(t, 0, capture.count())

	submission := errors.New("agent returned 500 Internal Server Error for trace submission")
	l.LogError(submission)
	require.Equal(t, 1, capture.count())

	l.Fixed("msg", "agent connection established", "url", "http://localhost:8126/v0.4/traces")
	require.Equal(t, 2, capture.count())
	assert.Equal(t,
		[]interface{}{"msg", "agent connection established", "url", "http://localhost:8126/v0.4/traces"},
		capture.last())

	// Recovery is reported once, not on every successful flush.
	l.Fixed("msg", "agent connection established")
	assert.Equal(t, 2, capture.count())

	// After a recovery, even the identical error is worth reporting again.
	l.LogError(errors.New("agent returned 500 Internal Server Error for trace submission"))
	assert.Equal(t, 3, capture.count())
}

func TestStateLoggerZeroIntervalDisablesSuppression(t *testing.T) {
	l, capture, _ := newCapturedStateLogger(0)

	submission := errors.New("agent returned 503 Service Unavailable for trace submission")
	l.LogError(submission)
	l.LogError(submission)
	l.LogError(submission)
	assert.Equal(t, 3, capture.count())

	// With suppression off there is no suppressed state to recover from.
	l.Fixed("msg", "agent connection established")
	assert.Equal(t, 3, capture.count())
}

func TestStateLoggerIgnoresNilError(t *testing.T) {
	l, capture, _ := newCapturedStateLogger(time.Minute)

	assert.NotPanics(t, func() { l.LogError(nil) })
	assert.Equal(t, 0, capture.count())

	// A nil error must not disturb the suppression state either.
	submission := errors.New("agent returned 503 Service Unavailable for trace submission")
	l.LogError(submission)
	l.LogError(nil)
	l.LogError(submission)
	assert.Equal(t, 1, capture.count())
}
