package ddtracer

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"
)

const (
	defaultAgentTimeout       = 5 * time.Second
	defaultAgentBatchInterval = time.Second
	defaultAgentBatchSize     = 100
	defaultAgentMaxBacklog    = 1000
	defaultAgentLogInterval   = time.Minute

	defaultTracesPath = "/v0.4/traces"
)

// AgentCollector implements Collector by batching finished traces and
// POSTing them, msgpack-encoded, to the Datadog agent's trace endpoint.
type AgentCollector struct {
	logger        *StateLogger
	url           string
	client        *http.Client
	batchInterval time.Duration
	batchSize     int
	maxBacklog    int
	tracec        chan []*SpanData
	quit          chan struct{}
	shutdown      chan error
	reqCallback   RequestCallback
	plainLogger   Logger
}

// RequestCallback receives the initialized request before it is sent. This
// allows one to plug in additional headers or do other customization.
type RequestCallback func(*http.Request)

// AgentOption sets a parameter for the AgentCollector.
type AgentOption func(c *AgentCollector)

// AgentLogger sets the logger used to report errors in the collection
// process. By default, a no-op logger is used, i.e. no errors are logged
// anywhere. It's important to set this option in a production service.
func AgentLogger(logger Logger) AgentOption {
	return func(c *AgentCollector) { c.plainLogger = logger }
}

// AgentTimeout sets the maximum timeout for an http request.
func AgentTimeout(duration time.Duration) AgentOption {
	return func(c *AgentCollector) { c.client.Timeout = duration }
}

// AgentBatchSize sets the maximum batch size, after which a send is
// triggered regardless of the batch interval.
func AgentBatchSize(n int) AgentOption {
	return func(c *AgentCollector) { c.batchSize = n }
}

// AgentMaxBacklog sets the queue capacity; when the queue is full, newly
// finished traces are disposed of rather than blocking the tracing hot path.
func AgentMaxBacklog(n int) AgentOption {
	return func(c *AgentCollector) { c.maxBacklog = n }
}

// AgentBatchInterval sets the maximum duration traces are buffered before
// being sent to the agent.
func AgentBatchInterval(d time.Duration) AgentOption {
	return func(c *AgentCollector) { c.batchInterval = d }
}

// AgentHTTPClient sets a custom http client to use.
func AgentHTTPClient(client *http.Client) AgentOption {
	return func(c *AgentCollector) { c.client = client }
}

// AgentRequestCallback registers a callback to adjust the *http.Request
// before it is sent to the agent.
func AgentRequestCallback(rc RequestCallback) AgentOption {
	return func(c *AgentCollector) { c.reqCallback = rc }
}

// NewAgentCollector returns a Collector delivering to the agent at agentURL.
// Supported URL schemes are http, https, unix, http+unix, and https+unix;
// the unix family addresses an agent listening on a unix domain socket.
func NewAgentCollector(agentURL string, options ...AgentOption) (*AgentCollector, error) {
	parsed, err := ParseAgentURL(agentURL)
	if err != nil {
		return nil, err
	}

	c := &AgentCollector{
		plainLogger:   NewNopLogger(),
		client:        &http.Client{Timeout: defaultAgentTimeout},
		batchInterval: defaultAgentBatchInterval,
		batchSize:     defaultAgentBatchSize,
		maxBacklog:    defaultAgentMaxBacklog,
		quit:          make(chan struct{}),
		shutdown:      make(chan error, 1),
	}
	for _, option := range options {
		option(c)
	}
	c.logger = NewStateLogger(c.plainLogger, defaultAgentLogInterval)
	c.url = requestURL(parsed)
	if parsed.UsesUnixSocket() {
		socketPath := parsed.Authority
		transport := &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var dialer net.Dialer
				return dialer.DialContext(ctx, "unix", socketPath)
			},
		}
		// Respect the configured timeout but not a caller transport; the
		// socket dialer is what makes the unix scheme work.
		c.client = &http.Client{Timeout: c.client.Timeout, Transport: transport}
	}

	// tracec can immediately accept maxBacklog traces and everything else
	// is dropped.
	c.tracec = make(chan []*SpanData, c.maxBacklog)

	go c.loop()
	return c, nil
}

// requestURL maps the parsed agent URL to the address requests go to. Unix
// sockets use a placeholder authority; the transport ignores it.
func requestURL(u AgentURL) string {
	path := u.Path
	if path == "" {
		path = defaultTracesPath
	}
	if u.UsesUnixSocket() {
		return "http://localhost" + path
	}
	return u.Scheme + "://" + u.Authority + path
}

// Collect implements Collector. It attempts a non-blocking send on the
// queue; a full queue disposes of the trace rather than stalling span
// completion.
func (c *AgentCollector) Collect(spans []*SpanData) error {
	select {
	case c.tracec <- spans:
		// Accepted.
	case <-c.quit:
		// Collector concurrently closed.
	default:
		c.plainLogger.Log("msg", "trace queue full, disposing trace", "size", len(c.tracec))
	}
	return nil
}

// Close implements Collector. It flushes the remaining batch and stops the
// send loop.
func (c *AgentCollector) Close() error {
	close(c.quit)
	return <-c.shutdown
}

func (c *AgentCollector) loop() {
	var (
		nextSend = time.Now().Add(c.batchInterval)
		ticker   = time.NewTicker(c.batchInterval / 10)
		tickc    = ticker.C
	)
	defer ticker.Stop()

	batch := make([][]*SpanData, 0, c.batchSize)

	for {
		select {
		case spans := <-c.tracec:
			batch = append(batch, spans)
			if len(batch) == c.batchSize {
				c.send(batch)
				batch = batch[0:0]
				nextSend = time.Now().Add(c.batchInterval)
			}
		case <-tickc:
			if time.Now().After(nextSend) {
				if len(batch) > 0 {
					c.send(batch)
					batch = batch[0:0]
				}
				nextSend = time.Now().Add(c.batchInterval)
			}
		case <-c.quit:
			c.shutdown <- c.send(batch)
			return
		}
	}
}

func (c *AgentCollector) send(batch [][]*SpanData) error {
	if len(batch) == 0 {
		return nil
	}
	payload, err := EncodePayload(nil, batch)
	if err != nil {
		// Encoding overflow is a hard failure of this flush attempt.
		c.logger.LogError(err)
		return err
	}

	req, err := http.NewRequest("POST", c.url, bytes.NewReader(payload))
	if err != nil {
		c.logger.LogError(err)
		return err
	}
	req.Header.Set("Content-Type", "application/msgpack")
	req.Header.Set("Datadog-Meta-Lang", "go")
	req.Header.Set("X-Datadog-Trace-Count", strconv.Itoa(len(batch)))
	if c.reqCallback != nil {
		c.reqCallback(req)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.LogError(err)
		return err
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("agent returned %s for trace submission", resp.Status)
		c.logger.LogError(err)
		return err
	}
	c.logger.Fixed("msg", "agent connection established", "url", c.url)
	return nil
}
