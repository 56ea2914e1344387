package ambeo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultPort is the soundbar's HTTP control port.
	DefaultPort = 80

	// DefaultTimeout bounds every request to the device.
	DefaultTimeout = 5 * time.Second

	// maxResponseSize caps the body read from the device.
	maxResponseSize = 1 << 20
)

// Logger defines the logging interface used by the client.
// *logging.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Transport executes requests against one soundbar's local HTTP API.
//
// The HTTP client is owned by the caller and may be shared between
// transports. The endpoint host can be re-pointed at runtime with
// SetEndpoint; requests already in flight keep the old address.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Transport struct {
	httpClient *http.Client
	logger     Logger
	timeout    time.Duration

	mu   sync.RWMutex
	host string
	port int

	lastNonce atomic.Int64

	pathLocksMu sync.Mutex
	pathLocks   map[string]*sync.Mutex
}

// NewTransport creates a transport bound to host:port.
// A nil httpClient falls back to http.DefaultClient and a non-positive
// timeout to DefaultTimeout.
func NewTransport(host string, port int, httpClient *http.Client, logger Logger, timeout time.Duration) *Transport {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = noopLogger{}
	}
	if port <= 0 {
		port = DefaultPort
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Transport{
		httpClient: httpClient,
		logger:     logger,
		timeout:    timeout,
		host:       host,
		port:       port,
		pathLocks:  make(map[string]*sync.Mutex),
	}
}

// SetEndpoint re-points the transport at a new host. The port is kept.
func (t *Transport) SetEndpoint(host string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.host = host
}

// Endpoint returns the current host and port.
func (t *Transport) Endpoint() (string, int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.host, t.port
}

// BaseURL returns the API root, e.g. "http://192.168.1.20:80/api".
func (t *Transport) BaseURL() string {
	host, port := t.Endpoint()
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port)) + "/api"
}

// Fetch performs one GET against {BaseURL}/{relative} and returns the
// decoded JSON document.
//
// Any failure is returned as *ConnectionError. Fetch never substitutes a
// default value.
func (t *Transport) Fetch(ctx context.Context, relative string) (json.RawMessage, error) {
	url := t.BaseURL() + "/" + relative

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &ConnectionError{URL: url, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	t.logger.Debug("executing device request", "url", url)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", t.timeout, err)
		}
		return nil, &ConnectionError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
		t.logger.Error("device request failed", "url", url, "status", resp.StatusCode)
		return nil, &ConnectionError{
			URL:        url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &ConnectionError{URL: url, Err: fmt.Errorf("reading body: %w", err)}
	}
	if !json.Valid(body) {
		return nil, &ConnectionError{URL: url, Err: errors.New("response is not valid JSON")}
	}
	return json.RawMessage(body), nil
}

// nextNonce returns the cache-busting value for the next request: the
// current time in milliseconds, bumped past the previous value if the
// clock has not advanced.
func (t *Transport) nextNonce() int64 {
	for {
		now := time.Now().UnixMilli()
		last := t.lastNonce.Load()
		if now <= last {
			now = last + 1
		}
		if t.lastNonce.CompareAndSwap(last, now) {
			return now
		}
	}
}

// lockPath serialises writers of a single device path and returns the
// unlock function. Different paths never contend.
func (t *Transport) lockPath(path string) func() {
	t.pathLocksMu.Lock()
	m, ok := t.pathLocks[path]
	if !ok {
		m = &sync.Mutex{}
		t.pathLocks[path] = m
	}
	t.pathLocksMu.Unlock()

	m.Lock()
	return m.Unlock
}
