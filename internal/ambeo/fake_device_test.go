package ambeo

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// fakeDevice is an in-memory soundbar answering the getData, setData
// and getRows functions.
type fakeDevice struct {
	t   *testing.T
	srv *httptest.Server

	mu       sync.Mutex
	data     map[string]map[string]any // full getData documents by path
	rows     map[string][]map[string]any
	status   map[string]int // forced HTTP status by path
	requests []fakeRequest

	// afterGet runs after a getData response has been rendered, with the
	// lock held. Tests use it to simulate another controller.
	afterGet func(path string)
}

type fakeRequest struct {
	Function string
	Path     string
	Role     string
	Value    string
	Nonce    int64
}

func newFakeDevice(t *testing.T) *fakeDevice {
	t.Helper()
	d := &fakeDevice{
		t:      t,
		data:   make(map[string]map[string]any),
		rows:   make(map[string][]map[string]any),
		status: make(map[string]int),
	}
	d.srv = httptest.NewServer(http.HandlerFunc(d.serve))
	t.Cleanup(d.srv.Close)
	return d
}

// splitTestServer returns the host and port of a test server.
func splitTestServer(t *testing.T, srv *httptest.Server) (string, int) {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatalf("split host: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	return host, port
}

// transport returns a transport bound to the fake device.
func (d *fakeDevice) transport() *Transport {
	d.t.Helper()
	host, port := splitTestServer(d.t, d.srv)
	return NewTransport(host, port, d.srv.Client(), nil, 0)
}

func (d *fakeDevice) options() Options {
	d.t.Helper()
	host, port := splitTestServer(d.t, d.srv)
	return Options{Host: host, Port: port, HTTPClient: d.srv.Client()}
}

// setValue seeds value.<tag> at path.
func (d *fakeDevice) setValue(path, tag string, v any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	doc, ok := d.data[path]
	if !ok {
		doc = make(map[string]any)
		d.data[path] = doc
	}
	value, _ := doc["value"].(map[string]any)
	if value == nil {
		value = make(map[string]any)
	}
	value[tag] = v
	doc["value"] = value
}

// setField seeds a top-level key of the getData document at path.
func (d *fakeDevice) setField(path, key string, v any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	doc, ok := d.data[path]
	if !ok {
		doc = make(map[string]any)
		d.data[path] = doc
	}
	doc[key] = v
}

func (d *fakeDevice) setRows(path string, rows []map[string]any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rows[path] = rows
}

func (d *fakeDevice) failPath(path string, status int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.status[path] = status
}

// valueOf returns value.<tag> at path re-decoded through JSON.
func (d *fakeDevice) valueOf(path, tag string) any {
	d.mu.Lock()
	defer d.mu.Unlock()
	doc := d.data[path]
	value, _ := doc["value"].(map[string]any)
	return value[tag]
}

// count returns how many requests hit function on path.
func (d *fakeDevice) count(function, path string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, r := range d.requests {
		if r.Function == function && r.Path == path {
			n++
		}
	}
	return n
}

func (d *fakeDevice) requestLog() []fakeRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]fakeRequest, len(d.requests))
	copy(out, d.requests)
	return out
}

func (d *fakeDevice) serve(w http.ResponseWriter, r *http.Request) {
	function := strings.TrimPrefix(r.URL.Path, "/api/")
	q := r.URL.Query()
	nonce, _ := strconv.ParseInt(q.Get("_nocache"), 10, 64)
	req := fakeRequest{
		Function: function,
		Path:     q.Get("path"),
		Role:     q.Get("roles"),
		Value:    q.Get("value"),
		Nonce:    nonce,
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.requests = append(d.requests, req)

	if status, ok := d.status[req.Path]; ok {
		w.WriteHeader(status)
		return
	}

	var body any
	switch function {
	case FuncGetData:
		doc := d.data[req.Path]
		if doc == nil {
			doc = map[string]any{}
		}
		body = doc
	case FuncGetRows:
		rows, ok := d.rows[req.Path]
		if !ok {
			body = map[string]any{}
		} else {
			body = map[string]any{"rows": rows}
		}
	case FuncSetData:
		if req.Role == RoleValue {
			d.applyEnvelope(req.Path, req.Value)
		}
		body = map[string]any{}
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}

	payload, err := json.Marshal(body)
	if err != nil {
		d.t.Errorf("marshal fake response: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(payload)

	if function == FuncGetData && d.afterGet != nil {
		d.afterGet(req.Path)
	}
}

// applyEnvelope stores a {"type":T,T:v} write. Called with mu held.
func (d *fakeDevice) applyEnvelope(path, raw string) {
	var env map[string]any
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		d.t.Errorf("setData %s: invalid envelope %q: %v", path, raw, err)
		return
	}
	tag, _ := env["type"].(string)
	v, ok := env[tag]
	if tag == "" || !ok {
		d.t.Errorf("setData %s: envelope %q lacks its tag field", path, raw)
		return
	}
	doc, ok := d.data[path]
	if !ok {
		doc = make(map[string]any)
		d.data[path] = doc
	}
	value, _ := doc["value"].(map[string]any)
	if value == nil {
		value = make(map[string]any)
	}
	value[tag] = v
	doc["value"] = value
}
