package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
)

type mockResponse struct {
	status int
	body   string
}

// MockAdmin is a configurable mock of the aggregator admin API. Routes
// without a configured response answer 404.
type MockAdmin struct {
	server *httptest.Server
	mu     sync.RWMutex

	responses map[string]mockResponse

	// Tracking
	RequestCount int
	LastMethod   string
	LastPath     string
	LastQuery    string
}

// NewMockAdmin creates a new mock admin server.
func NewMockAdmin() *MockAdmin {
	mock := &MockAdmin{responses: make(map[string]mockResponse)}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastMethod = r.Method
		mock.LastPath = r.URL.Path
		mock.LastQuery = r.URL.RawQuery
		resp, ok := mock.responses[r.Method+" "+r.URL.Path]
		mock.mu.Unlock()

		if !ok {
			http.NotFound(w, r)
			return
		}
		if resp.body != "" {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		}
		w.WriteHeader(resp.status)
		w.Write([]byte(resp.body))
	}))

	return mock
}

// SetResponse configures the reply to method and path.
func (m *MockAdmin) SetResponse(method, path string, status int, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[method+" "+path] = mockResponse{status: status, body: body}
}

// SetDump configures the reply to GET /admin/layers.
func (m *MockAdmin) SetDump(status int, body string) {
	m.SetResponse(http.MethodGet, "/admin/layers", status, body)
}

// URL returns the mock server URL.
func (m *MockAdmin) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAdmin) Close() {
	m.server.Close()
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockAdmin) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetLastRequest returns the method, path and raw query of the last request.
func (m *MockAdmin) GetLastRequest() (method, path, query string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastMethod, m.LastPath, m.LastQuery
}

// GetLastQuery returns the raw query of the last request.
func (m *MockAdmin) GetLastQuery() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastQuery
}
