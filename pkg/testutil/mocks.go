package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
)

// MockWebhookServer records alert payloads POSTed to it and can be switched
// into failure mode.
type MockWebhookServer struct {
	Server *httptest.Server

	mu       sync.Mutex
	requests []map[string]interface{}
	failing  bool
}

func NewMockWebhookServer() *MockWebhookServer {
	m := &MockWebhookServer{}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		defer m.mu.Unlock()

		if m.failing {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		var payload map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&payload); err == nil {
			m.requests = append(m.requests, payload)
		}
		w.WriteHeader(http.StatusOK)
	}))
	return m
}

func (m *MockWebhookServer) URL() string { return m.Server.URL }

func (m *MockWebhookServer) SetFailing(failing bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failing = failing
}

func (m *MockWebhookServer) Requests() []map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]map[string]interface{}, len(m.requests))
	copy(out, m.requests)
	return out
}

func (m *MockWebhookServer) Close() { m.Server.Close() }

// MockHealthServer serves a settable health report.
type MockHealthServer struct {
	Server *httptest.Server

	mu     sync.Mutex
	status string
}

func NewMockHealthServer(status string) *MockHealthServer {
	m := &MockHealthServer{status: status}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		status := m.status
		m.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": status,
			"components": map[string]string{
				"database": status,
			},
		})
	}))
	return m
}

func (m *MockHealthServer) URL() string { return m.Server.URL }

func (m *MockHealthServer) SetStatus(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
}

func (m *MockHealthServer) Close() { m.Server.Close() }
