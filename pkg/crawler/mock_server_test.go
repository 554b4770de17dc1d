package crawler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// failNetwork makes the server drop the connection instead of answering
const failNetwork = -1

// MockSearchServer simulates the full-archive search endpoint. Every day has
// the same number of pages; failures can be queued per day.
type MockSearchServer struct {
	server        *httptest.Server
	pagesPerDay   int
	tweetsPerPage int
	requestCount  int32
	rateLimitHits int32

	mu       sync.Mutex
	failures map[string][]int // day -> status codes to answer with, in order
	requests []url.Values
}

// NewMockSearchServer starts a server answering pagesPerDay pages of
// tweetsPerPage tweets for any day
func NewMockSearchServer(pagesPerDay, tweetsPerPage int) *MockSearchServer {
	m := &MockSearchServer{
		pagesPerDay:   pagesPerDay,
		tweetsPerPage: tweetsPerPage,
		failures:      make(map[string][]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/2/tweets/search/all", m.handleSearch)
	m.server = httptest.NewServer(mux)
	return m
}

func (m *MockSearchServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&m.requestCount, 1)

	q := r.URL.Query()
	m.mu.Lock()
	m.requests = append(m.requests, q)
	m.mu.Unlock()

	if r.Header.Get("Authorization") != "Bearer test-token" {
		m.sendError(w, http.StatusUnauthorized)
		return
	}

	day := q.Get("start_time")
	if len(day) >= 10 {
		day = day[:10]
	}

	if code := m.nextFailure(day); code != 0 {
		if code == failNetwork {
			if hj, ok := w.(http.Hijacker); ok {
				if conn, _, err := hj.Hijack(); err == nil {
					conn.Close()
					return
				}
			}
			code = http.StatusBadGateway
		}
		if code == http.StatusTooManyRequests {
			atomic.AddInt32(&m.rateLimitHits, 1)
		}
		m.sendError(w, code)
		return
	}

	page := 1
	if token := q.Get("next_token"); token != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(token, "p"))
		if err != nil || n < 2 || n > m.pagesPerDay {
			m.sendError(w, http.StatusBadRequest)
			return
		}
		page = n
	}

	data := make([]map[string]string, 0, m.tweetsPerPage)
	for i := 0; i < m.tweetsPerPage; i++ {
		data = append(data, map[string]string{
			"id":         fmt.Sprintf("%s-%d-%d", day, page, i),
			"text":       "let it snow",
			"created_at": day + "T12:00:00.000Z",
		})
	}
	meta := map[string]interface{}{"result_count": len(data)}
	if page < m.pagesPerDay {
		meta["next_token"] = fmt.Sprintf("p%d", page+1)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"data":     data,
		"includes": map[string]interface{}{"users": []map[string]string{{"id": "u1", "username": "weather"}}},
		"meta":     meta,
	})
}

// sendError sends an error body shaped like the real API's
func (m *MockSearchServer) sendError(w http.ResponseWriter, code int) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"title":  http.StatusText(code),
		"detail": fmt.Sprintf("mock error %d", code),
		"status": code,
	})
}

// FailDay queues status codes for the next requests of day. Use failNetwork
// to drop the connection.
func (m *MockSearchServer) FailDay(day string, codes ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[day] = append(m.failures[day], codes...)
}

func (m *MockSearchServer) nextFailure(day string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	queue := m.failures[day]
	if len(queue) == 0 {
		return 0
	}
	m.failures[day] = queue[1:]
	return queue[0]
}

// Endpoint returns the search URL of the mock server
func (m *MockSearchServer) Endpoint() string {
	return m.server.URL + "/2/tweets/search/all"
}

// RequestCount returns the total number of requests
func (m *MockSearchServer) RequestCount() int {
	return int(atomic.LoadInt32(&m.requestCount))
}

// RateLimitHits returns the number of rate limit responses
func (m *MockSearchServer) RateLimitHits() int {
	return int(atomic.LoadInt32(&m.rateLimitHits))
}

// Requests returns the query parameters of every request so far
func (m *MockSearchServer) Requests() []url.Values {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]url.Values(nil), m.requests...)
}

// RequestsFor counts requests whose window starts on day
func (m *MockSearchServer) RequestsFor(day string) int {
	n := 0
	for _, q := range m.Requests() {
		if strings.HasPrefix(q.Get("start_time"), day) {
			n++
		}
	}
	return n
}

// Close shuts down the mock server
func (m *MockSearchServer) Close() {
	m.server.Close()
}
