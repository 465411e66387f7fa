package scheduler

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
)

// captureLogs routes slog output into a buffer for the test's duration.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(previous) })

	return &buf
}

func newTestScheduler(triggerURL string, timeout time.Duration) *Scheduler {
	return &Scheduler{
		cron:       cron.New(),
		httpClient: &http.Client{Timeout: timeout},
		triggerURL: triggerURL,
		schedule:   "* * * * *",
		accessKey:  "test-key",
		userAgent:  "test-agent",
	}
}

func TestTriggerSendsAuthenticatedPost(t *testing.T) {
	var mu sync.Mutex
	var method, auth, userAgent string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		method = r.Method
		auth = r.Header.Get("Authorization")
		userAgent = r.Header.Get("User-Agent")
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	buf := captureLogs(t)

	s := newTestScheduler(server.URL, 5*time.Second)
	s.trigger()

	mu.Lock()
	defer mu.Unlock()
	if method != "POST" {
		t.Errorf("Expected POST, got %s", method)
	}
	if auth != "Bearer test-key" {
		t.Errorf("Expected bearer token, got %q", auth)
	}
	if userAgent != "test-agent" {
		t.Errorf("Expected user agent set, got %q", userAgent)
	}
	if !bytes.Contains(buf.Bytes(), []byte("Pipeline trigger succeeded")) {
		t.Errorf("Expected success log, got: %s", buf.String())
	}
}

func TestTriggerClassifiesRemoteRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "pipeline run already in progress", http.StatusConflict)
	}))
	defer server.Close()

	buf := captureLogs(t)

	s := newTestScheduler(server.URL, 5*time.Second)
	s.trigger()

	if !bytes.Contains(buf.Bytes(), []byte("class=remote_rejected")) {
		t.Errorf("Expected remote_rejected classification, got: %s", buf.String())
	}
}

func TestTriggerClassifiesTimeout(t *testing.T) {
	done := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-done
	}))
	defer server.Close()
	defer close(done)

	buf := captureLogs(t)

	s := newTestScheduler(server.URL, 50*time.Millisecond)
	s.trigger()

	if !bytes.Contains(buf.Bytes(), []byte("class=timeout")) {
		t.Errorf("Expected timeout classification, got: %s", buf.String())
	}
}

func TestTriggerClassifiesNoResponse(t *testing.T) {
	// A server that is already gone
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	buf := captureLogs(t)

	s := newTestScheduler(url, 5*time.Second)
	s.trigger()

	if !bytes.Contains(buf.Bytes(), []byte("class=no_response")) {
		t.Errorf("Expected no_response classification, got: %s", buf.String())
	}
}

func TestStartRejectsInvalidSchedule(t *testing.T) {
	s := newTestScheduler("http://localhost:8080/crawler", time.Second)
	s.schedule = "not a schedule"

	if err := s.Start(); err == nil {
		t.Error("Expected error for invalid schedule expression")
	}
}
