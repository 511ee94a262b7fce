package sportsapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(url string, maxRetries int) *Client {
	return NewClient(&Config{
		BaseURL:    url,
		APIKey:     "test-key",
		Timeout:    2 * time.Second,
		MaxRetries: maxRetries,
		RetryDelay: 10 * time.Millisecond,
	}, nil)
}

func TestClient_FetchFixtures(t *testing.T) {
	var gotPath, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.String()
		gotKey = r.Header.Get("X-API-Key")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"success": true,
			"fixtures": [
				{
					"id": 1001,
					"league_id": 39,
					"home": {"id": 50, "name": "Arsenal"},
					"away": {"id": 51, "name": "Chelsea"},
					"kickoff_at": "2026-03-14T15:00:00Z",
					"status": "NS"
				}
			],
			"total": 1
		}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 0)
	fixtures, err := client.FetchFixtures(context.Background(), 39, "2025")
	if err != nil {
		t.Fatalf("FetchFixtures: %v", err)
	}
	if len(fixtures) != 1 {
		t.Fatalf("fixtures = %d, want 1", len(fixtures))
	}
	if fixtures[0].ID != 1001 || fixtures[0].Home.Name != "Arsenal" || fixtures[0].Status != "NS" {
		t.Fatalf("fixture = %+v", fixtures[0])
	}
	if gotPath != "/v1/leagues/39/fixtures?season=2025" {
		t.Fatalf("path = %s", gotPath)
	}
	if gotKey != "test-key" {
		t.Fatalf("X-API-Key = %q", gotKey)
	}
}

func TestClient_FetchStandings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/leagues/39/standings" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"success": true, "standings": [{"team_id": 50, "position": 1, "points": 64}]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 0)
	standings, err := client.FetchStandings(context.Background(), 39, "2025")
	if err != nil {
		t.Fatalf("FetchStandings: %v", err)
	}
	if len(standings) != 1 || standings[0].TeamID != 50 || standings[0].Points != 64 {
		t.Fatalf("standings = %+v", standings)
	}
}

func TestClient_FetchLiveFixtures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/fixtures/live" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"success": true, "fixtures": [{"id": 2001, "status": "1H", "home_score": 1, "away_score": 0}]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 0)
	fixtures, err := client.FetchLiveFixtures(context.Background())
	if err != nil {
		t.Fatalf("FetchLiveFixtures: %v", err)
	}
	if len(fixtures) != 1 || fixtures[0].Status != "1H" {
		t.Fatalf("fixtures = %+v", fixtures)
	}
	if fixtures[0].HomeScore == nil || *fixtures[0].HomeScore != 1 {
		t.Fatalf("home score = %v", fixtures[0].HomeScore)
	}
}

func TestClient_RetriesTransientFailures(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, `{"success": false, "error": "rate limited", "error_code": "RATE_LIMIT"}`, http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"success": true, "fixtures": [], "total": 0}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)
	if _, err := client.FetchFixtures(context.Background(), 39, "2025"); err != nil {
		t.Fatalf("retried fetch should succeed: %v", err)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestClient_ErrorAfterRetriesExhausted(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, `{"success": false, "error": "boom", "error_code": "INTERNAL"}`, http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL, 2)
	_, err := client.FetchFixtures(context.Background(), 39, "2025")
	if err == nil {
		t.Fatalf("exhausted retries must surface the error")
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("calls = %d, want initial + 2 retries", calls)
	}
}

func TestClient_HealthCheck(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.URL.Path != "/v1/status" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"success": true}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("health check must not retry, calls = %d", calls)
	}
}

func TestClient_HealthCheckDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(server.URL, 0)
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Fatalf("unhealthy provider must return an error")
	}
}
