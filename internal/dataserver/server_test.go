package dataserver

import (
	"bytes"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cbegin/sonoscope-go/internal/dataset"
)

func testPoints() []dataset.Point {
	return []dataset.Point{
		{ID: 0, Features: map[string]float64{"a": 1}, Embedding: dataset.Embedding{X: 0.1, Y: 0.9}, Cluster: 2},
		{ID: 1, Features: map[string]float64{"a": 2}, Embedding: dataset.Embedding{X: 0.7, Y: 0.3}, Cluster: 0},
	}
}

func TestDataRoundTripsThroughClient(t *testing.T) {
	srv := httptest.NewServer(New(testPoints(), nil, nil).Handler())
	defer srv.Close()

	got, err := dataset.NewClient(srv.Client(), srv.URL).Fetch(t.Context())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(got) != 2 || got[0].Cluster != 2 || got[1].Embedding.X != 0.7 {
		t.Fatalf("points = %+v", got)
	}
}

func TestEmptyPointsServeEmptyArray(t *testing.T) {
	rec := httptest.NewRecorder()
	New(nil, nil, nil).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/data", nil))
	if body := strings.TrimSpace(rec.Body.String()); body != `{"points":[]}` {
		t.Fatalf("body = %s", body)
	}
}

func TestDataRejectsPost(t *testing.T) {
	rec := httptest.NewRecorder()
	New(testPoints(), nil, nil).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/data", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	New(testPoints(), nil, nil).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"points":2`) {
		t.Fatalf("health = %d %s", rec.Code, rec.Body.String())
	}
}

func TestCORS(t *testing.T) {
	h := New(testPoints(), []string{"http://localhost:3000"}, nil).Handler()
	tests := []struct {
		name       string
		method     string
		origin     string
		wantOrigin string
		wantStatus int
	}{
		{"allowed", http.MethodGet, "http://localhost:3000", "http://localhost:3000", http.StatusOK},
		{"foreign", http.MethodGet, "http://evil.example", "", http.StatusOK},
		{"preflight", http.MethodOptions, "http://localhost:3000", "http://localhost:3000", http.StatusNoContent},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/data", nil)
			req.Header.Set("Origin", tc.origin)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tc.wantOrigin {
				t.Fatalf("allow-origin = %q, want %q", got, tc.wantOrigin)
			}
		})
	}
}

func TestLoggingMiddlewareRecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	h := New(testPoints(), nil, log.New(&buf, "", 0)).Handler()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPut, "/data", nil))
	if got := strings.TrimSpace(buf.String()); got != "PUT /data -> 405" {
		t.Fatalf("log = %q", got)
	}
}
