package extract

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/factaudit/internal/cache"
	"github.com/ppiankov/factaudit/internal/model"
)

func newTestClient(serverURL string, opts ...Option) *Client {
	return NewClient(model.EndpointConfig{
		BaseURL: serverURL,
		Path:    "/api/extract",
		Timeout: 5 * time.Second,
	}, model.HTTPConfig{UserAgent: "factaudit-test"}, opts...)
}

func claimsHandler(t *testing.T, calls *int32, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)

		if r.Method != http.MethodPost || r.URL.Path != "/api/extract" {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("User-Agent") != "factaudit-test" {
			t.Errorf("Expected user agent header, got %q", r.Header.Get("User-Agent"))
		}

		var req extractRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		if req.Text == "" {
			t.Error("Expected text in request body")
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func TestClient_Extract(t *testing.T) {
	var calls int32
	server := httptest.NewServer(claimsHandler(t, &calls, `{"claims":[
		{"id":"c1","original":"Revenue was $10M in 2023.","normalized":"revenue 2023 = 10M","type":"numeric"},
		{"id":"c2","original":"The company was founded in 1999.","type":"temporal"}
	]}`))
	defer server.Close()

	claims, err := newTestClient(server.URL).Extract(context.Background(), "Letter", "Revenue was $10M in 2023. The company was founded in 1999.")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if len(claims) != 2 {
		t.Fatalf("Expected 2 claims, got %d", len(claims))
	}
	if claims[0].ID != "c1" || claims[1].ID != "c2" {
		t.Errorf("Expected extraction order to be kept, got %s, %s", claims[0].ID, claims[1].ID)
	}
	if claims[0].Type != model.ClaimTypeNumeric || claims[0].Normalized != "revenue 2023 = 10M" {
		t.Errorf("Unexpected first claim: %+v", claims[0])
	}
}

func TestClient_Extract_ZeroClaims(t *testing.T) {
	var calls int32
	server := httptest.NewServer(claimsHandler(t, &calls, `{"claims":[]}`))
	defer server.Close()

	claims, err := newTestClient(server.URL).Extract(context.Background(), "Letter", "Nothing to see here.")
	if err != nil {
		t.Fatalf("Expected no error for zero claims, got %v", err)
	}
	if len(claims) != 0 {
		t.Errorf("Expected no claims, got %d", len(claims))
	}
}

func TestClient_Extract_NonSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Extract(context.Background(), "Letter", "Some text.")

	var extractErr *Error
	if !errors.As(err, &extractErr) {
		t.Fatalf("Expected *Error, got %v", err)
	}
	if extractErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", extractErr.StatusCode)
	}
	if extractErr.Body != "model overloaded" {
		t.Errorf("Expected body snippet, got %q", extractErr.Body)
	}
}

func TestClient_Extract_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newTestClient(url).Extract(context.Background(), "Letter", "Some text.")
	if err == nil {
		t.Fatal("Expected error for unreachable server")
	}

	var extractErr *Error
	if errors.As(err, &extractErr) {
		t.Errorf("Transport failure should not be a status error, got %v", err)
	}
}

func TestClient_Extract_MalformedResponse(t *testing.T) {
	var calls int32
	server := httptest.NewServer(claimsHandler(t, &calls, `{"claims": [`))
	defer server.Close()

	if _, err := newTestClient(server.URL).Extract(context.Background(), "Letter", "Some text."); err == nil {
		t.Error("Expected decode error")
	}
}

func TestClient_Extract_EmptyText(t *testing.T) {
	_, err := newTestClient("http://127.0.0.1:1").Extract(context.Background(), "Letter", "   ")
	if !errors.Is(err, ErrEmptyText) {
		t.Errorf("Expected ErrEmptyText, got %v", err)
	}
}

func TestClient_Extract_DeduplicatesIDs(t *testing.T) {
	var calls int32
	server := httptest.NewServer(claimsHandler(t, &calls, `{"claims":[
		{"id":"c1","original":"First."},
		{"id":"c1","original":"Duplicate id."},
		{"original":"No id."},
		{"id":"c4","original":"  "}
	]}`))
	defer server.Close()

	claims, err := newTestClient(server.URL).Extract(context.Background(), "Letter", "text")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if len(claims) != 2 {
		t.Fatalf("Expected 2 claims, got %d: %+v", len(claims), claims)
	}
	if claims[0].Original != "First." {
		t.Errorf("Expected first duplicate to win, got %q", claims[0].Original)
	}
	if claims[1].ID != "claim-3" {
		t.Errorf("Expected generated id claim-3, got %q", claims[1].ID)
	}
}

func TestClient_Extract_Cache(t *testing.T) {
	var calls int32
	server := httptest.NewServer(claimsHandler(t, &calls, `{"claims":[{"id":"c1","original":"Revenue was $10M."}]}`))
	defer server.Close()

	client := newTestClient(server.URL, WithCache(cache.NewMemoryCache(time.Minute, time.Minute), time.Minute))

	for i := 0; i < 3; i++ {
		claims, err := client.Extract(context.Background(), "Letter", "Revenue was $10M.")
		if err != nil {
			t.Fatalf("Extract %d failed: %v", i, err)
		}
		if len(claims) != 1 {
			t.Fatalf("Extract %d: expected 1 claim, got %d", i, len(claims))
		}
	}

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("Expected 1 request with cache, got %d", got)
	}

	if _, err := client.Extract(context.Background(), "Letter", "Different text."); err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("Expected different text to miss the cache, got %d requests", got)
	}
}

type stubLimiter struct {
	waits int
	err   error
}

func (s *stubLimiter) Wait(ctx context.Context, rawURL string) error {
	s.waits++
	return s.err
}

func TestClient_Extract_RateLimiter(t *testing.T) {
	var calls int32
	server := httptest.NewServer(claimsHandler(t, &calls, `{"claims":[]}`))
	defer server.Close()

	limiter := &stubLimiter{}
	if _, err := newTestClient(server.URL, WithRateLimiter(limiter)).Extract(context.Background(), "Letter", "text"); err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if limiter.waits != 1 {
		t.Errorf("Expected 1 limiter wait, got %d", limiter.waits)
	}

	blocked := &stubLimiter{err: context.DeadlineExceeded}
	_, err := newTestClient(server.URL, WithRateLimiter(blocked)).Extract(context.Background(), "Letter", "text")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected limiter error, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("Expected no request after limiter failure, got %d requests", got)
	}
}
