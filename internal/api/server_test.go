package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/factaudit/internal/audit"
	"github.com/ppiankov/factaudit/internal/model"
	"github.com/ppiankov/factaudit/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAuditor walks a run through every phase, optionally waiting on release first
type fakeAuditor struct {
	mu      sync.Mutex
	inputs  []pipeline.Input
	release chan struct{}
}

func (f *fakeAuditor) Audit(ctx context.Context, run *audit.Run, in pipeline.Input) (*model.Report, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, in)
	f.mu.Unlock()

	run.Dispatch(audit.ExtractionStarted{Title: in.Title, Text: in.Text})
	run.Dispatch(audit.ClaimsExtracted{Total: 1})

	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, audit.ErrRunAbandoned
		}
	}

	run.Dispatch(audit.VerificationProgress{Current: 1, Total: 1})
	run.Dispatch(audit.AnalysisStarted{})
	stats := model.AuditStats{TotalClaims: 1, Verified: 1, Supported: 1}
	if !run.Dispatch(audit.Completed{Stats: stats, TrustScore: 100}) {
		return nil, audit.ErrRunAbandoned
	}
	run.Trace("done")

	return &model.Report{
		Title: in.Title,
		State: run.Session().State(),
		Score: model.ScoreBreakdown{Score: 100, Formula: "test"},
	}, nil
}

func newTestServer(t *testing.T, auditor Auditor) (*Server, *httptest.Server) {
	t.Helper()
	s := NewServer(auditor, nil)
	ts := httptest.NewServer(s.Routes())
	t.Cleanup(func() {
		ts.Close()
		s.Close()
	})
	return s, ts
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func createSession(t *testing.T, baseURL string) string {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, baseURL+"/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id, ok := body["id"].(string)
	require.True(t, ok)
	return id
}

func phaseOf(t *testing.T, baseURL, id string) string {
	t.Helper()
	_, body := doJSON(t, http.MethodGet, baseURL+"/v1/sessions/"+id, nil)
	state, ok := body["state"].(map[string]any)
	require.True(t, ok, "state missing: %v", body)
	return state["phase"].(string)
}

func TestServer_Health(t *testing.T) {
	_, ts := newTestServer(t, &fakeAuditor{})

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))
}

func TestServer_RequestIDEchoed(t *testing.T) {
	_, ts := newTestServer(t, &fakeAuditor{})

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set(RequestIDHeader, "req-42")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "req-42", resp.Header.Get(RequestIDHeader))
}

func TestServer_CreateAndGetSession(t *testing.T) {
	_, ts := newTestServer(t, &fakeAuditor{})

	id := createSession(t, ts.URL)
	assert.Equal(t, string(model.PhaseIdle), phaseOf(t, ts.URL, id))

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, id, body["id"])
	assert.Contains(t, body, "trace")
	assert.Contains(t, body, "generation")
}

func TestServer_UnknownSession(t *testing.T) {
	_, ts := newTestServer(t, &fakeAuditor{})

	for _, id := range []string{"not-a-uuid", "0b7e5f4c-7a4e-4a53-9d0a-5b1e2f3a4c5d"} {
		resp, body := doJSON(t, http.MethodGet, ts.URL+"/v1/sessions/"+id, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, ErrSessionNotFound.Error(), body["error"])
	}
}

func TestServer_StartAudit_Validation(t *testing.T) {
	_, ts := newTestServer(t, &fakeAuditor{})
	id := createSession(t, ts.URL)
	url := ts.URL + "/v1/sessions/" + id + "/audits"

	resp, _ := doJSON(t, http.MethodPost, url, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, url, map[string]string{"source": "a.md", "text": "b"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBufferString("{broken"))
	require.NoError(t, err)
	raw, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	raw.Body.Close()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)
}

func TestServer_StartAudit_Completes(t *testing.T) {
	auditor := &fakeAuditor{}
	_, ts := newTestServer(t, auditor)
	id := createSession(t, ts.URL)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/sessions/"+id+"/audits",
		map[string]string{"title": "Memo", "text": "Revenue was $10M."})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, id, body["session_id"])

	require.Eventually(t, func() bool {
		return phaseOf(t, ts.URL, id) == string(model.PhaseComplete)
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		_, body := doJSON(t, http.MethodGet, ts.URL+"/v1/sessions/"+id, nil)
		return body["score"] != nil
	}, 2*time.Second, 10*time.Millisecond)

	_, body = doJSON(t, http.MethodGet, ts.URL+"/v1/sessions/"+id, nil)
	state := body["state"].(map[string]any)
	assert.Equal(t, "Memo", state["document_title"])
	assert.EqualValues(t, 100, state["trust_score"])
	assert.Equal(t, []any{"done"}, body["trace"])

	auditor.mu.Lock()
	defer auditor.mu.Unlock()
	require.Len(t, auditor.inputs, 1)
	assert.Equal(t, pipeline.Input{Title: "Memo", Text: "Revenue was $10M."}, auditor.inputs[0])
}

func TestServer_ResetAbandonsRun(t *testing.T) {
	auditor := &fakeAuditor{release: make(chan struct{})}
	_, ts := newTestServer(t, auditor)
	id := createSession(t, ts.URL)

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/v1/sessions/"+id+"/audits", map[string]string{"text": "x"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool {
		return phaseOf(t, ts.URL, id) == string(model.PhaseVerifying)
	}, 2*time.Second, 10*time.Millisecond)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/sessions/"+id+"/reset", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, string(model.PhaseIdle), body["state"].(map[string]any)["phase"])

	close(auditor.release)

	// The abandoned run never moves the session again
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, string(model.PhaseIdle), phaseOf(t, ts.URL, id))
}

func TestServer_NewAuditReplacesRunning(t *testing.T) {
	auditor := &fakeAuditor{release: make(chan struct{})}
	_, ts := newTestServer(t, auditor)
	id := createSession(t, ts.URL)
	url := ts.URL + "/v1/sessions/" + id + "/audits"

	_, first := doJSON(t, http.MethodPost, url, map[string]string{"title": "first", "text": "x"})
	require.Eventually(t, func() bool {
		return phaseOf(t, ts.URL, id) == string(model.PhaseVerifying)
	}, 2*time.Second, 10*time.Millisecond)

	_, second := doJSON(t, http.MethodPost, url, map[string]string{"title": "second", "text": "y"})
	assert.Greater(t, second["generation"].(float64), first["generation"].(float64))

	close(auditor.release)

	require.Eventually(t, func() bool {
		return phaseOf(t, ts.URL, id) == string(model.PhaseComplete)
	}, 2*time.Second, 10*time.Millisecond)

	_, body := doJSON(t, http.MethodGet, ts.URL+"/v1/sessions/"+id, nil)
	assert.Equal(t, "second", body["state"].(map[string]any)["document_title"])
}

// failingAuditor fails the run after extraction and still returns a report
type failingAuditor struct{}

func (failingAuditor) Audit(ctx context.Context, run *audit.Run, in pipeline.Input) (*model.Report, error) {
	err := errors.New("extractor unavailable")
	run.Dispatch(audit.ExtractionStarted{Title: in.Title, Text: in.Text})
	run.Dispatch(audit.Failed{Message: err.Error()})
	return &model.Report{Title: in.Title, State: run.Session().State()}, err
}

func TestServer_FailedAuditHasNoScore(t *testing.T) {
	_, ts := newTestServer(t, failingAuditor{})
	id := createSession(t, ts.URL)

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/v1/sessions/"+id+"/audits", map[string]string{"text": "x"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool {
		return phaseOf(t, ts.URL, id) == string(model.PhaseError)
	}, 2*time.Second, 10*time.Millisecond)

	// finish runs right after the phase change; give it a moment
	time.Sleep(50 * time.Millisecond)

	_, body := doJSON(t, http.MethodGet, ts.URL+"/v1/sessions/"+id, nil)
	assert.NotContains(t, body, "score")
	assert.Equal(t, "extractor unavailable", body["state"].(map[string]any)["error"])
}
