package llm

import (
	"context"
	"strings"
	"testing"

	"github.com/ppiankov/factaudit/internal/model"
)

// MockProvider implements the Provider interface for testing
type MockProvider struct {
	name      string
	available bool
	response  *SummarizeResponse
	err       error
	lastReq   SummarizeRequest
}

func (m *MockProvider) Name() string {
	return m.name
}

func (m *MockProvider) Summarize(ctx context.Context, req SummarizeRequest) (*SummarizeResponse, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

func (m *MockProvider) IsAvailable(ctx context.Context) bool {
	return m.available
}

func auditReport() model.Report {
	return model.Report{
		Title: "Q3 investor memo",
		State: model.AuditState{
			Phase:      model.PhaseComplete,
			TrustScore: 71,
			Stats: model.AuditStats{
				TotalClaims: 4, Verified: 4, Supported: 1, Issues: 3,
				Critical: 1, High: 1, Low: 1, MathErrors: 1, Stale: 1,
			},
			Findings: []model.Finding{
				{ID: "finding-2", Severity: model.SeverityCritical, IssueType: model.IssueMathError,
					Location: "Claim 2", Summary: "Revenue figure does not match filing", SourceURL: "https://sec.gov/filing/1"},
				{ID: "finding-3", Severity: model.SeverityHigh, IssueType: model.IssueStaleSource,
					Location: "Claim 3", Summary: "Headcount was restated", SourceURL: "https://example.com/2"},
				{ID: "finding-4", Severity: model.SeverityLow, IssueType: model.IssueUnsupportedClaim,
					Location: "Claim 4", Summary: "No source found", SourceURL: "https://sec.gov/filing/1"},
			},
		},
	}
}

func TestNewSummarizer_DisabledProvider(t *testing.T) {
	summarizer, err := NewSummarizer(Config{Provider: ""}, nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if summarizer.provider != nil {
		t.Error("Expected provider to be nil when disabled")
	}
	if summarizer.IsEnabled() {
		t.Error("Expected summarizer to be disabled")
	}
	if summarizer.ProviderName() != "" {
		t.Error("Expected empty provider name when disabled")
	}
}

func TestNewSummarizer_UnknownProvider(t *testing.T) {
	if _, err := NewSummarizer(Config{Provider: "nope"}, nil); err == nil {
		t.Fatal("Expected error for unknown provider")
	}
}

func TestSummarizer_GenerateSummary_Disabled(t *testing.T) {
	summarizer := &Summarizer{}

	summary, err := summarizer.GenerateSummary(context.Background(), auditReport())
	if err != nil {
		t.Errorf("Expected no error when disabled, got %v", err)
	}
	if summary != nil {
		t.Error("Expected nil summary when provider disabled")
	}
}

func TestSummarizer_GenerateSummary_ProviderUnavailable(t *testing.T) {
	summarizer := &Summarizer{
		provider: &MockProvider{name: "test-provider", available: false},
		config:   Config{StrictEvidence: true},
	}

	summary, err := summarizer.GenerateSummary(context.Background(), auditReport())
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if summary == nil {
		t.Fatal("Expected summary object with warnings")
	}
	if summary.Enabled {
		t.Error("Expected summary to be marked as disabled")
	}

	found := false
	for _, warning := range summary.Warnings {
		if strings.Contains(warning, "not available") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected warning to mention provider unavailability: %v", summary.Warnings)
	}
}

func TestSummarizer_GenerateSummary_Success(t *testing.T) {
	mock := &MockProvider{
		name:      "test-provider",
		available: true,
		response: &SummarizeResponse{
			Summary:    "This is a test summary.",
			CitedURLs:  []string{"https://sec.gov/filing/1", "https://example.com/2"},
			Model:      "test-model",
			TokensUsed: 150,
		},
	}
	summarizer := &Summarizer{
		provider: mock,
		config:   Config{Model: "test-model", StrictEvidence: true, MaxTokens: 300},
	}

	summary, err := summarizer.GenerateSummary(context.Background(), auditReport())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if summary == nil {
		t.Fatal("Expected summary to be generated")
	}

	if !summary.Enabled {
		t.Error("Expected summary to be enabled")
	}
	if summary.Provider != "test-provider" {
		t.Errorf("Expected provider 'test-provider', got '%s'", summary.Provider)
	}
	if summary.Model != "test-model" {
		t.Errorf("Expected model 'test-model', got '%s'", summary.Model)
	}
	if !summary.StrictEvidence {
		t.Error("Expected strict evidence mode to be enabled")
	}
	if summary.SummaryMD != "This is a test summary." {
		t.Errorf("Expected summary text to match, got '%s'", summary.SummaryMD)
	}

	// Allowlist comes from the findings, deduplicated in order
	allow := mock.lastReq.EvidenceURLs
	if len(allow) != 2 || allow[0] != "https://sec.gov/filing/1" || allow[1] != "https://example.com/2" {
		t.Errorf("Unexpected evidence allowlist: %v", allow)
	}
	if mock.lastReq.MaxTokens != 300 {
		t.Errorf("Expected max tokens 300, got %d", mock.lastReq.MaxTokens)
	}

	foundTokens, foundCitations := false, false
	for _, warning := range summary.Warnings {
		if strings.Contains(warning, "Tokens used") {
			foundTokens = true
		}
		if strings.Contains(warning, "Verified") && strings.Contains(warning, "citations") {
			foundCitations = true
		}
	}
	if !foundTokens {
		t.Error("Expected warning about tokens used")
	}
	if !foundCitations {
		t.Error("Expected warning about verified citations")
	}
}

func TestSummarizer_GenerateSummary_ProviderError(t *testing.T) {
	summarizer := &Summarizer{
		provider: &MockProvider{
			name:      "test-provider",
			available: true,
			err:       &mockError{msg: "API rate limit exceeded"},
		},
		config: Config{Model: "test-model", StrictEvidence: true},
	}

	summary, err := summarizer.GenerateSummary(context.Background(), auditReport())

	// Should not fail the audit, just return summary with warnings
	if err != nil {
		t.Errorf("Expected no error (graceful degradation), got %v", err)
	}
	if summary == nil {
		t.Fatal("Expected summary with error warning")
	}
	if !summary.Enabled {
		t.Error("Expected summary to be marked as enabled (but failed)")
	}

	found := false
	for _, warning := range summary.Warnings {
		if strings.Contains(warning, "failed") && strings.Contains(warning, "rate limit") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected warning to mention error: %v", summary.Warnings)
	}
}

func TestRenderSeparateMarkdown_DisabledOrNil(t *testing.T) {
	if md := RenderSeparateMarkdown(&model.LLMSummary{Enabled: false}); md != "" {
		t.Error("Expected empty markdown when disabled")
	}
	if md := RenderSeparateMarkdown(nil); md != "" {
		t.Error("Expected empty markdown when nil")
	}
}

func TestRenderSeparateMarkdown_Success(t *testing.T) {
	summary := &model.LLMSummary{
		Enabled:        true,
		Provider:       "openai",
		Model:          "gpt-4o-mini",
		StrictEvidence: true,
		SummaryMD:      "This is the generated summary content.",
		Warnings:       []string{"Tokens used: 150", "Verified 5 citations"},
	}

	md := RenderSeparateMarkdown(summary)

	requiredSections := []string{
		"# LLM Summary",
		"GENERATED CONTENT",
		"Provider",
		"openai",
		"Model",
		"gpt-4o-mini",
		"Strict Evidence Mode",
		"true",
		"This is the generated summary content.",
		"## Notes",
		"Tokens used: 150",
		"Verified 5 citations",
		"determined independently",
	}
	for _, section := range requiredSections {
		if !strings.Contains(md, section) {
			t.Errorf("Expected markdown to contain '%s'", section)
		}
	}
}

func TestRenderSeparateMarkdown_NoSummary(t *testing.T) {
	md := RenderSeparateMarkdown(&model.LLMSummary{Enabled: true, Provider: "test-provider"})

	if !strings.Contains(md, "No summary generated") {
		t.Error("Expected message about no summary")
	}
}

func TestBuildPrompt_BasicStructure(t *testing.T) {
	report := auditReport()
	prompt := BuildPrompt(report, EvidenceURLs(report))

	requiredElements := []string{
		"CRITICAL RULES",
		"MUST ONLY cite URLs from this allowed list",
		"https://sec.gov/filing/1",
		"https://example.com/2",
		"DO NOT infer, speculate",
		"Document: Q3 investor memo",
		"Trust Score: 71/100",
		"Claims Extracted: 4",
		"Issues: 3 (1 critical, 1 high, 0 medium, 1 low)",
		"[critical] Claim 2 (math_error): Revenue figure does not match filing",
		"Never propose a different score",
	}
	for _, element := range requiredElements {
		if !strings.Contains(prompt, element) {
			t.Errorf("Expected prompt to contain '%s'", element)
		}
	}
}

func TestBuildPrompt_NoFindings(t *testing.T) {
	report := model.Report{State: model.NewAuditState()}
	prompt := BuildPrompt(report, EvidenceURLs(report))

	if !strings.Contains(prompt, "No evidence URLs available") {
		t.Error("Expected message about no evidence URLs")
	}
	if !strings.Contains(prompt, "Document: (untitled)") {
		t.Error("Expected untitled placeholder")
	}
	if !strings.Contains(prompt, "- (none)") {
		t.Error("Expected empty findings marker")
	}
}

func TestBuildPrompt_TruncatesFindings(t *testing.T) {
	report := model.Report{Title: "Long"}
	for i := 0; i < maxPromptFindings+3; i++ {
		report.State.Findings = append(report.State.Findings, model.Finding{Summary: "x"})
	}

	prompt := BuildPrompt(report, nil)
	if !strings.Contains(prompt, "and 3 more findings") {
		t.Error("Expected truncation message for many findings")
	}
}

func TestBuildPrompt_ManyURLs(t *testing.T) {
	evidenceURLs := make([]string, 25)
	for i := 0; i < 25; i++ {
		evidenceURLs[i] = "https://example.com/" + string(rune('a'+i))
	}

	prompt := BuildPrompt(model.Report{Title: "Test"}, evidenceURLs)

	if !strings.Contains(prompt, "and 5 more URLs") {
		t.Error("Expected truncation message for many URLs")
	}
	if !strings.Contains(prompt, evidenceURLs[0]) {
		t.Error("Expected first URL to be in prompt")
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Provider != "" {
		t.Errorf("Expected provider to be empty (disabled), got '%s'", config.Provider)
	}
	if !config.StrictEvidence {
		t.Error("Expected strict evidence to be enabled by default")
	}
	if config.Timeout <= 0 {
		t.Error("Expected positive timeout")
	}
	if config.MaxTokens <= 0 {
		t.Error("Expected positive max tokens")
	}
}

func TestConfigFromModel(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.LLM.Provider = "ollama"
	cfg.LLM.Model = "llama3.1"
	cfg.HTTP.HTTPSProxy = "http://proxy:3128"

	c := ConfigFromModel(cfg)
	if c.Provider != "ollama" || c.Model != "llama3.1" {
		t.Errorf("Unexpected provider/model: %s/%s", c.Provider, c.Model)
	}
	if !c.StrictEvidence {
		t.Error("Expected strict evidence from defaults")
	}
	if c.HTTPSProxy != "http://proxy:3128" {
		t.Errorf("Expected proxy to carry over, got %s", c.HTTPSProxy)
	}
}

func TestSummarizer_ProviderName(t *testing.T) {
	disabled := &Summarizer{}
	if disabled.ProviderName() != "" || disabled.IsEnabled() {
		t.Error("Expected disabled summarizer")
	}

	enabled := &Summarizer{provider: &MockProvider{name: "test-provider"}}
	if !enabled.IsEnabled() {
		t.Error("Expected IsEnabled() to return true when provider exists")
	}
	if enabled.ProviderName() != "test-provider" {
		t.Errorf("Expected provider name 'test-provider', got '%s'", enabled.ProviderName())
	}
}

func TestJoinURLs(t *testing.T) {
	if result := joinURLs(nil); !strings.Contains(result, "No evidence URLs available") {
		t.Error("Expected message about no URLs")
	}

	urls := []string{"https://example.com/1", "https://example.com/2"}
	result := joinURLs(urls)
	for _, url := range urls {
		if !strings.Contains(result, url) {
			t.Errorf("Expected result to contain %s", url)
		}
	}
}

// Mock error type for testing
type mockError struct {
	msg string
}

func (e *mockError) Error() string {
	return e.msg
}
