package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/factaudit/internal/model"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Summarize generates a summary of the audit report in strict evidence mode
	Summarize(ctx context.Context, req SummarizeRequest) (*SummarizeResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// SummarizeRequest contains the input for LLM summarization
type SummarizeRequest struct {
	// Report is the completed audit to summarize
	Report model.Report

	// EvidenceURLs is the allowlist of URLs the LLM may cite.
	// Any other URL in the response is a citation leak.
	EvidenceURLs []string

	// Prompt is an optional custom prompt (if empty, use default)
	Prompt string

	// Model is the specific model to use (provider-specific)
	Model string

	// MaxTokens limits the response length
	MaxTokens int
}

// SummarizeResponse contains the LLM's summary output
type SummarizeResponse struct {
	Summary    string
	CitedURLs  []string // URLs the LLM actually cited
	Model      string
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI; any placeholder works for Ollama
	APIKey string

	// BaseURL for OpenAI-compatible endpoints
	BaseURL string

	Timeout int // seconds

	// StrictEvidence rejects responses citing URLs outside the allowlist
	StrictEvidence bool

	MaxTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:       "", // Disabled by default
		Timeout:        30,
		StrictEvidence: true,
		MaxTokens:      800,
	}
}

// maxPromptFindings caps how many findings are listed in the prompt
const maxPromptFindings = 5

// BuildPrompt constructs the default prompt for summarizing an audit with strict evidence mode
func BuildPrompt(report model.Report, evidenceURLs []string) string {
	stats := report.State.Stats

	var b strings.Builder
	fmt.Fprintf(&b, `You are summarizing a factaudit report. factaudit checks the factual claims of a document against retrieved evidence and reports where the document and its sources disagree.

CRITICAL RULES:
1. You MUST ONLY cite URLs from this allowed list:
%s

2. DO NOT infer, speculate, or cite external sources beyond this list.
3. Describe only what the findings below state. Do not add new discrepancies.
4. If a claim could not be verified, say so explicitly.
5. The trust score is computed independently. Never propose a different score.

Audit Summary:
- Document: %s
- Trust Score: %d/100
- Claims Extracted: %d
- Claims Verified: %d (%d supported)
- Issues: %d (%d critical, %d high, %d medium, %d low)
- Math errors: %d, citation mismatches: %d, stale sources: %d, omissions: %d

Top Findings:
`, joinURLs(evidenceURLs), orUntitled(report.Title), report.State.TrustScore,
		stats.TotalClaims, stats.Verified, stats.Supported,
		stats.Issues, stats.Critical, stats.High, stats.Medium, stats.Low,
		stats.MathErrors, stats.CitationMismatches, stats.Stale, stats.Omissions)

	if len(report.State.Findings) == 0 {
		b.WriteString("- (none)\n")
	}
	for i, f := range report.State.Findings {
		if i >= maxPromptFindings {
			fmt.Fprintf(&b, "- ... and %d more findings\n", len(report.State.Findings)-maxPromptFindings)
			break
		}
		fmt.Fprintf(&b, "- [%s] %s (%s): %s\n", f.Severity, f.Location, f.IssueType, f.Summary)
	}

	b.WriteString("\nProvide a 3-4 sentence summary of the audit outcome for the document's author.")
	return b.String()
}

// EvidenceURLs returns the distinct source URLs of the report's findings in finding order
func EvidenceURLs(report model.Report) []string {
	seen := make(map[string]bool)
	urls := []string{}
	for _, f := range report.State.Findings {
		if f.SourceURL == "" || seen[f.SourceURL] {
			continue
		}
		seen[f.SourceURL] = true
		urls = append(urls, f.SourceURL)
	}
	return urls
}

func joinURLs(urls []string) string {
	if len(urls) == 0 {
		return "(No evidence URLs available)"
	}
	var b strings.Builder
	for i, url := range urls {
		if i >= 20 { // token bloat
			fmt.Fprintf(&b, "\n... and %d more URLs", len(urls)-20)
			break
		}
		fmt.Fprintf(&b, "\n- %s", url)
	}
	return b.String()
}

func orUntitled(title string) string {
	if strings.TrimSpace(title) == "" {
		return "(untitled)"
	}
	return title
}
