package model

import "time"

// Phase is the audit lifecycle stage shown to the UI
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseUploading  Phase = "uploading"
	PhaseExtracting Phase = "extracting"
	PhaseVerifying  Phase = "verifying"
	PhaseAnalyzing  Phase = "analyzing"
	PhaseComplete   Phase = "complete"
	PhaseError      Phase = "error"
)

// Step returns the 1-based progress step of the phase (0 for idle and error)
func (p Phase) Step() int {
	switch p {
	case PhaseUploading:
		return 1
	case PhaseExtracting:
		return 2
	case PhaseVerifying:
		return 3
	case PhaseAnalyzing:
		return 4
	case PhaseComplete:
		return 5
	default:
		return 0
	}
}

// IsTerminal reports whether no further transitions happen without a reset
func (p Phase) IsTerminal() bool {
	return p == PhaseComplete || p == PhaseError
}

// AuditStats holds the running counts of an audit
type AuditStats struct {
	TotalClaims        int `json:"total_claims"`
	Verified           int `json:"verified"`
	Supported          int `json:"supported"`
	Issues             int `json:"issues"`
	Critical           int `json:"critical"`
	High               int `json:"high"`
	Medium             int `json:"medium"`
	Low                int `json:"low"`
	Stale              int `json:"stale"`
	MathErrors         int `json:"math_errors"`
	CitationMismatches int `json:"citation_mismatches"`
	Omissions          int `json:"omissions"`
}

// Progress describes where the audit currently is
type Progress struct {
	Step    int    `json:"step"`
	Label   string `json:"label"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
}

// AuditState is the single aggregate the UI reads
type AuditState struct {
	Phase         Phase      `json:"phase"`
	DocumentTitle string     `json:"document_title,omitempty"`
	DocumentText  string     `json:"document_text,omitempty"`
	TrustScore    int        `json:"trust_score"`
	Stats         AuditStats `json:"stats"`
	Findings      []Finding  `json:"findings"`
	Progress      Progress   `json:"progress"`
	Error         string     `json:"error,omitempty"`
}

// NewAuditState returns the idle state
func NewAuditState() AuditState {
	return AuditState{
		Phase:      PhaseIdle,
		TrustScore: 100,
		Findings:   []Finding{},
	}
}

// Report is the rendered outcome of one completed (or failed) audit
type Report struct {
	Source      string         `json:"source,omitempty"` // File path or URL the document came from
	Title       string         `json:"title"`
	AuditedAt   time.Time      `json:"audited_at"`
	State       AuditState     `json:"state"`
	Score       ScoreBreakdown `json:"score"`
	Trace       []string       `json:"trace"`
	Claims      []Claim        `json:"claims,omitempty"`
	LLM         *LLMSummary    `json:"llm,omitempty"` // Optional LLM summary (separate, never affects score)
	ElapsedTime time.Duration  `json:"elapsed_ns"`
}

// ScoreBreakdown explains how the trust score was derived
type ScoreBreakdown struct {
	Score   int     `json:"score"`
	Penalty float64 `json:"penalty"`     // Weighted severity sum
	Ceiling float64 `json:"max_penalty"` // total_claims * 15
	Formula string  `json:"formula"`
}

// LLMSummary contains optional LLM-generated summary
// This never affects scoring and is clearly separated
type LLMSummary struct {
	Enabled        bool     `json:"enabled"`
	Provider       string   `json:"provider,omitempty"`
	Model          string   `json:"model,omitempty"`
	StrictEvidence bool     `json:"strict_evidence"`
	SummaryMD      string   `json:"summary_md,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
}
