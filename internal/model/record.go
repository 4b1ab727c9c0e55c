package model

// VerificationRecord accumulates everything the verification service streamed for one claim.
// It is built by folding stream events in arrival order and is not modified after the
// stream ends.
type VerificationRecord struct {
	Subclaims          []Subclaim          `json:"subclaims,omitempty"`
	Evidence           []EvidenceItem      `json:"evidence,omitempty"`
	Contradictions     []Contradiction     `json:"contradictions,omitempty"`
	ConsistencyIssues  []ConsistencyIssue  `json:"consistency_issues,omitempty"`
	AuthorityConflicts []AuthorityConflict `json:"authority_conflicts,omitempty"`

	OverallVerdict *OverallVerdict `json:"overall_verdict,omitempty"`
	CorrectedClaim *CorrectedClaim `json:"corrected_claim,omitempty"`
	Reconciliation *Reconciliation `json:"reconciliation,omitempty"`
	Materiality    *Materiality    `json:"materiality,omitempty"`
	RiskSignals    *RiskSignals    `json:"risk_signals,omitempty"`
	Plausibility   *Plausibility   `json:"plausibility,omitempty"`
}

// Verdict is the verification service's judgement of a claim
type Verdict string

const (
	VerdictSupported          Verdict = "supported"
	VerdictPartiallySupported Verdict = "partially_supported"
	VerdictUnsupported        Verdict = "unsupported"
	VerdictContradicted       Verdict = "contradicted"
	VerdictExaggerated        Verdict = "exaggerated"
	VerdictUnverifiable       Verdict = "unverifiable"
)

// Subclaim is one decomposed part of a compound claim
type Subclaim struct {
	ID     string `json:"id,omitempty"`
	Text   string `json:"text"`
	Status string `json:"status,omitempty"`
}

// Contradiction describes evidence that disagrees with the claim
type Contradiction struct {
	Claim       string       `json:"claim,omitempty"`    // What the document asserts
	Evidence    string       `json:"evidence,omitempty"` // What the source asserts instead
	Explanation string       `json:"explanation,omitempty"`
	Severity    IssueLevel   `json:"severity,omitempty"`
	SourceURL   string       `json:"source_url,omitempty"`
	SourceTitle string       `json:"source_title,omitempty"`
	Tier        EvidenceTier `json:"tier,omitempty"`
}

// ConsistencyIssue describes an internal or temporal inconsistency around the claim
type ConsistencyIssue struct {
	Type          string     `json:"type,omitempty"` // temporal, restatement, methodology, ...
	Description   string     `json:"description,omitempty"`
	Severity      IssueLevel `json:"severity,omitempty"`
	IsOmission    bool       `json:"is_omission,omitempty"`
	DocumentValue string     `json:"document_value,omitempty"`
	SourceValue   string     `json:"source_value,omitempty"`
	SourceURL     string     `json:"source_url,omitempty"`
}

// AuthorityConflict records disagreement between evidence sources of different standing
type AuthorityConflict struct {
	Description string       `json:"description,omitempty"`
	Sources     []string     `json:"sources,omitempty"`
	Severity    IssueLevel   `json:"severity,omitempty"`
	Winner      EvidenceTier `json:"winner,omitempty"`
}

// OverallVerdict is the verification service's final judgement
type OverallVerdict struct {
	Verdict    Verdict `json:"verdict"`
	Confidence float64 `json:"confidence,omitempty"`
	Summary    string  `json:"summary,omitempty"`
}

// CorrectedClaim is the service's suggested rewrite of an inaccurate claim
type CorrectedClaim struct {
	Corrected   string `json:"corrected"`
	Explanation string `json:"explanation,omitempty"`
}

// AccuracyLevel grades how accurate the claim is after reconciliation
type AccuracyLevel string

const (
	AccuracyTrue            AccuracyLevel = "true"
	AccuracyEssentiallyTrue AccuracyLevel = "essentially_true"
	AccuracyMisleading      AccuracyLevel = "misleading"
	AccuracyFalse           AccuracyLevel = "false"
)

// Reconciliation is a final-pass assessment that can soften earlier signals
type Reconciliation struct {
	AccuracyLevel     AccuracyLevel `json:"accuracy_level"`
	ReconciledVerdict Verdict       `json:"reconciled_verdict,omitempty"`
	Explanation       string        `json:"explanation,omitempty"`
}

// IsAccurate reports whether reconciliation judged the claim true or essentially true
func (r *Reconciliation) IsAccurate() bool {
	if r == nil {
		return false
	}
	return r.AccuracyLevel == AccuracyTrue || r.AccuracyLevel == AccuracyEssentiallyTrue
}

// Materiality indicates how consequential a discrepancy is to the document's conclusions
type Materiality struct {
	Level     IssueLevel `json:"level"`
	Rationale string     `json:"rationale,omitempty"`
}

// RiskSignals collects risk flags raised during verification
type RiskSignals struct {
	Level   IssueLevel `json:"level,omitempty"`
	Signals []string   `json:"signals,omitempty"`
}

// Plausibility is the service's prior plausibility assessment of the claim
type Plausibility struct {
	Plausible   bool    `json:"plausible"`
	Score       float64 `json:"score,omitempty"`
	Explanation string  `json:"explanation,omitempty"`
}

// IssueLevel is the severity vocabulary used inside verification events
type IssueLevel string

const (
	LevelCritical IssueLevel = "critical"
	LevelHigh     IssueLevel = "high"
	LevelMedium   IssueLevel = "medium"
	LevelLow      IssueLevel = "low"
)

// EffectiveVerdict returns the verdict after any reconciliation
func (r *VerificationRecord) EffectiveVerdict() Verdict {
	if r == nil {
		return ""
	}
	if r.Reconciliation != nil && r.Reconciliation.ReconciledVerdict != "" {
		return r.Reconciliation.ReconciledVerdict
	}
	if r.OverallVerdict != nil {
		return r.OverallVerdict.Verdict
	}
	return ""
}
