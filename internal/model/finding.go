package model

// Finding is a severity-ranked discrepancy report for a claim that was not fully supported
type Finding struct {
	ID               string            `json:"id"`
	Severity         Severity          `json:"severity"`
	IssueType        IssueType         `json:"issue_type"`
	Summary          string            `json:"summary"`
	Location         string            `json:"location"`
	DocumentSays     string            `json:"document_says"`
	SourceSays       string            `json:"source_says,omitempty"`
	Delta            string            `json:"delta,omitempty"`
	SourceURL        string            `json:"source_url,omitempty"`
	SourceLabel      string            `json:"source_label,omitempty"`
	Confidence       Confidence        `json:"confidence"`
	CalculationSteps []CalculationStep `json:"calculation_steps,omitempty"`
	Reconciliation   string            `json:"reconciliation,omitempty"`
}

// Severity ranks findings; critical is the most severe
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Rank returns the sort position of the severity (critical first)
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	default:
		return 3
	}
}

// Downgrade returns the severity one tier toward low
func (s Severity) Downgrade() Severity {
	switch s {
	case SeverityCritical:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// IssueType classifies the nature of a finding
type IssueType string

const (
	IssueMathError                IssueType = "math_error"
	IssueCitationMismatch         IssueType = "citation_mismatch"
	IssueStaleSource              IssueType = "stale_source"
	IssueMaterialOmission         IssueType = "material_omission"
	IssueMethodologyInconsistency IssueType = "methodology_inconsistency"
	IssueExaggeration             IssueType = "exaggeration"
	IssueUnsupportedClaim         IssueType = "unsupported_claim"
)

// Confidence expresses how much weight a finding's evidence carries
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// CalculationStep is one line of a numeric discrepancy breakdown
type CalculationStep struct {
	Label  string     `json:"label"`
	Value  string     `json:"value"`
	Status StepStatus `json:"status"`
}

// StepStatus marks a calculation step as correct or incorrect
type StepStatus string

const (
	StepCorrect   StepStatus = "correct"
	StepIncorrect StepStatus = "incorrect"
)
