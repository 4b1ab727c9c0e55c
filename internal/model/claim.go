package model

// Claim represents an atomic, independently verifiable statement extracted from a document
type Claim struct {
	ID         string    `json:"id"`                   // Identifier assigned by the extraction service
	Original   string    `json:"original"`             // Claim text as it appears in the document
	Normalized string    `json:"normalized,omitempty"` // Canonical form used for matching
	Type       ClaimType `json:"type,omitempty"`       // Nature of the claim (numeric, temporal, ...)
}

// ClaimType categorizes the nature of the claim
type ClaimType string

const (
	ClaimTypeNumeric     ClaimType = "numeric"     // Figures, amounts, percentages
	ClaimTypeTemporal    ClaimType = "temporal"    // Dates, periods, sequences
	ClaimTypeAttribution ClaimType = "attribution" // Who said or did something
	ClaimTypeComparative ClaimType = "comparative" // Growth, rankings, comparisons
	ClaimTypeFactual     ClaimType = "factual"     // Any other factual assertion
)

// Text returns the text sent for verification
func (c Claim) Text() string {
	if c.Original != "" {
		return c.Original
	}
	return c.Normalized
}
