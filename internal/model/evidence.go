package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// EvidenceItem is a single piece of evidence returned by the verification service.
// Items arrive through evidence_found events and may later be patched in place by
// evidence_scored events carrying the same ID.
type EvidenceItem struct {
	ID              string       `json:"id,omitempty"`
	Tier            EvidenceTier `json:"tier,omitempty"`
	Source          string       `json:"source,omitempty"` // Publisher or origin name
	URL             string       `json:"url,omitempty"`
	Title           string       `json:"title,omitempty"`
	Snippet         string       `json:"snippet,omitempty"`
	Score           float64      `json:"score,omitempty"` // Relevance score assigned upstream
	SupportsClaim   bool         `json:"supports_claim"`
	XBRLClaimed     string       `json:"xbrl_claimed,omitempty"`     // Value as stated in the document
	XBRLActual      string       `json:"xbrl_actual,omitempty"`      // Value reported in the filing
	XBRLDiscrepancy string       `json:"xbrl_discrepancy,omitempty"` // Difference, or "none"
	XBRLComputation string       `json:"xbrl_computation,omitempty"` // How the filing value was derived
	CompanyTicker   string       `json:"company_ticker,omitempty"`
}

// HasDiscrepancy reports whether the item carries a numeric discrepancy against filing data
func (e EvidenceItem) HasDiscrepancy() bool {
	d := strings.TrimSpace(strings.ToLower(e.XBRLDiscrepancy))
	return d != "" && d != "none"
}

// Link returns the best URL to cite for this item
func (e EvidenceItem) Link() string {
	if e.URL != "" {
		return e.URL
	}
	if strings.HasPrefix(e.Source, "http://") || strings.HasPrefix(e.Source, "https://") {
		return e.Source
	}
	return ""
}

// Label returns a human-readable label for this item
func (e EvidenceItem) Label() string {
	switch {
	case e.Title != "":
		return e.Title
	case e.Source != "":
		return e.Source
	default:
		return e.Link()
	}
}

// EvidenceTier represents the authority classification of an evidence source
type EvidenceTier string

const (
	TierUnknown   EvidenceTier = ""
	TierFiling    EvidenceTier = "filing"    // Regulatory filings (10-K, 10-Q, XBRL facts)
	TierPrimary   EvidenceTier = "primary"   // Laws, official statistics, academic papers
	TierSecondary EvidenceTier = "secondary" // Reputable media, encyclopedias
	TierTertiary  EvidenceTier = "tertiary"  // Blogs, aggregators, personal sites
)

// Rank orders tiers from most to least authoritative
func (t EvidenceTier) Rank() int {
	switch t {
	case TierFiling:
		return 0
	case TierPrimary:
		return 1
	case TierSecondary:
		return 2
	case TierTertiary:
		return 3
	default:
		return 4
	}
}

// IsAuthoritativeFiling reports whether the tier is the authoritative filing tier
func (t EvidenceTier) IsAuthoritativeFiling() bool {
	return t == TierFiling
}

func (t EvidenceTier) String() string {
	if t == TierUnknown {
		return "unknown"
	}
	return string(t)
}

// ParseTier converts a loosely formatted tier string into an EvidenceTier
func ParseTier(s string) EvidenceTier {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "filing", "sec_filing", "sec", "xbrl", "0":
		return TierFiling
	case "primary", "1":
		return TierPrimary
	case "secondary", "2":
		return TierSecondary
	case "tertiary", "3":
		return TierTertiary
	default:
		return TierUnknown
	}
}

// UnmarshalJSON accepts a tier name or a numeric rank and normalizes it with ParseTier.
// Unrecognized values decode as TierUnknown so the authority classifier can tier them by URL.
func (t *EvidenceTier) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = ParseTier(s)
		return nil
	}

	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("evidence tier must be a string or number: %s", data)
	}
	*t = ParseTier(strconv.FormatFloat(n, 'f', -1, 64))
	return nil
}
