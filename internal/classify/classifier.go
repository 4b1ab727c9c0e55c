// Package classify turns one claim's verification record into at most one finding.
//
// The decision is an ordered sequence of steps where later steps overwrite what earlier
// ones set. The order is part of the behaviour: reordering the steps changes outcomes.
package classify

import (
	"fmt"
	"strings"

	"github.com/ppiankov/factaudit/internal/model"
)

// Classify derives the finding for claim number claimIndex (0-based), or nil when the
// claim passes. It is pure: identical inputs always produce identical findings.
func Classify(claimIndex int, claimText string, rec *model.VerificationRecord) *model.Finding {
	if rec == nil {
		return nil
	}

	verdict := rec.EffectiveVerdict()

	// 1. Supported claims pass unless something forces a closer look
	if verdict == model.VerdictSupported && !HasOverride(rec) {
		return nil
	}

	f := &model.Finding{
		ID:           fmt.Sprintf("finding-%d", claimIndex+1),
		Location:     fmt.Sprintf("Claim %d", claimIndex+1),
		IssueType:    model.IssueUnsupportedClaim,
		Severity:     defaultSeverity(verdict),
		DocumentSays: claimText,
		Confidence:   Confidence(rec.Evidence),
	}

	// Set once math or contradiction details have been written
	detailed := false

	// 2. Numeric discrepancy against filing data
	if item, ok := firstDiscrepancy(rec.Evidence); ok {
		f.IssueType = model.IssueMathError
		f.Severity = model.SeverityCritical
		f.Confidence = model.ConfidenceHigh
		if item.XBRLClaimed != "" {
			f.DocumentSays = item.XBRLClaimed
		}
		f.SourceSays = item.XBRLActual
		f.Delta = item.XBRLDiscrepancy
		f.SourceURL = item.Link()
		f.SourceLabel = filingLabel(item)
		f.Summary = fmt.Sprintf("Reported figure %s does not match filed value %s (difference %s)",
			orUnknown(item.XBRLClaimed), orUnknown(item.XBRLActual), item.XBRLDiscrepancy)
		if item.XBRLComputation != "" {
			f.CalculationSteps = calculationSteps(item)
		}
		detailed = true
	} else if len(rec.Contradictions) > 0 {
		// 3. Sources contradict the claim
		top := rec.Contradictions[0]
		f.IssueType = model.IssueCitationMismatch
		f.Severity = model.SeverityMedium
		if top.Severity == model.LevelHigh {
			f.Severity = model.SeverityHigh
		}
		f.Summary = firstNonEmpty(top.Explanation, "Cited evidence contradicts the claim")
		if top.Claim != "" {
			f.DocumentSays = top.Claim
		}
		f.SourceSays = top.Evidence
		f.SourceURL = top.SourceURL
		f.SourceLabel = top.SourceTitle
		detailed = true
	}

	// 4. Consistency issues, evaluated whatever happened in step 3
	if len(rec.ConsistencyIssues) > 0 {
		issue := rec.ConsistencyIssues[0]
		f.IssueType, f.Severity = consistencyOutcome(issue)
		if !detailed {
			f.Summary = issue.Description
			if issue.DocumentValue != "" {
				f.DocumentSays = issue.DocumentValue
			}
			f.SourceSays = issue.SourceValue
			f.SourceURL = issue.SourceURL
		}
	}

	// 5. Exaggeration only when nothing more specific was found
	if verdict == model.VerdictExaggerated && f.IssueType == model.IssueUnsupportedClaim {
		f.IssueType = model.IssueExaggeration
		f.Severity = model.SeverityHigh
	}

	// 6. Materiality can only raise severity
	if rec.Materiality != nil {
		switch rec.Materiality.Level {
		case model.LevelCritical:
			f.Severity = model.SeverityCritical
		case model.LevelHigh:
			if f.Severity != model.SeverityCritical {
				f.Severity = model.SeverityHigh
			}
		}
	}

	// 7. Reconciliation can soften by one tier
	if rec.Reconciliation.IsAccurate() {
		f.Severity = f.Severity.Downgrade()
	}

	// 8. Nothing left worth reporting
	if f.IssueType == model.IssueUnsupportedClaim && f.Severity == model.SeverityLow && verdict == model.VerdictSupported {
		return nil
	}

	fillDefaults(f, rec)
	return f
}

// HasOverride reports whether a supported verdict must still be classified:
// a numeric discrepancy or an omission outweighs the verdict.
func HasOverride(rec *model.VerificationRecord) bool {
	if rec == nil {
		return false
	}
	if _, ok := firstDiscrepancy(rec.Evidence); ok {
		return true
	}
	for _, issue := range rec.ConsistencyIssues {
		if isOmission(issue) {
			return true
		}
	}
	return false
}

// Confidence grades the evidence behind a finding. Any authoritative filing gives high
// confidence regardless of what the other items say.
func Confidence(evidence []model.EvidenceItem) model.Confidence {
	for _, e := range evidence {
		if e.Tier.IsAuthoritativeFiling() {
			return model.ConfidenceHigh
		}
	}
	if len(evidence) >= 3 {
		return model.ConfidenceMedium
	}
	return model.ConfidenceLow
}

func defaultSeverity(v model.Verdict) model.Severity {
	switch v {
	case model.VerdictUnsupported, model.VerdictContradicted:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

func consistencyOutcome(issue model.ConsistencyIssue) (model.IssueType, model.Severity) {
	severe := issue.Severity == model.LevelHigh || issue.Severity == model.LevelCritical

	switch {
	case isTemporal(issue):
		if severe {
			return model.IssueStaleSource, model.SeverityHigh
		}
		return model.IssueStaleSource, model.SeverityMedium
	case isOmission(issue):
		if severe {
			return model.IssueMaterialOmission, model.SeverityCritical
		}
		return model.IssueMaterialOmission, model.SeverityHigh
	default:
		if severe {
			return model.IssueMethodologyInconsistency, model.SeverityHigh
		}
		return model.IssueMethodologyInconsistency, model.SeverityMedium
	}
}

func isTemporal(issue model.ConsistencyIssue) bool {
	switch strings.ToLower(issue.Type) {
	case "temporal", "restatement", "stale", "outdated":
		return true
	}
	return false
}

func isOmission(issue model.ConsistencyIssue) bool {
	if issue.IsOmission {
		return true
	}
	switch strings.ToLower(issue.Type) {
	case "omission", "material_omission":
		return true
	}
	return false
}

func firstDiscrepancy(evidence []model.EvidenceItem) (model.EvidenceItem, bool) {
	for _, e := range evidence {
		if e.HasDiscrepancy() {
			return e, true
		}
	}
	return model.EvidenceItem{}, false
}

func calculationSteps(item model.EvidenceItem) []model.CalculationStep {
	return []model.CalculationStep{
		{Label: "Document states", Value: orUnknown(item.XBRLClaimed), Status: model.StepIncorrect},
		{Label: filingLabel(item), Value: orUnknown(item.XBRLActual), Status: model.StepCorrect},
		{Label: "Computation", Value: item.XBRLComputation, Status: model.StepCorrect},
	}
}

func filingLabel(item model.EvidenceItem) string {
	if label := item.Label(); label != "" {
		return label
	}
	if item.CompanyTicker != "" {
		return fmt.Sprintf("XBRL filing data (%s)", item.CompanyTicker)
	}
	return "XBRL filing data"
}

// fillDefaults completes whatever the ordered steps left empty
func fillDefaults(f *model.Finding, rec *model.VerificationRecord) {
	if f.SourceURL == "" && f.SourceLabel == "" {
		if best, ok := bestNonSupporting(rec.Evidence); ok {
			f.SourceURL = best.Link()
			f.SourceLabel = best.Label()
		}
	}

	if f.SourceSays == "" && rec.CorrectedClaim != nil {
		f.SourceSays = rec.CorrectedClaim.Corrected
	}

	if f.Summary == "" {
		if rec.OverallVerdict != nil && rec.OverallVerdict.Summary != "" {
			f.Summary = rec.OverallVerdict.Summary
		} else {
			f.Summary = genericSummary(f.IssueType)
		}
	}

	if rec.Reconciliation != nil && rec.Reconciliation.Explanation != "" {
		f.Reconciliation = rec.Reconciliation.Explanation
	}
}

// bestNonSupporting picks the most authoritative, highest scored item that does not
// support the claim; ties keep stream order.
func bestNonSupporting(evidence []model.EvidenceItem) (model.EvidenceItem, bool) {
	var best model.EvidenceItem
	found := false

	for _, e := range evidence {
		if e.SupportsClaim {
			continue
		}
		if !found ||
			e.Tier.Rank() < best.Tier.Rank() ||
			(e.Tier.Rank() == best.Tier.Rank() && e.Score > best.Score) {
			best = e
			found = true
		}
	}

	return best, found
}

func genericSummary(t model.IssueType) string {
	switch t {
	case model.IssueMathError:
		return "Figure does not match the filed data"
	case model.IssueCitationMismatch:
		return "Cited evidence contradicts the claim"
	case model.IssueStaleSource:
		return "Claim relies on outdated or restated figures"
	case model.IssueMaterialOmission:
		return "Claim omits context that changes its meaning"
	case model.IssueMethodologyInconsistency:
		return "Claim is computed differently from its sources"
	case model.IssueExaggeration:
		return "Claim overstates what the evidence supports"
	default:
		return "Claim is not supported by available evidence"
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func orUnknown(s string) string {
	if s == "" {
		return "n/a"
	}
	return s
}
