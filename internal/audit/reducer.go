// Package audit drives one document through extraction, verification and analysis
// and keeps the UI-facing AuditState consistent while doing so.
package audit

import (
	"github.com/ppiankov/factaudit/internal/model"
)

// Event is a state transition request for Reduce
type Event interface {
	event()
}

// UploadStarted moves an idle audit into the uploading phase
type UploadStarted struct {
	Title string
}

// ExtractionStarted records the document under audit and starts claim extraction
type ExtractionStarted struct {
	Title string
	Text  string
}

// ClaimsExtracted starts verification of total claims
type ClaimsExtracted struct {
	Total int
}

// VerificationProgress reports that claim number Current (1-based) is being verified
type VerificationProgress struct {
	Current int
	Total   int
}

// AnalysisStarted starts classification of the verification records
type AnalysisStarted struct{}

// Completed publishes the final findings, stats and score
type Completed struct {
	Findings   []model.Finding
	Stats      model.AuditStats
	TrustScore int
}

// Failed ends the audit with a user-visible message
type Failed struct {
	Message string
}

// Reset returns to idle from any phase
type Reset struct{}

func (UploadStarted) event()        {}
func (ExtractionStarted) event()    {}
func (ClaimsExtracted) event()      {}
func (VerificationProgress) event() {}
func (AnalysisStarted) event()      {}
func (Completed) event()            {}
func (Failed) event()               {}
func (Reset) event()                {}

// Progress labels shown alongside the phase step
const (
	LabelUploading  = "Uploading document"
	LabelExtracting = "Extracting claims"
	LabelVerifying  = "Verifying claims"
	LabelAnalyzing  = "Analyzing findings"
	LabelComplete   = "Audit complete"
	LabelError      = "Audit failed"
)

// Reduce applies ev to state and returns the new state. It never mutates its input.
// Transitions only move forward within a run; an event that is not legal in the
// current phase returns the state unchanged.
func Reduce(state model.AuditState, ev Event) model.AuditState {
	switch e := ev.(type) {
	case Reset:
		return model.NewAuditState()

	case UploadStarted:
		if state.Phase != model.PhaseIdle {
			return state
		}
		next := model.NewAuditState()
		next.Phase = model.PhaseUploading
		next.DocumentTitle = e.Title
		next.Progress = progress(model.PhaseUploading, LabelUploading, 0, 0)
		return next

	case ExtractionStarted:
		if state.Phase != model.PhaseIdle && state.Phase != model.PhaseUploading {
			return state
		}
		next := model.NewAuditState()
		next.Phase = model.PhaseExtracting
		next.DocumentTitle = e.Title
		next.DocumentText = e.Text
		next.Progress = progress(model.PhaseExtracting, LabelExtracting, 0, 0)
		return next

	case ClaimsExtracted:
		if state.Phase != model.PhaseExtracting || e.Total <= 0 {
			return state
		}
		next := state
		next.Phase = model.PhaseVerifying
		next.Stats = model.AuditStats{TotalClaims: e.Total}
		next.Progress = progress(model.PhaseVerifying, LabelVerifying, 0, e.Total)
		return next

	case VerificationProgress:
		if state.Phase != model.PhaseVerifying {
			return state
		}
		// Progress is monotonic and bounded by the claim count
		if e.Total != state.Progress.Total || e.Current < state.Progress.Current || e.Current > e.Total {
			return state
		}
		next := state
		next.Progress.Current = e.Current
		return next

	case AnalysisStarted:
		if state.Phase != model.PhaseVerifying {
			return state
		}
		next := state
		next.Phase = model.PhaseAnalyzing
		next.Progress = progress(model.PhaseAnalyzing, LabelAnalyzing, state.Progress.Total, state.Progress.Total)
		return next

	case Completed:
		if state.Phase != model.PhaseAnalyzing {
			return state
		}
		next := state
		next.Phase = model.PhaseComplete
		next.Findings = append([]model.Finding{}, e.Findings...)
		next.Stats = e.Stats
		next.TrustScore = e.TrustScore
		next.Progress = progress(model.PhaseComplete, LabelComplete, e.Stats.TotalClaims, e.Stats.TotalClaims)
		return next

	case Failed:
		if state.Phase.IsTerminal() {
			return state
		}
		next := state
		next.Phase = model.PhaseError
		next.Error = e.Message
		next.Progress.Label = LabelError
		return next
	}

	return state
}

func progress(phase model.Phase, label string, current, total int) model.Progress {
	return model.Progress{
		Step:    phase.Step(),
		Label:   label,
		Current: current,
		Total:   total,
	}
}
