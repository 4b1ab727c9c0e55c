package verify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ppiankov/factaudit/internal/model"
)

// EventType names one kind of verification stream event
type EventType string

const (
	EventSubclaim               EventType = "subclaim"
	EventEvidenceFound          EventType = "evidence_found"
	EventEvidenceScored         EventType = "evidence_scored"
	EventContradictionDetected  EventType = "contradiction_detected"
	EventConsistencyIssue       EventType = "consistency_issue"
	EventOverallVerdict         EventType = "overall_verdict"
	EventCorrectedClaim         EventType = "corrected_claim"
	EventReconciliation         EventType = "reconciliation"
	EventMateriality            EventType = "materiality"
	EventAuthorityConflict      EventType = "authority_conflict"
	EventRiskSignals            EventType = "risk_signals"
	EventPlausibilityAssessment EventType = "plausibility_assessment"
)

// Event is the {type, data} envelope carried by each qualifying stream line
type Event struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ParseEvent extracts the envelope from a line that starts with marker.
// Lines without the marker, or whose payload is not a JSON envelope, report false.
func ParseEvent(line, marker string) (Event, bool) {
	if !strings.HasPrefix(line, marker) {
		return Event{}, false
	}

	payload := strings.TrimSpace(strings.TrimPrefix(line, marker))
	if payload == "" {
		return Event{}, false
	}

	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return Event{}, false
	}
	if ev.Type == "" {
		return Event{}, false
	}

	return ev, true
}

// rule folds one event's data into the record
type rule func(rec *model.VerificationRecord, data json.RawMessage) error

var rules = map[EventType]rule{
	EventSubclaim:               appendTo(func(r *model.VerificationRecord) *[]model.Subclaim { return &r.Subclaims }),
	EventEvidenceFound:          appendTo(func(r *model.VerificationRecord) *[]model.EvidenceItem { return &r.Evidence }),
	EventContradictionDetected:  appendTo(func(r *model.VerificationRecord) *[]model.Contradiction { return &r.Contradictions }),
	EventConsistencyIssue:       appendTo(func(r *model.VerificationRecord) *[]model.ConsistencyIssue { return &r.ConsistencyIssues }),
	EventAuthorityConflict:      appendTo(func(r *model.VerificationRecord) *[]model.AuthorityConflict { return &r.AuthorityConflicts }),
	EventEvidenceScored:         patchEvidence,
	EventOverallVerdict:         applyVerdict,
	EventCorrectedClaim:         applyCorrection,
	EventReconciliation:         replace(func(r *model.VerificationRecord) **model.Reconciliation { return &r.Reconciliation }),
	EventMateriality:            replace(func(r *model.VerificationRecord) **model.Materiality { return &r.Materiality }),
	EventRiskSignals:            replace(func(r *model.VerificationRecord) **model.RiskSignals { return &r.RiskSignals }),
	EventPlausibilityAssessment: replace(func(r *model.VerificationRecord) **model.Plausibility { return &r.Plausibility }),
}

// Apply folds ev into rec. Unknown event types are ignored; a known type whose data
// cannot be decoded returns an error and leaves rec unchanged.
func Apply(rec *model.VerificationRecord, ev Event) error {
	fn, ok := rules[ev.Type]
	if !ok {
		return nil
	}
	if err := fn(rec, ev.Data); err != nil {
		return fmt.Errorf("apply %s: %w", ev.Type, err)
	}
	return nil
}

// Known reports whether the event type has an accumulation rule
func Known(t EventType) bool {
	_, ok := rules[t]
	return ok
}

func appendTo[T any](field func(*model.VerificationRecord) *[]T) rule {
	return func(rec *model.VerificationRecord, data json.RawMessage) error {
		var item T
		if err := json.Unmarshal(data, &item); err != nil {
			return err
		}
		list := field(rec)
		*list = append(*list, item)
		return nil
	}
}

func replace[T any](field func(*model.VerificationRecord) **T) rule {
	return func(rec *model.VerificationRecord, data json.RawMessage) error {
		v := new(T)
		if err := json.Unmarshal(data, v); err != nil {
			return err
		}
		*field(rec) = v
		return nil
	}
}

// patchEvidence merges re-scored fields into already received items with the same ID.
// Decoding onto the existing struct only touches fields present in the payload.
func patchEvidence(rec *model.VerificationRecord, data json.RawMessage) error {
	payloads := []json.RawMessage{data}
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		payloads = nil
		if err := json.Unmarshal(trimmed, &payloads); err != nil {
			return err
		}
	}

	for _, p := range payloads {
		var key struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(p, &key); err != nil {
			return err
		}
		if key.ID == "" {
			continue
		}
		for i := range rec.Evidence {
			if rec.Evidence[i].ID != key.ID {
				continue
			}
			patched := rec.Evidence[i]
			if err := json.Unmarshal(p, &patched); err != nil {
				return err
			}
			rec.Evidence[i] = patched
		}
	}
	return nil
}

// applyVerdict accepts either an object or a bare verdict string
func applyVerdict(rec *model.VerificationRecord, data json.RawMessage) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		rec.OverallVerdict = &model.OverallVerdict{Verdict: normalizeVerdict(s)}
		return nil
	}

	v := new(model.OverallVerdict)
	if err := json.Unmarshal(data, v); err != nil {
		return err
	}
	v.Verdict = normalizeVerdict(string(v.Verdict))
	rec.OverallVerdict = v
	return nil
}

// applyCorrection accepts either an object or a bare corrected sentence
func applyCorrection(rec *model.VerificationRecord, data json.RawMessage) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		rec.CorrectedClaim = &model.CorrectedClaim{Corrected: s}
		return nil
	}

	c := new(model.CorrectedClaim)
	if err := json.Unmarshal(data, c); err != nil {
		return err
	}
	rec.CorrectedClaim = c
	return nil
}

func normalizeVerdict(s string) model.Verdict {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")
	return model.Verdict(s)
}
