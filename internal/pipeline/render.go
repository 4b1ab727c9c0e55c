package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/factaudit/internal/model"
	"github.com/ppiankov/factaudit/internal/score"
)

// Renderer writes audit reports as JSON, Markdown and a short terminal summary
type Renderer struct {
	includeFooter bool
	includeTrace  bool
}

// NewRenderer creates a renderer
func NewRenderer(includeFooter, includeTrace bool) *Renderer {
	return &Renderer{
		includeFooter: includeFooter,
		includeTrace:  includeTrace,
	}
}

// RenderJSON writes report as indented JSON to path
func (r *Renderer) RenderJSON(report *model.Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return writeFile(path, append(data, '\n'))
}

// RenderMarkdown writes report as Markdown to path
func (r *Renderer) RenderMarkdown(report *model.Report, path string) error {
	return writeFile(path, []byte(r.Markdown(report)))
}

// RenderLLMMarkdown writes an already rendered LLM summary to path
func (r *Renderer) RenderLLMMarkdown(md string, path string) error {
	if md == "" {
		return nil
	}
	return writeFile(path, []byte(md))
}

// Markdown renders report as a Markdown document
func (r *Renderer) Markdown(report *model.Report) string {
	var b strings.Builder
	state := report.State
	stats := state.Stats

	fmt.Fprintf(&b, "# Audit Report: %s\n\n", orUntitled(report.Title))
	if report.Source != "" {
		fmt.Fprintf(&b, "**Source:** %s  \n", report.Source)
	}
	if !report.AuditedAt.IsZero() {
		fmt.Fprintf(&b, "**Audited:** %s  \n", report.AuditedAt.Format("2006-01-02 15:04 MST"))
	}
	fmt.Fprintf(&b, "**Status:** %s\n\n", state.Phase)

	if state.Phase == model.PhaseError {
		fmt.Fprintf(&b, "> **Audit failed:** %s\n\n", state.Error)
	}

	b.WriteString("## Trust Score\n\n")
	fmt.Fprintf(&b, "**%d/100** (%s)\n\n", state.TrustScore, score.Grade(state.TrustScore))
	if report.Score.Formula != "" {
		fmt.Fprintf(&b, "`%s`  \n", report.Score.Formula)
		fmt.Fprintf(&b, "%s\n\n", score.Explain(report.Score))
	}

	b.WriteString("## Statistics\n\n")
	b.WriteString("| Metric | Count |\n|---|---|\n")
	rows := []struct {
		label string
		value int
	}{
		{"Claims extracted", stats.TotalClaims},
		{"Claims verified", stats.Verified},
		{"Supported", stats.Supported},
		{"Issues", stats.Issues},
		{"Critical", stats.Critical},
		{"High", stats.High},
		{"Medium", stats.Medium},
		{"Low", stats.Low},
		{"Math errors", stats.MathErrors},
		{"Citation mismatches", stats.CitationMismatches},
		{"Stale sources", stats.Stale},
		{"Material omissions", stats.Omissions},
	}
	for _, row := range rows {
		fmt.Fprintf(&b, "| %s | %d |\n", row.label, row.value)
	}
	b.WriteString("\n")

	b.WriteString("## Findings\n\n")
	if len(state.Findings) == 0 {
		b.WriteString("_No issues found._\n\n")
	}
	for i, f := range state.Findings {
		renderFinding(&b, i+1, f)
	}

	if r.includeTrace && len(report.Trace) > 0 {
		b.WriteString("## Trace\n\n```\n")
		for _, line := range report.Trace {
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("```\n\n")
	}

	if r.includeFooter {
		b.WriteString("---\n\n")
		b.WriteString("_Generated by factaudit. Findings describe where the document disagrees with the sources " +
			"retrieved for it; they are not a judgement of the author. ")
		fmt.Fprintf(&b, "Audit took %s._\n", report.ElapsedTime.Round(time.Millisecond))
	}

	return b.String()
}

func renderFinding(b *strings.Builder, n int, f model.Finding) {
	fmt.Fprintf(b, "### %d. [%s] %s: %s\n\n", n, strings.ToUpper(string(f.Severity)), f.Location, f.IssueType)
	fmt.Fprintf(b, "%s\n\n", f.Summary)

	if f.DocumentSays != "" {
		fmt.Fprintf(b, "- **Document says:** %s\n", f.DocumentSays)
	}
	if f.SourceSays != "" {
		fmt.Fprintf(b, "- **Source says:** %s\n", f.SourceSays)
	}
	if f.Delta != "" {
		fmt.Fprintf(b, "- **Difference:** %s\n", f.Delta)
	}
	switch {
	case f.SourceURL != "" && f.SourceLabel != "":
		fmt.Fprintf(b, "- **Source:** [%s](%s)\n", f.SourceLabel, f.SourceURL)
	case f.SourceURL != "":
		fmt.Fprintf(b, "- **Source:** %s\n", f.SourceURL)
	case f.SourceLabel != "":
		fmt.Fprintf(b, "- **Source:** %s\n", f.SourceLabel)
	}
	fmt.Fprintf(b, "- **Confidence:** %s\n", f.Confidence)

	if len(f.CalculationSteps) > 0 {
		b.WriteString("\n| Step | Value | Status |\n|---|---|---|\n")
		for _, step := range f.CalculationSteps {
			fmt.Fprintf(b, "| %s | %s | %s |\n", step.Label, step.Value, step.Status)
		}
	}
	if f.Reconciliation != "" {
		fmt.Fprintf(b, "\n> %s\n", f.Reconciliation)
	}
	b.WriteString("\n")
}

// RenderSummary prints a short summary of report to w
func (r *Renderer) RenderSummary(w io.Writer, report *model.Report) {
	state := report.State
	stats := state.Stats

	fmt.Fprintf(w, "\n%s\n", orUntitled(report.Title))
	if state.Phase == model.PhaseError {
		fmt.Fprintf(w, "✗ Audit failed: %s\n", state.Error)
		return
	}

	fmt.Fprintf(w, "Trust score: %d/100 (%s)\n", state.TrustScore, score.Grade(state.TrustScore))
	fmt.Fprintf(w, "Claims: %d extracted, %d verified, %d supported\n", stats.TotalClaims, stats.Verified, stats.Supported)
	fmt.Fprintf(w, "Issues: %d (critical %d, high %d, medium %d, low %d)\n",
		stats.Issues, stats.Critical, stats.High, stats.Medium, stats.Low)

	for i, f := range state.Findings {
		if i >= 5 {
			fmt.Fprintf(w, "  ... and %d more\n", len(state.Findings)-5)
			break
		}
		fmt.Fprintf(w, "  [%s] %s: %s\n", f.Severity, f.Location, f.Summary)
	}
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func orUntitled(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(untitled)"
	}
	return s
}
