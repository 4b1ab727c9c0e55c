package audit

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/factaudit/internal/classify"
	"github.com/ppiankov/factaudit/internal/model"
	"github.com/ppiankov/factaudit/internal/score"
	"go.uber.org/zap"
)

var (
	// ErrNoClaimsFound ends an audit whose document yielded nothing to verify
	ErrNoClaimsFound = errors.New("no verifiable claims found in document")

	// ErrEmptyDocument is returned before extraction when there is no text to audit
	ErrEmptyDocument = errors.New("document has no text")

	// ErrRunAbandoned is returned when a newer run or a reset replaced this one
	ErrRunAbandoned = errors.New("audit run abandoned")
)

// Extractor turns document text into ordered claims
type Extractor interface {
	Extract(ctx context.Context, title, text string) ([]model.Claim, error)
}

// Verifier verifies one claim. A nil record with an error means verification failed outright.
type Verifier interface {
	Verify(ctx context.Context, claimText string) (*model.VerificationRecord, error)
}

// Loader produces the document for a file path or URL
type Loader interface {
	Load(ctx context.Context, source string) (*model.Document, error)
}

// Result holds what a run produced besides the session state
type Result struct {
	Claims  []model.Claim
	Records []*model.VerificationRecord // Parallel to Claims, nil where verification failed
	Score   model.ScoreBreakdown
	Elapsed time.Duration
}

// Orchestrator runs audits against the extraction and verification collaborators
type Orchestrator struct {
	extractor Extractor
	verifier  Verifier
	loader    Loader
	logger    *zap.Logger
}

// NewOrchestrator creates an orchestrator. loader may be nil when only Run is used.
func NewOrchestrator(extractor Extractor, verifier Verifier, loader Loader, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		extractor: extractor,
		verifier:  verifier,
		loader:    loader,
		logger:    logger,
	}
}

// RunSource loads source through the uploading phase and then audits it
func (o *Orchestrator) RunSource(ctx context.Context, run *Run, source string) (*Result, error) {
	run.Dispatch(UploadStarted{Title: source})
	run.Trace("Loading %s", source)

	if o.loader == nil {
		err := errors.New("no document loader configured")
		o.fail(run, err)
		return &Result{}, err
	}

	doc, err := o.loader.Load(ctx, source)
	if err != nil {
		err = fmt.Errorf("load document: %w", err)
		o.fail(run, err)
		return &Result{}, err
	}
	if !run.Active() {
		return &Result{}, ErrRunAbandoned
	}

	run.Trace("✓ Loaded %s (%d characters)", doc.Title, len(doc.Text))
	return o.Run(ctx, run, *doc)
}

// Run audits doc and publishes every phase change into run.
// The returned error is also reflected in the session as the error phase,
// unless the run was abandoned.
func (o *Orchestrator) Run(ctx context.Context, run *Run, doc model.Document) (res *Result, err error) {
	started := time.Now()
	res = &Result{}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("audit failed unexpectedly: %v", r)
			o.logger.Error("audit panicked",
				zap.Uint64("generation", run.Generation()),
				zap.Any("panic", r))
			o.fail(run, err)
		}
		res.Elapsed = time.Since(started)
	}()

	if err := o.run(ctx, run, doc, res); err != nil {
		if !errors.Is(err, ErrRunAbandoned) {
			o.fail(run, err)
		}
		return res, err
	}

	return res, nil
}

func (o *Orchestrator) run(ctx context.Context, run *Run, doc model.Document, res *Result) error {
	log := o.logger.With(zap.Uint64("generation", run.Generation()), zap.String("title", doc.Title))

	// 1. Extract
	run.Dispatch(ExtractionStarted{Title: doc.Title, Text: doc.Text})
	if strings.TrimSpace(doc.Text) == "" {
		return ErrEmptyDocument
	}

	run.Trace("Extracting claims from %q", doc.Title)
	claims, err := o.extractor.Extract(ctx, doc.Title, doc.Text)
	if err != nil {
		return fmt.Errorf("extract claims: %w", err)
	}
	if !run.Active() {
		return ErrRunAbandoned
	}
	if len(claims) == 0 {
		return ErrNoClaimsFound
	}

	res.Claims = claims
	total := len(claims)
	log.Info("claims extracted", zap.Int("claims", total))
	run.Trace("✓ Extracted %d claims", total)
	run.Dispatch(ClaimsExtracted{Total: total})

	// 2. Verify, one claim at a time
	records := make([]*model.VerificationRecord, total)
	res.Records = records

	for i, claim := range claims {
		if !run.Active() {
			return ErrRunAbandoned
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("verify claims: %w", err)
		}

		run.Dispatch(VerificationProgress{Current: i + 1, Total: total})

		rec, err := o.verifier.Verify(ctx, claim.Text())
		if err != nil {
			log.Warn("claim verification failed", zap.Int("claim", i+1), zap.Error(err))
			run.Trace("✗ Claim %d: verification failed: %v", i+1, err)
			continue
		}

		records[i] = rec
		run.Trace("%s", traceLine(i, rec))
	}

	if !run.Active() {
		return ErrRunAbandoned
	}

	// 3. Analyze
	run.Dispatch(AnalysisStarted{})
	findings, stats := Analyze(claims, records)

	// 4. Score
	res.Score = score.Breakdown(stats)
	log.Info("audit complete",
		zap.Int("verified", stats.Verified),
		zap.Int("issues", stats.Issues),
		zap.Int("trust_score", res.Score.Score))
	run.Trace("✓ Analysis complete: %d issues in %d verified claims, trust score %d",
		stats.Issues, stats.Verified, res.Score.Score)

	if !run.Dispatch(Completed{Findings: findings, Stats: stats, TrustScore: res.Score.Score}) {
		return ErrRunAbandoned
	}

	return nil
}

func (o *Orchestrator) fail(run *Run, err error) {
	o.logger.Warn("audit failed", zap.Uint64("generation", run.Generation()), zap.Error(err))
	run.Trace("✗ %v", err)
	run.Dispatch(Failed{Message: err.Error()})
}

// Analyze classifies every verified claim and returns the severity-sorted findings
// with the resulting stats. records must be parallel to claims; nil records count
// toward the total only.
func Analyze(claims []model.Claim, records []*model.VerificationRecord) ([]model.Finding, model.AuditStats) {
	stats := model.AuditStats{TotalClaims: len(claims)}
	findings := []model.Finding{}

	for i, rec := range records {
		if rec == nil || i >= len(claims) {
			continue
		}
		stats.Verified++

		if rec.EffectiveVerdict() == model.VerdictSupported && !classify.HasOverride(rec) {
			stats.Supported++
			continue
		}

		f := classify.Classify(i, claims[i].Text(), rec)
		if f == nil {
			stats.Supported++
			continue
		}

		findings = append(findings, *f)
		tally(&stats, *f)
	}

	SortFindings(findings)
	return findings, stats
}

// SortFindings orders findings critical first, keeping claim order within a severity
func SortFindings(findings []model.Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Severity.Rank() < findings[j].Severity.Rank()
	})
}

func tally(stats *model.AuditStats, f model.Finding) {
	stats.Issues++

	switch f.Severity {
	case model.SeverityCritical:
		stats.Critical++
	case model.SeverityHigh:
		stats.High++
	case model.SeverityMedium:
		stats.Medium++
	default:
		stats.Low++
	}

	switch f.IssueType {
	case model.IssueStaleSource:
		stats.Stale++
	case model.IssueMathError:
		stats.MathErrors++
	case model.IssueCitationMismatch:
		stats.CitationMismatches++
	case model.IssueMaterialOmission:
		stats.Omissions++
	}
}

func traceLine(i int, rec *model.VerificationRecord) string {
	verdict := string(rec.EffectiveVerdict())
	if verdict == "" {
		verdict = "no verdict"
	}

	mark := "✓"
	if rec.EffectiveVerdict() != model.VerdictSupported || classify.HasOverride(rec) {
		mark = "!"
	}

	line := fmt.Sprintf("%s Claim %d: %s (%d evidence", mark, i+1, verdict, len(rec.Evidence))
	if n := len(rec.Contradictions); n > 0 {
		line += fmt.Sprintf(", %d contradictions", n)
	}
	return line + ")"
}
