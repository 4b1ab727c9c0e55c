package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/factaudit/internal/audit"
	"github.com/ppiankov/factaudit/internal/cache"
	"github.com/ppiankov/factaudit/internal/extract"
	"github.com/ppiankov/factaudit/internal/ingest"
	"github.com/ppiankov/factaudit/internal/llm"
	"github.com/ppiankov/factaudit/internal/model"
	"github.com/ppiankov/factaudit/internal/score"
	"github.com/ppiankov/factaudit/internal/validate"
	"github.com/ppiankov/factaudit/internal/verify"
	"github.com/ppiankov/factaudit/internal/worker"
	"go.uber.org/zap"
)

// Pipeline wires the collaborators of an audit and turns finished runs into reports
type Pipeline struct {
	orchestrator *audit.Orchestrator
	summarizer   *llm.Summarizer // Optional LLM summarizer (nil if disabled)
	renderer     *Renderer
	config       *model.Config
	logger       *zap.Logger
}

// Input is what one audit starts from: a source to load, or text given directly
type Input struct {
	Source string
	Title  string
	Text   string
}

// NewPipeline creates a new pipeline with the given configuration
func NewPipeline(cfg *model.Config, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}

	limiter := worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)

	extractOpts := []extract.Option{
		extract.WithRateLimiter(limiter),
		extract.WithLogger(logger.Named("extract")),
	}
	if cfg.Cache.Enabled {
		extractOpts = append(extractOpts, extract.WithCache(cache.NewMemoryCache(cfg.Cache.TTL, 2*cfg.Cache.TTL), cfg.Cache.TTL))
	}
	extractor := extract.NewClient(cfg.Extractor, cfg.HTTP, extractOpts...)

	verifier := verify.NewClient(cfg.Verifier, cfg.HTTP, limiter,
		validate.NewAuthorityClassifier(&cfg.Authority), logger.Named("verify"))

	loader := ingest.NewLoader(ingest.NewFetcher(cfg.HTTP), cfg.HTTP.MaxBodyBytes)

	var summarizer *llm.Summarizer
	if cfg.LLM.Provider != "" {
		s, err := llm.NewSummarizer(llm.ConfigFromModel(cfg), logger.Named("llm"))
		if err != nil {
			logger.Warn("failed to initialize LLM provider", zap.Error(err))
		} else {
			summarizer = s
		}
	}

	return &Pipeline{
		orchestrator: audit.NewOrchestrator(extractor, verifier, loader, logger.Named("audit")),
		summarizer:   summarizer,
		renderer:     NewRenderer(cfg.Output.IncludeFooter, cfg.Output.IncludeTrace),
		config:       cfg,
		logger:       logger,
	}
}

// AuditSource audits a file path or URL in a fresh session.
// It satisfies worker.Auditor.
func (p *Pipeline) AuditSource(ctx context.Context, source string) (*model.Report, error) {
	return p.Audit(ctx, audit.NewSession().Begin(), Input{Source: source})
}

// AuditText audits text that is already in memory in a fresh session
func (p *Pipeline) AuditText(ctx context.Context, title, text string) (*model.Report, error) {
	return p.Audit(ctx, audit.NewSession().Begin(), Input{Title: title, Text: text})
}

// Audit drives run through a complete audit of in and builds the report from the
// session afterwards. The report is returned alongside a failure as well, with the
// session in the error phase. An abandoned run returns audit.ErrRunAbandoned and no report.
func (p *Pipeline) Audit(ctx context.Context, run *audit.Run, in Input) (*model.Report, error) {
	var (
		res *audit.Result
		err error
	)
	if in.Source != "" {
		res, err = p.orchestrator.RunSource(ctx, run, in.Source)
	} else {
		res, err = p.orchestrator.Run(ctx, run, model.Document{
			Source: "inline",
			Title:  in.Title,
			Text:   in.Text,
		})
	}
	if errors.Is(err, audit.ErrRunAbandoned) {
		return nil, err
	}

	snap := run.Session().Snapshot()
	if snap.Generation != run.Generation() {
		return nil, audit.ErrRunAbandoned
	}

	report := &model.Report{
		Source:      in.Source,
		Title:       firstNonEmpty(snap.State.DocumentTitle, in.Title, in.Source),
		AuditedAt:   time.Now().UTC(),
		State:       snap.State,
		Score:       res.Score,
		Trace:       snap.Trace,
		Claims:      res.Claims,
		ElapsedTime: res.Elapsed,
	}
	if err != nil {
		// A failed run never reached scoring; describe the state it stopped in
		report.Score = score.Breakdown(snap.State.Stats)
		return report, err
	}

	// LLM summary runs after scoring and never affects it
	if p.summarizer != nil && p.summarizer.IsEnabled() {
		summary, serr := p.summarizer.GenerateSummary(ctx, *report)
		if serr != nil {
			p.logger.Warn("LLM summary generation failed", zap.Error(serr))
		} else if summary != nil {
			report.LLM = summary
		}
	}

	return report, nil
}

// Renderer returns the report renderer configured for this pipeline
func (p *Pipeline) Renderer() *Renderer {
	return p.renderer
}

// RenderReport writes the JSON and Markdown outputs and prints a summary to w
func (p *Pipeline) RenderReport(w io.Writer, report *model.Report, jsonPath, mdPath string, verbose bool) error {
	if jsonPath != "" {
		if err := p.renderer.RenderJSON(report, jsonPath); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote JSON: %s\n", jsonPath)
		}
	}

	if mdPath != "" {
		if err := p.renderer.RenderMarkdown(report, mdPath); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote Markdown: %s\n", mdPath)
		}
	}

	if report.LLM != nil && report.LLM.Enabled && mdPath != "" {
		llmPath := strings.TrimSuffix(mdPath, ".md") + ".llm.md"
		if err := p.renderer.RenderLLMMarkdown(llm.RenderSeparateMarkdown(report.LLM), llmPath); err != nil {
			p.logger.Warn("failed to write LLM summary", zap.String("path", llmPath), zap.Error(err))
		} else if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote LLM Summary: %s\n", llmPath)
		}
	}

	p.renderer.RenderSummary(w, report)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
