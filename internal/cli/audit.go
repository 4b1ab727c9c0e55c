package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ppiankov/factaudit/internal/audit"
	"github.com/ppiankov/factaudit/internal/model"
	"github.com/ppiankov/factaudit/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	outJSON      string
	outMD        string
	auditTimeout time.Duration
	docTitle     string
	noCache      bool
	noFooter     bool
	noTrace      bool
	extractorURL string
	verifierURL  string
	llmEnabled   bool
	llmProvider  string
	llmModel     string
)

// auditCmd represents the audit command
var auditCmd = &cobra.Command{
	Use:   "audit <file|url|->",
	Short: "Audit the factual claims of one document",
	Long: `Audit runs one document through the full pipeline:
- Load the document (.txt, .md, .html file, http(s) URL, or - for stdin)
- Extract verifiable claims
- Verify each claim against retrieved evidence, one at a time
- Classify discrepancies into severity-ranked findings
- Compute the trust score

Example:
  factaudit audit memo.md
  factaudit audit https://example.com/press-release --json report.json --md report.md
  cat memo.txt | factaudit audit - --title "Q3 memo"
  factaudit audit memo.md --llm --llm-provider ollama --llm-model llama3.1`,
	Args: cobra.ExactArgs(1),
	RunE: runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)

	// Output flags
	auditCmd.Flags().StringVar(&outJSON, "json", "report.json", "output JSON path (empty to skip)")
	auditCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")
	auditCmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")
	auditCmd.Flags().BoolVar(&noTrace, "no-trace", false, "omit the processing trace from Markdown reports")

	auditCmd.Flags().DurationVar(&auditTimeout, "timeout", 15*time.Minute, "overall audit timeout")
	auditCmd.Flags().StringVar(&docTitle, "title", "", "document title when reading from stdin")
	auditCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the extraction cache")
	auditCmd.Flags().StringVar(&extractorURL, "extractor-url", "", "base URL of the extraction service")
	auditCmd.Flags().StringVar(&verifierURL, "verifier-url", "", "base URL of the verification service")

	// LLM flags
	auditCmd.Flags().BoolVar(&llmEnabled, "llm", false, "enable LLM summary generation")
	auditCmd.Flags().StringVar(&llmProvider, "llm-provider", "openai", "LLM provider (openai, ollama)")
	auditCmd.Flags().StringVar(&llmModel, "llm-model", "gpt-4o-mini", "LLM model name")
}

// applyFlags overlays command-line flags on top of the loaded configuration
func applyFlags(cmd *cobra.Command, cfg *model.Config) error {
	if noCache {
		cfg.Cache.Enabled = false
	}
	if noFooter {
		cfg.Output.IncludeFooter = false
	}
	if noTrace {
		cfg.Output.IncludeTrace = false
	}
	if extractorURL != "" {
		cfg.Extractor.BaseURL = extractorURL
	}
	if verifierURL != "" {
		cfg.Verifier.BaseURL = verifierURL
	}
	cfg.Output.Verbose = verbose

	if llmEnabled {
		cfg.LLM.Provider = llmProvider
		if cmd.Flags().Changed("llm-model") || cfg.LLM.Model == "" {
			cfg.LLM.Model = llmModel
		}
		cfg.LLM.StrictEvidence = true

		switch llmProvider {
		case "openai":
			if cfg.LLM.APIKey == "" {
				cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
			}
			if cfg.LLM.APIKey == "" {
				return fmt.Errorf("OPENAI_API_KEY environment variable not set")
			}
		case "ollama":
			if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" && cfg.LLM.BaseURL == "" {
				cfg.LLM.BaseURL = baseURL
			}
		}
	}

	return nil
}

func runAudit(cmd *cobra.Command, args []string) error {
	source := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return err
	}

	logger := newLogger(verbose)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), auditTimeout)
	defer cancel()

	in := pipeline.Input{Source: source}
	if source == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		in = pipeline.Input{Title: docTitle, Text: string(data)}
		if in.Title == "" {
			in.Title = "stdin"
		}
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Auditing: %s\n", source)
		fmt.Fprintf(os.Stderr, "Extractor: %s\n", cfg.Extractor.URL())
		fmt.Fprintf(os.Stderr, "Verifier: %s\n", cfg.Verifier.URL())
		fmt.Fprintf(os.Stderr, "Cache: %v\n\n", cfg.Cache.Enabled)
	}

	session := audit.NewSession()
	printed := 0
	session.OnChange(func(s audit.Snapshot) {
		// Trace is cleared on Begin and only grows afterwards
		if len(s.Trace) < printed {
			printed = 0
		}
		for _, line := range s.Trace[printed:] {
			fmt.Fprintln(os.Stderr, line)
		}
		printed = len(s.Trace)
	})

	p := pipeline.NewPipeline(cfg, logger)
	report, auditErr := p.Audit(ctx, session.Begin(), in)
	if report == nil {
		return fmt.Errorf("audit failed: %w", auditErr)
	}

	if verbose && report.LLM != nil && report.LLM.Enabled {
		fmt.Fprintf(os.Stderr, "✓ Generated LLM summary using %s/%s\n", report.LLM.Provider, report.LLM.Model)
	}

	if err := p.RenderReport(os.Stdout, report, outJSON, outMD, verbose); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}

	if auditErr != nil {
		return fmt.Errorf("audit failed: %w", auditErr)
	}
	return nil
}
