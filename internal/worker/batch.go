package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/factaudit/internal/model"
)

// Auditor audits one document given by file path or URL
type Auditor interface {
	AuditSource(ctx context.Context, source string) (*model.Report, error)
}

// DocumentJob audits one source
type DocumentJob struct {
	Source  string
	Auditor Auditor
}

// Execute runs the audit
func (j *DocumentJob) Execute(ctx context.Context) Result {
	report, err := j.Auditor.AuditSource(ctx, j.Source)
	return &DocumentResult{
		Source: j.Source,
		Report: report,
		Error:  err,
	}
}

// DocumentResult is the outcome of one document audit. Report may be set even when
// Error is, for audits that ended in the error phase.
type DocumentResult struct {
	Source string
	Report *model.Report
	Error  error
}

// GetError returns the audit error
func (r *DocumentResult) GetError() error {
	return r.Error
}

// BatchProcessor audits several documents in parallel. Each document is still audited
// by a single sequential run; only whole documents overlap.
type BatchProcessor struct {
	auditor     Auditor
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(auditor Auditor, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		auditor:     auditor,
		concurrency: concurrency,
	}
}

// ProcessSources audits every source and returns results in input order
func (b *BatchProcessor) ProcessSources(ctx context.Context, sources []string) []*DocumentResult {
	if len(sources) == 0 {
		return []*DocumentResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for _, source := range sources {
		pool.Submit(&DocumentJob{
			Source:  source,
			Auditor: b.auditor,
		})
	}

	results := pool.Wait()

	out := make([]*DocumentResult, len(sources))
	for i := range sources {
		if i < len(results) && results[i] != nil {
			out[i] = results[i].(*DocumentResult)
			continue
		}
		err := context.Cause(ctx)
		if err == nil {
			err = context.Canceled
		}
		out[i] = &DocumentResult{Source: sources[i], Error: fmt.Errorf("audit not run: %w", err)}
	}

	return out
}

// ProcessFile reads sources from a file and audits them
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*DocumentResult, error) {
	sources, err := ReadSourcesFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read sources: %w", err)
	}

	return b.ProcessSources(ctx, sources), nil
}

// ReadSourcesFromFile reads one file path or URL per line, skipping blanks,
// comments and duplicates
func ReadSourcesFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var sources []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !seen[line] {
			seen[line] = true
			sources = append(sources, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return sources, nil
}
