// Package worker provides the shared collaborator rate limiter and the pool that
// audits several documents side by side.
package worker

import (
	"context"
	"sync"
)

// Job is a unit of work run by the pool
type Job interface {
	Execute(ctx context.Context) Result
}

// Result is what a job produced
type Result interface {
	GetError() error
}

type indexedJob struct {
	index int
	job   Job
}

type indexedResult struct {
	index  int
	result Result
}

// Pool runs jobs on a fixed number of goroutines and returns results in submission order
type Pool struct {
	workers   int
	jobQueue  chan indexedJob
	results   chan indexedResult
	wg        sync.WaitGroup
	collected chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.Mutex
	submitted int
	byIndex   map[int]Result
	closeOnce sync.Once
}

// NewPool creates a pool whose jobs run under ctx
func NewPool(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Pool{
		workers:   workers,
		jobQueue:  make(chan indexedJob, workers*2),
		results:   make(chan indexedResult, workers*2),
		collected: make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
		byIndex:   make(map[int]Result),
	}
}

// Start launches the workers and the result collector
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	go p.collect()
}

func (p *Pool) collect() {
	defer close(p.collected)
	for ir := range p.results {
		p.mu.Lock()
		p.byIndex[ir.index] = ir.result
		p.mu.Unlock()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case ij, ok := <-p.jobQueue:
			if !ok {
				return
			}
			res := ij.job.Execute(p.ctx)
			select {
			case p.results <- indexedResult{index: ij.index, result: res}:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// Submit queues job. It reports false when the pool was shut down first.
// Submit must not be called concurrently with Wait.
func (p *Pool) Submit(job Job) bool {
	if p.ctx.Err() != nil {
		return false
	}

	p.mu.Lock()
	index := p.submitted
	p.submitted++
	p.mu.Unlock()

	select {
	case <-p.ctx.Done():
		return false
	case p.jobQueue <- indexedJob{index: index, job: job}:
		return true
	}
}

// Wait closes the queue, waits for every queued job and returns the results in
// submission order. Jobs lost to a shutdown leave a nil entry.
func (p *Pool) Wait() []Result {
	close(p.jobQueue)

	p.wg.Wait()
	p.closeResults()
	<-p.collected
	p.cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	results := make([]Result, p.submitted)
	for i, res := range p.byIndex {
		if i < len(results) {
			results[i] = res
		}
	}
	return results
}

// Shutdown stops the workers without waiting for queued jobs
func (p *Pool) Shutdown() {
	p.cancel()
	p.wg.Wait()
	p.closeResults()
}

func (p *Pool) closeResults() {
	p.closeOnce.Do(func() {
		close(p.results)
	})
}
