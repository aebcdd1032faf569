package worker

import (
	"context"
	"sync"

	"github.com/ppiankov/eramap/internal/model"
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

// Pool manages a pool of workers that execute jobs concurrently
type Pool struct {
	workers    int
	jobQueue   chan Job
	results    chan Result
	collector  *ResultCollector
	collected  chan struct{}
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	closeOnce  sync.Once
}

// NewPool creates a new worker pool with the specified number of workers
func NewPool(workers int) *Pool {
	return NewPoolWithContext(context.Background(), workers)
}

// NewPoolWithContext creates a pool whose jobs observe ctx
func NewPoolWithContext(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Pool{
		workers:    workers,
		jobQueue:   make(chan Job, workers*2),
		results:    make(chan Result, workers*2),
		collector:  NewResultCollector(),
		collected:  make(chan struct{}),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start starts the workers and the result collector
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	// Results are drained as they arrive so Submit never waits on Wait
	go func() {
		defer close(p.collected)
		for result := range p.results {
			p.collector.Add(result)
		}
	}()
}

// worker is the worker goroutine that processes jobs
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}
			result := job.Execute(p.ctx)
			select {
			case p.results <- result:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// Submit submits a job to the pool for execution
func (p *Pool) Submit(job Job) {
	select {
	case <-p.ctx.Done():
		return
	case p.jobQueue <- job:
	}
}

// Wait waits for all submitted jobs to complete and returns their results
// in completion order
func (p *Pool) Wait() []Result {
	close(p.jobQueue)
	p.wg.Wait()
	p.closeResults()
	<-p.collected
	p.cancelFunc()
	return p.collector.Results()
}

// Shutdown stops the pool without waiting for queued jobs
func (p *Pool) Shutdown() {
	p.cancelFunc()
	p.wg.Wait()
	p.closeResults()
	<-p.collected
}

func (p *Pool) closeResults() {
	p.closeOnce.Do(func() {
		close(p.results)
	})
}

// ResultCollector provides a safer way to collect results as they arrive
type ResultCollector struct {
	results []Result
	mu      sync.Mutex
}

// NewResultCollector creates a new result collector
func NewResultCollector() *ResultCollector {
	return &ResultCollector{
		results: make([]Result, 0),
	}
}

// Add adds a result to the collector (thread-safe)
func (c *ResultCollector) Add(result Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, result)
}

// Results returns all collected results
func (c *ResultCollector) Results() []Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Result, len(c.results))
	copy(out, c.results)
	return out
}

// InferJob runs one inference query
type InferJob struct {
	Index   int
	Query   model.InferenceQuery
	Inferer Inferer
}

// Execute executes the inference job
func (j *InferJob) Execute(ctx context.Context) Result {
	return &InferResult{
		Index:  j.Index,
		Query:  j.Query,
		Result: j.Inferer.Infer(ctx, j.Query),
	}
}

// InferResult is the outcome of an InferJob
type InferResult struct {
	Index  int
	Query  model.InferenceQuery
	Result model.InferenceResult
}

// GetError returns ErrUnresolved when no countries were found
func (r *InferResult) GetError() error {
	if !r.Result.Resolved() {
		return ErrUnresolved
	}
	return nil
}

// InferAll resolves queries on a bounded pool and returns results in query
// order. Entries for queries never started because ctx ended are nil.
func InferAll(ctx context.Context, inferer Inferer, queries []model.InferenceQuery, workers int) []*InferResult {
	if len(queries) == 0 {
		return []*InferResult{}
	}

	pool := NewPoolWithContext(ctx, workers)
	pool.Start()
	for i, q := range queries {
		pool.Submit(&InferJob{Index: i, Query: q, Inferer: inferer})
	}

	out := make([]*InferResult, len(queries))
	for _, res := range pool.Wait() {
		r := res.(*InferResult)
		out[r.Index] = r
	}
	return out
}
