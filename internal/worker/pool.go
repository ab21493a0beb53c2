// Package worker runs combinations concurrently and paces outbound
// requests.
package worker

import (
	"context"
	"sync"
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

// Pool runs jobs on a fixed number of workers. A job keeps the values of
// the context it was submitted with but not its cancellation, so cancelling
// a run stops dispatch without interrupting jobs already running.
type Pool struct {
	workers   int
	jobQueue  chan submission
	results   chan Result
	done      []Result
	collected chan struct{}
	wg        sync.WaitGroup
}

type submission struct {
	ctx context.Context
	job Job
}

// NewPool creates a new worker pool with the specified number of workers
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	return &Pool{
		workers:   workers,
		jobQueue:  make(chan submission),
		results:   make(chan Result, workers),
		collected: make(chan struct{}),
	}
}

// Start starts the workers and the result collector
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	go func() {
		defer close(p.collected)
		for result := range p.results {
			p.done = append(p.done, result)
		}
	}()
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for s := range p.jobQueue {
		p.results <- s.job.Execute(context.WithoutCancel(s.ctx))
	}
}

// Submit blocks until a worker takes the job. It returns false without
// submitting once ctx is done. Submit must not be called after Wait.
func (p *Pool) Submit(ctx context.Context, job Job) bool {
	if ctx.Err() != nil {
		return false
	}

	select {
	case <-ctx.Done():
		return false
	case p.jobQueue <- submission{ctx: ctx, job: job}:
		return true
	}
}

// Wait lets running jobs finish and returns every result
func (p *Pool) Wait() []Result {
	close(p.jobQueue)
	p.wg.Wait()
	close(p.results)
	<-p.collected
	return p.done
}
