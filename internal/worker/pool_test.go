package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// mockResult implements Result
type mockResult struct {
	err error
}

func (r *mockResult) GetError() error {
	return r.err
}

// mockJob implements Job
type mockJob struct {
	duration  time.Duration
	shouldErr bool
	executed  *int32 // atomic counter
}

func (j *mockJob) Execute(ctx context.Context) Result {
	if j.executed != nil {
		atomic.AddInt32(j.executed, 1)
	}
	if j.duration > 0 {
		select {
		case <-time.After(j.duration):
		case <-ctx.Done():
			return &mockResult{err: ctx.Err()}
		}
	}
	if j.shouldErr {
		return &mockResult{err: errors.New("job failed")}
	}
	return &mockResult{}
}

func TestPool_Execution(t *testing.T) {
	pool := NewPool(2)
	pool.Start()

	var executed int32
	count := 10

	for i := 0; i < count; i++ {
		if !pool.Submit(context.Background(), &mockJob{executed: &executed}) {
			t.Fatalf("submit %d rejected", i)
		}
	}

	results := pool.Wait()

	if len(results) != count {
		t.Errorf("expected %d results, got %d", count, len(results))
	}

	if atomic.LoadInt32(&executed) != int32(count) {
		t.Errorf("expected %d executed jobs, got %d", count, executed)
	}
}

// More jobs than the result buffer holds must not deadlock Wait
func TestPool_ManyJobsSingleWorker(t *testing.T) {
	pool := NewPool(1)
	pool.Start()

	for i := 0; i < 100; i++ {
		pool.Submit(context.Background(), &mockJob{})
	}

	done := make(chan []Result)
	go func() { done <- pool.Wait() }()

	select {
	case results := <-done:
		if len(results) != 100 {
			t.Errorf("expected 100 results, got %d", len(results))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Wait deadlocked")
	}
}

// concurrencyJob tracks max concurrent executions
type concurrencyJob struct {
	start    func()
	end      func()
	duration time.Duration
	ctxErr   *atomic.Value
}

func (j *concurrencyJob) Execute(ctx context.Context) Result {
	if j.start != nil {
		j.start()
	}
	time.Sleep(j.duration)
	if j.ctxErr != nil && ctx.Err() != nil {
		j.ctxErr.Store(ctx.Err())
	}
	if j.end != nil {
		j.end()
	}
	return &mockResult{}
}

func TestPool_Concurrency(t *testing.T) {
	workers := 10
	pool := NewPool(workers)
	pool.Start()

	var current int32
	var maxConcurrent int32
	var completed int32
	var mu sync.Mutex

	totalJobs := 50

	for i := 0; i < totalJobs; i++ {
		pool.Submit(context.Background(), &concurrencyJob{
			start: func() {
				curr := atomic.AddInt32(&current, 1)
				mu.Lock()
				if curr > maxConcurrent {
					maxConcurrent = curr
				}
				mu.Unlock()
			},
			end: func() {
				atomic.AddInt32(&current, -1)
				atomic.AddInt32(&completed, 1)
			},
			duration: 10 * time.Millisecond,
		})
	}

	pool.Wait()

	if atomic.LoadInt32(&completed) != int32(totalJobs) {
		t.Errorf("expected %d completed jobs, got %d", totalJobs, completed)
	}

	mu.Lock()
	max := maxConcurrent
	mu.Unlock()

	if max > int32(workers) {
		t.Errorf("max concurrency %d exceeded workers %d", max, workers)
	}
}

func TestPool_ErrorHandling(t *testing.T) {
	pool := NewPool(2)
	pool.Start()

	pool.Submit(context.Background(), &mockJob{shouldErr: true})
	pool.Submit(context.Background(), &mockJob{shouldErr: false})

	results := pool.Wait()
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	errs := 0
	for _, res := range results {
		if res.GetError() != nil {
			errs++
		}
	}

	if errs != 1 {
		t.Errorf("expected 1 error, got %d", errs)
	}
}

func TestPool_CancelledSubmitKeepsRunningJobs(t *testing.T) {
	pool := NewPool(1)
	pool.Start()

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	var ctxErr atomic.Value

	if !pool.Submit(ctx, &concurrencyJob{
		start:    func() { close(started) },
		duration: 50 * time.Millisecond,
		ctxErr:   &ctxErr,
	}) {
		t.Fatal("first submit rejected")
	}
	<-started
	cancel()

	if pool.Submit(ctx, &mockJob{}) {
		t.Error("submit after cancel should be rejected")
	}

	results := pool.Wait()
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if v := ctxErr.Load(); v != nil {
		t.Errorf("running job saw cancellation: %v", v)
	}
}

func TestPool_CancelledContextNeverDispatches(t *testing.T) {
	pool := NewPool(4)
	pool.Start()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var executed int32
	for i := 0; i < 1000; i++ {
		if pool.Submit(ctx, &mockJob{executed: &executed}) {
			t.Fatalf("submit %d accepted with idle workers after cancel", i)
		}
	}

	if results := pool.Wait(); len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
	if n := atomic.LoadInt32(&executed); n != 0 {
		t.Errorf("expected no executions, got %d", n)
	}
}

type ctxKey struct{}

func TestPool_JobKeepsSubmitValues(t *testing.T) {
	pool := NewPool(1)
	pool.Start()

	var got atomic.Value
	ctx := context.WithValue(context.Background(), ctxKey{}, "lms")
	pool.Submit(ctx, jobFunc(func(ctx context.Context) Result {
		got.Store(ctx.Value(ctxKey{}))
		return &mockResult{}
	}))
	pool.Wait()

	if v, _ := got.Load().(string); v != "lms" {
		t.Errorf("expected submit value %q, got %q", "lms", v)
	}
}

type jobFunc func(ctx context.Context) Result

func (f jobFunc) Execute(ctx context.Context) Result { return f(ctx) }
