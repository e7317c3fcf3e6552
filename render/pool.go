package render

// This module implements the bounded worker pool render jobs are dispatched
// to. Submission blocks until a worker picks the job up; each submission
// returns a channel that closes when the job has run, which the frame loop
// uses as its join barrier. Stopping the pool lets jobs already accepted run
// to completion.

import (
	"sync"

	logxi "github.com/mgutz/logxi/v1"
)

var poolLog = logxi.New("render.pool")

type poolJob struct {
	run  func()
	done chan struct{}
}

type workerPool struct {
	jobs chan poolJob

	wg sync.WaitGroup
}

// newWorkerPool spins up numWorkers goroutines consuming the job channel.
// The pipeline enforces numWorkers >= 1 before getting here; a zero size
// pool would deadlock the frame loop.
func newWorkerPool(numWorkers int) *workerPool {
	p := &workerPool{
		jobs: make(chan poolJob),
	}

	for i := 0; i != numWorkers; i++ {
		p.wg.Add(1)
		go p.workerEntry(i)
	}
	return p
}

func (p *workerPool) workerEntry(id int) {
	defer p.wg.Done()

	for job := range p.jobs {
		p.runOne(id, job)
	}
}

// runOne executes a single job. The done channel closes no matter how the
// job ends so the frame barrier is always reached.
func (p *workerPool) runOne(id int, job poolJob) {
	defer close(job.done)

	defer func() {
		if r := recover(); r != nil {
			poolLog.Error("render job panicked", "worker", id, "panic", r)
		}
	}()

	job.run()
}

// Submit hands a job to the pool, blocking until a worker is free. The
// returned channel closes once the job has run.
func (p *workerPool) Submit(fn func()) <-chan struct{} {
	job := poolJob{
		run:  fn,
		done: make(chan struct{}),
	}
	p.jobs <- job
	return job.done
}

// Stop shuts the pool down. Jobs already accepted are allowed to complete;
// Stop returns once all workers have exited.
func (p *workerPool) Stop() {
	close(p.jobs)
	p.wg.Wait()
}
