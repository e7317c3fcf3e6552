package render

// This module implements the render pipeline orchestrator. A single worker
// goroutine owns the frame loop: snapshot the plan, open a frame, prepare
// every renderable, dispatch one render job per entry to the worker pool,
// join them, finish every renderable, commit the frame, then sleep off the
// remainder of the frame period. The pipeline is a process wide resource
// with an explicit Start/Stop lifecycle.

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/karlmutch/errors"

	logxi "github.com/mgutz/logxi/v1"

	"github.com/tristanseifert/lichtenstein-server/config"
	"github.com/tristanseifert/lichtenstein-server/model"
)

var log = logxi.New("render")

// pipeline lifecycle states
const (
	stateUninitialized int32 = iota
	stateRunning
	stateStopping
	stateStopped
)

// Pipeline owns the framebuffer, plan, worker pool and pacer, and runs the
// frame loop on its own goroutine.
type Pipeline struct {
	fb   *Framebuffer
	plan *Plan

	pool  *workerPool
	pacer *pacer

	targetFps        float64
	numRenderThreads int

	state           int32
	shouldTerminate int32

	totalFrames uint64

	done chan struct{}
}

var (
	sharedInstance *Pipeline
	sharedMtx      sync.Mutex
)

// Start reads configuration, creates the shared pipeline instance and spawns
// its frame loop. Fails with ErrAlreadyRunning if the pipeline is up.
func Start() (err errors.Error) {
	sharedMtx.Lock()
	defer sharedMtx.Unlock()

	if sharedInstance != nil {
		return ErrAlreadyRunning
	}

	p := newPipeline(
		config.GetFloat("render.pipeline.fps", 42),
		int(config.GetUint("render.pipeline.threads", 2)),
		config.GetInt("render.fb.pixels", 150))

	sharedInstance = p
	p.run()
	return nil
}

// Stop tears the shared pipeline down at the earliest opportunity and joins
// its worker.
func Stop() {
	sharedMtx.Lock()
	p := sharedInstance
	sharedInstance = nil
	sharedMtx.Unlock()

	if p == nil {
		log.Error("ignoring repeated render pipeline stop")
		return
	}

	p.terminate()
	<-p.done
}

// Shared returns the running pipeline instance, or nil outside the
// Start/Stop window.
func Shared() *Pipeline {
	sharedMtx.Lock()
	defer sharedMtx.Unlock()

	return sharedInstance
}

// newPipeline assembles a pipeline without starting its frame loop. Thread
// and framebuffer sizes are clamped to sane minimums; a pool of zero workers
// would deadlock the frame loop.
func newPipeline(fps float64, threads int, fbPixels int) *Pipeline {
	if fps <= 0 {
		fps = 42
	}
	if threads < 1 {
		log.Warn("render thread count raised to 1", "requested", threads)
		threads = 1
	}
	if fbPixels < 1 {
		fbPixels = 1
	}

	return &Pipeline{
		fb:               NewFramebuffer(fbPixels),
		plan:             NewPlan(),
		pacer:            newPacer(fps),
		targetFps:        fps,
		numRenderThreads: threads,
		state:            stateUninitialized,
		done:             make(chan struct{}),
	}
}

// run spawns the frame loop goroutine and marks the pipeline running.
func (p *Pipeline) run() {
	log.Debug("pipeline starting", "fps", p.targetFps, "threads", p.numRenderThreads,
		"pixels", p.fb.Size())

	atomic.StoreInt32(&p.state, stateRunning)
	go p.workerEntry()
}

// terminate requests the frame loop stop. The flag is checked only between
// frames so worst case this takes one frame period to honor.
func (p *Pipeline) terminate() {
	if !atomic.CompareAndSwapInt32(&p.shouldTerminate, 0, 1) {
		log.Error("ignoring repeated render pipeline terminate")
		return
	}

	log.Debug("requesting render pipeline termination")
	atomic.StoreInt32(&p.state, stateStopping)
}

// workerEntry is the frame loop. It lets the entire run through the loop
// finish before checking the termination flag.
func (p *Pipeline) workerEntry() {
	defer close(p.done)

	p.pool = newWorkerPool(p.numRenderThreads)

	for atomic.LoadInt32(&p.shouldTerminate) == 0 {
		start := time.Now()

		currentPlan := p.plan.Snapshot()

		if len(currentPlan) != 0 {
			if err := p.renderFrame(currentPlan); err != nil {
				// an open token we never got means a pipeline bug; bail out
				log.Error("frame setup failed, render pipeline terminating", "error", err.Error())
				p.terminate()
				break
			}
		}

		atomic.AddUint64(&p.totalFrames, 1)
		p.pacer.Sleep(start)
	}

	log.Debug("render pipeline is shutting down")

	p.pool.Stop()
	atomic.StoreInt32(&p.state, stateStopped)
}

// renderFrame runs one frame over the given plan snapshot: prepare all,
// render all on the pool, finish all, publish.
func (p *Pipeline) renderFrame(currentPlan []Entry) errors.Error {
	token, err := p.fb.StartFrame()
	if err != nil {
		return err
	}

	for _, entry := range currentPlan {
		entry.Renderable.Lock()
		entry.Renderable.Prepare()
		entry.Renderable.Unlock()
	}

	jobs := make([]<-chan struct{}, 0, len(currentPlan))
	for _, entry := range currentPlan {
		entry := entry
		jobs = append(jobs, p.pool.Submit(func() {
			p.renderOne(entry.Renderable, entry.Target, token)
		}))
	}

	for _, job := range jobs {
		<-job
	}

	for _, entry := range currentPlan {
		entry.Renderable.Lock()
		entry.Renderable.Finish()
		entry.Renderable.Unlock()
	}

	return p.fb.EndFrame(token)
}

// renderOne executes a single entry's render and copies the result into the
// framebuffer. Failures are logged and the entry skipped; the frame always
// continues.
func (p *Pipeline) renderOne(renderable Renderable, target Target, token FrameToken) {
	renderable.Lock()
	defer renderable.Unlock()

	if err := renderable.Render(); err != nil {
		log.Warn("renderable failed, skipping entry for this frame", "error", err.Error())
		return
	}

	if err := target.Inscribe(p.fb, token, renderable); err != nil {
		log.Warn("target inscribe failed", "error", err.Error())
	}
}

// Add inserts a renderable to target binding into the plan, to take effect
// at the next frame snapshot. The renderable is resized to the target's
// pixel count before the plan runs conflict resolution, so it keeps that
// size even when the add fails.
func (p *Pipeline) Add(r Renderable, t Target) (err errors.Error) {
	if atomic.LoadInt32(&p.state) != stateRunning {
		return ErrNotRunning
	}
	if r == nil || t == nil {
		return ErrInvalidArg
	}

	// size the renderable to its target before it becomes visible to the
	// frame loop
	if r.Size() != t.NumPixels() {
		r.Lock()
		r.Resize(t.NumPixels())
		r.Unlock()
	}

	return p.plan.Add(r, t)
}

// AddGroup wraps the group in a single group target and adds the binding,
// returning the created target.
func (p *Pipeline) AddGroup(r Renderable, g model.Group) (t Target, err errors.Error) {
	target := NewGroupTarget(g)
	if err = p.Add(r, target); err != nil {
		return nil, err
	}
	return target, nil
}

// AddGroups builds a multi group target from the given groups and adds the
// binding, returning the created target.
func (p *Pipeline) AddGroups(r Renderable, groups []model.Group) (t Target, err errors.Error) {
	if len(groups) == 0 {
		return nil, ErrInvalidArg
	}

	target := NewMultiGroupTarget(groups)
	if err = p.Add(r, target); err != nil {
		return nil, err
	}
	return target, nil
}

// Remove erases the binding for the given target; the current frame
// completes with its snapshot.
func (p *Pipeline) Remove(t Target) (err errors.Error) {
	if atomic.LoadInt32(&p.state) != stateRunning {
		return ErrNotRunning
	}
	if t == nil {
		return ErrInvalidArg
	}

	return p.plan.Remove(t)
}

// RemoveGroups finds the plan entry covering exactly the given group id set
// and removes it.
func (p *Pipeline) RemoveGroups(ids []int) (err errors.Error) {
	if atomic.LoadInt32(&p.state) != stateRunning {
		return ErrNotRunning
	}
	if len(ids) == 0 {
		return ErrInvalidArg
	}

	target := p.plan.FindContainer(ids)
	if target == nil {
		return ErrNotFound
	}
	return p.plan.Remove(target)
}

// Dump returns a human readable snapshot of the plan.
func (p *Pipeline) Dump() string {
	return p.plan.Dump()
}

// Framebuffer returns the pipeline's framebuffer for output consumers.
func (p *Pipeline) Framebuffer() *Framebuffer {
	return p.fb
}

// TargetFps returns the configured frame rate.
func (p *Pipeline) TargetFps() float64 {
	return p.targetFps
}

// ActualFps returns the observed frame rate, or -1 before the first one
// second measurement window has completed.
func (p *Pipeline) ActualFps() float64 {
	return p.pacer.ActualFps()
}

// TotalFrames returns the number of frame loop iterations since start.
func (p *Pipeline) TotalFrames() uint64 {
	return atomic.LoadUint64(&p.totalFrames)
}
