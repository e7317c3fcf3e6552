package render

// This module implements the frame pacer. After each frame body it sleeps
// whatever remains of the frame period, compensating for the systematic
// overshoot of the OS sleep with a running mean of (actual - requested)
// sleep time. The observed frame rate is recomputed roughly once a second
// from the count of completed frames.

import (
	"sync"
	"time"

	logxi "github.com/mgutz/logxi/v1"
)

var pacerLog = logxi.New("render.pacer")

type pacer struct {
	period time.Duration

	// running mean of sleep overshoot in nanoseconds, and its sample count
	bias    float64
	samples float64

	// observed fps accounting
	fpsStart      time.Time
	framesCounter int

	actualMtx sync.Mutex
	actualFps float64
}

func newPacer(fps float64) *pacer {
	return &pacer{
		period:    time.Duration(float64(time.Second) / fps),
		actualFps: -1,
		fpsStart:  time.Now(),
	}
}

// Sleep blocks until the next frame is due, given the time the current
// frame's body started.
func (p *pacer) Sleep(startOfFrame time.Time) {
	end := time.Now()

	elapsed := end.Sub(startOfFrame)
	if elapsed > 2*p.period {
		pacerLog.Warn("frame body overran its period",
			"elapsed", elapsed.String(), "period", p.period.String())
	}

	requested := float64(p.period) - float64(elapsed) - p.bias

	p.computeActualFps()

	if requested <= 0 {
		return
	}

	time.Sleep(time.Duration(requested))

	actual := float64(time.Since(end))
	p.compensate(requested, actual)
}

// compensate folds one (requested, actual) sleep sample into the running
// mean overshoot.
//
// This does not handle sudden lag spikes very well, but it is unbiased in
// steady state.
func (p *pacer) compensate(requested, actual float64) {
	difference := actual - requested

	newAvg := ((p.bias * p.samples) + difference) / (p.samples + 1)

	p.bias = newAvg
	p.samples++
}

// computeActualFps counts completed frames and extrapolates the observed
// rate over each one second span.
func (p *pacer) computeActualFps() {
	p.framesCounter++

	difference := time.Since(p.fpsStart)
	if difference >= time.Second {
		actual := float64(p.framesCounter) / difference.Seconds()

		p.actualMtx.Lock()
		p.actualFps = actual
		p.actualMtx.Unlock()

		p.framesCounter = 0
		p.fpsStart = time.Now()
	}
}

// ActualFps returns the most recently observed frame rate, or -1 before the
// first measurement window has completed.
func (p *pacer) ActualFps() float64 {
	p.actualMtx.Lock()
	defer p.actualMtx.Unlock()

	return p.actualFps
}
