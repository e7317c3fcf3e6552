package render

// This module defines the renderable capability. A renderable produces one
// vector of pixels per frame through a prepare/render/finish lifecycle; the
// pipeline holds its lock across each lifecycle call so that plan conflict
// resolution can quiesce it between frames.

import (
	"sync"

	"github.com/karlmutch/errors"
)

// Renderable is an entity that fills a pixel buffer once per frame.
//
// Prepare is called on the frame thread before any render job of the frame
// begins; Render is called exactly once per frame on a worker thread and
// must fully populate Pixels() at its current size; Finish is called on the
// frame thread after all render jobs have joined. All three run with the
// renderable's own lock held by the caller. Resize may be called from the
// plan mutation path, also under the lock.
type Renderable interface {
	Prepare()
	Render() errors.Error
	Finish()

	Resize(numPixels int)
	Size() int
	Pixels() []HSIPixel

	Lock()
	Unlock()
}

// BaseRenderable carries the buffer and lock every renderable needs, plus
// no-op lifecycle hooks. Concrete effects embed it and override Render, and
// Prepare or Finish when they keep per frame state.
type BaseRenderable struct {
	buf []HSIPixel

	sync.Mutex
}

// Init allocates the pixel buffer. Concrete renderables call this from
// their constructors.
func (b *BaseRenderable) Init(numPixels int) {
	b.buf = make([]HSIPixel, numPixels)
}

// Prepare is a no-op for renderables without per frame setup.
func (b *BaseRenderable) Prepare() {}

// Finish is a no-op for renderables without per frame teardown.
func (b *BaseRenderable) Finish() {}

// Resize changes the pixel buffer to hold numPixels pixels. The caller must
// hold the renderable's lock.
func (b *BaseRenderable) Resize(numPixels int) {
	if numPixels == len(b.buf) {
		return
	}

	buf := make([]HSIPixel, numPixels)
	copy(buf, b.buf)
	b.buf = buf
}

// Size returns the current length of the pixel buffer.
func (b *BaseRenderable) Size() int {
	return len(b.buf)
}

// Pixels returns the renderable's pixel buffer. Valid only while the lock is
// held.
func (b *BaseRenderable) Pixels() []HSIPixel {
	return b.buf
}
