package render

// This module implements the framebuffer all rendering output lands in. The
// buffer holds one committed generation that readers see, and a working copy
// that an open frame's render jobs write into. Closing the frame copies the
// working buffer over the committed one in a single critical section, so a
// reader observes either the previous generation or the new one, never a mix
// of both.

import (
	"sync"

	"github.com/karlmutch/errors"
)

// FrameToken identifies one open generation of writes to the framebuffer. It
// is handed out by StartFrame and consumed by EndFrame.
type FrameToken struct {
	gen uint64
}

// Generation returns the generation number this token was issued for.
func (t FrameToken) Generation() uint64 {
	return t.gen
}

// Framebuffer is a fixed capacity pixel buffer with generational frame
// tokens. Many writers may fill the working buffer while a frame is open;
// readers always see the last committed generation.
type Framebuffer struct {
	// guards the committed buffer against readers during the commit copy
	mtx sync.RWMutex
	buf []HSIPixel

	// guards the frame open/close state
	frameMtx sync.Mutex
	open     bool
	gen      uint64

	work []HSIPixel

	subs frameSubs
}

// NewFramebuffer allocates a framebuffer holding numPixels pixels, all set
// to the zero pixel.
func NewFramebuffer(numPixels int) *Framebuffer {
	return &Framebuffer{
		buf:  make([]HSIPixel, numPixels),
		work: make([]HSIPixel, numPixels),
	}
}

// Size returns the fixed pixel capacity of the framebuffer.
func (fb *Framebuffer) Size() int {
	return len(fb.buf)
}

// Generation returns the generation number of the most recently committed
// frame.
func (fb *Framebuffer) Generation() uint64 {
	fb.frameMtx.Lock()
	defer fb.frameMtx.Unlock()

	return fb.gen
}

// StartFrame opens a new generation for writing. The working buffer starts
// out as a copy of the committed one so regions no render job touches carry
// forward. Fails with ErrBusyFrame if a previous token is still open.
func (fb *Framebuffer) StartFrame() (token FrameToken, err errors.Error) {
	fb.frameMtx.Lock()
	defer fb.frameMtx.Unlock()

	if fb.open {
		return FrameToken{}, ErrBusyFrame
	}

	fb.mtx.RLock()
	copy(fb.work, fb.buf)
	fb.mtx.RUnlock()

	fb.open = true
	return FrameToken{gen: fb.gen + 1}, nil
}

// Write copies pixels into the working buffer at the given absolute offset.
// The token must belong to the currently open generation. Writers for one
// frame may run concurrently as long as their ranges are disjoint.
func (fb *Framebuffer) Write(token FrameToken, offset int, pixels []HSIPixel) (err errors.Error) {
	fb.frameMtx.Lock()
	ok := fb.open && token.gen == fb.gen+1
	fb.frameMtx.Unlock()

	if !ok {
		return ErrInvalidToken
	}

	if offset < 0 || offset+len(pixels) > len(fb.work) {
		return ErrOutOfRange
	}

	copy(fb.work[offset:], pixels)
	return nil
}

// EndFrame closes the generation the token belongs to, making its writes
// visible to readers, and notifies frame subscribers.
func (fb *Framebuffer) EndFrame(token FrameToken) (err errors.Error) {
	fb.frameMtx.Lock()
	defer fb.frameMtx.Unlock()

	if !fb.open || token.gen != fb.gen+1 {
		return ErrInvalidToken
	}

	fb.mtx.Lock()
	copy(fb.buf, fb.work)
	fb.mtx.Unlock()

	fb.open = false
	fb.gen = token.gen

	fb.subs.notify(fb.gen)
	return nil
}

// Read returns a snapshot of the most recently committed generation for the
// given range.
func (fb *Framebuffer) Read(offset, count int) (pixels []HSIPixel, err errors.Error) {
	if offset < 0 || count < 0 || offset+count > len(fb.buf) {
		return nil, ErrOutOfRange
	}

	pixels = make([]HSIPixel, count)

	fb.mtx.RLock()
	copy(pixels, fb.buf[offset:offset+count])
	fb.mtx.RUnlock()

	return pixels, nil
}

// Subscribe adds a channel that receives the generation number of every
// subsequently committed frame.
func (fb *Framebuffer) Subscribe(sub chan uint64) {
	fb.subs.add(sub)
}
