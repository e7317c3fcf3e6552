package render

// This module implements the render plan: the ordered mapping from targets
// to renderables that the frame loop snapshots every frame. Insertion
// resolves spatial conflicts so that no group is ever driven by two entries
// at once; the whole mutation runs under the plan lock.

import (
	"fmt"
	"strings"
	"sync"

	"github.com/karlmutch/errors"

	logxi "github.com/mgutz/logxi/v1"

	"github.com/tristanseifert/lichtenstein-server/model"
)

var planLog = logxi.New("render.plan")

// Entry is one target to renderable binding of the plan.
type Entry struct {
	Target     Target
	Renderable Renderable
}

// Plan is the current mapping of targets to renderables. Iteration order is
// an implementation detail and never observable externally.
type Plan struct {
	entries []Entry

	sync.Mutex
}

// NewPlan returns an empty plan.
func NewPlan() *Plan {
	return &Plan{}
}

// Add inserts the target to renderable binding, resolving conflicts with
// existing group container entries first. On an unresolvable conflict the
// plan is left unchanged.
//
// Conflicts are handled per existing container entry sharing a group with
// the input: an entry covering the identical group set is replaced; a
// mutable entry loses the shared groups and its renderable is resized to
// match (or the entry is dropped once empty); an immutable single group
// entry is dropped; anything else fails.
func (p *Plan) Add(r Renderable, t Target) (err errors.Error) {
	if r == nil || t == nil {
		return ErrInvalidArg
	}
	if t.NumPixels() <= 0 {
		return ErrInvalidArg
	}

	p.Lock()
	defer p.Unlock()

	inContainer, ok := t.(GroupContainer)
	if !ok {
		// not a container; conflicts cannot be detected, insert by identity
		planLog.Warn("inserting non-container render target", "target", fmt.Sprintf("%p", t))

		for i := range p.entries {
			if p.entries[i].Target == t {
				p.entries[i].Renderable = r
				return nil
			}
		}
		p.entries = append(p.entries, Entry{Target: t, Renderable: r})
		return nil
	}

	// first pass: make sure every conflict is resolvable before touching
	// anything, so a failed add leaves the plan unchanged
	for i := range p.entries {
		c, ok := p.entries[i].Target.(GroupContainer)
		if !ok || !c.Contains(inContainer) {
			continue
		}
		if !c.Equal(inContainer) && !c.Mutable() && c.NumGroups() != 1 {
			planLog.Debug("immutable container, cannot satisfy mapping")
			return ErrUnresolvableConflict
		}
	}

	kept := p.entries[:0]
	for _, entry := range p.entries {
		c, ok := entry.Target.(GroupContainer)
		if !ok || !c.Contains(inContainer) {
			kept = append(kept, entry)
			continue
		}

		planLog.Debug("conflict between input and existing entry",
			"existing", fmt.Sprintf("%v", entry.Target))

		// identical group set: drop the old entry outright
		if c.Equal(inContainer) {
			continue
		}

		if c.Mutable() {
			// shrink the existing container by the shared groups
			intersection := c.Intersect(inContainer)

			entry.Target.Lock()
			for _, id := range intersection {
				c.RemoveGroup(id)
			}
			entry.Target.Unlock()

			// dropping the shared groups may have emptied it
			if entry.Target.NumPixels() == 0 {
				continue
			}

			entry.Renderable.Lock()
			entry.Renderable.Resize(entry.Target.NumPixels())
			entry.Renderable.Unlock()

			kept = append(kept, entry)
			continue
		}

		// immutable single group container: replace it
		if c.NumGroups() == 1 {
			continue
		}

		// unreachable, the validation pass rejected this case
		kept = append(kept, entry)
	}

	p.entries = append(kept, Entry{Target: t, Renderable: r})
	return nil
}

// Remove erases the binding for the given target. Fails with ErrNotFound if
// the target is not in the plan.
func (p *Plan) Remove(t Target) (err errors.Error) {
	if t == nil {
		return ErrInvalidArg
	}

	p.Lock()
	defer p.Unlock()

	for i := range p.entries {
		if p.entries[i].Target == t {
			p.entries = append(p.entries[:i], p.entries[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// FindContainer returns the container target covering exactly the given set
// of group ids, or nil if no such entry exists.
func (p *Plan) FindContainer(ids []int) Target {
	probe := &MultiGroupTarget{}
	for _, id := range ids {
		probe.groups = append(probe.groups, model.Group{ID: id})
	}

	p.Lock()
	defer p.Unlock()

	for i := range p.entries {
		if c, ok := p.entries[i].Target.(GroupContainer); ok && c.Equal(probe) {
			return p.entries[i].Target
		}
	}
	return nil
}

// Snapshot returns a copy of the plan entries for one frame's use.
func (p *Plan) Snapshot() []Entry {
	p.Lock()
	defer p.Unlock()

	return append([]Entry{}, p.entries...)
}

// Len returns the number of entries in the plan.
func (p *Plan) Len() int {
	p.Lock()
	defer p.Unlock()

	return len(p.entries)
}

// Dump returns a human readable listing of the plan.
func (p *Plan) Dump() string {
	p.Lock()
	defer p.Unlock()

	lines := make([]string, 0, len(p.entries))
	for _, entry := range p.entries {
		lines = append(lines, fmt.Sprintf("%20v -> %p (%d pixels)",
			entry.Target, entry.Renderable, entry.Target.NumPixels()))
	}
	return strings.Join(lines, "\n")
}
