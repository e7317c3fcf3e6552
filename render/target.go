package render

// This module defines render targets: the entities that decide where a
// renderable's pixels land in the framebuffer. A GroupTarget covers a single
// group and is immutable; a MultiGroupTarget owns an ordered set of group
// snapshots, supports set operations over their ids, and may shrink during
// plan conflict resolution. Groups are copied by value at construction so a
// target never aliases the data store.

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/karlmutch/errors"

	"github.com/tristanseifert/lichtenstein-server/model"
)

// Target maps a rendered pixel sequence into regions of the framebuffer.
type Target interface {
	NumPixels() int
	Inscribe(fb *Framebuffer, token FrameToken, r Renderable) errors.Error

	Lock()
	Unlock()
}

// GroupContainer is the capability of targets composed of persisted groups.
// Set operations work over group ids.
type GroupContainer interface {
	Target

	GroupIDs() []int
	NumGroups() int

	// Contains reports whether the two containers share at least one group
	Contains(other GroupContainer) bool
	// Equal reports whether the two containers cover the same set of groups
	Equal(other GroupContainer) bool
	// Intersect returns the ids present in both containers, ascending
	Intersect(other GroupContainer) []int

	// Mutable reports whether groups can be removed from the container
	Mutable() bool
	// RemoveGroup drops the group with the given id. The caller must hold
	// the target's lock.
	RemoveGroup(id int)
}

// writeGroup copies a renderable's sub-slice into the framebuffer region of
// one group, reversing it when the group is mirrored and attenuating
// intensity by the group's brightness.
func writeGroup(fb *Framebuffer, token FrameToken, g *model.Group, pixels []HSIPixel) errors.Error {
	n := g.NumPixels()
	if len(pixels) < n {
		return ErrOutOfRange
	}

	out := make([]HSIPixel, n)
	for i := 0; i != n; i++ {
		src := i
		if g.Mirrored {
			src = n - 1 - i
		}
		out[i] = pixels[src].Scaled(g.Brightness)
	}

	return fb.Write(token, g.Start, out)
}

// idSet returns the sorted, deduplicated ids of a container.
func idSet(c GroupContainer) []int {
	ids := append([]int{}, c.GroupIDs()...)
	sort.Ints(ids)

	out := ids[:0]
	for i, id := range ids {
		if i == 0 || id != ids[i-1] {
			out = append(out, id)
		}
	}
	return out
}

func intersectIDs(a, b GroupContainer) []int {
	in := map[int]bool{}
	for _, id := range idSet(b) {
		in[id] = true
	}

	out := []int{}
	for _, id := range idSet(a) {
		if in[id] {
			out = append(out, id)
		}
	}
	return out
}

func equalIDs(a, b GroupContainer) bool {
	as, bs := idSet(a), idSet(b)
	if len(as) != len(bs) {
		return false
	}
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

// GroupTarget maps a renderable onto a single group. It is an immutable
// single member container.
type GroupTarget struct {
	group model.Group

	sync.Mutex
}

// NewGroupTarget wraps a value snapshot of the given group.
func NewGroupTarget(g model.Group) *GroupTarget {
	return &GroupTarget{group: g}
}

// Group returns a copy of the wrapped group snapshot.
func (t *GroupTarget) Group() model.Group {
	return t.group
}

// NumPixels returns the length of the wrapped group.
func (t *GroupTarget) NumPixels() int {
	return t.group.NumPixels()
}

// Inscribe writes the renderable's pixels into the group's framebuffer
// range.
func (t *GroupTarget) Inscribe(fb *Framebuffer, token FrameToken, r Renderable) errors.Error {
	return writeGroup(fb, token, &t.group, r.Pixels())
}

// GroupIDs returns the single wrapped group id.
func (t *GroupTarget) GroupIDs() []int {
	return []int{t.group.ID}
}

// NumGroups returns 1.
func (t *GroupTarget) NumGroups() int {
	return 1
}

// Contains reports whether other also covers this target's group.
func (t *GroupTarget) Contains(other GroupContainer) bool {
	return len(intersectIDs(t, other)) != 0
}

// Equal reports whether other covers exactly this target's group.
func (t *GroupTarget) Equal(other GroupContainer) bool {
	return equalIDs(t, other)
}

// Intersect returns the ids shared with other.
func (t *GroupTarget) Intersect(other GroupContainer) []int {
	return intersectIDs(t, other)
}

// Mutable returns false; a single group target cannot shrink.
func (t *GroupTarget) Mutable() bool {
	return false
}

// RemoveGroup is a no-op on an immutable target.
func (t *GroupTarget) RemoveGroup(id int) {}

func (t *GroupTarget) String() string {
	return fmt.Sprintf("GroupTarget{%s}", t.group.String())
}

// MultiGroupTarget maps a renderable onto an ordered set of groups; the
// renderable's pixels are split across the member groups in order.
type MultiGroupTarget struct {
	groups []model.Group

	sync.Mutex
}

// NewMultiGroupTarget wraps value snapshots of the given groups, in order.
func NewMultiGroupTarget(groups []model.Group) *MultiGroupTarget {
	return &MultiGroupTarget{
		groups: append([]model.Group{}, groups...),
	}
}

// Groups returns a copy of the member group snapshots.
func (t *MultiGroupTarget) Groups() []model.Group {
	return append([]model.Group{}, t.groups...)
}

// NumPixels returns the total length over all member groups.
func (t *MultiGroupTarget) NumPixels() int {
	total := 0
	for i := range t.groups {
		total += t.groups[i].NumPixels()
	}
	return total
}

// Inscribe writes consecutive sub-slices of the renderable's pixels into
// each member group's framebuffer range, in container order.
func (t *MultiGroupTarget) Inscribe(fb *Framebuffer, token FrameToken, r Renderable) errors.Error {
	pixels := r.Pixels()

	offset := 0
	for i := range t.groups {
		g := &t.groups[i]
		n := g.NumPixels()

		if offset+n > len(pixels) {
			return ErrOutOfRange
		}
		if err := writeGroup(fb, token, g, pixels[offset:offset+n]); err != nil {
			return err
		}
		offset += n
	}
	return nil
}

// GroupIDs returns the member group ids in container order.
func (t *MultiGroupTarget) GroupIDs() []int {
	ids := make([]int, len(t.groups))
	for i := range t.groups {
		ids[i] = t.groups[i].ID
	}
	return ids
}

// NumGroups returns the member count.
func (t *MultiGroupTarget) NumGroups() int {
	return len(t.groups)
}

// Contains reports whether the two containers share at least one group.
func (t *MultiGroupTarget) Contains(other GroupContainer) bool {
	return len(intersectIDs(t, other)) != 0
}

// Equal reports whether the two containers cover the same set of groups.
func (t *MultiGroupTarget) Equal(other GroupContainer) bool {
	return equalIDs(t, other)
}

// Intersect returns the ids present in both containers, ascending.
func (t *MultiGroupTarget) Intersect(other GroupContainer) []int {
	return intersectIDs(t, other)
}

// Mutable returns true; conflict resolution may remove member groups.
func (t *MultiGroupTarget) Mutable() bool {
	return true
}

// RemoveGroup drops the member group with the given id. The caller must hold
// the target's lock.
func (t *MultiGroupTarget) RemoveGroup(id int) {
	groups := t.groups[:0]
	for _, g := range t.groups {
		if g.ID != id {
			groups = append(groups, g)
		}
	}
	t.groups = groups
}

func (t *MultiGroupTarget) String() string {
	names := make([]string, len(t.groups))
	for i := range t.groups {
		names[i] = t.groups[i].String()
	}
	return fmt.Sprintf("MultiGroupTarget{%s}", strings.Join(names, ", "))
}
