package render

// This module implements a broadcast mechanism for frame completion events.
// Output workers subscribe a channel and receive the generation number of
// every committed frame; slow subscribers miss generations rather than stall
// the frame thread, and subscribers whose channels have been closed are
// groomed out of the list.

import (
	"sync"
)

type frameSubs struct {
	subs []chan uint64

	sync.Mutex
}

func (s *frameSubs) add(sub chan uint64) {
	if nil == sub {
		return
	}

	s.Lock()
	s.subs = append(s.subs, sub)
	s.Unlock()
}

// notify relays the generation to all subscribers. Subscriptions are groomed
// out on unrecoverable failures using
// https://github.com/golang/go/wiki/SliceTricks#filtering-without-allocating
func (s *frameSubs) notify(gen uint64) {
	s.Lock()
	defer s.Unlock()

	newSubs := s.subs[:0]
	for _, ch := range s.subs {
		func() {
			defer func() {
				recover()
			}()

			select {
			case ch <- gen:
			default:
				// subscriber is lagging, it catches the next frame
			}
			newSubs = append(newSubs, ch)
		}()
	}
	s.subs = newSubs
}
