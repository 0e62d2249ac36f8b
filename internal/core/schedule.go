/*
   Cycle-countdown event scheduler.

   Copyright (c) 2024, Richard Cornwell

   Permission is hereby granted, free of charge, to any person obtaining a
   copy of this software and associated documentation files (the "Software"),
   to deal in the Software without restriction, including without limitation
   the rights to use, copy, modify, merge, publish, distribute, sublicense,
   and/or sell copies of the Software, and to permit persons to whom the
   Software is furnished to do so, subject to the following conditions:

   The above copyright notice and this permission notice shall be included in
   all copies or substantial portions of the Software.

   THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
   IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
   FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.  IN NO EVENT SHALL
   ROBERT M SUPNIK BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
   IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
   CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.

*/

package core

// Callback fires when a scheduled event's countdown reaches zero.
type Callback func(iarg int)

// event is one entry in a Schedule's countdown list, ordered by relative
// time-to-fire (each entry's time is relative to the one before it).
// Adapted from emu/event/event.go's linked-list countdown scheme,
// generalised from a fixed S370 Device key to an arbitrary owner tag so
// any collaborator -- a timer-interrupt source, a profiler sample
// trigger, a watchdog -- can schedule itself without this package
// depending on that collaborator's type.
type event struct {
	time  int
	owner any
	cb    Callback
	iarg  int
	prev  *event
	next  *event
}

// Schedule is a per-core (or process-wide) cycle-countdown event list,
// used to fire periodic timer interrupts and profiler samples at a
// precise guest-cycle count rather than wall-clock time (§5).
type Schedule struct {
	head *event
	tail *event
}

// Add schedules cb to fire in `cycles` guest cycles, tagged with owner so
// Cancel can find it again. A zero-cycle event fires immediately and
// inline.
func (s *Schedule) Add(owner any, cb Callback, cycles int, iarg int) {
	if cycles <= 0 {
		cb(iarg)
		return
	}

	ev := &event{owner: owner, cb: cb, time: cycles, iarg: iarg}

	cur := s.head
	if cur == nil {
		s.head = ev
		s.tail = ev
		return
	}

	for cur != nil {
		if ev.time <= cur.time {
			cur.time -= ev.time
			ev.prev = cur.prev
			ev.next = cur
			cur.prev = ev
			if ev.prev != nil {
				ev.prev.next = ev
			} else {
				s.head = ev
			}
			return
		}
		ev.time -= cur.time
		cur = cur.next
	}

	ev.prev = s.tail
	s.tail.next = ev
	s.tail = ev
}

// Cancel removes the first pending event matching owner and iarg, if any.
func (s *Schedule) Cancel(owner any, iarg int) {
	cur := s.head
	for cur != nil {
		if cur.owner == owner && cur.iarg == iarg {
			if cur.next != nil {
				cur.next.time += cur.time
				cur.next.prev = cur.prev
			} else {
				s.tail = cur.prev
			}
			if cur.prev != nil {
				cur.prev.next = cur.next
			} else {
				s.head = cur.next
			}
			return
		}
		cur = cur.next
	}
}

// Advance moves the schedule forward by t cycles, firing every event
// whose countdown reaches zero or below.
func (s *Schedule) Advance(t int) {
	cur := s.head
	if cur == nil {
		return
	}
	cur.time -= t
	for cur != nil && cur.time <= 0 {
		over := cur.time // cycles past this event, carried to the next relative entry
		cur.cb(cur.iarg)
		s.head = cur.next
		cur = s.head
		if cur != nil {
			cur.prev = nil
			cur.time += over
		} else {
			s.tail = nil
		}
	}
}

// Pending reports whether any event is outstanding.
func (s *Schedule) Pending() bool {
	return s.head != nil
}
