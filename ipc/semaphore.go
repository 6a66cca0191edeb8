package ipc

import "github.com/hengyizhao/SKRTOS-sparrow/sched"

// Semaphore is a counting semaphore, grounded exactly on
// original_source/kernel/table/source/sem.c: Release only increments
// the count and wakes the highest-priority waiter (it does not decrement
// on the waiter's behalf), and Take re-verifies the count itself once
// scheduled back in. A blocked Take parks inside ExitCritical until it
// is switched back to (there is no counter to spin on); if another
// taker claimed the unit first, it blocks again and keeps waiting.
type Semaphore struct {
	count   int
	max     int
	waiters *waitQueue
}

// NewSemaphore constructs a counting semaphore with the given initial
// count and a ceiling of max (0 means unbounded).
func NewSemaphore(initial, max int) *Semaphore {
	return &Semaphore{count: initial, max: max, waiters: newWaitQueue()}
}

// Take blocks until a unit is available or timeout ticks elapse.
// sched.WaitForever blocks indefinitely; 0 never blocks. It returns
// false on timeout.
func (sem *Semaphore) Take(s *sched.Scheduler, timeout uint32) bool {
	self := s.Current()
	armed := false

	for {
		mask := s.EnterCritical()

		if sem.count > 0 {
			sem.count--
			if armed {
				s.CancelTimeout(self)
				sem.waiters.remove(self)
			}
			s.ExitCritical(mask)
			return true
		}

		if timeout == 0 {
			s.ExitCritical(mask)
			return false
		}

		if !armed {
			sem.waiters.insert(self)
			if timeout != sched.WaitForever {
				s.ArmTimeout(self, timeout)
			}
			armed = true
		}
		self.TimedOut = false
		s.Block(self)
		s.ExitCritical(mask) // parks here until woken by Release or timeout

		mask = s.EnterCritical()
		if self.TimedOut {
			sem.waiters.remove(self)
			s.ExitCritical(mask)
			return false
		}
		s.ExitCritical(mask)
		// woken because a unit may now be available; loop and recheck
	}
}

// Release adds one unit back (unless the count is already at a non-zero
// ceiling) and, if a task is waiting, wakes the highest-priority one so
// it can claim the unit on its own next EnterCritical section. Release
// always uses the task-context critical section
// (Scheduler.EnterCritical/ExitCritical); it has no path through
// port.ISRCritical for callers in interrupt context.
func (sem *Semaphore) Release(s *sched.Scheduler) {
	mask := s.EnterCritical()
	if sem.max == 0 || sem.count < sem.max {
		sem.count++
	}
	if w := sem.waiters.popHighest(); w != nil {
		s.CancelTimeout(w)
		w.TimedOut = false
		s.Unblock(w)
	}
	s.ExitCritical(mask)
}

// Count returns the current unit count. Intended for diagnostics/tests;
// racy if called without the scheduler's own critical section held.
func (sem *Semaphore) Count() int { return sem.count }
