package ipc

import (
	"fmt"

	"github.com/hengyizhao/SKRTOS-sparrow/sched"
)

// Mutex is a binary, priority-inheriting lock, grounded on
// original_source/kernel/table/source/mutex.c. Unlike Semaphore,
// ownership hands off directly to the woken waiter inside Unlock: a
// mutex's critical invariant is that exactly one owner exists at a
// time, so a third, unrelated task must never be able to steal
// ownership in the window between a waiter being unblocked and it
// actually running again.
//
// Priority inheritance lifetime (see DESIGN.md's open-question log):
// the mutex restores the owner's original priority in Unlock rather
// than leaving it permanently boosted.
type Mutex struct {
	owner   *sched.TCB
	waiters *waitQueue
	boosted bool
}

// NewMutex constructs an unlocked mutex.
func NewMutex() *Mutex {
	return &Mutex{waiters: newWaitQueue()}
}

// Lock blocks until the mutex is free or timeout ticks elapse,
// boosting the current owner's priority if the caller outranks it.
// Returns false on timeout or on a disallowed recursive lock attempt.
func (m *Mutex) Lock(s *sched.Scheduler, timeout uint32) bool {
	self := s.Current()
	armed := false

	for {
		mask := s.EnterCritical()

		if m.owner == nil {
			m.owner = self
			if armed {
				s.CancelTimeout(self)
				m.waiters.remove(self)
			}
			s.ExitCritical(mask)
			return true
		}

		if m.owner == self {
			s.ExitCritical(mask)
			s.Fault(fmt.Sprintf("ipc: task %q re-entered a mutex it already holds", self.Name))
			return false
		}

		if timeout == 0 {
			s.ExitCritical(mask)
			return false
		}

		if !armed {
			m.waiters.insert(self)
			if self.Priority > m.owner.Priority {
				s.BoostPriority(m.owner, self.Priority)
				m.boosted = true
			}
			if timeout != sched.WaitForever {
				s.ArmTimeout(self, timeout)
			}
			armed = true
		}
		self.TimedOut = false
		s.Block(self)
		s.ExitCritical(mask) // parks here until Unlock hands off ownership or timeout fires

		mask = s.EnterCritical()
		if self.TimedOut {
			m.waiters.remove(self)
			s.ExitCritical(mask)
			return false
		}
		s.ExitCritical(mask)
		if m.owner == self {
			return true
		}
		// spuriously woken without receiving ownership: keep waiting.
	}
}

// Unlock releases the mutex, restoring any inherited priority boost on
// the outgoing owner, and hands ownership directly to the
// highest-priority waiter, if any.
func (m *Mutex) Unlock(s *sched.Scheduler) {
	mask := s.EnterCritical()
	self := s.Current()
	if m.owner != self {
		s.ExitCritical(mask)
		s.Fault(fmt.Sprintf("ipc: task %q unlocked a mutex it does not own", self.Name))
		return
	}

	if m.boosted {
		s.RestorePriority(self)
		m.boosted = false
	}
	m.owner = nil

	if w := m.waiters.popHighest(); w != nil {
		s.CancelTimeout(w)
		w.TimedOut = false
		m.owner = w
		s.Unblock(w)
	}
	s.ExitCritical(mask)
}

// Owner returns the current owner, or nil if unlocked. Intended for
// diagnostics/tests.
func (m *Mutex) Owner() *sched.TCB { return m.owner }
