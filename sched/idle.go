package sched

import "github.com/hengyizhao/SKRTOS-sparrow/port"

// idleBody returns the idle task's entry point: a loop that reaps one
// dead task per pass (the Go equivalent of the original's leisureTask +
// TaskFree, minus manual heap bookkeeping since Go's GC reclaims the
// backing stack slice once the TCB is no longer referenced) and yields
// at the bottom of every pass, giving the simulated port's cooperative
// preemption a checkpoint to act on even when the system is otherwise
// idle.
func (s *Scheduler) idleBody() port.TaskFunc {
	return func(arg any) {
		for {
			s.reapOne()
			s.Yield()
		}
	}
}

// reapOne discards the oldest entry on the dead list, if any. Nothing
// beyond dropping the reference is required: stack and TCB become
// eligible for garbage collection once unreachable.
func (s *Scheduler) reapOne() {
	mask := s.port.EnterCritical()
	if len(s.deadList) == 0 {
		s.port.ExitCritical(mask)
		return
	}
	t := s.deadList[0]
	s.deadList = s.deadList[1:]
	for i, candidate := range s.tasks {
		if candidate == t {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			break
		}
	}
	s.log.Debug().Str("task", t.Name).Msg("task reaped")
	s.port.ExitCritical(mask)
}
