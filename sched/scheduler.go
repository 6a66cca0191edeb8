// Package sched implements the preemptive priority scheduler: task
// lifecycle (Create/Delete/Delay/Suspend/Resume), tick processing, and
// the idle task, over a pluggable ReadyStructure and a port.Port.
package sched

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/hengyizhao/SKRTOS-sparrow/port"
)

// WaitForever requests an unbounded block in the IPC package's Take/Lock
// calls; it is defined in sched so that ipc and its callers share one
// sentinel for "no timeout".
const WaitForever uint32 = 0xFFFFFFFF

// Scheduler is one RTOS instance: a ReadyStructure, a delay queue, and
// a Port, with no package-level state, so tests can run several
// independent instances concurrently (design note §9).
type Scheduler struct {
	ready ReadyStructure
	delay *DelayQueue
	port  port.Port
	log   zerolog.Logger
	fault port.FaultHandler

	current        *TCB
	tasks          []*TCB
	deadList       []*TCB
	idleTCB        *TCB
	suspendDepth   int
	switchDeferred bool
}

// NewScheduler constructs a Scheduler over the given ReadyStructure and
// Port. If p also implements Dispatchable (as port/sim.Port does), its
// dispatcher is wired automatically, resolving the Port<->Scheduler
// construction cycle. fault handles unrecoverable programming errors
// (e.g. unlocking a mutex the caller does not own); if nil,
// port.DefaultFaultHandler is used.
func NewScheduler(p port.Port, ready ReadyStructure, log zerolog.Logger, fault port.FaultHandler) *Scheduler {
	if fault == nil {
		fault = port.DefaultFaultHandler
	}
	s := &Scheduler{
		ready: ready,
		delay: NewDelayQueue(),
		port:  p,
		log:   log,
		fault: fault,
	}
	if d, ok := p.(Dispatchable); ok {
		d.SetDispatcher(s)
	}
	return s
}

// Fault invokes the configured FaultHandler for an unrecoverable
// programming error. Per contract the handler is not expected to
// return.
func (s *Scheduler) Fault(reason string) { s.fault(reason) }

// Dispatchable is implemented by a Port that needs its Dispatcher
// supplied after construction.
type Dispatchable interface {
	SetDispatcher(d port.Dispatcher)
}

// SwitchContext implements port.Dispatcher: it selects the next task to
// run (consulting the ready structure, applying round robin for
// variants that support it) and records it as current.
func (s *Scheduler) SwitchContext() port.StackPointer {
	next := s.ready.Select()
	if next == nil {
		next = s.idleTCB
	}
	s.current = next
	return next.top
}

// Current returns the task presently selected to run. Only meaningful
// from within a critical section.
func (s *Scheduler) Current() *TCB { return s.current }

// EnterCritical and ExitCritical expose the underlying Port's masking
// to the ipc package, which needs to hold the same critical section
// across its own wait-queue bookkeeping and calls to Block/Unblock.
func (s *Scheduler) EnterCritical() port.Mask { return s.port.EnterCritical() }
func (s *Scheduler) ExitCritical(m port.Mask) { s.port.ExitCritical(m) }

// RequestSwitch pends a context switch, deferring it if the scheduler
// is presently suspended (SchedulerSuspend) until SchedulerResume lifts
// the last suspension.
func (s *Scheduler) RequestSwitch() { s.requestSwitch() }

func (s *Scheduler) requestSwitch() {
	if s.suspendDepth > 0 {
		s.switchDeferred = true
		return
	}
	s.port.RequestSwitch()
}

// Create allocates a new task. If the new task's priority exceeds the
// currently running task's priority, a switch is requested immediately
// — creating a higher-priority task preempts the creator. timeSlice is
// an optional round-robin quantum (in ticks) consulted only by the list
// ReadyStructure variant; omitting it (or passing <= 0) falls back to
// that structure's configured default. At most one value is used —
// extras are ignored.
func (s *Scheduler) Create(name string, priority int, stackWords int, fn port.TaskFunc, arg any, timeSlice ...int) (*TCB, error) {
	if priority < 0 || priority >= MaxPriority {
		return nil, fmt.Errorf("sched: priority %d out of range [0,%d)", priority, MaxPriority)
	}
	if stackWords <= 0 {
		return nil, fmt.Errorf("sched: stack size must be positive, got %d", stackWords)
	}

	var slice int
	if len(timeSlice) > 0 {
		slice = timeSlice[0]
	}

	t := &TCB{
		Name:      name,
		Priority:  priority,
		Base:      priority,
		state:     Ready,
		stack:     make([]uint32, stackWords),
		TimeSlice: slice,
	}

	mask := s.port.EnterCritical()
	t.top = s.port.InitStack(t.stack, fn, arg)
	s.ready.Add(t)
	s.tasks = append(s.tasks, t)
	s.log.Debug().Str("task", name).Int("priority", priority).Msg("task created")
	if s.current != nil && priority > s.current.Priority {
		s.requestSwitch()
	}
	s.port.ExitCritical(mask)

	return t, nil
}

// Delete marks t dead and hands it to the idle task for reaping. It
// does not free stack/TCB memory synchronously; see idle.go.
func (s *Scheduler) Delete(t *TCB) {
	mask := s.port.EnterCritical()
	s.ready.Remove(t)
	s.delay.Remove(t)
	t.blocked = false
	t.state = Dead
	t.dead = true
	s.deadList = append(s.deadList, t)
	s.log.Debug().Str("task", t.Name).Msg("task deleted")
	if t == s.current {
		s.requestSwitch()
	}
	s.port.ExitCritical(mask)
}

// Delay removes the calling task from Ready for the given number of
// ticks. A zero delay is a no-op (it does not yield).
func (s *Scheduler) Delay(ticks uint32) {
	if ticks == 0 {
		return
	}
	mask := s.port.EnterCritical()
	t := s.current
	s.ready.Remove(t)
	t.state = Delay
	s.delay.Add(t, ticks)
	s.requestSwitch()
	s.port.ExitCritical(mask)
}

// Yield requests a switch so that a higher-priority ready task can take
// over; used by the idle task's loop as its cooperative checkpoint. It
// does not rotate among same-priority tasks or reset the time slice.
func (s *Scheduler) Yield() {
	mask := s.port.EnterCritical()
	s.requestSwitch()
	s.port.ExitCritical(mask)
}

// Suspend removes t from scheduling consideration regardless of its
// current state, remembering where to restore it on Resume.
func (s *Scheduler) Suspend(t *TCB) {
	mask := s.port.EnterCritical()
	switch t.state {
	case Ready:
		s.ready.Remove(t)
	case Delay:
		s.delay.Remove(t)
	}
	t.suspendedAt = t.state
	t.state = Suspend
	s.log.Debug().Str("task", t.Name).Msg("task suspended")
	if t == s.current {
		s.requestSwitch()
	}
	s.port.ExitCritical(mask)
}

// Resume restores a suspended task to whichever state it was suspended
// from (Ready, Delay, or Block).
func (s *Scheduler) Resume(t *TCB) {
	mask := s.port.EnterCritical()
	if t.state != Suspend {
		s.port.ExitCritical(mask)
		return
	}
	switch t.suspendedAt {
	case Delay:
		t.state = Delay
		t.delayed = true
		s.delay.Add(t, 0) // re-arm immediately; callers needing an exact remaining deadline use ipc timeouts instead
	case Block:
		t.state = Block // still queued on its IPC object, which will Unblock it
	default:
		t.state = Ready
		s.ready.Add(t)
		if s.current != nil && t.Priority > s.current.Priority {
			s.requestSwitch()
		}
	}
	s.log.Debug().Str("task", t.Name).Msg("task resumed")
	s.port.ExitCritical(mask)
}

// SchedulerSuspend prevents context switches from taking effect without
// masking interrupts outright; nestable.
func (s *Scheduler) SchedulerSuspend() {
	mask := s.port.EnterCritical()
	s.suspendDepth++
	s.port.ExitCritical(mask)
}

// SchedulerResume lifts one level of SchedulerSuspend, letting a
// deferred switch take effect once the nesting reaches zero.
func (s *Scheduler) SchedulerResume() {
	mask := s.port.EnterCritical()
	if s.suspendDepth > 0 {
		s.suspendDepth--
	}
	if s.suspendDepth == 0 && s.switchDeferred {
		s.switchDeferred = false
		s.port.RequestSwitch()
	}
	s.port.ExitCritical(mask)
}

// CheckTicks advances tick bookkeeping by one tick, waking any tasks
// whose delay or wait timeout has elapsed, and is expected to be called
// from the simulated system-tick interrupt.
func (s *Scheduler) CheckTicks() {
	var mask port.Mask
	isr, hasISR := s.port.(port.ISRCritical)
	if hasISR {
		mask = isr.EnterCriticalISR()
	} else {
		mask = s.port.EnterCritical()
	}

	woken := s.delay.Tick()
	for _, t := range woken {
		if t.state == Block {
			t.TimedOut = true
			t.blocked = false
		}
		t.state = Ready
		s.ready.Add(t)
	}
	s.ready.Tick()
	s.requestSwitch()

	if hasISR {
		isr.ExitCriticalISR(mask)
	} else {
		s.port.ExitCritical(mask)
	}
}

// Block removes t from Ready and marks it waiting on an IPC object.
// Must be called with the critical section already held (via
// EnterCritical).
func (s *Scheduler) Block(t *TCB) {
	s.ready.Remove(t)
	t.state = Block
	t.blocked = true
	s.requestSwitch()
}

// Unblock restores a blocked (or timed-out-delay) task to Ready. Must
// be called with the critical section already held.
func (s *Scheduler) Unblock(t *TCB) {
	if t.blocked {
		s.delay.Remove(t)
	}
	t.blocked = false
	t.state = Ready
	s.ready.Add(t)
	s.requestSwitch()
}

// ArmTimeout enrolls t in delay bookkeeping as a wait timeout; a plain
// wrapper over the delay queue for the ipc package's use.
func (s *Scheduler) ArmTimeout(t *TCB, ticks uint32) { s.delay.Add(t, ticks) }

// CancelTimeout withdraws t from delay bookkeeping, used once a wait
// succeeds before its timeout elapses.
func (s *Scheduler) CancelTimeout(t *TCB) { s.delay.Remove(t) }

// BoostPriority raises t's effective priority for priority inheritance,
// re-homing it in the ready structure if it is presently ready. A no-op
// if to does not exceed t's current priority.
func (s *Scheduler) BoostPriority(t *TCB, to int) {
	if to <= t.Priority {
		return
	}
	s.reprioritize(t, to)
	s.log.Debug().Str("task", t.Name).Int("from", t.Base).Int("to", to).Msg("priority boosted")
}

// RestorePriority returns t to its base priority once an inherited
// boost is no longer needed.
func (s *Scheduler) RestorePriority(t *TCB) {
	if t.Priority == t.Base {
		return
	}
	s.reprioritize(t, t.Base)
	s.log.Debug().Str("task", t.Name).Int("to", t.Base).Msg("priority restored")
}

func (s *Scheduler) reprioritize(t *TCB, to int) {
	wasReady := t.state == Ready
	if wasReady {
		s.ready.Remove(t)
	}
	t.Priority = to
	if wasReady {
		s.ready.Add(t)
	}
	s.requestSwitch()
}

// SchedulerInit creates the idle task (priority 0) and must be called
// exactly once before SchedulerStart.
func (s *Scheduler) SchedulerInit(idleStackWords int) error {
	if s.idleTCB != nil {
		return fmt.Errorf("sched: SchedulerInit called twice")
	}
	t, err := s.Create("idle", 0, idleStackWords, s.idleBody(), nil)
	if err != nil {
		return err
	}
	s.idleTCB = t
	return nil
}

// SchedulerStart transfers control to the highest-priority ready task
// and never returns. If SchedulerInit has not been called, it logs an
// error and returns without starting anything.
func (s *Scheduler) SchedulerStart() {
	if s.idleTCB == nil {
		s.log.Error().Msg("SchedulerStart called before SchedulerInit")
		return
	}
	s.port.StartFirstTask()
}
