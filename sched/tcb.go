package sched

import "github.com/hengyizhao/SKRTOS-sparrow/port"

// State is one of a task's five lifecycle states. A task can be a
// member of the Delay bookkeeping and Block (or Ready) simultaneously —
// see TCB.blocked/TCB.delayed below — so State alone does not capture
// full membership; it records the primary scheduling state a task is
// in for ready-structure purposes.
type State int

const (
	Ready State = iota
	Delay
	Block
	Suspend
	Dead
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Delay:
		return "delay"
	case Block:
		return "block"
	case Suspend:
		return "suspend"
	case Dead:
		return "dead"
	default:
		return "unknown"
	}
}

// TCB is a task control block. Priority is fixed at creation (dynamic
// priority change other than inheritance is a Non-goal). Base
// is the task's own priority; Priority is the effective one, which a
// held mutex may temporarily raise via inheritance.
type TCB struct {
	Name     string
	Priority int // effective priority; may be boosted by inheritance
	Base     int // priority the task was created with

	state State

	// delayed/blocked record membership independent of state, since a
	// task waiting on a semaphore with a timeout is in both an IPC wait
	// queue (state Block) and the delay queue at once.
	delayed bool
	blocked bool

	wakeTick    uint32
	overflowed  bool // true if wakeTick wrapped past the tick counter's maximum and waits for the counter itself to wrap
	suspendedAt State // state to restore on Resume, if Suspend happened while Delay/Block

	// TimedOut is set by Scheduler.CheckTicks when a wait timeout (as
	// opposed to an IPC release) is what woke this task. ipc consults
	// and clears it on each Take/Lock retry.
	TimedOut bool

	// TimeSlice is this task's own round-robin quantum, in ticks, used
	// only by the list ReadyStructure variant to reload its per-priority
	// SwitchFlag countdown when this task becomes the running member of
	// its priority. Zero means "use the ready structure's configured
	// default". The table variant ignores it entirely.
	TimeSlice int

	stack []uint32
	top   port.StackPointer

	dead bool
}

// Alive reports whether this task has not been deleted. It turns false
// as soon as Scheduler.Delete runs, before the idle task reaps it.
func (t *TCB) Alive() bool { return !t.dead }

// EffectivePriority returns the task's current (possibly
// inheritance-boosted) priority.
func (t *TCB) EffectivePriority() int { return t.Priority }
