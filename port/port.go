// Package port defines the hardware capability the scheduler core
// requires: critical-section masking, stack-frame fabrication, the
// pendable switch request, and first-task launch. It is a contract,
// not an implementation — every architecture-specific detail (register
// layout, the assembly trampoline, the real BASEPRI-equivalent mask
// register) lives behind a concrete Port, the only shipped one of which
// is the reference/test implementation in the sim subpackage.
package port

import "fmt"

// Mask is an opaque, architecture-specific interrupt-priority mask
// value, as returned by EnterCritical and later handed to ExitCritical.
// Callers must never inspect or construct one; Ports treat it as a
// token.
type Mask uint32

// TaskFunc is a task's entry point. It must never return: on real
// hardware, InitStack points the link register at a fault handler that
// spins forever if it does.
type TaskFunc func(arg any)

// StackPointer is the opaque "top of stack" value a Port hands back
// from InitStack and that the scheduler stores in the TCB. On real
// hardware this is a machine address; the reference Port uses it as an
// internal task handle. Callers must treat it as opaque.
type StackPointer any

// FaultHandler is invoked for unrecoverable configuration/programming
// errors (re-entering a held mutex, unlocking a mutex the caller does
// not own, unbalanced critical sections, a task entry function
// returning). These are not recoverable: a FaultHandler is expected to
// log and then never return. Scheduler.Create reports an out-of-range
// priority or stack size as an error instead of calling it, and a
// blocking call made from interrupt context is not detected.
type FaultHandler func(reason string)

// DefaultFaultHandler panics. It exists so a Port always has a non-nil
// handler; real deployments should supply one that logs through the
// ambient logger and then spins, matching the hardware fault handler's
// "return is impossible" contract without unwinding Go goroutines in a
// way that could corrupt scheduler state.
func DefaultFaultHandler(reason string) {
	panic(fmt.Sprintf("port: unrecoverable fault: %s", reason))
}

// Dispatcher is implemented by the scheduler and supplied to a Port so
// the Port's switch mechanism can ask "who runs next" without needing
// to know anything about TCBs, ready structures, or priorities. A Port
// calls SwitchContext once per pending switch, at the outermost
// ExitCritical; the scheduler is expected to update its own notion of
// "current task" as a side effect before returning the new task's
// StackPointer.
type Dispatcher interface {
	SwitchContext() StackPointer
}

// ISRCritical is optionally implemented by a Port that distinguishes a
// critical section entered from simulated interrupt context from one
// entered by task code — see port/sim.Port's EnterCriticalISR doc for
// why an ISR must never be parked the way a preempted task is.
// Schedulers should type-assert for it and fall back to EnterCritical/
// ExitCritical when a Port does not implement it.
type ISRCritical interface {
	EnterCriticalISR() Mask
	ExitCriticalISR(prev Mask)
}

// Port is the architecture-specific capability the scheduler depends
// on. Exactly four operations, matching the RTOS design's port-layer
// contract:
//
//   - EnterCritical/ExitCritical must nest: every EnterCritical call is
//     paired with exactly one ExitCritical call passing back the Mask
//     it returned.
//   - InitStack fabricates a stack frame such that, once a Port's
//     switch mechanism restores it, execution resumes at entry(arg).
//   - RequestSwitch marks a context switch pending; it must be safe to
//     call from within a critical section and from interrupt context.
//   - StartFirstTask never returns: it hands control to whichever task
//     the scheduler has already selected as current.
type Port interface {
	// EnterCritical raises the interrupt-priority mask to the
	// configured threshold and returns the prior mask. Re-entrant:
	// nested calls are allowed and must each be paired with
	// ExitCritical.
	EnterCritical() Mask

	// ExitCritical restores the mask returned by a matching
	// EnterCritical. Once the outermost critical section exits, a
	// pending RequestSwitch takes effect.
	ExitCritical(prev Mask)

	// InitStack fabricates the initial frame for a new task in stack
	// (interpreted as machine words, top-of-stack at the high index,
	// growing down) so that switching to it resumes execution at
	// entry(arg). It returns the new top-of-stack token to store in
	// the task's TCB.
	InitStack(stack []uint32, entry TaskFunc, arg any) StackPointer

	// RequestSwitch pends a context switch. Safe to call from a
	// critical section or from interrupt/ISR context.
	RequestSwitch()

	// StartFirstTask resets to the launch state and transfers control
	// to the scheduler's chosen first task. Never returns.
	StartFirstTask()
}
