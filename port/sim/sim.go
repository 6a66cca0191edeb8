// Package sim is the reference/test implementation of port.Port: a
// goroutine-per-task simulation of single-core preemptive scheduling.
//
// It is a software stand-in good enough to drive every test and
// end-to-end scenario, without being the real hardware trampoline.
// Each task is a goroutine gated by a private baton channel — at most
// one task's goroutine is ever unblocked at a time, so "only one flow
// of execution runs" holds exactly as it does on the real target.
// Preemption takes effect at the outermost ExitCritical of whichever
// RTOS call is in flight: real hardware preempts anywhere, but a
// cooperative checkpoint at every RTOS entry point (Delay, Take, Lock,
// Suspend, tick processing) is what a software model can honestly
// offer.
package sim

import (
	"fmt"
	"sync"

	"github.com/hengyizhao/SKRTOS-sparrow/port"
)

// task tracks the goroutine standing in for one TCB's flow of
// execution.
type task struct {
	resume chan struct{}
}

// Port is the reference port.Port implementation described above. The
// zero value is not usable; construct one with New.
type Port struct {
	fault port.FaultHandler

	mu        sync.Mutex // guards tasks/nextToken only
	tasks     map[int]*task
	nextToken int

	// realCrit stands in for the BASEPRI-masked region: held for the
	// full span between the outermost EnterCritical and the
	// outermost ExitCritical, across both task and ISR callers.
	realCrit      sync.Mutex
	depth         int
	pendingSwitch bool
	running       int // token of the task currently holding the CPU baton; 0 = none yet

	dispatch port.Dispatcher
}

// New constructs a simulated Port. fault is called (and must not
// return) on unrecoverable programming errors; if nil,
// port.DefaultFaultHandler is used.
func New(fault port.FaultHandler) *Port {
	if fault == nil {
		fault = port.DefaultFaultHandler
	}
	return &Port{
		fault:     fault,
		tasks:     make(map[int]*task),
		nextToken: 1, // 0 is reserved as the "no task running yet" sentinel
	}
}

// SetDispatcher wires the scheduler that owns task-selection logic.
// Must be called once, before SchedulerStart, to resolve the
// Port<->Scheduler construction cycle (the scheduler needs a Port at
// construction; the Port needs the scheduler's SwitchContext at
// first use).
func (p *Port) SetDispatcher(d port.Dispatcher) {
	p.dispatch = d
}

// EnterCritical implements port.Port.
func (p *Port) EnterCritical() port.Mask {
	return p.doEnter()
}

// ExitCritical implements port.Port.
func (p *Port) ExitCritical(prev port.Mask) {
	p.doExit(prev, false)
}

// EnterCriticalISR is used by a simulated interrupt source (the system
// tick generator, via Scheduler.CheckTicks) instead of EnterCritical. It shares the same masked region, but the matching
// ExitCriticalISR never parks the caller — an ISR has no task identity
// to suspend, exactly as a real ISR running on the main stack is
// invisible to the PendSV trampoline, which only ever saves/restores
// the process-stack task that was actually interrupted.
func (p *Port) EnterCriticalISR() port.Mask {
	return p.doEnter()
}

// ExitCriticalISR is the ISR-context counterpart to ExitCritical. See
// EnterCriticalISR.
func (p *Port) ExitCriticalISR(prev port.Mask) {
	p.doExit(prev, true)
}

func (p *Port) doEnter() port.Mask {
	if p.depth == 0 {
		p.realCrit.Lock()
	}
	prev := p.depth
	p.depth++
	return port.Mask(prev)
}

func (p *Port) doExit(prev port.Mask, isISR bool) {
	if int(prev) != p.depth-1 {
		p.fault("port/sim: unbalanced EnterCritical/ExitCritical pairing")
		return
	}
	p.depth--
	if p.depth > 0 {
		// still nested: the outer call will handle any pending switch.
		return
	}

	if !p.pendingSwitch || p.dispatch == nil {
		p.realCrit.Unlock()
		return
	}
	p.pendingSwitch = false

	outgoing := p.running
	next, _ := p.dispatch.SwitchContext().(int)
	if next == outgoing {
		p.realCrit.Unlock()
		return
	}
	p.running = next
	p.wake(next)

	if isISR {
		// The ISR itself never held the baton; just hand it off and
		// let the ISR's own goroutine continue (it will stop making
		// progress against scheduler state once it releases
		// realCrit, same as a real ISR finishing its work before
		// PendSV actually fires on exception return).
		p.realCrit.Unlock()
		return
	}

	// outgoing is "me": I'm a task giving up the CPU. Release the
	// masked region and block until I'm handed the baton again.
	p.realCrit.Unlock()
	p.park(outgoing)
}

// InitStack implements port.Port. It launches the task's goroutine
// immediately, but parked: entry(arg) does not run until this task is
// first handed the CPU baton, by SchedulerStart or a later switch.
func (p *Port) InitStack(stack []uint32, entry port.TaskFunc, arg any) port.StackPointer {
	if len(stack) == 0 {
		p.fault("port/sim: zero-length stack")
	}

	p.mu.Lock()
	tok := p.nextToken
	p.nextToken++
	t := &task{resume: make(chan struct{}, 1)}
	p.tasks[tok] = t
	p.mu.Unlock()

	go func() {
		<-t.resume
		entry(arg)
		p.fault(fmt.Sprintf("port/sim: task %d entry function returned", tok))
		select {} // tasks must never return; spin forever
	}()

	return tok
}

// RequestSwitch implements port.Port.
func (p *Port) RequestSwitch() {
	p.pendingSwitch = true
}

// StartFirstTask implements port.Port. Never returns.
func (p *Port) StartFirstTask() {
	p.realCrit.Lock()
	next, _ := p.dispatch.SwitchContext().(int)
	p.running = next
	p.realCrit.Unlock()

	p.wake(next)
	select {} // the boot flow never resumes past this point
}

func (p *Port) wake(tok int) {
	p.mu.Lock()
	t := p.tasks[tok]
	p.mu.Unlock()
	if t == nil {
		p.fault(fmt.Sprintf("port/sim: wake of unknown task token %d", tok))
		return
	}
	t.resume <- struct{}{}
}

func (p *Port) park(tok int) {
	p.mu.Lock()
	t := p.tasks[tok]
	p.mu.Unlock()
	if t == nil {
		p.fault(fmt.Sprintf("port/sim: park of unknown task token %d", tok))
		return
	}
	<-t.resume
}
