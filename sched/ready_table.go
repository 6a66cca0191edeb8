package sched

import "math/bits"

// TableReady is the bitmap/table ReadyStructure variant: one task slot
// per priority level and O(1) highest-ready lookup via a leading-zero
// count, the Go equivalent of the original's __builtin_clz-based
// FindHighestPriority. Priority is assumed unique per task, matching
// the original table-variant kernel's TcbTaskTable[priority] layout.
type TableReady struct {
	tasks   [MaxPriority]*TCB
	present uint64 // bit i set iff tasks[i] is ready
}

// NewTableReady constructs an empty table ReadyStructure.
func NewTableReady() *TableReady {
	return &TableReady{}
}

func (r *TableReady) Add(t *TCB) {
	r.tasks[t.Priority] = t
	r.present |= 1 << uint(t.Priority)
}

func (r *TableReady) Remove(t *TCB) {
	if r.tasks[t.Priority] != t {
		return
	}
	r.tasks[t.Priority] = nil
	r.present &^= 1 << uint(t.Priority)
}

func (r *TableReady) Highest() *TCB {
	if r.present == 0 {
		return nil
	}
	prio := bits.Len64(r.present) - 1
	return r.tasks[prio]
}

// Select is identical to Highest: the table variant has no notion of
// round robin, a single task occupies each priority.
func (r *TableReady) Select() *TCB {
	return r.Highest()
}

// Tick is a no-op for the table variant.
func (r *TableReady) Tick() {}
