// Package ipc implements the counting semaphore, priority-inheriting
// mutex, and readers/writers lock built on top of sched.Scheduler.
package ipc

import (
	"container/list"

	"github.com/hengyizhao/SKRTOS-sparrow/sched"
)

// waitQueue orders blocked tasks by priority, highest first, with FIFO
// arrival order among equal priorities — the wake policy every IPC
// primitive in this package uses.
type waitQueue struct {
	l *list.List
}

func newWaitQueue() *waitQueue {
	return &waitQueue{l: list.New()}
}

func (q *waitQueue) insert(t *sched.TCB) {
	for e := q.l.Front(); e != nil; e = e.Next() {
		if e.Value.(*sched.TCB).Priority < t.Priority {
			q.l.InsertBefore(t, e)
			return
		}
	}
	q.l.PushBack(t)
}

func (q *waitQueue) popHighest() *sched.TCB {
	e := q.l.Front()
	if e == nil {
		return nil
	}
	q.l.Remove(e)
	return e.Value.(*sched.TCB)
}

func (q *waitQueue) remove(t *sched.TCB) {
	for e := q.l.Front(); e != nil; e = e.Next() {
		if e.Value.(*sched.TCB) == t {
			q.l.Remove(e)
			return
		}
	}
}

func (q *waitQueue) len() int { return q.l.Len() }
