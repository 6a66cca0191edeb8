package ipc

import "github.com/hengyizhao/SKRTOS-sparrow/sched"

// RWLock is a readers/writers lock grounded exactly on
// original_source/kernel/table/source/RWlock.c: read and write are
// event semaphores (initial count 0) that read_acquire/write_acquire
// block on and that the opposite side's release path feeds; wGuard and
// cGuard are 0/1 mutual-exclusion semaphores (initial count 1)
// protecting, respectively, the writer-serialization section and the
// four counters. A waiting side is woken in a batch: when the last
// blocker on one side clears, the release path releases the event
// semaphore once per queued waiter on the other side in a loop, rather
// than handing off one at a time.
type RWLock struct {
	read  *Semaphore
	write *Semaphore

	wGuard *Semaphore
	cGuard *Semaphore

	activeReaders  int
	readingReaders int
	activeWriters  int
	writingWriters int
}

// NewRWLock constructs an unlocked readers/writers lock.
func NewRWLock() *RWLock {
	return &RWLock{
		read:   NewSemaphore(0, 0),
		write:  NewSemaphore(0, 0),
		wGuard: NewSemaphore(1, 1),
		cGuard: NewSemaphore(1, 1),
	}
}

// ReadLock acquires shared access. If a writer is already active, the
// caller joins the reader queue and blocks until that writer's
// write_release batch-wakes every reader waiting behind it.
func (rw *RWLock) ReadLock(s *sched.Scheduler) {
	rw.cGuard.Take(s, sched.WaitForever)
	rw.activeReaders++
	if rw.activeWriters == 0 {
		rw.readingReaders++
		rw.read.Release(s)
	}
	rw.cGuard.Release(s)

	rw.read.Take(s, sched.WaitForever)
}

// ReadUnlock releases shared access. Once the last active reader
// clears, it batch-releases every writer that queued up behind the
// reader wave.
func (rw *RWLock) ReadUnlock(s *sched.Scheduler) {
	rw.cGuard.Take(s, sched.WaitForever)
	rw.readingReaders--
	rw.activeReaders--
	if rw.readingReaders == 0 {
		for rw.writingWriters < rw.activeWriters {
			rw.writingWriters++
			rw.write.Release(s)
		}
	}
	rw.cGuard.Release(s)
}

// WriteLock acquires exclusive access. It first joins the writer queue
// under the reader/writer counters, then serializes against any other
// writer already inside its own critical section via wGuard.
func (rw *RWLock) WriteLock(s *sched.Scheduler) {
	rw.cGuard.Take(s, sched.WaitForever)
	rw.activeWriters++
	if rw.readingReaders == 0 {
		rw.writingWriters++
		rw.write.Release(s)
	}
	rw.cGuard.Release(s)

	rw.write.Take(s, sched.WaitForever)
	rw.wGuard.Take(s, sched.WaitForever)
}

// WriteUnlock releases exclusive access, then, once the last active
// writer clears, batch-releases every reader that queued up behind the
// writer wave.
func (rw *RWLock) WriteUnlock(s *sched.Scheduler) {
	rw.wGuard.Release(s)

	rw.cGuard.Take(s, sched.WaitForever)
	rw.writingWriters--
	rw.activeWriters--
	if rw.activeWriters == 0 {
		for rw.readingReaders < rw.activeReaders {
			rw.readingReaders++
			rw.read.Release(s)
		}
	}
	rw.cGuard.Release(s)
}
