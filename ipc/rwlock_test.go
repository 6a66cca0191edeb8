package ipc_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/hengyizhao/SKRTOS-sparrow/ipc"
	"github.com/hengyizhao/SKRTOS-sparrow/port"
	"github.com/hengyizhao/SKRTOS-sparrow/port/sim"
	"github.com/hengyizhao/SKRTOS-sparrow/sched"
)

// TestRWLockWriterWaitsForReaders exercises the writer-priority
// policy: a writer queued behind active readers must not enter its
// critical section until every reader holding the lock has released
// it, even though both readers can hold it concurrently.
func TestRWLockWriterWaitsForReaders(t *testing.T) {
	p := sim.New(port.DefaultFaultHandler)
	s := sched.NewScheduler(p, sched.NewTableReady(), zerolog.Nop(), port.DefaultFaultHandler)
	rw := ipc.NewRWLock()

	var mu sync.Mutex
	var trace []string
	record := func(e string) {
		mu.Lock()
		trace = append(trace, e)
		mu.Unlock()
	}

	_, err := s.Create("reader1", 4, 64, func(any) {
		rw.ReadLock(s)
		record("r1-in")
		s.Delay(3)
		record("r1-out")
		rw.ReadUnlock(s)
		for {
			s.Delay(1000)
		}
	}, nil)
	require.NoError(t, err)

	_, err = s.Create("reader2", 3, 64, func(any) {
		s.Delay(1)
		rw.ReadLock(s)
		record("r2-in")
		s.Delay(1)
		record("r2-out")
		rw.ReadUnlock(s)
		for {
			s.Delay(1000)
		}
	}, nil)
	require.NoError(t, err)

	_, err = s.Create("writer", 2, 64, func(any) {
		s.Delay(1)
		rw.WriteLock(s)
		record("w-in")
		rw.WriteUnlock(s)
		for {
			s.Delay(1000)
		}
	}, nil)
	require.NoError(t, err)

	require.NoError(t, s.SchedulerInit(64))
	go s.SchedulerStart()

	for i := 0; i < 20; i++ {
		s.CheckTicks()
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()

	indexOf := func(e string) int {
		for i, v := range trace {
			if v == e {
				return i
			}
		}
		return -1
	}

	require.GreaterOrEqual(t, indexOf("r1-in"), 0, "trace: %v", trace)
	require.GreaterOrEqual(t, indexOf("r2-in"), 0, "trace: %v", trace)
	require.GreaterOrEqual(t, indexOf("w-in"), 0, "trace: %v", trace)

	require.Less(t, indexOf("r1-out"), indexOf("w-in"), "writer entered before reader1 released")
	require.Less(t, indexOf("r2-out"), indexOf("w-in"), "writer entered before reader2 released")
}

// TestRWLockWriteUnlockBatchWakesQueuedReaders exercises the
// batch-release behavior of write_release: every reader queued up
// behind an active writer is released in a single pass (the
// readingReaders/activeReaders counter loop), not handed off one at a
// time as later readers happen to retry.
func TestRWLockWriteUnlockBatchWakesQueuedReaders(t *testing.T) {
	p := sim.New(port.DefaultFaultHandler)
	s := sched.NewScheduler(p, sched.NewTableReady(), zerolog.Nop(), port.DefaultFaultHandler)
	rw := ipc.NewRWLock()

	var mu sync.Mutex
	var trace []string
	record := func(e string) {
		mu.Lock()
		trace = append(trace, e)
		mu.Unlock()
	}

	_, err := s.Create("writer", 5, 64, func(any) {
		rw.WriteLock(s)
		record("w-in")
		s.Delay(2)
		rw.WriteUnlock(s)
		record("w-out")
		for {
			s.Delay(1000)
		}
	}, nil)
	require.NoError(t, err)

	for i, pri := range []int{4, 3, 2} {
		name := fmt.Sprintf("reader%d", i+1)
		event := fmt.Sprintf("r%d-in", i+1)
		_, err := s.Create(name, pri, 64, func(any) {
			s.Delay(1) // queue up after the writer has already taken the lock
			rw.ReadLock(s)
			record(event)
			for {
				s.Delay(1000)
			}
		}, nil)
		require.NoError(t, err)
	}

	require.NoError(t, s.SchedulerInit(64))
	go s.SchedulerStart()

	for i := 0; i < 20; i++ {
		s.CheckTicks()
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()

	require.Len(t, trace, 5, "trace: %v", trace)
	woutIdx := -1
	for i, e := range trace {
		if e == "w-out" {
			woutIdx = i
		}
	}
	require.GreaterOrEqual(t, woutIdx, 0, "trace: %v", trace)

	woken := map[string]bool{}
	for _, e := range trace[woutIdx+1:] {
		woken[e] = true
	}
	require.True(t, woken["r1-in"] && woken["r2-in"] && woken["r3-in"],
		"all three queued readers must be released by the same write_release call: %v", trace)
}
