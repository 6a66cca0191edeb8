package ipc_test

import (
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

func TestSemaphoreTakeBlocksUntilRelease(t *testing.T) {
	p := sim.New(port.DefaultFaultHandler)
	s := sched.NewScheduler(p, sched.NewTableReady(), zerolog.Nop(), port.DefaultFaultHandler)
	sem := ipc.NewSemaphore(0, 1)

	var mu sync.Mutex
	took := false
	taken := make(chan struct{})

	_, err := s.Create("waiter", 2, 64, func(any) {
		ok := sem.Take(s, sched.WaitForever)
		mu.Lock()
		took = ok
		mu.Unlock()
		close(taken)
		for {
			s.Delay(1000)
		}
	}, nil)
	require.NoError(t, err)

	_, err = s.Create("releaser", 1, 64, func(any) {
		s.Delay(2)
		sem.Release(s)
		for {
			s.Delay(1000)
		}
	}, nil)
	require.NoError(t, err)

	require.NoError(t, s.SchedulerInit(64))
	go s.SchedulerStart()

	for i := 0; i < 10; i++ {
		s.CheckTicks()
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case <-taken:
	default:
		t.Fatal("waiter never woke from Take after Release")
	}
	mu.Lock()
	defer mu.Unlock()
	require.True(t, took)
}

func TestSemaphoreTakeTimesOut(t *testing.T) {
	p := sim.New(port.DefaultFaultHandler)
	s := sched.NewScheduler(p, sched.NewTableReady(), zerolog.Nop(), port.DefaultFaultHandler)
	sem := ipc.NewSemaphore(0, 1)

	var mu sync.Mutex
	var result *bool
	done := make(chan struct{})

	_, err := s.Create("waiter", 1, 64, func(any) {
		ok := sem.Take(s, 3)
		mu.Lock()
		result = &ok
		mu.Unlock()
		close(done)
		for {
			s.Delay(1000)
		}
	}, nil)
	require.NoError(t, err)

	require.NoError(t, s.SchedulerInit(64))
	go s.SchedulerStart()

	for i := 0; i < 10; i++ {
		s.CheckTicks()
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case <-done:
	default:
		t.Fatal("waiter never returned from a timed-out Take")
	}
	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, result)
	require.False(t, *result, "Take should report failure once its timeout elapses with nobody releasing")
}

func TestSemaphoreNonBlockingTakeFailsImmediately(t *testing.T) {
	p := sim.New(port.DefaultFaultHandler)
	s := sched.NewScheduler(p, sched.NewTableReady(), zerolog.Nop(), port.DefaultFaultHandler)
	sem := ipc.NewSemaphore(0, 1)

	var mu sync.Mutex
	var result *bool
	done := make(chan struct{})

	_, err := s.Create("poller", 1, 64, func(any) {
		ok := sem.Take(s, 0)
		mu.Lock()
		result = &ok
		mu.Unlock()
		close(done)
		for {
			s.Delay(1000)
		}
	}, nil)
	require.NoError(t, err)

	require.NoError(t, s.SchedulerInit(64))
	go s.SchedulerStart()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("a zero-timeout Take must return immediately without blocking")
	}
	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, result)
	require.False(t, *result)
}
