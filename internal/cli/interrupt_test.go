package cli

import (
	"errors"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestWatchInterrupt_SIGTERM(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	signals := make(chan os.Signal, 1)
	exited := make(chan int, 1)
	var cleanups atomic.Int32

	stop := WatchInterrupt(func() error {
		cleanups.Add(1)
		return nil
	}, signals, func(code int) { exited <- code }, nil)
	defer stop()

	signals <- syscall.SIGTERM

	select {
	case code := <-exited:
		if code != InterruptExitCode {
			t.Errorf("Expected exit code %d, got %d", InterruptExitCode, code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("WatchInterrupt did not exit")
	}
	if cleanups.Load() != 1 {
		t.Errorf("Expected cleanup to run once, ran %d times", cleanups.Load())
	}
}

func TestWatchInterrupt_CleanupErrorStillExits(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	signals := make(chan os.Signal, 1)
	exited := make(chan int, 1)

	stop := WatchInterrupt(func() error {
		return errors.New("browser already gone")
	}, signals, func(code int) { exited <- code }, nil)
	defer stop()

	signals <- syscall.SIGINT

	select {
	case <-exited:
	case <-time.After(2 * time.Second):
		t.Fatal("WatchInterrupt did not exit after a failed cleanup")
	}
}

func TestWatchInterrupt_Stop(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	signals := make(chan os.Signal, 1)
	exited := make(chan int, 1)
	var cleanups atomic.Int32

	stop := WatchInterrupt(func() error {
		cleanups.Add(1)
		return nil
	}, signals, func(code int) { exited <- code }, nil)
	stop()
	stop()

	signals <- syscall.SIGINT

	select {
	case <-exited:
		t.Fatal("Expected no exit after stop")
	case <-time.After(100 * time.Millisecond):
	}
	if cleanups.Load() != 0 {
		t.Errorf("Expected no cleanup after stop, ran %d times", cleanups.Load())
	}
}
