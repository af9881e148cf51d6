package resilience

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSingleFlight_CollapsesConcurrentCallers(t *testing.T) {
	var g SingleFlight
	var executions atomic.Int32
	var shared atomic.Int32

	const callers = 16
	gate := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(callers)

	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			<-gate
			val, err, wasShared := g.Do("table:LA LIGA", func() (any, error) {
				executions.Add(1)
				time.Sleep(15 * time.Millisecond)
				return 42, nil
			})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if val != 42 {
				t.Errorf("unexpected value: %v", val)
			}
			if wasShared {
				shared.Add(1)
			}
		}()
	}

	close(gate)
	wg.Wait()

	if got := executions.Load(); got != 1 {
		t.Fatalf("expected one execution, got %d", got)
	}
	if got := shared.Load(); got != callers-1 {
		t.Fatalf("expected %d shared results, got %d", callers-1, got)
	}
}

func TestSingleFlight_ErrorsReachEveryWaiter(t *testing.T) {
	var g SingleFlight
	boom := errors.New("upstream down")

	_, err, _ := g.Do("ranking:ATP", func() (any, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected leader error, got %v", err)
	}

	// After the flight finishes the key is released for fresh calls.
	val, err, wasShared := g.Do("ranking:ATP", func() (any, error) {
		return "fresh", nil
	})
	if err != nil || wasShared || val != "fresh" {
		t.Fatalf("expected fresh execution, got val=%v err=%v shared=%v", val, err, wasShared)
	}
}
