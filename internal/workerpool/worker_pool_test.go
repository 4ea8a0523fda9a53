package workerpool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNew_ZeroWorkers(t *testing.T) {
	pool := New(0)
	if pool.workers <= 0 {
		t.Errorf("Expected NumCPU workers, got %d", pool.workers)
	}
}

func TestWorkerPool_SubmitAndWait(t *testing.T) {
	pool := New(2)
	pool.Start()
	defer pool.Close()

	var counter int
	var mu sync.Mutex

	for i := 0; i < 25; i++ {
		pool.Submit(func() {
			time.Sleep(time.Millisecond)
			mu.Lock()
			counter++
			mu.Unlock()
		})
	}

	pool.Wait()

	if counter != 25 {
		t.Errorf("Expected counter to be 25, got %d", counter)
	}
}

func TestWorkerPool_CloseTwice(t *testing.T) {
	pool := New(1)
	pool.Start()
	pool.Close()
	pool.Close()
}

func TestMap_PreservesOrder(t *testing.T) {
	inputs := []int{5, 1, 4, 2, 3}
	var running, peak int32

	out := Map(context.Background(), 3, inputs, func(ctx context.Context, i int, v int) int {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(time.Duration(v) * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return v * 10
	})

	want := []int{50, 10, 40, 20, 30}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("Expected %v, got %v", want, out)
			break
		}
	}
	if peak > 3 {
		t.Errorf("Expected at most 3 concurrent jobs, got %d", peak)
	}
}

func TestMap_Empty(t *testing.T) {
	out := Map(context.Background(), 4, []string{}, func(ctx context.Context, i int, s string) int { return 1 })
	if len(out) != 0 {
		t.Errorf("Expected empty result, got %v", out)
	}
}
