package bot

import (
	"context"
	"errors"
	"testing"
	"time"
)

// startWorker занимает слот inflight так же, как Start.
func startWorker(b *Bot, work func()) {
	b.inflight <- struct{}{}
	go func() {
		defer func() { <-b.inflight }()
		work()
	}()
}

func TestDrainLetsRunningHandlersFinish(t *testing.T) {
	b := &Bot{inflight: make(chan struct{}, 4)}

	parent, stop := context.WithCancel(context.Background())
	workCtx, cancelWork := context.WithCancel(context.WithoutCancel(parent))
	defer cancelWork()

	var workErr error
	done := make(chan struct{})
	startWorker(b, func() {
		defer close(done)
		select {
		case <-time.After(50 * time.Millisecond):
		case <-workCtx.Done():
		}
		workErr = workCtx.Err()
	})

	// Сигнал остановки не должен обрывать начатую обработку
	stop()
	b.drain(time.Second, cancelWork)
	<-done

	if workErr != nil {
		t.Errorf("handler context cancelled during drain: %v", workErr)
	}
}

func TestDrainCancelsAfterGrace(t *testing.T) {
	b := &Bot{inflight: make(chan struct{}, 4)}
	workCtx, cancelWork := context.WithCancel(context.Background())
	defer cancelWork()

	var workErr error
	startWorker(b, func() {
		<-workCtx.Done()
		workErr = workCtx.Err()
	})

	start := time.Now()
	b.drain(30*time.Millisecond, cancelWork)

	if !errors.Is(workErr, context.Canceled) {
		t.Errorf("stuck handler must be cancelled, got %v", workErr)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("drain took %v", elapsed)
	}
}
