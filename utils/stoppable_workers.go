package utils

import (
	"context"
	"sync"

	goutils "go.viam.com/utils"
)

// StoppableWorkers is a collection of goroutines that can be stopped at a later time.
type StoppableWorkers interface {
	// AddWorker starts f on its own goroutine. It reports false, without starting anything, once
	// Stop has been called.
	AddWorker(f func(context.Context)) bool
	Stop()
	Context() context.Context
}

// stoppableWorkersImpl is used through the StoppableWorkers interface so that the embedded
// sync.WaitGroup is never copied.
type stoppableWorkersImpl struct {
	mu         sync.Mutex
	cancelCtx  context.Context
	cancelFunc func()
	active     sync.WaitGroup
}

// NewStoppableWorkers runs the functions in separate goroutines. They can be stopped later.
func NewStoppableWorkers(funcs ...func(context.Context)) StoppableWorkers {
	cancelCtx, cancelFunc := context.WithCancel(context.Background())
	workers := &stoppableWorkersImpl{cancelCtx: cancelCtx, cancelFunc: cancelFunc}
	for _, f := range funcs {
		workers.AddWorker(f)
	}
	return workers
}

func (sw *stoppableWorkersImpl) AddWorker(f func(context.Context)) bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.cancelCtx.Err() != nil {
		return false
	}

	sw.active.Add(1)
	goutils.PanicCapturingGo(func() {
		defer sw.active.Done()
		f(sw.cancelCtx)
	})
	return true
}

// Stop cancels the workers' context and waits for all of them to return.
func (sw *stoppableWorkersImpl) Stop() {
	sw.mu.Lock()
	sw.cancelFunc()
	sw.mu.Unlock()

	sw.active.Wait()
}

func (sw *stoppableWorkersImpl) Context() context.Context {
	return sw.cancelCtx
}
