package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrExecutorStopped fails the tasks that were still waiting when an executor stopped.
	ErrExecutorStopped = errors.New("server: executor stopped")
	// ErrTaskPanicked is the fault of a task whose handler panicked.
	ErrTaskPanicked = errors.New("server: task panicked")
)

// Future is the eventual outcome of a submitted task. It is resolved exactly once.
type Future[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolved returns a future that is already complete.
func Resolved[T any](value T, err error) *Future[T] {
	f := NewFuture[T]()
	f.Resolve(value, err)
	return f
}

// Resolve completes the future. Only the first call has an effect.
func (f *Future[T]) Resolve(value T, err error) {
	f.once.Do(func() {
		f.value = value
		f.err = err
		close(f.done)
	})
}

// Done is closed once the future is resolved.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Get waits for the outcome of the task, or for ctx to end.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// TaskExecutor accepts tasks of type I and eventually produces an O for each of them.
type TaskExecutor[I, O any] interface {
	Submit(task I) *Future[O]
}

// Handler does the work of an executor.
type Handler[I, O any] func(task I) (O, error)

// run calls h, turning a panic into an ErrTaskPanicked fault.
func (h Handler[I, O]) run(task I) (out O, err error) {
	defer func() {
		if r := recover(); r != nil {
			_serverLogger.Errorf("task handler panicked: %v", r)
			var zero O
			out, err = zero, fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
	}()
	return h(task)
}

// ProcessorExecutor runs every task on the goroutine that submits it. The returned future is
// always resolved already.
type ProcessorExecutor[I, O any] struct {
	handler Handler[I, O]
}

func NewProcessorExecutor[I, O any](handler Handler[I, O]) *ProcessorExecutor[I, O] {
	return &ProcessorExecutor[I, O]{handler: handler}
}

func (p *ProcessorExecutor[I, O]) Submit(task I) *Future[O] {
	return Resolved(p.handler.run(task))
}

type envelope[I, O any] struct {
	task   I
	future *Future[O]
}

// Actor runs tasks one at a time on its own goroutine, in the order they were submitted.
type Actor[I, O any] struct {
	handler Handler[I, O]
	mailbox chan envelope[I, O]
	quit    chan struct{}

	// mu guards closed and the sends to mailbox, so nothing is sent once the mailbox is closed.
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewActor starts an actor whose mailbox holds up to size waiting tasks. Submit blocks while the
// mailbox is full.
func NewActor[I, O any](handler Handler[I, O], size int) *Actor[I, O] {
	a := &Actor[I, O]{
		handler: handler,
		mailbox: make(chan envelope[I, O], size),
		quit:    make(chan struct{}),
	}
	a.wg.Add(1)
	go a.loop()
	return a
}

func (a *Actor[I, O]) Submit(task I) *Future[O] {
	f := NewFuture[O]()

	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		var zero O
		f.Resolve(zero, ErrExecutorStopped)
		return f
	}
	a.mailbox <- envelope[I, O]{task: task, future: f}
	return f
}

func (a *Actor[I, O]) loop() {
	defer a.wg.Done()
	for e := range a.mailbox {
		select {
		case <-a.quit:
			var zero O
			e.future.Resolve(zero, ErrExecutorStopped)
		default:
			e.future.Resolve(a.handler.run(e.task))
		}
	}
}

// Stop lets the task being run finish, fails every task still in the mailbox with
// ErrExecutorStopped and waits for the actor goroutine to exit. Later submissions fail the same way.
func (a *Actor[I, O]) Stop() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.quit)
	close(a.mailbox)
	a.mu.Unlock()

	a.wg.Wait()
}
