// Copyright (c) 2024 The posd developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package asyncloop runs a named function repeatedly on its own goroutine
// until it asks to stop, fails, or is disposed.
package asyncloop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrStop ends a loop without recording an error.
var ErrStop = errors.New("asyncloop: stop")

// Func is one iteration of a loop.  Returning ErrStop ends the loop cleanly,
// any other non-nil error ends it and is reported by Err.
type Func func(ctx context.Context) error

// Handle is the caller's view of a running loop.
type Handle interface {
	// Name returns the name the loop was started with.
	Name() string

	// Dispose cancels the loop.  It does not wait for an iteration that is
	// already running and may be called any number of times.
	Dispose()

	// Done is closed once the loop goroutine has exited.
	Done() <-chan struct{}

	// Err returns the error that ended the loop.  It is nil while the loop
	// runs and after a clean stop or cancellation.
	Err() error
}

// Provider starts loops.
type Provider interface {
	Run(ctx context.Context, name string, fn Func, repeatEvery,
		startAfter time.Duration) Handle
}

// DefaultProvider starts real goroutine backed loops.
type DefaultProvider struct{}

// Run implements Provider.
func (DefaultProvider) Run(ctx context.Context, name string, fn Func,
	repeatEvery, startAfter time.Duration) Handle {

	return Run(ctx, name, fn, repeatEvery, startAfter)
}

// Loop is a running loop.
type Loop struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	mtx        sync.Mutex
	err        error
	iterations uint64
}

var _ Handle = (*Loop)(nil)

// Run starts fn on a new goroutine.  The first iteration happens after
// startAfter and each following one repeatEvery after the previous iteration
// returned, so iterations never overlap.
func Run(ctx context.Context, name string, fn Func, repeatEvery,
	startAfter time.Duration) *Loop {

	ctx, cancel := context.WithCancel(ctx)
	l := &Loop{
		name:   name,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go l.run(ctx, fn, repeatEvery, startAfter)
	return l
}

func (l *Loop) run(ctx context.Context, fn Func, repeatEvery, startAfter time.Duration) {
	defer close(l.done)
	defer l.cancel()

	log.Debugf("%s starting", l.name)
	defer log.Debugf("%s stopped", l.name)

	if err := SleepWithContext(ctx, startAfter); err != nil {
		return
	}
	for {
		err := l.iterate(ctx, fn)
		switch {
		case errors.Is(err, ErrStop):
			return
		case err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()):
			return
		case err != nil:
			log.Errorf("%s failed: %v", l.name, err)
			l.mtx.Lock()
			l.err = err
			l.mtx.Unlock()
			return
		}

		if err := SleepWithContext(ctx, repeatEvery); err != nil {
			return
		}
	}
}

// iterate runs fn once, turning a panic into an error.
func (l *Loop) iterate(ctx context.Context, fn Func) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", l.name, r)
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	l.mtx.Lock()
	l.iterations++
	l.mtx.Unlock()
	return fn(ctx)
}

// Name returns the loop name.
func (l *Loop) Name() string {
	return l.name
}

// Dispose cancels the loop.
func (l *Loop) Dispose() {
	l.once.Do(func() {
		log.Tracef("%s disposed", l.name)
		l.cancel()
	})
}

// Done is closed when the loop goroutine exits.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Wait blocks until the loop goroutine exits.
func (l *Loop) Wait() {
	<-l.done
}

// Err returns the error that ended the loop, if any.
func (l *Loop) Err() error {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return l.err
}

// Iterations returns how many times fn has been called.
func (l *Loop) Iterations() uint64 {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return l.iterations
}

// SleepWithContext waits for the duration or returns early if the context is
// canceled.
func SleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
