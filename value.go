// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package opbind

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
)

// AsyncValue states. The cell is write-once: exactly one producer moves it
// from statePending to stateConcrete or stateError, after which it is
// immutable and any number of readers may observe it.
const (
	statePending uint32 = iota
	stateConcrete
	stateError
)

// AsyncValue is a write-once asynchronous cell: pending, resolved to a
// concrete value, or resolved to an *OpError. Readers never block on it; they
// either read an available cell directly or register a continuation with
// AndThen. Shared ownership is the garbage collector's job; a handle is just
// the pointer.
type AsyncValue struct {
	host    *HostContext
	state   atomix.Uint32
	gate    atomix.Uint32
	value   any
	err     *OpError
	waiters []func()
}

// lockGate spins the waiter gate closed with adaptive backoff.
// The critical sections it guards are a few stores, never user code.
func lockGate(g *atomix.Uint32) {
	var bo iox.Backoff
	for !g.CompareAndSwap(0, 1) {
		bo.Wait()
	}
}

func unlockGate(g *atomix.Uint32) {
	g.Store(0)
}

// Host returns the context the cell was created on.
func (av *AsyncValue) Host() *HostContext {
	return av.host
}

// IsAvailable reports whether the cell has been resolved (value or error).
func (av *AsyncValue) IsAvailable() bool {
	return av.state.Load() != statePending
}

// IsConcrete reports whether the cell resolved to a value.
func (av *AsyncValue) IsConcrete() bool {
	return av.state.Load() == stateConcrete
}

// IsError reports whether the cell resolved to an error.
func (av *AsyncValue) IsError() bool {
	return av.state.Load() == stateError
}

// Value returns the concrete value. The cell must be concrete; reading a
// pending or error cell is a caller defect.
func (av *AsyncValue) Value() any {
	if av.state.Load() != stateConcrete {
		panic("opbind: Value on a cell that is not concrete")
	}
	return av.value
}

// Err returns the error the cell resolved to, or nil.
func (av *AsyncValue) Err() *OpError {
	if av.state.Load() != stateError {
		return nil
	}
	return av.err
}

// AndThen registers fn to run exactly once when the cell becomes available.
// If the cell is still pending, fn runs on the resolver's stack at resolution.
// If the cell is already available, fn is deferred to the host work queue:
// prompt, but never inline on the registering call stack.
func (av *AsyncValue) AndThen(fn func()) {
	lockGate(&av.gate)
	if av.state.Load() == statePending {
		av.waiters = append(av.waiters, fn)
		unlockGate(&av.gate)
		return
	}
	unlockGate(&av.gate)
	av.host.EnqueueWork(fn)
}

// Resolve moves the cell to concrete. Resolving twice is a producer defect.
func (av *AsyncValue) Resolve(v any) {
	av.deliver(stateConcrete, v, nil)
}

// SetError moves the cell to error. Resolving twice is a producer defect.
func (av *AsyncValue) SetError(err error) {
	if err == nil {
		panic("opbind: SetError with nil error")
	}
	av.deliver(stateError, nil, intern(err))
}

func (av *AsyncValue) deliver(state uint32, v any, err *OpError) {
	lockGate(&av.gate)
	if av.state.Load() != statePending {
		unlockGate(&av.gate)
		panic("opbind: async value resolved twice")
	}
	av.value = v
	av.err = err
	av.state.Store(state)
	waiters := av.waiters
	av.waiters = nil
	unlockGate(&av.gate)
	for _, w := range waiters {
		w()
	}
}

// Chain is the unit completion value: "the side-effecting part finished".
type Chain struct{}

// ChainRef is an async handle carrying a Chain. It is the call's completion
// signal, independent of any data result. At most one per call.
type ChainRef struct {
	av *AsyncValue
}

// IsValid reports whether the ref holds a cell.
func (c ChainRef) IsValid() bool {
	return c.av != nil
}

// Async returns the underlying cell.
func (c ChainRef) Async() *AsyncValue {
	return c.av
}

// Done resolves the completion signal.
func (c ChainRef) Done() {
	c.av.Resolve(Chain{})
}

// Fail resolves the completion signal to an error.
func (c ChainRef) Fail(err error) {
	c.av.SetError(err)
}
