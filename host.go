// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package opbind

import (
	"log"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/lfq"
)

// workQueueCapacity is the bounded capacity of the deferred-work queue.
// 1024 absorbs continuation bursts (a resolved chain fanning into many
// registrations) without the producer-side backoff retry becoming the
// common case.
const workQueueCapacity = 1024

// ErrorSink receives operation errors that resolved asynchronously with no
// caller waiting on them. It may be called from the host worker goroutine.
type ErrorSink func(*OpError)

// defaultSink is used when NewHost is given a nil sink. Unobserved failures
// are never dropped silently.
func defaultSink(e *OpError) {
	log.Printf("opbind: async op error: %v", e)
}

// HostContext is the process-wide execution context of the binding layer:
// the factory for async cells, the deferred-work queue, and the error sink.
// Binders borrow it; they never own it.
//
// The work queue is a bounded lock-free SPSC ring (lfq). The single consumer
// is the host worker goroutine; producers are serialized through an atomic
// gate, and back off when the ring is full.
type HostContext struct {
	work   lfq.SPSC[func()]
	enq    atomix.Uint32
	closed atomix.Uint32
	exited atomix.Uint32
	sink   ErrorSink
}

// NewHost creates a host context and starts its worker goroutine.
// A nil sink logs through the standard logger.
func NewHost(sink ErrorSink) *HostContext {
	if sink == nil {
		sink = defaultSink
	}
	h := &HostContext{sink: sink}
	h.work.Init(workQueueCapacity)
	go h.workLoop()
	return h
}

func (h *HostContext) workLoop() {
	var bo iox.Backoff
	for {
		fn, err := h.work.Dequeue()
		if err != nil {
			if h.closed.Load() != 0 {
				break
			}
			bo.Wait()
			continue
		}
		fn()
		bo.Reset()
	}
	h.exited.Add(1)
}

// EnqueueWork schedules fn on the host worker. Runs promptly, in enqueue
// order, never on the caller's stack. Backs off while the ring is full.
func (h *HostContext) EnqueueWork(fn func()) {
	if h.closed.Load() != 0 {
		panic("opbind: EnqueueWork on closed host")
	}
	lockGate(&h.enq)
	var bo iox.Backoff
	for h.work.Enqueue(&fn) != nil {
		bo.Wait()
	}
	unlockGate(&h.enq)
}

// EmitError reports an operation error to the process-wide sink. Calls are
// serialized through the work queue, so the sink observes one error at a time.
func (h *HostContext) EmitError(e *OpError) {
	h.EnqueueWork(func() { h.sink(e) })
}

// Close stops the worker after the queued work drains. Producers must be
// finished before Close; enqueueing afterwards is a defect.
func (h *HostContext) Close() {
	h.closed.Add(1)
	var bo iox.Backoff
	for h.exited.Load() == 0 {
		bo.Wait()
	}
}

// NewConcrete wraps v in a newly resolved cell.
func (h *HostContext) NewConcrete(v any) *AsyncValue {
	av := &AsyncValue{host: h}
	av.state.Store(stateConcrete)
	av.value = v
	return av
}

// NewError wraps err in a newly resolved error cell.
func (h *HostContext) NewError(err error) *AsyncValue {
	av := &AsyncValue{host: h}
	av.state.Store(stateError)
	av.err = intern(err)
	return av
}

// NewPending creates an unresolved cell. Exactly one producer must later
// call Resolve or SetError.
func (h *HostContext) NewPending() *AsyncValue {
	return &AsyncValue{host: h}
}

// ReadyChain returns an already-completed chain.
func (h *HostContext) ReadyChain() ChainRef {
	return ChainRef{av: h.NewConcrete(Chain{})}
}

// PendingChain returns a chain the op resolves when its side effects finish.
func (h *HostContext) PendingChain() ChainRef {
	return ChainRef{av: h.NewPending()}
}

// Await blocks with adaptive backoff until av is available. It is a driver
// and test convenience; nothing on the binding path waits.
func (h *HostContext) Await(av *AsyncValue) {
	var bo iox.Backoff
	for !av.IsAvailable() {
		bo.Wait()
	}
}

// Quiesce blocks until all work enqueued before the call has run.
func (h *HostContext) Quiesce() {
	var flag atomix.Uint32
	h.EnqueueWork(func() { flag.Add(1) })
	var bo iox.Backoff
	for flag.Load() == 0 {
		bo.Wait()
	}
}
