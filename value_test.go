// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package opbind_test

import (
	"testing"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/opbind"
)

func TestResolveAndRead(t *testing.T) {
	skipRace(t)
	h, _ := newTestHost(t)
	av := h.NewPending()
	if av.IsAvailable() {
		t.Fatalf("pending cell reported available")
	}
	av.Resolve(scalar(42))
	if !av.IsConcrete() {
		t.Fatalf("resolved cell not concrete")
	}
	if got := av.Value().(*opbind.DenseTensor).Data()[0]; got != 42 {
		t.Fatalf("Value got %v, want 42", got)
	}
	if av.Err() != nil {
		t.Fatalf("concrete cell reports an error")
	}
}

func TestResolveTwicePanics(t *testing.T) {
	skipRace(t)
	h, _ := newTestHost(t)
	av := h.NewPending()
	av.Resolve(scalar(1))
	mustPanic(t, func() { av.Resolve(scalar(2)) })
}

func TestSetErrorAfterResolvePanics(t *testing.T) {
	skipRace(t)
	h, _ := newTestHost(t)
	av := h.NewPending()
	av.SetError(opbind.Errorf("boom"))
	mustPanic(t, func() { av.Resolve(scalar(1)) })
}

func TestSetErrorNilPanics(t *testing.T) {
	skipRace(t)
	h, _ := newTestHost(t)
	av := h.NewPending()
	mustPanic(t, func() { av.SetError(nil) })
}

func TestValueOnPendingPanics(t *testing.T) {
	skipRace(t)
	h, _ := newTestHost(t)
	av := h.NewPending()
	mustPanic(t, func() { av.Value() })
}

// A continuation registered before resolution runs on the resolver's stack.
func TestAndThenPendingRunsAtResolve(t *testing.T) {
	skipRace(t)
	h, _ := newTestHost(t)
	av := h.NewPending()
	ran := false
	av.AndThen(func() { ran = true })
	if ran {
		t.Fatalf("continuation ran before resolution")
	}
	av.Resolve(scalar(1))
	if !ran {
		t.Fatalf("continuation did not run at resolution")
	}
}

// A continuation registered after resolution is deferred to the host worker
// and still runs exactly once.
func TestAndThenResolvedDefersToWorker(t *testing.T) {
	skipRace(t)
	h, _ := newTestHost(t)
	av := h.NewConcrete(scalar(1))
	var runs atomix.Uint32
	av.AndThen(func() { runs.Add(1) })
	h.Quiesce()
	if got := runs.Load(); got != 1 {
		t.Fatalf("continuation ran %d times, want 1", got)
	}
}

func TestChainRefLifecycle(t *testing.T) {
	skipRace(t)
	h, _ := newTestHost(t)

	var zero opbind.ChainRef
	if zero.IsValid() {
		t.Fatalf("zero chain reported valid")
	}

	ready := h.ReadyChain()
	if !ready.IsValid() || !ready.Async().IsConcrete() {
		t.Fatalf("ready chain is not a resolved cell")
	}

	pending := h.PendingChain()
	if pending.Async().IsAvailable() {
		t.Fatalf("pending chain already available")
	}
	pending.Done()
	if !pending.Async().IsConcrete() {
		t.Fatalf("Done did not resolve the chain")
	}

	failed := h.PendingChain()
	failed.Fail(opbind.Errorf("side effects aborted"))
	if !failed.Async().IsError() {
		t.Fatalf("Fail did not resolve the chain to an error")
	}
}
