// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package opbind binds plain typed Go functions to the untyped call frames of
// an asynchronous tensor-operation runtime.
//
// An operation author writes an ordinary function; the runtime invokes it
// through a positional frame of type-erased arguments, a named attribute set,
// pre-allocated result slots, and call-site metadata. opbind reconciles the
// two: it classifies the function's parameter list into binding rules once at
// bind time, and unifies whatever the function returns into the runtime's
// uniform asynchronous result representation.
//
// # Architecture
//
//   - Binders: [BindMetadata] turns a shape/type inference function into a
//     [MetadataFn]; [BindDispatch] (and the [CPUOp] shorthand) turns a compute
//     function into a [DispatchFn]. These two are the only author-facing entry
//     points; everything else is driven through them.
//   - Classification: parameter placement rules are checked when the function
//     is bound, not when it is called. A misordered signature panics at bind
//     time (a build defect, not a runtime error).
//   - Results: [AsyncValue] is a write-once cell resolved exactly once to a
//     value or an [OpError]. Continuations registered on an already-available
//     cell are deferred to the [HostContext] work queue: prompt, never inline.
//     Deferred work rides a bounded lock-free queue via [code.hybscloud.com/lfq].
//   - Error Handling: one failure, one identity. A fallible return (a trailing
//     error or a [code.hybscloud.com/kont.Either]) produces a single [OpError]
//     stamped with the call [Location] and placed in every result slot, so all
//     downstream consumers observe the same failure object. Asynchronous
//     failures nobody awaits are reported once to the host error sink.
//   - Non-blocking: the binders never wait. Backoff waiting ([HostContext.Await])
//     uses [code.hybscloud.com/iox.Backoff] and lives outside the binding path.
//
// # Example
//
//	func addMD(a, b Metadata) (Metadata, error) {
//		if !a.Equal(b) {
//			return Metadata{}, Errorf("shape mismatch: %s vs %s", a, b)
//		}
//		return a, nil
//	}
//
//	func addOp(a, b *DenseTensor, md Metadata) *DenseTensor { ... }
//
//	reg.Register(Op{Name: "add", Metadata: BindMetadata(addMD), Dispatch: CPUOp(addOp)})
package opbind
