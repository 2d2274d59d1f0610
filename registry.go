// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package opbind

import (
	"code.hybscloud.com/atomix"
)

// Op is a registered operation: the bound metadata/dispatch pair the runtime
// looks up by name.
type Op struct {
	Name     string
	Metadata MetadataFn
	Dispatch DispatchFn[HostContext]
}

// Registry maps operation names to their bound implementations. Registration
// normally happens at init time; a duplicate or incomplete op is a defect.
type Registry struct {
	gate atomix.Uint32
	ops  map[string]Op
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{ops: make(map[string]Op)}
}

// Register adds an op. Panics on an empty name, a missing binder, or a
// duplicate registration.
func (r *Registry) Register(op Op) {
	if op.Name == "" {
		panic("opbind: register op with empty name")
	}
	if op.Metadata == nil || op.Dispatch == nil {
		panic("opbind: register op " + op.Name + " without both binders")
	}
	lockGate(&r.gate)
	defer unlockGate(&r.gate)
	if _, dup := r.ops[op.Name]; dup {
		panic("opbind: duplicate op " + op.Name)
	}
	r.ops[op.Name] = op
}

// Lookup returns the named op.
func (r *Registry) Lookup(name string) (Op, bool) {
	lockGate(&r.gate)
	defer unlockGate(&r.gate)
	op, ok := r.ops[name]
	return op, ok
}

// Execute runs one op invocation end to end: derive argument metadata, run
// the metadata binder, then the dispatch binder against the precomputed
// result metadata. Inputs must already be resolved; waiting for pending
// inputs is the upstream scheduler's job, not this layer's.
//
// An input that resolved to an error short-circuits the call: the same error
// cell is propagated to every output, without re-deriving the failure. A
// metadata failure likewise fans one error cell across all outputs. The
// dispatch function body may still resolve its outputs asynchronously.
func Execute(host *HostContext, op Op, args []*AsyncValue, attrs Attrs,
	numResults int, loc Location) ([]*AsyncValue, ChainRef) {
	results := make([]*AsyncValue, numResults)

	argMDs := make([]Metadata, len(args))
	for i, av := range args {
		if !av.IsAvailable() {
			panic("opbind: Execute with a pending input; inputs must be resolved")
		}
		if av.IsError() {
			for j := range results {
				results[j] = av
			}
			return results, ChainRef{}
		}
		t, ok := av.Value().(Tensor)
		if !ok {
			panic("opbind: Execute input is not a Tensor")
		}
		argMDs[i] = t.Metadata()
	}

	resultMDs := make([]Metadata, numResults)
	if err := op.Metadata(argMDs, attrs, resultMDs, loc); err != nil {
		ev := host.NewError(err)
		for j := range results {
			results[j] = ev
		}
		return results, ChainRef{}
	}

	var chain ChainRef
	op.Dispatch(host, args, attrs, resultMDs, results, &chain, loc, host)
	return results, chain
}
