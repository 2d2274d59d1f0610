// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package opbind

import (
	"fmt"
	"reflect"
)

// DispatchFn is the bound form of a dispatch function. args are the live
// (possibly pending) inputs; resultMDs the precomputed output metadata;
// results the pre-sized output slots, each filled exactly once before the
// call returns, possibly with a handle that resolves strictly later. chain
// receives the call's completion signal, if the op produces one.
type DispatchFn[D any] func(ctx *D, args []*AsyncValue, attrs Attrs,
	resultMDs []Metadata, results []*AsyncValue, chain *ChainRef,
	loc Location, host *HostContext)

// CPUOp binds a dispatch function that runs on the host: BindDispatch with
// the host context standing in for the device context.
func CPUOp(fn any) DispatchFn[HostContext] {
	return BindDispatch[HostContext](fn)
}

// BindDispatch turns a plain dispatch function into a DispatchFn for device
// context D.
//
// Bindable parameters: tensor arguments (any type implementing Tensor),
// *AsyncValue raw handles, Optional[T], Variadic[T], Attrs, Metadata result
// metadata, Result slots, *ChainRef, Location, *HostContext, and *D when D is
// not HostContext. Returns: nothing, concrete values, *AsyncValue
// passthroughs, ChainRef, a trailing error, or Either[error, T].
//
//	func addOp(a, b *DenseTensor, md Metadata) *DenseTensor { ... }
//	disp := CPUOp(addOp)
//
// Panics if the signature violates a placement rule; binding happens once,
// at build/registration time.
func BindDispatch[D any](fn any) DispatchFn[D] {
	plan, err := compilePlan(fn, modeDispatch, reflect.TypeFor[*D]())
	if err != nil {
		panic("opbind: BindDispatch: " + err.Error())
	}
	return func(ctx *D, args []*AsyncValue, attrs Attrs,
		resultMDs []Metadata, results []*AsyncValue, chain *ChainRef,
		loc Location, host *HostContext) {
		if chain == nil {
			chain = new(ChainRef)
		}
		plan.invokeDispatch(&dispatchFrame{
			ctx:     reflect.ValueOf(ctx),
			args:    args,
			attrs:   attrs,
			mds:     resultMDs,
			results: results,
			chain:   chain,
			loc:     loc,
			host:    host,
		})
	}
}

// dispatchFrame is one dispatch invocation's view of the call frame.
type dispatchFrame struct {
	ctx     reflect.Value
	args    []*AsyncValue
	attrs   Attrs
	mds     []Metadata
	results []*AsyncValue
	chain   *ChainRef
	loc     Location
	host    *HostContext
}

// derefInput extracts one positional argument. Handle parameters receive the
// cell itself; concrete parameters require an already-resolved cell. A
// pending or mistyped argument here is a defect in the upstream scheduler.
func derefInput(av *AsyncValue, want reflect.Type, i int) reflect.Value {
	if want == asyncValueType {
		return reflect.ValueOf(av)
	}
	if !av.IsConcrete() {
		panic(fmt.Sprintf("opbind: dispatch argument %d is not available", i))
	}
	rv := reflect.ValueOf(av.Value())
	if !rv.Type().AssignableTo(want) {
		panic(fmt.Sprintf("opbind: dispatch argument %d has type %s, want %s", i, rv.Type(), want))
	}
	return rv
}

func (p *opPlan) invokeDispatch(fr *dispatchFrame) {
	in := make([]reflect.Value, 0, len(p.params))
	argIdx, mdIdx, resIdx := 0, 0, 0
	for _, pb := range p.params {
		switch pb.kind {
		case bindInput, bindInputHandle:
			if argIdx >= len(fr.args) {
				panic("opbind: dispatch function declares more arguments than the frame holds")
			}
			in = append(in, derefInput(fr.args[argIdx], pb.typ, argIdx))
			argIdx++
		case bindOptional:
			pv := reflect.New(pb.typ)
			switch {
			case argIdx == len(fr.args)-1:
				pv.Interface().(optionalSetter).setOptional(derefInput(fr.args[argIdx], pb.elem, argIdx).Interface())
				argIdx++
			case argIdx == len(fr.args):
				// absent
			default:
				panic("opbind: optional argument expects at most one remaining frame entry")
			}
			in = append(in, pv.Elem())
		case bindVariadic:
			sl := reflect.MakeSlice(pb.typ, 0, len(fr.args)-argIdx)
			for ; argIdx < len(fr.args); argIdx++ {
				sl = reflect.Append(sl, derefInput(fr.args[argIdx], pb.elem, argIdx))
			}
			in = append(in, sl)
		case bindAttrs:
			in = append(in, reflect.ValueOf(fr.attrs))
		case bindOutputMD:
			if mdIdx >= len(fr.mds) {
				panic("opbind: dispatch function declares more result metadata than the frame holds")
			}
			in = append(in, reflect.ValueOf(fr.mds[mdIdx]))
			mdIdx++
		case bindResultSlot:
			if resIdx >= len(fr.results) {
				panic("opbind: dispatch function declares more result parameters than result slots")
			}
			in = append(in, reflect.ValueOf(Result{host: fr.host, slot: &fr.results[resIdx]}))
			resIdx++
		case bindChain:
			in = append(in, reflect.ValueOf(fr.chain))
		case bindLocation:
			in = append(in, reflect.ValueOf(fr.loc))
		case bindHost:
			in = append(in, reflect.ValueOf(fr.host))
		case bindDevice:
			in = append(in, fr.ctx)
		}
	}
	if p.tail == tailNone && argIdx != len(fr.args) {
		panic(fmt.Sprintf("opbind: dispatch function consumed %d of %d frame arguments", argIdx, len(fr.args)))
	}
	if p.numMDs > 0 && mdIdx != len(fr.mds) {
		panic(fmt.Sprintf("opbind: dispatch function consumed %d of %d result metadata entries", mdIdx, len(fr.mds)))
	}
	p.adaptDispatch(p.fn.Call(in), fr)
}
