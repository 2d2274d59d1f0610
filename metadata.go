// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package opbind

import (
	"fmt"
	"reflect"
)

// MetadataFn is the bound form of a metadata function: compute result
// Metadata from argument Metadata, synchronously. results is pre-sized by the
// caller and filled before return. A non-nil error is the call's failure,
// already stamped with loc.
type MetadataFn func(args []Metadata, attrs Attrs, results []Metadata, loc Location) error

// BindMetadata turns a plain metadata function into a MetadataFn.
//
// Bindable parameters: Metadata arguments, Optional[Metadata],
// Variadic[Metadata], Attrs, *Metadata results, Location. Returns: nothing,
// Metadata values, a trailing error, or Either[error, Metadata].
//
//	func addMD(a, b Metadata) (Metadata, error) { ... }
//	md := BindMetadata(addMD)
//
// Panics if the signature violates a placement rule; binding happens once,
// at build/registration time.
func BindMetadata(fn any) MetadataFn {
	plan, err := compilePlan(fn, modeMetadata, nil)
	if err != nil {
		panic("opbind: BindMetadata: " + err.Error())
	}
	return func(args []Metadata, attrs Attrs, results []Metadata, loc Location) error {
		return plan.invokeMetadata(&mdFrame{args: args, attrs: attrs, results: results, loc: loc})
	}
}

// mdFrame is one metadata invocation's view of the call frame.
type mdFrame struct {
	args    []Metadata
	attrs   Attrs
	results []Metadata
	loc     Location
}

func (p *opPlan) invokeMetadata(fr *mdFrame) error {
	in := make([]reflect.Value, 0, len(p.params))
	argIdx, resIdx := 0, 0
	for _, pb := range p.params {
		switch pb.kind {
		case bindInput:
			if argIdx >= len(fr.args) {
				panic("opbind: metadata function declares more arguments than the frame holds")
			}
			in = append(in, reflect.ValueOf(fr.args[argIdx]))
			argIdx++
		case bindOptional:
			pv := reflect.New(pb.typ)
			switch {
			case argIdx == len(fr.args)-1:
				pv.Interface().(optionalSetter).setOptional(fr.args[argIdx])
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
				sl = reflect.Append(sl, reflect.ValueOf(fr.args[argIdx]))
			}
			in = append(in, sl)
		case bindAttrs:
			in = append(in, reflect.ValueOf(fr.attrs))
		case bindResultSlot:
			if resIdx >= len(fr.results) {
				panic("opbind: metadata function declares more result parameters than result slots")
			}
			in = append(in, reflect.ValueOf(&fr.results[resIdx]))
			resIdx++
		case bindLocation:
			in = append(in, reflect.ValueOf(fr.loc))
		}
	}
	if p.tail == tailNone && argIdx != len(fr.args) {
		panic(fmt.Sprintf("opbind: metadata function consumed %d of %d frame arguments", argIdx, len(fr.args)))
	}
	if p.numResultParams > 0 && resIdx != len(fr.results) {
		panic(fmt.Sprintf("opbind: metadata function fills %d of %d result slots", resIdx, len(fr.results)))
	}
	return p.adaptMetadata(p.fn.Call(in), fr)
}
