// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package opbind

import (
	"fmt"
	"reflect"

	"code.hybscloud.com/kont"
)

// eitherResult recognizes the house fallible shape, kont.Either[error, T].
// The left accessor is checked against error at bind time (checkEitherType).
type eitherResult interface {
	IsLeft() bool
	IsRight() bool
}

// OK wraps a success payload in the fallible return shape.
func OK[T any](v T) kont.Either[error, T] {
	return kont.Right[error, T](v)
}

// Fail wraps an error in the fallible return shape.
func Fail[T any](err error) kont.Either[error, T] {
	return kont.Left[error, T](err)
}

// splitEither unwraps a fallible return into its payload or error.
func splitEither(v reflect.Value) (any, error) {
	e := v.Interface().(eitherResult)
	if e.IsLeft() {
		err, _ := v.MethodByName("GetLeft").Call(nil)[0].Interface().(error)
		if err == nil {
			err = Errorf("op failed without an error value")
		}
		return nil, err
	}
	return v.MethodByName("GetRight").Call(nil)[0].Interface(), nil
}

// stampErr converts err into the call's single failure object, stamped with
// the call site. Identity is preserved for errors that already are *OpError.
func stampErr(err error, loc Location) *OpError {
	e := intern(err)
	e.StampLocation(loc)
	return e
}

// failAll places one error cell, the same cell, into every result slot, so
// all downstream consumers observe an identical failure. The chain, if any,
// is left untouched.
func (fr *dispatchFrame) failAll(err error) {
	ev := fr.host.NewError(stampErr(err, fr.loc))
	for i := range fr.results {
		fr.results[i] = ev
	}
}

// assertFilled checks that every result slot was filled, for return shapes
// that rely on Result parameters. An empty slot is a defect in the op.
func (fr *dispatchFrame) assertFilled() {
	for i, r := range fr.results {
		if r == nil {
			panic(fmt.Sprintf("opbind: result slot %d not filled by dispatch function", i))
		}
	}
}

// hookAsyncResult attaches the location/report continuation to an op's sole
// asynchronous result: when the upstream cell resolves to an error, stamp the
// call site iff unstamped and report to the host sink exactly once.
func hookAsyncResult(av *AsyncValue, loc Location, host *HostContext) {
	av.AndThen(func() {
		if e := av.Err(); e != nil {
			e.StampLocation(loc)
			host.EmitError(e)
		}
	})
}

// adaptDispatch routes a dispatch function's return through the result
// adapter: every return shape ends as result-slot/chain assignments.
func (p *opPlan) adaptDispatch(outs []reflect.Value, fr *dispatchFrame) {
	if p.ret.hasError {
		last := outs[len(outs)-1]
		outs = outs[:len(outs)-1]
		if !last.IsNil() {
			fr.failAll(last.Interface().(error))
			return
		}
	}
	switch p.ret.shape {
	case retNone:
		fr.assertFilled()
	case retEither:
		payload, err := splitEither(outs[0])
		if err != nil {
			fr.failAll(err)
			return
		}
		p.storeSingleAny(payload, fr)
	default: // retValues
		if len(outs) == 1 {
			p.storeSingle(outs[0], p.ret.kinds[0], fr)
			return
		}
		if len(fr.results) != len(outs) {
			panic(fmt.Sprintf("opbind: op returned %d values for %d result slots", len(outs), len(fr.results)))
		}
		for i, o := range outs {
			if p.ret.kinds[i] == rvAsync {
				fr.results[i] = o.Interface().(*AsyncValue)
				continue
			}
			fr.results[i] = fr.host.NewConcrete(o.Interface())
		}
	}
}

// storeSingle deposits a statically classified single return value.
func (p *opPlan) storeSingle(o reflect.Value, kind retValKind, fr *dispatchFrame) {
	switch kind {
	case rvChain:
		fr.chain.av = o.Interface().(ChainRef).av
		fr.assertFilled()
	case rvAsync:
		av := o.Interface().(*AsyncValue)
		p.requireOneSlot(fr)
		hookAsyncResult(av, fr.loc, fr.host)
		fr.results[0] = av
	default:
		p.requireOneSlot(fr)
		fr.results[0] = fr.host.NewConcrete(o.Interface())
	}
}

// storeSingleAny deposits an Either success payload, whose concrete shape is
// only known at run time.
func (p *opPlan) storeSingleAny(payload any, fr *dispatchFrame) {
	switch v := payload.(type) {
	case ChainRef:
		if p.hasChain {
			panic("opbind: op returned a chain and declared a chain parameter")
		}
		fr.chain.av = v.av
		fr.assertFilled()
	case *AsyncValue:
		p.requireOneSlot(fr)
		hookAsyncResult(v, fr.loc, fr.host)
		fr.results[0] = v
	default:
		p.requireOneSlot(fr)
		fr.results[0] = fr.host.NewConcrete(payload)
	}
}

func (p *opPlan) requireOneSlot(fr *dispatchFrame) {
	if len(fr.results) != 1 {
		panic(fmt.Sprintf("opbind: op returned one value for %d result slots", len(fr.results)))
	}
}

// adaptMetadata routes a metadata function's return. Failures come back as an
// immediately-available error, already stamped with the call site.
func (p *opPlan) adaptMetadata(outs []reflect.Value, fr *mdFrame) error {
	if p.ret.hasError {
		last := outs[len(outs)-1]
		outs = outs[:len(outs)-1]
		if !last.IsNil() {
			return stampErr(last.Interface().(error), fr.loc)
		}
	}
	switch p.ret.shape {
	case retNone:
		// Results were written through *Metadata parameters.
		return nil
	case retEither:
		payload, err := splitEither(outs[0])
		if err != nil {
			return stampErr(err, fr.loc)
		}
		if len(fr.results) != 1 {
			panic(fmt.Sprintf("opbind: metadata function returned one value for %d result slots", len(fr.results)))
		}
		fr.results[0] = payload.(Metadata)
		return nil
	default: // retValues
		if len(fr.results) != len(outs) {
			panic(fmt.Sprintf("opbind: metadata function returned %d values for %d result slots", len(outs), len(fr.results)))
		}
		for i, o := range outs {
			fr.results[i] = o.Interface().(Metadata)
		}
		return nil
	}
}
