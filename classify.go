// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package opbind

import (
	"fmt"
	"reflect"
)

// Optional is a trailing argument bound from the final input-frame entry iff
// the frame is one longer than the fixed prefix. At most one Optional or
// Variadic per function, and it must be the last input-consuming parameter.
type Optional[T any] struct {
	value T
	ok    bool
}

// Get returns the argument and whether it was present.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.ok
}

// Present reports whether the argument was supplied.
func (o Optional[T]) Present() bool {
	return o.ok
}

func (Optional[T]) optionalElem() reflect.Type { return reflect.TypeFor[T]() }

func (o *Optional[T]) setOptional(v any) {
	o.value = v.(T)
	o.ok = true
}

// Variadic absorbs all remaining input-frame entries, in frame order.
// Same exclusivity as Optional; it terminates input consumption.
type Variadic[T any] []T

func (Variadic[T]) variadicElem() reflect.Type { return reflect.TypeFor[T]() }

// Result is a pre-allocated output cell a dispatch function fills directly,
// for ops that produce their result handle themselves (for example by
// forwarding an upstream cell). Each Result must be filled exactly once
// before the op's outputs are consumed.
type Result struct {
	host *HostContext
	slot **AsyncValue
}

// Set stores a handle into the slot.
func (r Result) Set(av *AsyncValue) {
	*r.slot = av
}

// Emplace wraps v in a newly resolved cell and stores it.
func (r Result) Emplace(v any) {
	*r.slot = r.host.NewConcrete(v)
}

// SetError stores a newly resolved error cell.
func (r Result) SetError(err error) {
	*r.slot = r.host.NewError(err)
}

// Marker interfaces the classifier uses to recognize the generic wrapper
// parameters. Unexported methods keep the set closed.
type (
	optionalArg    interface{ optionalElem() reflect.Type }
	optionalSetter interface{ setOptional(any) }
	variadicArg    interface{ variadicElem() reflect.Type }
)

// bindKind tags one parameter with the rule that produces its value.
type bindKind uint8

const (
	bindInput       bindKind = iota // next input entry, dereferenced to a concrete tensor
	bindInputHandle                 // next input entry, the raw *AsyncValue
	bindOptional                    // final input entry iff present
	bindVariadic                    // all remaining input entries
	bindAttrs                       // the frame's attribute set
	bindOutputMD                    // next output-metadata entry (dispatch)
	bindResultSlot                  // next result slot
	bindChain                       // the call's completion signal
	bindLocation                    // the call's Location
	bindHost                        // the host context
	bindDevice                      // the device context
)

type bindMode uint8

const (
	modeMetadata bindMode = iota
	modeDispatch
)

type paramBinding struct {
	kind bindKind
	typ  reflect.Type
	elem reflect.Type // element type for bindOptional/bindVariadic
}

type tailKind uint8

const (
	tailNone tailKind = iota
	tailOptional
	tailVariadic
)

// retValKind tags one non-error return value with its adaptation rule.
type retValKind uint8

const (
	rvConcrete retValKind = iota // wrap into a newly resolved cell
	rvAsync                      // pass the handle through
	rvChain                      // assign the call's chain
	rvMetadata                   // store into the next metadata result
)

type retShape uint8

const (
	retNone retShape = iota
	retValues
	retEither
)

type returnPlan struct {
	shape    retShape
	hasError bool // trailing error return
	kinds    []retValKind
}

// opPlan is the compiled binding of one operation function: the declarative
// descriptor the classifier produces once and both binders interpret per call.
type opPlan struct {
	fn     reflect.Value
	mode   bindMode
	device reflect.Type // pointer type of the device context; nil if host-only

	params          []paramBinding
	tail            tailKind
	numMDs          int
	numResultParams int
	hasAttrs        bool
	hasChain        bool
	hasLoc          bool
	hasHost         bool

	ret returnPlan
}

var (
	errorType       = reflect.TypeFor[error]()
	tensorType      = reflect.TypeFor[Tensor]()
	metadataType    = reflect.TypeFor[Metadata]()
	metadataPtrType = reflect.TypeFor[*Metadata]()
	attrsType       = reflect.TypeFor[Attrs]()
	locationType    = reflect.TypeFor[Location]()
	hostPtrType     = reflect.TypeFor[*HostContext]()
	asyncValueType  = reflect.TypeFor[*AsyncValue]()
	chainRefType    = reflect.TypeFor[ChainRef]()
	chainRefPtrType = reflect.TypeFor[*ChainRef]()
	resultType      = reflect.TypeFor[Result]()
	optionalIface   = reflect.TypeFor[optionalArg]()
	variadicIface   = reflect.TypeFor[variadicArg]()
	eitherIface     = reflect.TypeFor[eitherResult]()
)

// compilePlan classifies fn's parameter list and return shape. Any placement
// violation is reported here, when the function is bound, never at call time.
func compilePlan(fn any, mode bindMode, device reflect.Type) (*opPlan, error) {
	fv := reflect.ValueOf(fn)
	if !fv.IsValid() || fv.Kind() != reflect.Func {
		return nil, fmt.Errorf("not a function: %T", fn)
	}
	ft := fv.Type()
	if ft.IsVariadic() {
		return nil, fmt.Errorf("go-variadic functions are not bindable; declare a Variadic[T] parameter")
	}
	if device == hostPtrType {
		device = nil
	}

	p := &opPlan{fn: fv, mode: mode, device: device}
	for i := 0; i < ft.NumIn(); i++ {
		pb, err := p.classifyParam(ft.In(i))
		if err != nil {
			return nil, fmt.Errorf("parameter %d: %w", i, err)
		}
		p.params = append(p.params, pb)
	}
	if err := p.classifyReturns(ft); err != nil {
		return nil, err
	}
	return p, nil
}

// inputAllowed checks the shared precondition of every input-consuming
// parameter: inputs precede optional/variadic, attributes, result metadata,
// result slots, and the chain.
func (p *opPlan) inputAllowed(kind string) error {
	switch {
	case p.tail != tailNone:
		return fmt.Errorf("%s after an optional or variadic argument", kind)
	case p.hasAttrs:
		return fmt.Errorf("%s after the attribute set", kind)
	case p.numMDs != 0:
		return fmt.Errorf("%s after a result metadata parameter", kind)
	case p.numResultParams != 0:
		return fmt.Errorf("%s after a result parameter", kind)
	case p.hasChain:
		return fmt.Errorf("%s after the chain parameter", kind)
	}
	return nil
}

func (p *opPlan) classifyParam(t reflect.Type) (paramBinding, error) {
	switch {
	case p.device != nil && t == p.device:
		return paramBinding{kind: bindDevice, typ: t}, nil

	case t == attrsType:
		if p.hasAttrs {
			return paramBinding{}, fmt.Errorf("more than one attribute set")
		}
		if p.numMDs != 0 {
			return paramBinding{}, fmt.Errorf("attribute set after a result metadata parameter")
		}
		if p.numResultParams != 0 {
			return paramBinding{}, fmt.Errorf("attribute set after a result parameter")
		}
		if p.hasChain {
			return paramBinding{}, fmt.Errorf("attribute set after the chain parameter")
		}
		p.hasAttrs = true
		return paramBinding{kind: bindAttrs, typ: t}, nil

	case t == locationType:
		if p.hasLoc {
			return paramBinding{}, fmt.Errorf("more than one location parameter")
		}
		p.hasLoc = true
		return paramBinding{kind: bindLocation, typ: t}, nil

	case t == metadataType:
		if p.mode == modeMetadata {
			// Metadata by value is a positional input of the metadata function.
			if err := p.inputAllowed("metadata argument"); err != nil {
				return paramBinding{}, err
			}
			return paramBinding{kind: bindInput, typ: t}, nil
		}
		// In a dispatch function it is the next precomputed result metadata.
		if p.numResultParams != 0 {
			return paramBinding{}, fmt.Errorf("result metadata after a result parameter")
		}
		if p.hasChain {
			return paramBinding{}, fmt.Errorf("result metadata after the chain parameter")
		}
		p.numMDs++
		return paramBinding{kind: bindOutputMD, typ: t}, nil

	case t == metadataPtrType:
		if p.mode != modeMetadata {
			return paramBinding{}, fmt.Errorf("*Metadata is a metadata-function result; dispatch functions receive result metadata by value")
		}
		if p.hasChain {
			return paramBinding{}, fmt.Errorf("result parameter after the chain parameter")
		}
		p.numResultParams++
		return paramBinding{kind: bindResultSlot, typ: t}, nil

	case t.Implements(optionalIface):
		if p.tail != tailNone {
			return paramBinding{}, fmt.Errorf("more than one optional or variadic argument, or both")
		}
		if err := p.inputAllowed("optional argument"); err != nil {
			return paramBinding{}, err
		}
		elem := reflect.Zero(t).Interface().(optionalArg).optionalElem()
		if err := p.checkInputElem(elem); err != nil {
			return paramBinding{}, err
		}
		p.tail = tailOptional
		return paramBinding{kind: bindOptional, typ: t, elem: elem}, nil

	case t.Implements(variadicIface):
		if p.tail != tailNone {
			return paramBinding{}, fmt.Errorf("more than one optional or variadic argument, or both")
		}
		if err := p.inputAllowed("variadic argument"); err != nil {
			return paramBinding{}, err
		}
		elem := reflect.Zero(t).Interface().(variadicArg).variadicElem()
		if err := p.checkInputElem(elem); err != nil {
			return paramBinding{}, err
		}
		p.tail = tailVariadic
		return paramBinding{kind: bindVariadic, typ: t, elem: elem}, nil
	}

	if p.mode == modeMetadata {
		return paramBinding{}, fmt.Errorf("unsupported metadata-function parameter type %s", t)
	}

	switch {
	case t == hostPtrType:
		if p.hasHost {
			return paramBinding{}, fmt.Errorf("more than one host context parameter")
		}
		p.hasHost = true
		return paramBinding{kind: bindHost, typ: t}, nil

	case t == resultType:
		if p.hasChain {
			return paramBinding{}, fmt.Errorf("result parameter after the chain parameter")
		}
		p.numResultParams++
		return paramBinding{kind: bindResultSlot, typ: t}, nil

	case t == chainRefPtrType:
		if p.hasChain {
			return paramBinding{}, fmt.Errorf("more than one chain parameter")
		}
		p.hasChain = true
		return paramBinding{kind: bindChain, typ: t}, nil

	case t == asyncValueType:
		if err := p.inputAllowed("argument"); err != nil {
			return paramBinding{}, err
		}
		return paramBinding{kind: bindInputHandle, typ: t}, nil

	case t.Implements(tensorType):
		if err := p.inputAllowed("tensor argument"); err != nil {
			return paramBinding{}, err
		}
		return paramBinding{kind: bindInput, typ: t}, nil
	}
	return paramBinding{}, fmt.Errorf("unsupported dispatch-function parameter type %s", t)
}

// checkInputElem validates the element type of an Optional or Variadic.
func (p *opPlan) checkInputElem(elem reflect.Type) error {
	if p.mode == modeMetadata {
		if elem != metadataType {
			return fmt.Errorf("optional and variadic metadata arguments must hold Metadata, not %s", elem)
		}
		return nil
	}
	if elem != asyncValueType && !elem.Implements(tensorType) {
		return fmt.Errorf("optional and variadic dispatch arguments must hold tensors or *AsyncValue, not %s", elem)
	}
	return nil
}

func (p *opPlan) classifyReturns(ft reflect.Type) error {
	n := ft.NumOut()
	if n > 0 && ft.Out(n-1) == errorType {
		p.ret.hasError = true
		n--
	}
	if n == 0 {
		p.ret.shape = retNone
		return nil
	}

	if n == 1 && ft.Out(0).Implements(eitherIface) {
		if p.ret.hasError {
			return fmt.Errorf("an Either return already carries the error; drop the trailing error")
		}
		if err := checkEitherType(ft.Out(0), p.mode); err != nil {
			return err
		}
		if p.numResultParams != 0 {
			return fmt.Errorf("do not both declare result parameters and return results")
		}
		p.ret.shape = retEither
		return nil
	}

	p.ret.shape = retValues
	p.ret.kinds = make([]retValKind, n)
	for i := 0; i < n; i++ {
		t := ft.Out(i)
		if p.mode == modeMetadata {
			if t != metadataType {
				return fmt.Errorf("metadata functions return Metadata values, not %s", t)
			}
			p.ret.kinds[i] = rvMetadata
			continue
		}
		switch t {
		case asyncValueType:
			p.ret.kinds[i] = rvAsync
		case chainRefType:
			if n != 1 {
				return fmt.Errorf("a returned chain must be the only result")
			}
			if p.hasChain {
				return fmt.Errorf("do not both declare a chain parameter and return a chain")
			}
			p.ret.kinds[i] = rvChain
		default:
			p.ret.kinds[i] = rvConcrete
		}
	}
	// A returned chain coexists with result parameters (the op fills its data
	// slots directly and signals completion by return). Data returns do not.
	if p.numResultParams != 0 && !(n == 1 && p.ret.kinds[0] == rvChain) {
		return fmt.Errorf("do not both declare result parameters and return results")
	}
	return nil
}

// checkEitherType verifies the Either's left side is error and, for metadata
// functions, that the right side is Metadata.
func checkEitherType(t reflect.Type, mode bindMode) error {
	left, ok := t.MethodByName("GetLeft")
	if !ok || left.Type.NumOut() != 2 || left.Type.Out(0) != errorType {
		return fmt.Errorf("fallible returns must be Either[error, T], got %s", t)
	}
	right, ok := t.MethodByName("GetRight")
	if !ok || right.Type.NumOut() != 2 {
		return fmt.Errorf("fallible returns must be Either[error, T], got %s", t)
	}
	if mode == modeMetadata && right.Type.Out(0) != metadataType {
		return fmt.Errorf("metadata functions return Either[error, Metadata], got %s", t)
	}
	return nil
}
