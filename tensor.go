// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package opbind

import (
	"fmt"
	"strings"
)

// DType identifies the element type of a tensor.
type DType uint8

const (
	InvalidDType DType = iota
	I32
	I64
	F32
	F64
)

// String returns the short dtype name.
func (d DType) String() string {
	switch d {
	case I32:
		return "i32"
	case I64:
		return "i64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	default:
		return "invalid"
	}
}

// Shape is a tensor dimension list. A nil Shape is a scalar.
type Shape []int64

// NumElements returns the product of all dimensions (1 for a scalar).
func (s Shape) NumElements() int64 {
	n := int64(1)
	for _, d := range s {
		n *= d
	}
	return n
}

// Equal reports dimension-wise equality.
func (s Shape) Equal(o Shape) bool {
	if len(s) != len(o) {
		return false
	}
	for i, d := range s {
		if d != o[i] {
			return false
		}
	}
	return true
}

// String formats the shape as [d0,d1,...].
func (s Shape) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, d := range s {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%d", d)
	}
	b.WriteByte(']')
	return b.String()
}

// Metadata describes a tensor without its data: element type and shape.
// Metadata functions compute result Metadata from argument Metadata.
type Metadata struct {
	DType DType
	Shape Shape
}

// Equal reports dtype and shape equality.
func (m Metadata) Equal(o Metadata) bool {
	return m.DType == o.DType && m.Shape.Equal(o.Shape)
}

// String formats the metadata as dtype[shape].
func (m Metadata) String() string {
	return m.DType.String() + m.Shape.String()
}

// Tensor is the value protocol for dispatch arguments. The binder only needs
// a type tag and the metadata view; everything else is up to the device.
type Tensor interface {
	Metadata() Metadata
}

// DenseTensor is a host tensor with contiguous float64 storage. It exists so
// ops and tests have a concrete Tensor; kernels and device memory are the
// surrounding runtime's concern.
type DenseTensor struct {
	md   Metadata
	data []float64
}

// NewDenseTensor creates a tensor over the given storage.
// The data length must match the shape's element count.
func NewDenseTensor(md Metadata, data []float64) *DenseTensor {
	if int64(len(data)) != md.Shape.NumElements() {
		panic("opbind: dense tensor storage does not match shape")
	}
	return &DenseTensor{md: md, data: data}
}

// Metadata returns the tensor's dtype and shape.
func (t *DenseTensor) Metadata() Metadata {
	return t.md
}

// Data returns the flat element storage.
func (t *DenseTensor) Data() []float64 {
	return t.data
}
