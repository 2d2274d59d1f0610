// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package opbind_test

import (
	"testing"

	"code.hybscloud.com/opbind"
)

// BenchmarkBindDispatch measures one-time signature classification.
func BenchmarkBindDispatch(b *testing.B) {
	b.ReportAllocs()
	for b.Loop() {
		opbind.CPUOp(addOp)
	}
}

// BenchmarkMetadataInfer measures one bound metadata invocation.
func BenchmarkMetadataInfer(b *testing.B) {
	md := opbind.BindMetadata(addMD)
	args := []opbind.Metadata{vecMD(2), vecMD(2)}
	results := make([]opbind.Metadata, 1)
	loc := opbind.Here()
	b.ReportAllocs()
	for b.Loop() {
		if err := md(args, opbind.Attrs{}, results, loc); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkDispatchAdd measures one bound dispatch invocation with a
// concrete return.
func BenchmarkDispatchAdd(b *testing.B) {
	skipRace(b)
	h := opbind.NewHost(func(*opbind.OpError) {})
	defer h.Close()
	disp := opbind.CPUOp(addOp)
	args := []*opbind.AsyncValue{h.NewConcrete(vec(1, 2)), h.NewConcrete(vec(3, 4))}
	mds := []opbind.Metadata{vecMD(2)}
	results := make([]*opbind.AsyncValue, 1)
	loc := opbind.Here()
	b.ReportAllocs()
	for b.Loop() {
		disp(h, args, opbind.Attrs{}, mds, results, nil, loc, h)
	}
}

// BenchmarkExecuteAdd measures the registry path end to end: metadata
// inference plus dispatch.
func BenchmarkExecuteAdd(b *testing.B) {
	skipRace(b)
	h := opbind.NewHost(func(*opbind.OpError) {})
	defer h.Close()
	op, _ := newAddRegistry().Lookup("add")
	args := []*opbind.AsyncValue{h.NewConcrete(vec(1, 2)), h.NewConcrete(vec(3, 4))}
	loc := opbind.Here()
	b.ReportAllocs()
	for b.Loop() {
		opbind.Execute(h, op, args, opbind.Attrs{}, 1, loc)
	}
}
