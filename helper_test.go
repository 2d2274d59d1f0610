// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package opbind_test

import (
	"testing"

	"code.hybscloud.com/opbind"
)

// collector gathers errors reported to the host sink. The sink runs on the
// host worker goroutine; read seen only after Quiesce.
type collector struct {
	seen []*opbind.OpError
}

func (c *collector) sink(e *opbind.OpError) {
	c.seen = append(c.seen, e)
}

// newTestHost creates a host whose async errors are collected instead of logged.
func newTestHost(tb testing.TB) (*opbind.HostContext, *collector) {
	tb.Helper()
	c := &collector{}
	h := opbind.NewHost(c.sink)
	tb.Cleanup(h.Close)
	return h, c
}

func scalarMD() opbind.Metadata {
	return opbind.Metadata{DType: opbind.F64}
}

func vecMD(n int64) opbind.Metadata {
	return opbind.Metadata{DType: opbind.F64, Shape: opbind.Shape{n}}
}

func scalar(v float64) *opbind.DenseTensor {
	return opbind.NewDenseTensor(scalarMD(), []float64{v})
}

func vec(vals ...float64) *opbind.DenseTensor {
	return opbind.NewDenseTensor(vecMD(int64(len(vals))), vals)
}

// awaitScalar blocks until av resolves and returns its sole element.
func awaitScalar(tb testing.TB, h *opbind.HostContext, av *opbind.AsyncValue) float64 {
	tb.Helper()
	h.Await(av)
	if av.IsError() {
		tb.Fatalf("cell resolved to error: %v", av.Err())
	}
	return av.Value().(*opbind.DenseTensor).Data()[0]
}

// mustPanic runs fn and fails the test unless it panics.
func mustPanic(t *testing.T, fn func()) (msg any) {
	t.Helper()
	defer func() {
		msg = recover()
		if msg == nil {
			t.Fatalf("expected panic")
		}
	}()
	fn()
	return nil
}

// addMD and addOp are the shared elementwise-add fixture.
func addMD(a, b opbind.Metadata) (opbind.Metadata, error) {
	if !a.Equal(b) {
		return opbind.Metadata{}, opbind.Errorf("add: metadata mismatch: %s vs %s", a, b)
	}
	return a, nil
}

func addOp(a, b *opbind.DenseTensor, md opbind.Metadata) *opbind.DenseTensor {
	out := make([]float64, len(a.Data()))
	for i := range out {
		out[i] = a.Data()[i] + b.Data()[i]
	}
	return opbind.NewDenseTensor(md, out)
}
