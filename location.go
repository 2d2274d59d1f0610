// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package opbind

import (
	"runtime"
	"strconv"
)

// Location identifies the call site of an op invocation. It is cheap to copy
// and travels with the call so that errors carry provenance, including ones
// that resolve asynchronously, long after the binder returned.
type Location struct {
	File string
	Line int
}

// Here captures the caller's file and line as a Location.
func Here() Location {
	_, file, line, ok := runtime.Caller(1)
	if !ok {
		return Location{}
	}
	return Location{File: file, Line: line}
}

// IsZero reports whether the location carries no call site.
func (l Location) IsZero() bool {
	return l.File == "" && l.Line == 0
}

// String formats the location as file:line.
func (l Location) String() string {
	if l.IsZero() {
		return "<unknown>"
	}
	return l.File + ":" + strconv.Itoa(l.Line)
}
