// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package opbind

import (
	"fmt"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
)

// Stamp states. An OpError may be cloned by handle into many result slots,
// and the same failing chain can feed multiple continuations, so the first
// stamp must win atomically: CAS into stampClaimed, write the location,
// publish with stampSet.
const (
	stampNone uint32 = iota
	stampClaimed
	stampSet
)

// OpError is an operation failure: a message plus an optional Location set
// exactly once. The same *OpError is shared by every result slot of a failing
// call, so identity comparison means "same failure".
type OpError struct {
	msg   string
	cause error
	stamp atomix.Uint32
	loc   Location
}

// Errorf creates an unstamped OpError.
func Errorf(format string, args ...any) *OpError {
	return &OpError{msg: fmt.Sprintf(format, args...)}
}

// intern returns err as an *OpError, preserving identity if it already is one.
func intern(err error) *OpError {
	if oe, ok := err.(*OpError); ok {
		return oe
	}
	return &OpError{msg: err.Error(), cause: err}
}

// Error returns the message, prefixed with the stamped location if any.
func (e *OpError) Error() string {
	if loc, ok := e.Location(); ok {
		return loc.String() + ": " + e.msg
	}
	return e.msg
}

// Unwrap returns the wrapped cause, if the error originated outside opbind.
func (e *OpError) Unwrap() error {
	return e.cause
}

// StampLocation records loc if and only if the error is unstamped.
// Later stamps are no-ops; the stored Location never changes.
func (e *OpError) StampLocation(loc Location) {
	if !e.stamp.CompareAndSwap(stampNone, stampClaimed) {
		return
	}
	e.loc = loc
	e.stamp.Store(stampSet)
}

// Location returns the stamped location, or false if unstamped.
// Spins out the claimed→set window so a reader never sees a torn stamp.
func (e *OpError) Location() (Location, bool) {
	switch e.stamp.Load() {
	case stampNone:
		return Location{}, false
	case stampSet:
		return e.loc, true
	}
	var bo iox.Backoff
	for e.stamp.Load() != stampSet {
		bo.Wait()
	}
	return e.loc, true
}
