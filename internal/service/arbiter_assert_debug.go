//go:build debug

package service

import "fmt"

// assertInvariants panics on a broken arbiter state.
// Must be called with lock held.
func (a *PlaybackArbiter) assertInvariants() {
	if !a.state.Valid() {
		panic(fmt.Sprintf("arbiter invariant violated: %+v", a.state))
	}
}
