package crdt

import "github.com/epicenter-hq/core/pkg/log"

// recoverObserverPanic is deferred around every user-supplied observer
// callback so a panicking observer logs and is skipped rather than
// unwinding out of the CRDT commit path ("Observers never throw
// out of the CRDT callback path").
func recoverObserverPanic(kind string) {
	if r := recover(); r != nil {
		log.WithComponent("crdt").Error().
			Str("observer_kind", kind).
			Interface("panic", r).
			Msg("observer callback panicked, continuing")
	}
}
