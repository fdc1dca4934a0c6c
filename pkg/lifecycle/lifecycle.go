/*
Package lifecycle defines the contract every provider and extension in the
core satisfies: a WhenSynced readiness signal and an idempotent Destroy.

Documents aggregate the Lifecycle of every attached provider: WhenSynced
resolves once every provider's WhenSynced has resolved (or rejects as soon
as any one of them rejects), and Destroy tears every provider down on a
best-effort "settle all" basis so one provider's failure never blocks the
others.
*/
package lifecycle

import (
	"context"
	"sync"

	"github.com/epicenter-hq/core/pkg/log"
)

// Lifecycle is the contract a Provider or Extension exposes.
type Lifecycle struct {
	// WhenSynced resolves when the provider has completed its initial
	// side effects (loaded state, established initial peer sync). It
	// rejects if initialization fails, carrying an errs.ProviderInitError.
	WhenSynced <-chan error

	// Destroy releases every resource the provider holds (listeners,
	// handles, timers, connections). Must be safe to call more than once.
	Destroy func()
}

// Normalize fills in a zero-value Lifecycle with an already-resolved
// WhenSynced and a no-op Destroy, mirroring the common case of a provider
// constructor that returns nothing meaningful to wait on or tear down.
func Normalize(l *Lifecycle) Lifecycle {
	out := Lifecycle{}
	if l != nil {
		out = *l
	}
	if out.WhenSynced == nil {
		ch := make(chan error)
		close(ch)
		out.WhenSynced = ch
	}
	if out.Destroy == nil {
		out.Destroy = func() {}
	}
	return out
}

// Resolved returns a Lifecycle whose WhenSynced is already resolved
// (optionally with an error) and whose Destroy is the supplied function,
// or a no-op if destroy is nil.
func Resolved(err error, destroy func()) Lifecycle {
	ch := make(chan error, 1)
	if err != nil {
		ch <- err
	}
	close(ch)
	if destroy == nil {
		destroy = func() {}
	}
	return Lifecycle{WhenSynced: ch, Destroy: destroy}
}

// Pending constructs a Lifecycle whose WhenSynced is resolved by calling
// the returned resolve function exactly once. Used by providers whose
// readiness depends on an async operation (a file load, a socket
// handshake) that isn't yet complete at construction time.
func Pending(destroy func()) (lc Lifecycle, resolve func(error)) {
	ch := make(chan error, 1)
	var once sync.Once
	resolve = func(err error) {
		once.Do(func() {
			if err != nil {
				ch <- err
			}
			close(ch)
		})
	}
	if destroy == nil {
		destroy = func() {}
	}
	return Lifecycle{WhenSynced: ch, Destroy: destroy}, resolve
}

// Aggregate combines the WhenSynced of every named Lifecycle into one
// channel that resolves once all of them have resolved, or as soon as any
// one rejects (the rejection is returned; other providers keep running
// until the returned Lifecycle's Destroy is called). Destroy on the
// returned Lifecycle destroys every child concurrently on a best-effort,
// settle-all basis: a panicking child Destroy is recovered and logged, and
// the call returns once every child's Destroy has returned.
func Aggregate(named map[string]Lifecycle) Lifecycle {
	logger := log.WithComponent("lifecycle")

	out := make(chan error, 1)
	go func() {
		remaining := len(named)
		if remaining == 0 {
			close(out)
			return
		}
		errCh := make(chan error, remaining)
		for name, lc := range named {
			name, lc := name, lc
			go func() {
				err := <-lc.WhenSynced
				if err != nil {
					logger.Warn().Str("provider", name).Err(err).Msg("provider failed to sync")
				}
				errCh <- err
			}()
		}
		for i := 0; i < remaining; i++ {
			if err := <-errCh; err != nil {
				out <- err
				close(out)
				return
			}
		}
		close(out)
	}()

	destroy := func() {
		var wg sync.WaitGroup
		for name, lc := range named {
			name, lc := name, lc
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						logger.Error().Str("provider", name).Interface("panic", r).Msg("provider destroy panicked")
					}
				}()
				lc.Destroy()
			}()
		}
		wg.Wait()
	}

	return Lifecycle{WhenSynced: out, Destroy: destroy}
}

// Wait blocks until the Lifecycle's WhenSynced resolves or ctx is done,
// whichever happens first. Callers that must race readiness against a
// destroyed signal should pass a context tied to that signal.
func Wait(ctx context.Context, lc Lifecycle) error {
	select {
	case err := <-lc.WhenSynced:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
