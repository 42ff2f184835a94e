// Package coalesce collapses concurrent fetches for the same cache key
// into a single origin call. The first caller for a key becomes the
// leader and runs the fetch; everyone else waits on the same in-flight
// result and receives an identical outcome.
package coalesce

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"
)

// Prometheus metrics for coalescing behavior.
var (
	coalescedWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "grepoproxy_coalesced_waits_total",
		Help: "Total requests that shared another caller's in-flight fetch",
	})

	waitTimeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "grepoproxy_coalesce_wait_timeouts_total",
		Help: "Total waits abandoned because the in-flight fetch took too long",
	})
)

var (
	// ErrWaitTimeout is returned when an in-flight fetch does not publish
	// a result within the wait deadline. The key is forgotten so that a
	// later caller can start a fresh fetch.
	ErrWaitTimeout = errors.New("coalesce: wait deadline exceeded")

	// ErrWaitCanceled is returned when the waiting caller's own context
	// ends. The underlying fetch keeps running for the other waiters.
	ErrWaitCanceled = errors.New("coalesce: wait canceled")
)

// Group coalesces fetches per key.
//
// The leader's fetch runs on a context detached from the caller that
// happened to start it, bounded only by FetchTimeout: a disconnecting
// client must not cancel a fetch that other waiters still need.
type Group struct {
	sf singleflight.Group

	fetchTimeout time.Duration
	waitTimeout  time.Duration
}

// New creates a coalescing group. fetchTimeout bounds the leader's fetch;
// waitTimeout bounds how long any caller waits for a published result and
// should exceed fetchTimeout so that a live leader is never abandoned
// prematurely.
func New(fetchTimeout, waitTimeout time.Duration) *Group {
	if waitTimeout < fetchTimeout {
		waitTimeout = fetchTimeout
	}
	return &Group{
		fetchTimeout: fetchTimeout,
		waitTimeout:  waitTimeout,
	}
}

// Do returns the result of fetch for key, making sure at most one fetch
// is in flight per key at any instant. The returned shared flag is true
// when the result was produced by another caller's fetch.
//
// Waits are bounded: by the caller's context and by the group's wait
// deadline. A wait that exceeds the deadline gets ErrWaitTimeout and the
// in-flight ticket is dropped, so the next caller starts a new fetch.
func (g *Group) Do(ctx context.Context, key string, fetch func(context.Context) (interface{}, error)) (interface{}, bool, error) {
	ch := g.sf.DoChan(key, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.fetchTimeout)
		defer cancel()
		return fetch(fctx)
	})

	timer := time.NewTimer(g.waitTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.Shared {
			coalescedWaitsTotal.Inc()
		}
		return res.Val, res.Shared, res.Err
	case <-ctx.Done():
		return nil, false, errors.Join(ErrWaitCanceled, ctx.Err())
	case <-timer.C:
		g.sf.Forget(key)
		waitTimeoutsTotal.Inc()
		return nil, false, ErrWaitTimeout
	}
}
