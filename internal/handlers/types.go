// Package handlers implements loading subscriptions and in-order
// events, driving pure and side-effect handlers, and advancing per-chain
// cursors.
package handlers

import (
	"context"
	"sync"

	dbpkg "github.com/goran-ethernal/chaindexor/internal/db"
	"github.com/goran-ethernal/chaindexor/internal/events"
)

// PureHandlerContext is passed to a pure handler: the in-flight transaction
// for contract/chain-scoped state, and a buffer for state mutations that
// span chains, which are deferred outside the in-order pass.
type PureHandlerContext struct {
	Tx       dbpkg.Querier
	Event    *events.Event
	Deferred *DeferredBuffer
}

// SideEffectHandlerContext is passed to a side-effect handler: the same
// in-flight transaction (side-effect handlers must not assume atomicity of
// their own external calls, only of any state reads/writes they make
// through Tx) and the opaque shared_state value from configuration.
type SideEffectHandlerContext struct {
	Tx          dbpkg.Querier
	Event       *events.Event
	SharedState interface{}
}

// PureHandler mutates only indexer-owned state tables and must be
// idempotent: the dispatcher replays a batch on crash.
type PureHandler interface {
	ABI() string
	Handle(ctx context.Context, hctx *PureHandlerContext) error
}

// SideEffectHandler may touch external systems; it fires at-least-once per
// (event, reset_including_side_effects_count).
type SideEffectHandler interface {
	ABI() string
	Handle(ctx context.Context, hctx *SideEffectHandlerContext) error
}

// DeferredMutation is a multi-chain state write enqueued by a pure handler
// to run after the in-order pass, on a separate client, because ordering
// across chains isn't meaningful.
type DeferredMutation func(ctx context.Context, q dbpkg.Querier) error

// DeferredBuffer is the one shared mutable structure in the pipeline: a
// mutex-guarded queue of cross-chain mutations, drained by exactly one task
// per tick.
type DeferredBuffer struct {
	mu        sync.Mutex
	mutations []DeferredMutation
}

// NewDeferredBuffer constructs an empty buffer.
func NewDeferredBuffer() *DeferredBuffer {
	return &DeferredBuffer{}
}

// Enqueue adds a mutation to run once the current in-order pass commits.
func (b *DeferredBuffer) Enqueue(m DeferredMutation) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mutations = append(b.mutations, m)
}

// Drain runs and clears every queued mutation against q. Mutations that
// fail are logged by the caller; draining continues so that one bad
// mutation doesn't starve the rest.
func (b *DeferredBuffer) Drain(ctx context.Context, q dbpkg.Querier) []error {
	b.mu.Lock()
	pending := b.mutations
	b.mutations = nil
	b.mu.Unlock()

	var errs []error
	for _, m := range pending {
		if err := m(ctx, q); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
