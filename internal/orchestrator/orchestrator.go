// Package orchestrator implements the per-node state machine that
// starts and stops the indexing pipeline as leadership and activity change.
package orchestrator

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/goran-ethernal/chaindexor/internal/common"
	"github.com/goran-ethernal/chaindexor/internal/logger"
	"github.com/goran-ethernal/chaindexor/internal/metrics"
	"github.com/goran-ethernal/chaindexor/internal/nodes"
)

// State is one of the four states a node's orchestrator can be in.
type State int

const (
	Idle State = iota
	Active
	Inactive
	Aborted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Active:
		return "active"
	case Inactive:
		return "inactive"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Pipeline is the full set of background tasks a leader runs: per
// chain-chunk ingestion, reorg detection, handler dispatch, the reorg
// handler, pruning, and the task loops that drive them. The orchestrator
// only knows how to start and stop it.
type Pipeline interface {
	Start(ctx context.Context)
	Stop()
}

// Heartbeat is an optional external "is anyone using this" signal the
// hosting application pings (e.g. from request-handling code); it lets the
// leader idle its pipeline when nothing has used it recently.
type Heartbeat struct {
	mu       sync.Mutex
	graceDur time.Duration
	last     time.Time
}

// NewHeartbeat builds a heartbeat with the given grace period.
func NewHeartbeat(grace time.Duration) *Heartbeat {
	return &Heartbeat{graceDur: grace, last: time.Now()}
}

// Ping marks the heartbeat as recently active.
func (h *Heartbeat) Ping() {
	h.mu.Lock()
	h.last = time.Now()
	h.mu.Unlock()
}

func (h *Heartbeat) isRecent(now time.Time) bool {
	h.mu.Lock()
	last := h.last
	h.mu.Unlock()
	return now.Sub(last) <= h.graceDur
}

// Config tunes the orchestrator's election and idle-mode timing.
type Config struct {
	ElectionPeriod         time.Duration
	MaxConcurrentNodeCount int
	StartAfter             time.Duration // optimization_config.start_after_in_secs
}

// Orchestrator runs one node's election loop and state machine.
type Orchestrator struct {
	db        *sql.DB
	cfg       Config
	pipeline  Pipeline
	heartbeat *Heartbeat
	log       *logger.Logger

	mu             sync.Mutex
	state          State
	node           *nodes.Node
	startedAt      time.Time
	pipelineCtx    context.Context
	pipelineCancel context.CancelFunc
}

// New builds an orchestrator. heartbeat may be nil, disabling idle-mode
// optimization entirely (Active never transitions to Inactive).
func New(db *sql.DB, cfg Config, pipeline Pipeline, heartbeat *Heartbeat, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		db:        db,
		cfg:       cfg,
		pipeline:  pipeline,
		heartbeat: heartbeat,
		log:       log.WithComponent(common.ComponentOrchestrator),
		state:     Idle,
	}
}

// Run registers this node and loops the election + state machine until ctx
// is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	now := time.Now()
	node, err := nodes.Register(ctx, o.db, now)
	if err != nil {
		return err
	}
	o.node = node

	// Wait one election period for previously-leading peers to self-abort
	// before participating.
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(o.cfg.ElectionPeriod):
	}

	ticker := time.NewTicker(o.cfg.ElectionPeriod)
	defer ticker.Stop()

	for {
		if err := o.tick(ctx); err != nil {
			o.log.Errorw("orchestrator tick failed", "error", err)
		}

		select {
		case <-ctx.Done():
			o.mu.Lock()
			if o.pipelineCancel != nil {
				o.pipelineCancel()
			}
			o.mu.Unlock()
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// tick runs one election round and advances the state machine.
func (o *Orchestrator) tick(ctx context.Context) error {
	now := time.Now()

	if err := nodes.Heartbeat(ctx, o.db, o.node.ID, now); err != nil {
		return err
	}
	if o.cfg.MaxConcurrentNodeCount > 0 {
		if err := nodes.PruneOldest(ctx, o.db, o.cfg.MaxConcurrentNodeCount); err != nil {
			return err
		}
	}

	active, err := nodes.Active(ctx, o.db, now, o.cfg.ElectionPeriod)
	if err != nil {
		return err
	}
	leader := nodes.Leader(active)
	iAmLeader := leader != nil && leader.ID == o.node.ID
	metrics.ElectionRoundObserve(len(active), iAmLeader)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.transition(ctx, now, iAmLeader)
	metrics.OrchestratorStateSet(int(o.state))
	return nil
}

// transition implements the leader/non-leader transition table under o.mu.
func (o *Orchestrator) transition(ctx context.Context, now time.Time, iAmLeader bool) {
	before := o.state

	switch o.state {
	case Idle:
		if iAmLeader {
			o.spawn(ctx, now)
			o.state = Active
		}
	case Active:
		if iAmLeader {
			if o.heartbeat != nil && !o.heartbeat.isRecent(now) && now.Sub(o.startedAt) >= o.cfg.StartAfter {
				o.stop()
				o.state = Inactive
			}
		} else {
			o.stop()
			o.state = Aborted
		}
	case Inactive:
		if iAmLeader {
			if o.heartbeat == nil || o.heartbeat.isRecent(now) {
				o.spawn(ctx, now)
				o.state = Active
			}
		} else {
			o.state = Aborted
		}
	case Aborted:
		if iAmLeader {
			o.spawn(ctx, now)
			o.state = Active
		}
	}

	if o.state != before {
		o.log.Infow("orchestrator state transition", "from", before, "to", o.state, "node_id", o.node.ID)
	}
}

func (o *Orchestrator) spawn(ctx context.Context, now time.Time) {
	pctx, cancel := context.WithCancel(ctx)
	o.pipelineCtx = pctx
	o.pipelineCancel = cancel
	o.startedAt = now
	o.pipeline.Start(pctx)
}

func (o *Orchestrator) stop() {
	if o.pipelineCancel != nil {
		o.pipelineCancel()
	}
	o.pipeline.Stop()
	o.pipelineCtx = nil
	o.pipelineCancel = nil
}

// CurrentState returns the orchestrator's current state, for tests and
// diagnostics.
func (o *Orchestrator) CurrentState() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}
