// Package nodes implements node registration, heartbeat, and
// deterministic leader election across a pool of indexer replicas.
package nodes

import (
	"context"
	"fmt"
	"time"

	"github.com/russross/meddler"

	dbpkg "github.com/goran-ethernal/chaindexor/internal/db"
)

// Node is one process in the replica pool. LastActiveAt and InsertedAt are
// epoch seconds.
type Node struct {
	ID           uint64 `meddler:"id,pk"`
	LastActiveAt int64  `meddler:"last_active_at"`
	InsertedAt   int64  `meddler:"inserted_at"`
}

// Register inserts a new node row on process boot.
func Register(ctx context.Context, q dbpkg.Querier, now time.Time) (*Node, error) {
	n := &Node{LastActiveAt: now.Unix(), InsertedAt: now.Unix()}
	if err := meddler.Insert(q, "chaindexing_nodes", n); err != nil {
		return nil, fmt.Errorf("nodes: failed to register node: %w", err)
	}
	return n, nil
}

// Heartbeat stamps last_active_at = now for id.
func Heartbeat(ctx context.Context, q dbpkg.Querier, id uint64, now time.Time) error {
	_, err := q.Exec(`UPDATE chaindexing_nodes SET last_active_at = $2 WHERE id = $1`, id, now.Unix())
	if err != nil {
		return fmt.Errorf("nodes: failed to heartbeat node %d: %w", id, err)
	}
	return nil
}

// Active returns every node whose last_active_at is within 2 election
// periods of now.
func Active(ctx context.Context, q dbpkg.Querier, now time.Time, electionPeriod time.Duration) ([]*Node, error) {
	threshold := now.Add(-2 * electionPeriod).Unix()
	var active []*Node
	err := meddler.QueryAll(q, &active,
		`SELECT * FROM chaindexing_nodes WHERE last_active_at >= $1 ORDER BY inserted_at ASC`,
		threshold,
	)
	if err != nil {
		return nil, fmt.Errorf("nodes: failed to load active nodes: %w", err)
	}
	return active, nil
}

// Leader picks the active node with the greatest inserted_at — the
// deterministic hand-over rule: leadership flips when a newer node joins.
func Leader(active []*Node) *Node {
	var leader *Node
	for _, n := range active {
		if leader == nil || n.InsertedAt > leader.InsertedAt {
			leader = n
		}
	}
	return leader
}

// PruneOldest deletes the oldest nodes (by id) beyond maxCount, bounding the
// registry's size: at most maxCount node rows are kept, oldest pruned.
func PruneOldest(ctx context.Context, q dbpkg.Querier, maxCount int) error {
	_, err := q.Exec(
		`DELETE FROM chaindexing_nodes
		 WHERE id NOT IN (
		     SELECT id FROM chaindexing_nodes ORDER BY id DESC LIMIT $1
		 )`,
		maxCount,
	)
	if err != nil {
		return fmt.Errorf("nodes: failed to prune oldest nodes: %w", err)
	}
	return nil
}
