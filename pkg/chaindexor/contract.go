// Package chaindexor is the public API gluing the provider adapter, the
// ingestion/handler/reorg pipeline, state projection, and leader election
// into one runnable indexer process.
package chaindexor

import (
	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/goran-ethernal/chaindexor/internal/contracts"
	"github.com/goran-ethernal/chaindexor/internal/handlers"
	"github.com/goran-ethernal/chaindexor/internal/migrations"
)

// Contract is one configured contract type: its ABI, the handlers that
// react to its events, the state it owns, and the addresses to seed at
// boot. Handlers and state migrations are Go-side concerns, unlike the
// declarative chain/database/tuning config, which is data.
type Contract struct {
	Name               string
	ABI                abi.ABI
	PureHandlers       []handlers.PureHandler
	SideEffectHandlers []handlers.SideEffectHandler
	StateMigrations    []migrations.StateMigration
	SeedAddresses      []contracts.Seed
}

// runtime builds this contract's internal Runtime (ABI + name) for the
// ingestion engine and reorg detector.
func (c Contract) runtime() contracts.Runtime {
	return contracts.Runtime{Name: c.Name, ABI: c.ABI}
}

// stateTables lists the view tables this contract's state migrations own.
func (c Contract) stateTables() []string {
	tables := make([]string, 0, len(c.StateMigrations))
	for _, m := range c.StateMigrations {
		tables = append(tables, m.TableName)
	}
	return tables
}
