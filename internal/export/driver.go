// Package export dumps the entity/relationship graph into Memgraph (or
// Neo4j) for offline inspection with Cypher tooling. Exporting is
// optional and one-way; the engine's own state never lives in the
// database.
package export

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// GraphDriver abstracts the graph database so tests can capture queries
// without a running instance.
type GraphDriver interface {
	ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error)
	Close(ctx context.Context) error
}

// MemgraphDriver is the bolt-protocol driver for Memgraph and Neo4j.
type MemgraphDriver struct {
	driver neo4j.DriverWithContext
}

// NewMemgraphDriver connects and verifies connectivity.
func NewMemgraphDriver(ctx context.Context, uri, username, password string) (*MemgraphDriver, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, err
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, err
	}
	return &MemgraphDriver{driver: driver}, nil
}

// ExecuteQuery runs a Cypher query eagerly.
func (d *MemgraphDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	result, err := neo4j.ExecuteQuery(ctx, d.driver, query, params, neo4j.EagerResultTransformer)
	if err != nil {
		return neo4j.EagerResult{}, fmt.Errorf("failed to execute query: %w", err)
	}
	return *result, nil
}

// Close releases the underlying driver.
func (d *MemgraphDriver) Close(ctx context.Context) error {
	return d.driver.Close(ctx)
}
