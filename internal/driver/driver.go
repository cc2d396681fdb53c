// Package driver pushes completed session graphs to a Bolt-speaking graph
// database (Neo4j or Memgraph) so they can be queried after the session
// ends.
package driver

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// GraphDriver is the write surface the exporter needs.
type GraphDriver interface {
	ExecuteQuery(ctx context.Context, query string, params map[string]any) error
	BuildIndices(ctx context.Context) error
	Close(ctx context.Context) error
}

// BoltDriver talks to Neo4j or Memgraph over the Bolt protocol.
type BoltDriver struct {
	driver neo4j.DriverWithContext
	log    *zap.Logger
}

// NewBoltDriver connects and verifies connectivity before returning.
func NewBoltDriver(uri, username, password string, log *zap.Logger) (*BoltDriver, error) {
	d, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create bolt driver: %w", err)
	}
	if err := d.VerifyConnectivity(context.Background()); err != nil {
		d.Close(context.Background())
		return nil, fmt.Errorf("verify graph sink connectivity: %w", err)
	}
	log.Info("connected to graph sink", zap.String("uri", uri))
	return &BoltDriver{driver: d, log: log}, nil
}

func (d *BoltDriver) ExecuteQuery(ctx context.Context, query string, params map[string]any) error {
	_, err := neo4j.ExecuteQuery(ctx, d.driver, query, params, neo4j.EagerResultTransformer)
	if err != nil {
		return fmt.Errorf("execute query: %w", err)
	}
	return nil
}

// BuildIndices creates the lookup indices the export queries rely on.
// Index creation failures are logged and skipped since the index may
// already exist.
func (d *BoltDriver) BuildIndices(ctx context.Context) error {
	queries := []string{
		"CREATE INDEX ON :Entity(name, session_id);",
		"CREATE INDEX ON :Source(url);",
		"CREATE INDEX ON :Conflict(session_id);",
	}
	for _, q := range queries {
		if err := d.ExecuteQuery(ctx, q, nil); err != nil {
			d.log.Warn("index creation skipped", zap.String("query", q), zap.Error(err))
		}
	}
	return nil
}

func (d *BoltDriver) Close(ctx context.Context) error {
	return d.driver.Close(ctx)
}
