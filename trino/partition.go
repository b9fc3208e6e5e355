package trino

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/majkshkurti/connector-x/query"
	"github.com/majkshkurti/connector-x/trinoclient"
)

// Partition runs one query of a Source. Partitions of the same Source may
// run on different goroutines; a single Partition may not.
type Partition struct {
	session    *trinoclient.Session
	query      query.Query
	schema     []Type
	nrows      int
	traceToken string
}

// ResultRows runs the query in full and records its row count.
func (p *Partition) ResultRows(ctx context.Context) error {
	ds, err := p.fetch(ctx)
	if err != nil {
		return err
	}
	p.nrows = ds.Len()
	return nil
}

// Parser runs the query in full and returns a Parser over its rows.
func (p *Partition) Parser(ctx context.Context) (*Parser, error) {
	ds, err := p.fetch(ctx)
	if err != nil {
		return nil, err
	}
	ncols := len(p.schema)
	for i, row := range ds.Rows {
		if len(row) != ncols {
			return nil, fmt.Errorf("%w: query %s: row %d has %d values, want %d",
				ErrRemote, ds.QueryId, i, len(row), ncols)
		}
	}
	p.nrows = ds.Len()
	return newParser(ds.Rows, ncols), nil
}

func (p *Partition) fetch(ctx context.Context) (*trinoclient.DataSet, error) {
	ds, err := p.session.GetAll(ctx, p.query.String())
	if err != nil {
		return nil, remoteError("partition query", err)
	}
	log.Debug().
		Str("trace_token", p.traceToken).
		Str("query_id", ds.QueryId).
		Int("rows", ds.Len()).
		Msg("fetched partition")
	return ds, nil
}

// NRows returns the row count recorded by the last ResultRows or Parser call.
func (p *Partition) NRows() int { return p.nrows }

// NCols returns the schema width.
func (p *Partition) NCols() int { return len(p.schema) }

// Query returns the partition's query.
func (p *Partition) Query() query.Query { return p.query }

// Schema returns a copy of the partition's column types.
func (p *Partition) Schema() []Type {
	out := make([]Type, len(p.schema))
	copy(out, p.schema)
	return out
}
