// Package arrowdest loads the partitions of a trino.Source into Arrow records.
package arrowdest

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/majkshkurti/connector-x/query"
	"github.com/majkshkurti/connector-x/trino"
)

// Option configures a Destination.
type Option func(*Destination)

// WithAllocator sets the allocator used for record buffers. The default is
// memory.DefaultAllocator.
func WithAllocator(mem memory.Allocator) Option {
	return func(d *Destination) {
		if mem != nil {
			d.mem = mem
		}
	}
}

// WithConcurrency caps how many partitions Read writes at once. n <= 0
// means no limit.
func WithConcurrency(n int) Option {
	return func(d *Destination) {
		d.concurrency = n
	}
}

// Destination turns partitions into records of a fixed schema. It holds
// no per-partition state, so WritePartition may be called concurrently.
type Destination struct {
	schema      *arrow.Schema
	writers     []columnWriter
	mem         memory.Allocator
	concurrency int
}

// New builds a Destination for the given columns.
func New(names []string, types []trino.Type, opts ...Option) (*Destination, error) {
	if len(names) != len(types) {
		return nil, fmt.Errorf("arrowdest: %d names for %d types", len(names), len(types))
	}

	fields := make([]arrow.Field, len(types))
	writers := make([]columnWriter, len(types))
	for i, t := range types {
		dt, err := ArrowType(t)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", names[i], err)
		}
		w, err := writerFor(t)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", names[i], err)
		}
		fields[i] = arrow.Field{Name: names[i], Type: dt, Nullable: t.Nullable}
		writers[i] = w
	}

	d := &Destination{
		schema:  arrow.NewSchema(fields, nil),
		writers: writers,
		mem:     memory.DefaultAllocator,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Schema returns the schema of every record the Destination writes.
func (d *Destination) Schema() *arrow.Schema {
	return d.schema
}

// WritePartition runs part and copies every cell into a new record. The
// caller owns the record and must release it.
func (d *Destination) WritePartition(ctx context.Context, part *trino.Partition) (arrow.Record, error) {
	if part.NCols() != len(d.writers) {
		return nil, fmt.Errorf("arrowdest: partition has %d columns, schema has %d", part.NCols(), len(d.writers))
	}
	p, err := part.Parser(ctx)
	if err != nil {
		return nil, err
	}

	rb := array.NewRecordBuilder(d.mem, d.schema)
	defer rb.Release()

	n, _ := p.FetchNext()
	rb.Reserve(n)
	for range n {
		for i, write := range d.writers {
			if err := write(p, rb.Field(i)); err != nil {
				return nil, fmt.Errorf("column %q: %w", d.schema.Field(i).Name, err)
			}
		}
	}
	return rb.NewRecord(), nil
}

// Read loads queries from src, one partition per query, writing the
// partitions concurrently. Records are returned in query order. If any
// partition fails the others are canceled and no records are returned.
func Read(ctx context.Context, src *trino.Source, queries []query.Query, opts ...Option) ([]arrow.Record, error) {
	if err := src.SetDataOrder(trino.RowMajor); err != nil {
		return nil, err
	}
	src.SetQueries(queries)
	if err := src.FetchMetadata(ctx); err != nil {
		return nil, err
	}

	dest, err := New(src.Names(), src.Schema(), opts...)
	if err != nil {
		return nil, err
	}

	parts := src.Partition()
	records := make([]arrow.Record, len(parts))

	g, gctx := errgroup.WithContext(ctx)
	if dest.concurrency > 0 {
		g.SetLimit(dest.concurrency)
	}
	for i, part := range parts {
		g.Go(func() error {
			rec, err := dest.WritePartition(gctx, part)
			if err != nil {
				return fmt.Errorf("partition %d: %w", i, err)
			}
			records[i] = rec
			log.Debug().
				Str("trace_token", src.TraceToken()).
				Int("partition", i).
				Int64("rows", rec.NumRows()).
				Msg("wrote partition")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for _, rec := range records {
			if rec != nil {
				rec.Release()
			}
		}
		return nil, err
	}
	return records, nil
}
