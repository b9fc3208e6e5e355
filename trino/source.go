package trino

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/majkshkurti/connector-x/query"
	"github.com/majkshkurti/connector-x/trinoclient"
)

// DataOrder is the traversal order a loader requests from a source.
type DataOrder int

const (
	RowMajor DataOrder = iota
	ColumnMajor
)

func (o DataOrder) String() string {
	switch o {
	case RowMajor:
		return "RowMajor"
	case ColumnMajor:
		return "ColumnMajor"
	default:
		return fmt.Sprintf("DataOrder(%d)", int(o))
	}
}

// SourceOption configures a Source at construction time.
type SourceOption func(*sourceOptions)

type sourceOptions struct {
	httpClient     *http.Client
	traceToken     string
	requestOptions []trinoclient.RequestOption
}

// WithHTTPClient sends every request through hc instead of a client built
// from the connection string. The timeout parameter is then ignored.
func WithHTTPClient(hc *http.Client) SourceOption {
	return func(o *sourceOptions) {
		o.httpClient = hc
	}
}

// WithTraceToken overrides the random trace token attached to every query.
func WithTraceToken(token string) SourceOption {
	return func(o *sourceOptions) {
		o.traceToken = token
	}
}

// WithRequestOptions applies opts to every request sent on behalf of the
// Source and its partitions.
func WithRequestOptions(opts ...trinoclient.RequestOption) SourceOption {
	return func(o *sourceOptions) {
		o.requestOptions = append(o.requestOptions, opts...)
	}
}

// Source is the entry point of a load: it holds the client, the queries to
// run and the schema discovered for them.
//
// A Source is not safe for concurrent use. Once Partition has been called
// the Source must not be used again.
type Source struct {
	conn        ConnectionSpec
	client      *trinoclient.Client
	traceToken  string
	queries     []query.Query
	originQuery *string
	names       []string
	schema      []Type
}

// NewSource parses conn and builds the client. No request is sent.
func NewSource(conn string, opts ...SourceOption) (*Source, error) {
	spec, err := ParseConnectionSpec(conn)
	if err != nil {
		return nil, err
	}

	o := sourceOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.traceToken == "" {
		o.traceToken = uuid.NewString()
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: spec.Timeout}
	}

	client, err := trinoclient.NewClient(spec.ServerURL(), trinoclient.WithHTTPClient(o.httpClient))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedURL, err)
	}

	if spec.Password != "" {
		client.UserPassword(spec.User, spec.Password)
	} else {
		client.User(spec.User)
	}
	client.Catalog(spec.Catalog).
		Schema(spec.Schema).
		TimeZone(spec.TimeZone).
		TraceToken(o.traceToken).
		ClientTags(spec.ClientTags...)
	if spec.Source != "" {
		client.Source(spec.Source)
	}
	if spec.ClientInfo != "" {
		client.ClientInfo(spec.ClientInfo)
	}
	for k, v := range spec.SessionProperties {
		client.SessionParam(k, v)
	}
	if len(o.requestOptions) > 0 {
		client.RequestOptions(o.requestOptions...)
	}

	log.Debug().
		Str("trace_token", o.traceToken).
		Str("conn", spec.Redacted()).
		Msg("created trino source")

	return &Source{
		conn:       spec,
		client:     client,
		traceToken: o.traceToken,
	}, nil
}

// SetDataOrder accepts only RowMajor.
func (s *Source) SetDataOrder(order DataOrder) error {
	if order != RowMajor {
		return fmt.Errorf("%w: %s", ErrUnsupportedDataOrder, order)
	}
	return nil
}

// SetQueries replaces the query list.
func (s *Source) SetQueries(queries []query.Query) {
	s.queries = make([]query.Query, len(queries))
	copy(s.queries, queries)
}

// SetOriginQuery sets the statement ResultRows counts. nil clears it.
func (s *Source) SetOriginQuery(q *string) {
	s.originQuery = q
}

// FetchMetadata learns the column names and types by running the first
// query wrapped in a LIMIT 1 probe.
func (s *Source) FetchMetadata(ctx context.Context) error {
	if len(s.queries) == 0 {
		return ErrEmptyQueries
	}
	probe, err := query.Limit1(s.queries[0])
	if err != nil {
		return fmt.Errorf("trino: cannot probe first query: %w", err)
	}

	ds, err := s.client.NewSession().GetAll(ctx, probe.String())
	if err != nil {
		return remoteError("metadata probe", err)
	}

	names := make([]string, len(ds.Columns))
	schema := make([]Type, len(ds.Columns))
	for i, col := range ds.Columns {
		t, err := TypeFromColumn(col)
		if err != nil {
			return fmt.Errorf("column %q: %w", col.Name, err)
		}
		names[i] = col.Name
		schema[i] = t
	}
	s.names, s.schema = names, schema

	log.Debug().
		Str("trace_token", s.traceToken).
		Str("query", probe.String()).
		Int("columns", len(schema)).
		Msg("fetched metadata")
	return nil
}

// ResultRows runs the origin query in full and returns its row count. The
// boolean is false, with a zero count, when no origin query is set.
func (s *Source) ResultRows(ctx context.Context) (int, bool, error) {
	if s.originQuery == nil {
		return 0, false, nil
	}
	ds, err := s.client.NewSession().GetAll(ctx, *s.originQuery)
	if err != nil {
		return 0, false, remoteError("origin query", err)
	}
	return ds.Len(), true, nil
}

// CountRows is like ResultRows but lets the coordinator count, by running
// SELECT COUNT(*) over the origin query.
func (s *Source) CountRows(ctx context.Context) (int, bool, error) {
	if s.originQuery == nil {
		return 0, false, nil
	}
	q, err := query.Count(query.Naked(*s.originQuery))
	if err != nil {
		return 0, false, fmt.Errorf("trino: cannot count origin query: %w", err)
	}
	ds, err := s.client.NewSession().GetAll(ctx, q.String())
	if err != nil {
		return 0, false, remoteError("count query", err)
	}
	if ds.Len() != 1 || len(ds.Rows[0]) != 1 {
		return 0, false, fmt.Errorf("%w: count query returned %d rows", ErrRemote, ds.Len())
	}
	n, ok := ds.Rows[0][0].(json.Number)
	if !ok {
		return 0, false, fmt.Errorf("%w: count query returned %v", ErrRemote, ds.Rows[0][0])
	}
	count, err := n.Int64()
	if err != nil {
		return 0, false, fmt.Errorf("%w: count query returned %s", ErrRemote, n)
	}
	return int(count), true, nil
}

// Names returns a copy of the discovered column names.
func (s *Source) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Schema returns a copy of the discovered column types.
func (s *Source) Schema() []Type {
	out := make([]Type, len(s.schema))
	copy(out, s.schema)
	return out
}

// Partition returns one Partition per query, in query order. Each gets its
// own session on the shared client and a copy of the schema.
func (s *Source) Partition() []*Partition {
	parts := make([]*Partition, len(s.queries))
	for i, q := range s.queries {
		parts[i] = &Partition{
			session:    s.client.NewSession(),
			query:      q,
			schema:     s.Schema(),
			traceToken: s.traceToken,
		}
	}
	return parts
}

// ConnectionSpec returns the parsed connection string.
func (s *Source) ConnectionSpec() ConnectionSpec {
	spec := s.conn
	spec.ClientTags = append([]string(nil), s.conn.ClientTags...)
	spec.SessionProperties = maps.Clone(s.conn.SessionProperties)
	return spec
}

// TraceToken returns the token sent with every query of this Source.
func (s *Source) TraceToken() string {
	return s.traceToken
}

// Client returns the shared Trino client.
func (s *Source) Client() *trinoclient.Client {
	return s.client
}
