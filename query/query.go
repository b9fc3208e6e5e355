// Package query carries SQL statements between the loader and a source and
// derives the probe statements used for metadata and row counts.
package query

import (
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// Alias given to the user statement when it is wrapped in a derived query.
const subqueryAlias = "cxtmp"

// ErrEmptyStatement is returned when a statement has no SQL left after trimming.
var ErrEmptyStatement = errors.New("query: empty statement")

// Query is an SQL statement. A naked query is sent verbatim; a wrapped
// query was derived from a user statement by this package.
type Query struct {
	sql     string
	wrapped bool
}

// Naked returns a query that is executed exactly as given.
func Naked(sql string) Query {
	return Query{sql: sql}
}

// Wrapped returns a query marked as derived from another statement.
func Wrapped(sql string) Query {
	return Query{sql: sql, wrapped: true}
}

func (q Query) String() string {
	return q.sql
}

// IsWrapped reports whether the query was derived rather than user supplied.
func (q Query) IsWrapped() bool {
	return q.wrapped
}

// Queries wraps each statement with Naked, preserving order.
func Queries(sqls ...string) []Query {
	out := make([]Query, len(sqls))
	for i, s := range sqls {
		out[i] = Naked(s)
	}
	return out
}

// Limit1 rewrites q to return at most one row:
//
//	SELECT * FROM (<q>
//	) AS cxtmp LIMIT 1
func Limit1(q Query) (Query, error) {
	from, err := subquery(q)
	if err != nil {
		return Query{}, err
	}
	return build(sq.Select("*").From(from).Limit(1))
}

// Count rewrites q to return its number of rows:
//
//	SELECT COUNT(*) FROM (<q>
//	) AS cxtmp
func Count(q Query) (Query, error) {
	from, err := subquery(q)
	if err != nil {
		return Query{}, err
	}
	return build(sq.Select("COUNT(*)").From(from))
}

// subquery strips trailing terminators, which Trino rejects inside
// parentheses. The closing parenthesis goes on its own line so a trailing
// line comment cannot swallow it.
func subquery(q Query) (string, error) {
	stmt := strings.TrimRight(strings.TrimSpace(q.sql), "; \t\r\n")
	if stmt == "" {
		return "", ErrEmptyStatement
	}
	return fmt.Sprintf("(%s\n) AS %s", stmt, subqueryAlias), nil
}

func build(b sq.SelectBuilder) (Query, error) {
	sql, _, err := b.ToSql()
	if err != nil {
		return Query{}, fmt.Errorf("failed to build derived query: %w", err)
	}
	return Wrapped(sql), nil
}
