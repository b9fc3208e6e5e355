// Package trino is a row source that loads query results from a Trino
// coordinator into typed values.
//
// A Source is built from a connection string, given the queries to load,
// and asked for their schema. It then splits into one Partition per query.
// Each Partition runs its query to completion and returns a Parser, which
// yields the result cells in row order with the column fastest:
//
//	src, err := trino.NewSource("trino://alice@coordinator:8080/hive")
//	if err != nil {
//	    return err
//	}
//	src.SetQueries(query.Queries("SELECT id, name FROM users"))
//	if err := src.FetchMetadata(ctx); err != nil {
//	    return err
//	}
//	for _, part := range src.Partition() {
//	    p, err := part.Parser(ctx)
//	    if err != nil {
//	        return err
//	    }
//	    n, _ := p.FetchNext()
//	    for range n {
//	        id, err := p.ProduceNullInt64()
//	        // ...
//	        name, err := p.ProduceNullString()
//	        // ...
//	    }
//	}
//
// Callers pick the Produce method from the column's Type. Failures match
// the sentinel errors of this package through errors.Is.
package trino
