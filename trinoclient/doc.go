// Package trinoclient is a small client for the Trino statement protocol.
//
// It posts SQL to a coordinator's /v1/statement endpoint, follows nextUri
// links until the query finishes and exposes the column metadata and JSON
// rows of the result:
//
//	client, err := trinoclient.NewClient("https://trino.example.com:443")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	session := client.NewSession().UserPassword("alice", "secret").Catalog("hive")
//
//	data, err := session.GetAll(ctx, "SELECT id, name FROM users")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, row := range data.Rows {
//	    // row[i] is nil, bool, json.Number, string, []any or map[string]any
//	}
//
// A Client is immutable after construction and can be shared between
// goroutines. Sessions carry the per-query headers and are cheap to clone.
package trinoclient
