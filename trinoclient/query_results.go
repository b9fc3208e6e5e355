package trinoclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// QueryRow represents a single row of data returned from a Trino query.
type QueryRow []any

// StatementStats is the progress block the coordinator attaches to every response.
type StatementStats struct {
	State           string `json:"state"`
	Queued          bool   `json:"queued"`
	Scheduled       bool   `json:"scheduled"`
	Nodes           int    `json:"nodes"`
	TotalSplits     int    `json:"totalSplits"`
	QueuedSplits    int    `json:"queuedSplits"`
	RunningSplits   int    `json:"runningSplits"`
	CompletedSplits int    `json:"completedSplits"`
	CPUTimeMillis   int64  `json:"cpuTimeMillis"`
	WallTimeMillis  int64  `json:"wallTimeMillis"`
	ProcessedRows   int64  `json:"processedRows"`
	ProcessedBytes  int64  `json:"processedBytes"`
}

// QueryResults represents one response of the statement protocol.
// For large result sets, data is returned in batches, with NextUri pointing to the next batch.
type QueryResults struct {
	// Id is the unique identifier for this query
	Id string `json:"id"`

	// InfoUri is a URI that can be used to get information about the query
	InfoUri string `json:"infoUri"`

	// PartialCancelUri is a URI that can be used to cancel parts of the query
	PartialCancelUri *string `json:"partialCancelUri,omitempty"`

	// NextUri is a URI that can be used to fetch the next batch of results
	// If nil, there are no more results to fetch
	NextUri *string `json:"nextUri,omitempty"`

	// Columns contains metadata about the columns in the result set.
	// The coordinator may omit it until the query starts producing output.
	Columns []Column `json:"columns,omitempty"`

	// Data contains the rows of this batch as raw JSON arrays
	Data []json.RawMessage `json:"data,omitempty"`

	Stats StatementStats `json:"stats"`

	// Error is set when the query failed
	Error *QueryError `json:"error,omitempty"`

	Warnings []Warning `json:"warnings"`

	// UpdateType and UpdateCount are reported for INSERT, UPDATE, DELETE
	UpdateType  *string `json:"updateType,omitempty"`
	UpdateCount *int64  `json:"updateCount,omitempty"`

	// session is used for fetching additional batches
	session *Session
}

// HasMoreBatch returns true if there are more batches of results to fetch.
func (qr *QueryResults) HasMoreBatch() bool {
	return qr != nil && qr.NextUri != nil
}

// FetchNextBatch retrieves the next batch of results for this query and
// replaces the contents of qr with it. Empty intermediate batches (queued or
// planning responses) are skipped until data arrives or the query ends.
//
// If the context is canceled during the fetch, the query is canceled on the
// server to avoid leaking coordinator resources, and a wrapped context error
// is returned.
func (qr *QueryResults) FetchNextBatch(ctx context.Context) error {
	if qr == nil {
		return errors.New("cannot fetch next batch: nil QueryResults")
	}
	if qr.session == nil {
		return errors.New("cannot fetch next batch: no session associated with results")
	}

	for qr.NextUri != nil {
		nextUri := *qr.NextUri
		newQr, _, err := qr.session.FetchNextBatch(ctx, nextUri)
		if err != nil {
			if ctx.Err() != nil {
				// Use background context for cleanup to ensure it executes despite cancellation
				_, _, cancelErr := qr.session.CancelQuery(context.Background(), nextUri)
				if cancelErr != nil {
					log.Debug().Err(cancelErr).Str("query_id", qr.Id).Msg("failed to cancel query after context cancellation")
				} else {
					log.Debug().Str("query_id", qr.Id).Msg("successfully canceled query because the context was cancelled")
				}
				return fmt.Errorf("fetch next batch failed due to context cancellation for query %s: %w", qr.Id, err)
			}
			return fmt.Errorf("fetch next batch failed for query %s: %w", qr.Id, err)
		}

		// Columns are only sent once on some coordinators; keep what we have.
		columns := qr.Columns
		*qr = *newQr
		if len(qr.Columns) == 0 {
			qr.Columns = columns
		}

		if len(qr.Data) > 0 {
			break
		}
	}
	return nil
}

// ResultBatchHandler is a function type for processing batches of query results.
type ResultBatchHandler func(qr *QueryResults) error

// Drain fetches and processes all remaining batches of results for this query.
// It clears data after each batch to optimize memory usage.
func (qr *QueryResults) Drain(ctx context.Context, handler ResultBatchHandler) error {
	if qr == nil {
		return errors.New("cannot drain results: nil QueryResults")
	}
	for qr.HasMoreBatch() {
		if err := qr.FetchNextBatch(ctx); err != nil {
			return fmt.Errorf("drain operation failed: %w", err)
		}
		if handler != nil {
			if err := handler(qr); err != nil {
				qr.Data = nil
				return fmt.Errorf("batch handler returned error for query %s: %w", qr.Id, err)
			}
		}
		qr.Data = nil
	}
	return nil
}
