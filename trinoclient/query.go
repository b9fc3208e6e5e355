package trinoclient

import (
	"context"
	"net/http"
)

// requestQueryResults executes req and decodes the response as QueryResults.
// A server-reported query failure is returned as *QueryError together with
// the decoded results.
func (s *Session) requestQueryResults(ctx context.Context, req *http.Request) (*QueryResults, *http.Response, error) {
	qr := new(QueryResults)
	resp, err := s.Do(ctx, req, qr)
	if err != nil {
		return nil, resp, err
	}
	qr.session = s
	if qr.Error != nil {
		return qr, resp, qr.Error
	}
	return qr, resp, nil
}

// Query submits a SQL statement and returns the first response of the
// statement protocol. The first response usually carries no data; follow
// NextUri with FetchNextBatch or Drain, or use GetAll.
//
// Example:
//
//	results, _, err := session.Query(ctx, "SELECT * FROM my_table LIMIT 100")
//	if err != nil {
//	    return err
//	}
func (s *Session) Query(ctx context.Context, query string, opts ...RequestOption) (*QueryResults, *http.Response, error) {
	req, err := s.NewRequest("POST", "v1/statement", query, opts...)
	if err != nil {
		return nil, nil, err
	}

	return s.requestQueryResults(ctx, req)
}

// FetchNextBatch retrieves the response at nextUri (taken from QueryResults.NextUri).
func (s *Session) FetchNextBatch(ctx context.Context, nextUri string, opts ...RequestOption) (*QueryResults, *http.Response, error) {
	req, err := s.NewRequest("GET", nextUri, nil, opts...)
	if err != nil {
		return nil, nil, err
	}

	return s.requestQueryResults(ctx, req)
}

// CancelQuery cancels a running query identified by its current nextUri.
func (s *Session) CancelQuery(ctx context.Context, nextUri string, opts ...RequestOption) (*QueryResults, *http.Response, error) {
	req, err := s.NewRequest("DELETE", nextUri, nil, opts...)
	if err != nil {
		return nil, nil, err
	}

	return s.requestQueryResults(ctx, req)
}
