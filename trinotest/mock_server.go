// Package trinotest provides an in-process Trino coordinator for tests.
package trinotest

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/majkshkurti/connector-x/trinoclient"
)

// --- Data Models ---

// QueryState represents the life-cycle stages of a Trino query.
type QueryState string

const (
	QueryStateQueued    QueryState = "QUEUED"
	QueryStateRunning   QueryState = "RUNNING"
	QueryStateCancelled QueryState = "CANCELLED"
	QueryStateFinished  QueryState = "FINISHED"
	QueryStateFailed    QueryState = "FAILED"
)

func (qs QueryState) String() string {
	return string(qs)
}

// generateMockSlug creates a random string to simulate the coordinator security slug.
func generateMockSlug() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// MockQueryTemplate defines the static result set for a specific SQL string.
//
// The server splits Data into DataBatches sequential windows of
// ceil(len(Data)/DataBatches) rows. The first response of a query and any
// further QueueBatches-1 polls carry no data, like a real coordinator that
// is still queueing the statement. DataBatches is capped at the row count
// when the template is registered.
type MockQueryTemplate struct {
	SQL          string                  // The SQL query string used for template matching.
	DataBatches  int                     // The number of data splits, capped by row count.
	QueueBatches int                     // The number of batches it is in queue for. It should be at least 1.
	Columns      []trinoclient.Column    // Metadata describing the result set columns.
	Data         [][]any                 // The full result set partitioned across batches.
	Error        *trinoclient.QueryError // Optional error to simulate a query failure.
	Latency      time.Duration           // Latency for the query execution.
}

// MockActiveQuery represents a live execution instance of a template.
type MockActiveQuery struct {
	ID        string
	Template  *MockQueryTemplate
	State     QueryState
	QueuedFor int // How many batches it has stayed in the "QUEUED" state.
}

// RecordedRequest is what the server saw of one submitted statement.
type RecordedRequest struct {
	SQL    string
	Header http.Header
}

// --- Mock Server Implementation ---

// MockTrinoServer simulates a Trino coordinator for integration testing.
type MockTrinoServer struct {
	server *httptest.Server

	templates     map[string]*MockQueryTemplate
	activeQueries map[string]*MockActiveQuery
	submitted     []RecordedRequest

	queriesMutex sync.RWMutex // Protects maps during concurrent test execution.

	defaultLatency time.Duration

	// Basic credentials required on every request when authUser is set.
	authUser     string
	authPassword string

	queryIDCounter atomic.Int64
	today          string // Cached date string for optimized ID generation.
}

// NewMockTrinoServer starts a mock coordinator on a loopback port.
func NewMockTrinoServer() *MockTrinoServer {
	mock := &MockTrinoServer{
		templates:     make(map[string]*MockQueryTemplate),
		activeQueries: make(map[string]*MockActiveQuery),
		today:         time.Now().Format("20060102"),
	}

	mux := http.NewServeMux()

	// POST /v1/statement: Initiates a new query with a server-generated ID.
	mux.HandleFunc("POST /v1/statement", mock.handleNewQuery)

	// GET /v1/statement/{status}/{queryId}/{batchId}: Polls for the next data batch.
	mux.HandleFunc("GET /v1/statement/{status}/{queryId}/{batchId}", mock.handleFetchNextBatch)

	// DELETE /v1/statement/{status}/{queryId}/{batchId}: Cancels a running query.
	mux.HandleFunc("DELETE /v1/statement/{status}/{queryId}/{batchId}", mock.handleCancelQuery)

	mock.server = httptest.NewServer(mock.withAuth(mux))

	return mock
}

// AddQuery registers a SQL template and pre-calculates the valid DataBatches.
func (m *MockTrinoServer) AddQuery(tmpl *MockQueryTemplate) {
	m.queriesMutex.Lock()
	defer m.queriesMutex.Unlock()

	if totalRows := len(tmpl.Data); totalRows < tmpl.DataBatches {
		tmpl.DataBatches = totalRows
	}
	if tmpl.DataBatches < 1 && len(tmpl.Data) > 0 {
		tmpl.DataBatches = 1
	}
	if tmpl.QueueBatches < 1 {
		tmpl.QueueBatches = 1
	}

	m.templates[tmpl.SQL] = tmpl
}

// SetDefaultLatency configures the fallback query latency.
func (m *MockTrinoServer) SetDefaultLatency(latency time.Duration) {
	m.defaultLatency = latency
}

// RequireBasicAuth makes the server answer 401 to requests without these credentials.
func (m *MockTrinoServer) RequireBasicAuth(user, password string) {
	m.queriesMutex.Lock()
	defer m.queriesMutex.Unlock()
	m.authUser = user
	m.authPassword = password
}

// Submitted returns every statement posted so far, in arrival order.
func (m *MockTrinoServer) Submitted() []RecordedRequest {
	m.queriesMutex.RLock()
	defer m.queriesMutex.RUnlock()
	out := make([]RecordedRequest, len(m.submitted))
	copy(out, m.submitted)
	return out
}

// SubmittedSQL returns the SQL text of every posted statement.
func (m *MockTrinoServer) SubmittedSQL() []string {
	reqs := m.Submitted()
	out := make([]string, len(reqs))
	for i, r := range reqs {
		out[i] = r.SQL
	}
	return out
}

// --- Request Handlers ---

func (m *MockTrinoServer) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.queriesMutex.RLock()
		user, password := m.authUser, m.authPassword
		m.queriesMutex.RUnlock()

		if user != "" {
			u, p, ok := r.BasicAuth()
			if !ok || u != user || p != password {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte("Unauthorized"))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// handleNewQuery manages SQL matching and MockActiveQuery instantiation.
func (m *MockTrinoServer) handleNewQuery(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	sql := string(body)
	queryID := m.newQueryID()

	m.queriesMutex.Lock()
	m.submitted = append(m.submitted, RecordedRequest{SQL: sql, Header: r.Header.Clone()})
	template, exists := m.templates[sql]
	if !exists {
		template = &MockQueryTemplate{
			SQL:          sql,
			DataBatches:  1,
			QueueBatches: 1,
			Columns: []trinoclient.Column{{
				Name:          "result",
				Type:          "varchar",
				TypeSignature: trinoclient.ClientTypeSignature{RawType: "varchar"},
			}},
			Data: [][]any{{"Query template not found; default success"}},
		}
	}
	m.activeQueries[queryID] = &MockActiveQuery{
		ID:       queryID,
		Template: template,
		State:    QueryStateQueued,
	}
	m.queriesMutex.Unlock()

	m.sendQueryResponse(w, queryID, 0)
}

func (m *MockTrinoServer) handleFetchNextBatch(w http.ResponseWriter, r *http.Request) {
	batchID, _ := strconv.Atoi(r.PathValue("batchId"))
	m.sendQueryResponse(w, r.PathValue("queryId"), batchID)
}

func (m *MockTrinoServer) handleCancelQuery(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("queryId")
	m.queriesMutex.Lock()
	if q, ok := m.activeQueries[id]; ok {
		q.State = QueryStateCancelled
		delete(m.activeQueries, id)
	}
	m.queriesMutex.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

// --- Protocol Response Logic ---

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// sendQueryResponse prepares a JSON payload and applies the template latency
// spread evenly over the query's requests.
func (m *MockTrinoServer) sendQueryResponse(w http.ResponseWriter, queryID string, batchID int) {
	m.queriesMutex.RLock()
	query, exists := m.activeQueries[queryID]
	if !exists {
		m.queriesMutex.RUnlock()
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Query not found"})
		return
	}

	totalLatency := m.defaultLatency
	if query.Template.Latency > 0 {
		totalLatency = query.Template.Latency
	}

	dataBatchCount := query.Template.DataBatches
	queueBatchCount := query.Template.QueueBatches
	totalRequests := dataBatchCount + queueBatchCount

	sleepDuration := totalLatency / time.Duration(totalRequests)
	m.queriesMutex.RUnlock()

	if sleepDuration > 0 {
		time.Sleep(sleepDuration)
	}

	m.queriesMutex.Lock()
	query, exists = m.activeQueries[queryID]
	if !exists {
		m.queriesMutex.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Query removed during processing"})
		return
	}
	defer m.queriesMutex.Unlock()

	if batchID == 0 {
		query.QueuedFor++
	}

	if query.QueuedFor >= queueBatchCount && query.State == QueryStateQueued {
		query.State = QueryStateRunning
	}

	resp := trinoclient.QueryResults{
		Id:      queryID,
		InfoUri: fmt.Sprintf("%s/ui/query.html?%s", m.server.URL, queryID),
		Stats: trinoclient.StatementStats{
			State:           string(query.State),
			Scheduled:       query.State != QueryStateQueued,
			TotalSplits:     dataBatchCount,
			CompletedSplits: batchID,
		},
	}

	// A failing template fails as soon as it leaves the queue.
	if query.Template.Error != nil && query.State == QueryStateRunning {
		query.State = QueryStateFailed
		resp.Stats.State = string(query.State)
		resp.Error = query.Template.Error
		delete(m.activeQueries, queryID)
		writeJSON(w, http.StatusOK, resp)
		return
	}

	hasMore := query.QueuedFor < queueBatchCount || batchID < dataBatchCount
	if !hasMore && query.State == QueryStateRunning {
		query.State = QueryStateFinished
		resp.Stats.State = string(query.State)
	}

	// Columns are known once the query runs.
	if query.State != QueryStateQueued {
		resp.Columns = query.Template.Columns
	}

	if hasMore {
		nextBatch := batchID + 1
		// If still in the queue loop, keep the client polling batch 0.
		if query.QueuedFor < queueBatchCount {
			nextBatch = 0
		}
		nextUri := fmt.Sprintf("%s/v1/statement/%s/%s/%d?slug=%s",
			m.server.URL, query.State, queryID, nextBatch, generateMockSlug())
		resp.NextUri = &nextUri
	}

	if batchID > 0 && dataBatchCount > 0 && len(query.Template.Data) > 0 {
		rowsPerBatch := (len(query.Template.Data) + dataBatchCount - 1) / dataBatchCount
		start := (batchID - 1) * rowsPerBatch
		if start < len(query.Template.Data) {
			end := min(start+rowsPerBatch, len(query.Template.Data))
			batchRows := query.Template.Data[start:end]
			resp.Data = make([]json.RawMessage, len(batchRows))
			for i, row := range batchRows {
				resp.Data[i], _ = json.Marshal(row)
			}
		}
	}

	if query.State == QueryStateFinished || query.State == QueryStateCancelled || query.State == QueryStateFailed {
		delete(m.activeQueries, queryID)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (m *MockTrinoServer) newQueryID() string {
	return fmt.Sprintf("%s_%05d", m.today, m.queryIDCounter.Add(1))
}

// URL returns the base URL of the mock server.
func (m *MockTrinoServer) URL() string { return m.server.URL }

// Host returns the host:port the server listens on.
func (m *MockTrinoServer) Host() string { return m.server.Listener.Addr().String() }

// Close shuts down the mock server.
func (m *MockTrinoServer) Close() { m.server.Close() }

// Column is a shorthand for building template columns from a Trino type string.
func Column(name, trinoType string) trinoclient.Column {
	raw := trinoType
	for i, r := range trinoType {
		if r == '(' {
			raw = trinoType[:i]
			break
		}
	}
	return trinoclient.Column{
		Name:          name,
		Type:          trinoType,
		TypeSignature: trinoclient.ClientTypeSignature{RawType: raw},
	}
}
