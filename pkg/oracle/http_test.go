package oracle

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/agentoracle/platform/pkg/common/models"
	"github.com/gorilla/mux"
)

func newTestAPI(t *testing.T, store Store, fleet int) (*mux.Router, *Service) {
	t.Helper()

	coordinator := NewCoordinator(store, fleetWithValues([]float64{100, 100, 105, 95, 200}[:fleet], 0))
	svc := NewService(NewValidator(), store, coordinator, nil, nil, nil, ServiceOptions{
		DispatchMode: DispatchModeInline,
		ActiveAgents: fleet,
	})

	router := mux.NewRouter()
	NewHTTPHandler(svc, 1024*1024).Register(router)
	return router, svc
}

func postJSON(t *testing.T, router *mux.Router, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshaling body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateRequestReturnsPending(t *testing.T) {
	router, svc := newTestAPI(t, NewMemoryStore(), 5)

	rec := postJSON(t, router, "/oracle/requests", models.CreateRequest{
		Query:    "bitcoin price",
		DataType: "crypto_price",
		Params:   map[string]interface{}{"pair": "bitcoin"},
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp models.CreateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.RequestID == "" {
		t.Fatal("expected a request id")
	}
	if resp.Status != models.StatusPending {
		t.Fatalf("expected pending, got %s", resp.Status)
	}

	svc.Wait()
}

func TestCreateRequestRejectsUnknownDataType(t *testing.T) {
	router, _ := newTestAPI(t, NewMemoryStore(), 5)

	rec := postJSON(t, router, "/oracle/requests", models.CreateRequest{DataType: "stock_price"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCreateRequestRejectsMalformedBody(t *testing.T) {
	router, _ := newTestAPI(t, NewMemoryStore(), 5)

	req := httptest.NewRequest(http.MethodPost, "/oracle/requests", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestResultEndpointAfterProcessing(t *testing.T) {
	store := NewMemoryStore()
	router, svc := newTestAPI(t, store, 5)

	rec := postJSON(t, router, "/oracle/requests", models.CreateRequest{
		Query:    "bitcoin price",
		DataType: "crypto_price",
	})
	var created models.CreateResponse
	json.Unmarshal(rec.Body.Bytes(), &created)

	// Inline dispatch is tracked; wait for the pipeline to settle.
	svc.Wait()

	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, httptest.NewRequest(http.MethodGet, "/oracle/requests/"+created.RequestID, nil))
	if getRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", getRec.Code)
	}

	var result ResultResponse
	if err := json.Unmarshal(getRec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if result.Request.Status != models.StatusCompleted {
		t.Fatalf("expected completed, got %s", result.Request.Status)
	}
	if result.Request.ConsensusValue == nil || *result.Request.ConsensusValue != 100 {
		t.Fatalf("expected consensus 100, got %v", result.Request.ConsensusValue)
	}
	if len(result.Submissions) != 5 {
		t.Fatalf("expected 5 submissions, got %d", len(result.Submissions))
	}
	for _, sub := range result.Submissions {
		if sub.IsConsensus == nil {
			t.Fatalf("submission %s missing consensus flag", sub.ID)
		}
	}
}

func TestResultEndpointUnknownID(t *testing.T) {
	router, _ := newTestAPI(t, NewMemoryStore(), 5)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oracle/requests/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	store := NewMemoryStore()
	router, svc := newTestAPI(t, store, 5)

	postJSON(t, router, "/oracle/requests", models.CreateRequest{DataType: "crypto_price"})
	svc.Wait()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oracle/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var stats models.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decoding stats: %v", err)
	}
	if stats.TotalRequests != 1 || stats.CompletedRequests != 1 {
		t.Fatalf("unexpected request counts: %+v", stats)
	}
	if stats.TotalSubmissions != 5 {
		t.Fatalf("expected 5 submissions, got %d", stats.TotalSubmissions)
	}
	if stats.ActiveAgents != 5 {
		t.Fatalf("expected 5 active agents, got %d", stats.ActiveAgents)
	}
	if stats.TotalValue != 100 {
		t.Fatalf("expected total value 100, got %v", stats.TotalValue)
	}
}

func TestRecentEndpointHonorsLimit(t *testing.T) {
	store := NewMemoryStore()
	router, svc := newTestAPI(t, store, 1)

	for i := 0; i < 3; i++ {
		postJSON(t, router, "/oracle/requests", models.CreateRequest{DataType: "crypto_price"})
	}
	svc.Wait()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oracle/requests?limit=2", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var requests []Request
	if err := json.Unmarshal(rec.Body.Bytes(), &requests); err != nil {
		t.Fatalf("decoding list: %v", err)
	}
	if len(requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(requests))
	}
}
