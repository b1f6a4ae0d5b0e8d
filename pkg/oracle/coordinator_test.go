package oracle

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/agentoracle/platform/pkg/agents"
	"github.com/agentoracle/platform/pkg/common/models"
	"github.com/agentoracle/platform/pkg/fetch"
	"gorm.io/datatypes"
)

type fixedSource struct {
	name  string
	value float64
	err   error
}

func (s *fixedSource) Name() string { return s.name }

func (s *fixedSource) Fetch(ctx context.Context, q fetch.Query) (float64, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.value, nil
}

func testIdentity(id, name string, src fetch.SourceClient) agents.Identity {
	return agents.Identity{
		ID:   id,
		Name: name,
		Fetcher: fetch.NewFetcher(map[fetch.DataType][]fetch.SourceClient{
			fetch.DataTypeCryptoPrice: {src},
		}, fetch.DefaultCacheTTL, fetch.DefaultSourceTimeout),
	}
}

func fleetWithValues(values []float64, failing int) []agents.Identity {
	fleet := make([]agents.Identity, 0, len(values)+failing)
	for i, v := range values {
		id := fmt.Sprintf("agent-%03d", i+1)
		fleet = append(fleet, testIdentity(id, "Agent "+id, &fixedSource{name: "Stub", value: v}))
	}
	for i := 0; i < failing; i++ {
		id := fmt.Sprintf("agent-%03d", len(values)+i+1)
		fleet = append(fleet, testIdentity(id, "Agent "+id, &fixedSource{name: "Stub", err: errors.New("down")}))
	}
	return fleet
}

func pendingRequest(store Store, t *testing.T) *Request {
	t.Helper()
	req := &Request{
		ID:        "req-1",
		Query:     "bitcoin price",
		DataType:  models.DataTypeCryptoPrice,
		Params:    datatypes.JSONMap{"pair": "bitcoin"},
		Status:    models.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := store.CreateRequest(context.Background(), req); err != nil {
		t.Fatalf("creating request: %v", err)
	}
	return req
}

func TestProcessCompletesWithConsensus(t *testing.T) {
	store := NewMemoryStore()
	fleet := fleetWithValues([]float64{100, 100, 105, 95, 200}, 0)
	coordinator := NewCoordinator(store, fleet)
	if err := coordinator.SeedAgents(context.Background()); err != nil {
		t.Fatalf("seeding agents: %v", err)
	}
	req := pendingRequest(store, t)

	if err := coordinator.Process(context.Background(), req.ID); err != nil {
		t.Fatalf("process: %v", err)
	}

	stored, err := store.GetRequest(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if stored.Status != models.StatusCompleted {
		t.Fatalf("expected completed, got %s", stored.Status)
	}
	if stored.ConsensusValue == nil || *stored.ConsensusValue != 100 {
		t.Fatalf("expected consensus value 100, got %v", stored.ConsensusValue)
	}
	if stored.CompletedAt == nil {
		t.Fatal("expected completedAt to be set")
	}

	subs, err := store.SubmissionsByRequest(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("submissions: %v", err)
	}
	if len(subs) != 5 {
		t.Fatalf("expected 5 submissions, got %d", len(subs))
	}

	outliers := 0
	for _, sub := range subs {
		if sub.IsConsensus == nil {
			t.Fatalf("submission %s has unset isConsensus", sub.ID)
		}
		if !*sub.IsConsensus {
			outliers++
			if sub.Value != 200 {
				t.Fatalf("unexpected outlier value %v", sub.Value)
			}
		}
	}
	if outliers != 1 {
		t.Fatalf("expected exactly 1 outlier, got %d", outliers)
	}
}

func TestProcessFailedAgentsProduceNoSubmissions(t *testing.T) {
	store := NewMemoryStore()
	fleet := fleetWithValues([]float64{50, 50}, 3)
	coordinator := NewCoordinator(store, fleet)
	req := pendingRequest(store, t)

	if err := coordinator.Process(context.Background(), req.ID); err != nil {
		t.Fatalf("process: %v", err)
	}

	stored, _ := store.GetRequest(context.Background(), req.ID)
	if stored.Status != models.StatusCompleted {
		t.Fatalf("expected completed with partial fleet, got %s", stored.Status)
	}

	subs, _ := store.SubmissionsByRequest(context.Background(), req.ID)
	if len(subs) != 2 {
		t.Fatalf("expected 2 submissions from the 2 healthy agents, got %d", len(subs))
	}
}

func TestProcessZeroSuccessesFailsRequest(t *testing.T) {
	store := NewMemoryStore()
	fleet := fleetWithValues(nil, 5)
	coordinator := NewCoordinator(store, fleet)
	req := pendingRequest(store, t)

	if err := coordinator.Process(context.Background(), req.ID); err != nil {
		t.Fatalf("process: %v", err)
	}

	stored, _ := store.GetRequest(context.Background(), req.ID)
	if stored.Status != models.StatusFailed {
		t.Fatalf("expected failed, got %s", stored.Status)
	}
	if stored.ConsensusValue != nil {
		t.Fatalf("expected no consensus value, got %v", *stored.ConsensusValue)
	}
	if stored.CompletedAt == nil {
		t.Fatal("expected completedAt on failure")
	}

	subs, _ := store.SubmissionsByRequest(context.Background(), req.ID)
	if len(subs) != 0 {
		t.Fatalf("expected no submissions, got %d", len(subs))
	}
}

func TestProcessIsIdempotentForTerminalRequests(t *testing.T) {
	store := NewMemoryStore()
	fleet := fleetWithValues([]float64{100, 110}, 0)
	coordinator := NewCoordinator(store, fleet)
	req := pendingRequest(store, t)

	if err := coordinator.Process(context.Background(), req.ID); err != nil {
		t.Fatalf("first process: %v", err)
	}

	first, _ := store.GetRequest(context.Background(), req.ID)
	firstSubs, _ := store.SubmissionsByRequest(context.Background(), req.ID)

	if err := coordinator.Process(context.Background(), req.ID); err != nil {
		t.Fatalf("second process: %v", err)
	}

	second, _ := store.GetRequest(context.Background(), req.ID)
	secondSubs, _ := store.SubmissionsByRequest(context.Background(), req.ID)

	if *first.ConsensusValue != *second.ConsensusValue {
		t.Fatalf("consensus value changed on reprocess: %v -> %v", *first.ConsensusValue, *second.ConsensusValue)
	}
	if len(firstSubs) != len(secondSubs) {
		t.Fatalf("submissions changed on reprocess: %d -> %d", len(firstSubs), len(secondSubs))
	}
}

func TestProcessUnknownRequestIsANoop(t *testing.T) {
	store := NewMemoryStore()
	coordinator := NewCoordinator(store, fleetWithValues([]float64{1}, 0))

	if err := coordinator.Process(context.Background(), "missing"); err != nil {
		t.Fatalf("expected nil for unknown request, got %v", err)
	}
}

func TestProcessUpdatesAgentRegistry(t *testing.T) {
	store := NewMemoryStore()
	fleet := fleetWithValues([]float64{10}, 1)
	coordinator := NewCoordinator(store, fleet)
	if err := coordinator.SeedAgents(context.Background()); err != nil {
		t.Fatalf("seeding agents: %v", err)
	}
	req := pendingRequest(store, t)

	if err := coordinator.Process(context.Background(), req.ID); err != nil {
		t.Fatalf("process: %v", err)
	}

	registered, err := store.ListAgents(context.Background())
	if err != nil {
		t.Fatalf("list agents: %v", err)
	}
	if len(registered) != 2 {
		t.Fatalf("expected 2 agents, got %d", len(registered))
	}
	for _, agent := range registered {
		if agent.TotalRequests != 1 {
			t.Fatalf("agent %s: expected 1 total request, got %d", agent.AgentID, agent.TotalRequests)
		}
	}
	if registered[0].SuccessfulSubmissions != 1 {
		t.Fatalf("expected healthy agent to record a success, got %d", registered[0].SuccessfulSubmissions)
	}
	if registered[1].SuccessfulSubmissions != 0 {
		t.Fatalf("expected failing agent to record no success, got %d", registered[1].SuccessfulSubmissions)
	}
}
