package oracle

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/agentoracle/platform/pkg/common/models"
)

// MemoryStore is a mutex-guarded in-memory Store with the same patch
// semantics as the PostgreSQL repository. Used in tests and for running the
// service without a database.
type MemoryStore struct {
	mu          sync.RWMutex
	requests    map[string]*Request
	submissions map[string]*Submission
	agents      map[string]*Agent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		requests:    make(map[string]*Request),
		submissions: make(map[string]*Submission),
		agents:      make(map[string]*Agent),
	}
}

func (m *MemoryStore) CreateRequest(ctx context.Context, req *Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *req
	m.requests[req.ID] = &clone
	return nil
}

func (m *MemoryStore) GetRequest(ctx context.Context, id string) (*Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	req, ok := m.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *req
	return &clone, nil
}

func (m *MemoryStore) ListRecentRequests(ctx context.Context, limit int) ([]Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	requests := make([]Request, 0, len(m.requests))
	for _, req := range m.requests {
		requests = append(requests, *req)
	}
	sort.Slice(requests, func(i, j int) bool {
		return requests[i].CreatedAt.After(requests[j].CreatedAt)
	})
	if limit > 0 && len(requests) > limit {
		requests = requests[:limit]
	}
	return requests, nil
}

func (m *MemoryStore) MarkProcessing(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.requests[id]
	if !ok || req.Status != models.StatusPending {
		return false, nil
	}
	req.Status = models.StatusProcessing
	return true, nil
}

func (m *MemoryStore) CompleteRequest(ctx context.Context, id string, consensusValue float64, completedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.requests[id]
	if !ok || req.Status != models.StatusProcessing {
		return nil
	}
	req.Status = models.StatusCompleted
	req.ConsensusValue = &consensusValue
	req.CompletedAt = &completedAt
	return nil
}

func (m *MemoryStore) FailRequest(ctx context.Context, id string, completedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.requests[id]
	if !ok {
		return nil
	}
	if req.Status != models.StatusPending && req.Status != models.StatusProcessing {
		return nil
	}
	req.Status = models.StatusFailed
	req.CompletedAt = &completedAt
	return nil
}

func (m *MemoryStore) CreateSubmission(ctx context.Context, sub *Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *sub
	m.submissions[sub.ID] = &clone
	return nil
}

func (m *MemoryStore) SubmissionsByRequest(ctx context.Context, requestID string) ([]Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	subs := make([]Submission, 0)
	for _, sub := range m.submissions {
		if sub.RequestID == requestID {
			subs = append(subs, *sub)
		}
	}
	sort.Slice(subs, func(i, j int) bool {
		return subs[i].Timestamp.Before(subs[j].Timestamp)
	})
	return subs, nil
}

func (m *MemoryStore) SetConsensusFlag(ctx context.Context, submissionID string, isConsensus bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.submissions[submissionID]
	if !ok {
		return nil
	}
	flag := isConsensus
	sub.IsConsensus = &flag
	return nil
}

func (m *MemoryStore) UpsertAgent(ctx context.Context, agent *Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.agents[agent.AgentID]
	if !ok {
		clone := *agent
		m.agents[agent.AgentID] = &clone
		return nil
	}
	existing.Name = agent.Name
	existing.Stake = agent.Stake
	existing.IsActive = agent.IsActive
	return nil
}

func (m *MemoryStore) ListAgents(ctx context.Context) ([]Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	agents := make([]Agent, 0, len(m.agents))
	for _, agent := range m.agents {
		agents = append(agents, *agent)
	}
	sort.Slice(agents, func(i, j int) bool {
		return agents[i].AgentID < agents[j].AgentID
	})
	return agents, nil
}

func (m *MemoryStore) RecordAgentResult(ctx context.Context, agentID string, successful bool, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	agent, ok := m.agents[agentID]
	if !ok {
		return nil
	}
	agent.TotalRequests++
	if successful {
		agent.SuccessfulSubmissions++
	}
	last := at
	agent.LastActive = &last
	return nil
}

func (m *MemoryStore) Stats(ctx context.Context) (models.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var stats models.Stats
	for _, req := range m.requests {
		stats.TotalRequests++
		if req.Status == models.StatusCompleted {
			stats.CompletedRequests++
			if req.ConsensusValue != nil {
				stats.TotalValue += *req.ConsensusValue
			}
		}
	}

	var consensusCount int64
	for _, sub := range m.submissions {
		stats.TotalSubmissions++
		if sub.IsConsensus != nil && *sub.IsConsensus {
			consensusCount++
		}
	}
	if stats.TotalSubmissions > 0 {
		stats.ConsensusRate = int(float64(consensusCount)/float64(stats.TotalSubmissions)*100 + 0.5)
	}

	return stats, nil
}
