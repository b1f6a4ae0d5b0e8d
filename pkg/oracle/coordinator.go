package oracle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/agentoracle/platform/pkg/agents"
	"github.com/agentoracle/platform/pkg/common/logger"
	"github.com/agentoracle/platform/pkg/consensus"
	"github.com/agentoracle/platform/pkg/fetch"
	"github.com/agentoracle/platform/pkg/observability/metrics"
	"github.com/google/uuid"
)

// Coordinator owns the request lifecycle. Process claims a pending request,
// fans the fetch out to every configured agent identity, waits for all of
// them, then runs the consensus step and settles the request.
type Coordinator struct {
	store  Store
	agents []agents.Identity
}

func NewCoordinator(store Store, fleet []agents.Identity) *Coordinator {
	return &Coordinator{store: store, agents: fleet}
}

// SeedAgents registers the fleet in the agent registry so per-agent counters
// have rows to land on.
func (c *Coordinator) SeedAgents(ctx context.Context) error {
	for _, ag := range c.agents {
		record := &Agent{
			AgentID:  ag.ID,
			Name:     ag.Name,
			Stake:    ag.Stake,
			IsActive: true,
		}
		if err := c.store.UpsertAgent(ctx, record); err != nil {
			return fmt.Errorf("seeding agent %s: %w", ag.ID, err)
		}
	}
	return nil
}

type agentResult struct {
	agent    agents.Identity
	result   fetch.Result
	duration time.Duration
}

// Process runs one request through the state machine. It is safe to invoke
// more than once for the same id: only the caller that wins the
// pending -> processing claim does any work.
func (c *Coordinator) Process(ctx context.Context, requestID string) error {
	req, err := c.store.GetRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			logger.Log.WithField("request_id", requestID).Warn("request to process not found")
			return nil
		}
		return fmt.Errorf("loading request %s: %w", requestID, err)
	}

	// The claim must be durable before any submission is written, so a
	// concurrent reader never sees a pending request with submissions.
	claimed, err := c.store.MarkProcessing(ctx, requestID)
	if err != nil {
		return fmt.Errorf("claiming request %s: %w", requestID, err)
	}
	if !claimed {
		logger.Log.WithFields(map[string]interface{}{
			"request_id": requestID,
			"status":     req.Status,
		}).Info("request already claimed, skipping")
		return nil
	}

	q, err := QueryFromRecord(req)
	if err != nil {
		logger.Log.WithError(err).WithField("request_id", requestID).Error("stored request failed revalidation")
		if failErr := c.store.FailRequest(ctx, requestID, time.Now().UTC()); failErr != nil {
			return fmt.Errorf("failing request %s: %w", requestID, failErr)
		}
		metrics.IncRequestFailed()
		return nil
	}

	results := c.fanOut(ctx, q)

	successes := make([]Submission, 0, len(results))
	answers := make([]consensus.Answer, 0, len(results))
	cacheHits := 0
	fallbacks := 0

	for _, ar := range results {
		if ar.result.Cached {
			cacheHits++
		}
		if ar.result.Attempts > 1 {
			fallbacks += ar.result.Attempts - 1
		}

		if recErr := c.store.RecordAgentResult(ctx, ar.agent.ID, ar.result.Success, ar.result.Timestamp); recErr != nil {
			logger.Log.WithError(recErr).WithField("agent_id", ar.agent.ID).Warn("failed to update agent registry")
		}

		if !ar.result.Success {
			// Failed agents contribute no submission.
			continue
		}

		sub := Submission{
			ID:             uuid.New().String(),
			RequestID:      requestID,
			AgentID:        ar.agent.ID,
			AgentName:      ar.agent.Name,
			Value:          ar.result.Value,
			Source:         ar.result.Source,
			Timestamp:      ar.result.Timestamp,
			ResponseTimeMS: ar.duration.Milliseconds(),
		}
		if err := c.store.CreateSubmission(ctx, &sub); err != nil {
			return fmt.Errorf("persisting submission for request %s: %w", requestID, err)
		}
		successes = append(successes, sub)
		answers = append(answers, consensus.Answer{AgentID: sub.AgentID, Value: sub.Value})
	}

	metrics.AddSubmissions(len(successes))
	metrics.AddFetchCacheHits(cacheHits)
	metrics.AddSourceFallbacks(fallbacks)

	now := time.Now().UTC()

	if len(successes) == 0 {
		if err := c.store.FailRequest(ctx, requestID, now); err != nil {
			return fmt.Errorf("failing request %s: %w", requestID, err)
		}
		metrics.IncRequestFailed()
		logger.Log.WithFields(map[string]interface{}{
			"request_id": requestID,
			"agents":     len(c.agents),
		}).Warn("request failed, no agent produced a submission")
		return nil
	}

	outcome, err := consensus.Compute(answers)
	if err != nil {
		return fmt.Errorf("computing consensus for request %s: %w", requestID, err)
	}

	for _, sub := range successes {
		if err := c.store.SetConsensusFlag(ctx, sub.ID, outcome.Classification[sub.AgentID]); err != nil {
			return fmt.Errorf("flagging submission %s: %w", sub.ID, err)
		}
	}

	if err := c.store.CompleteRequest(ctx, requestID, outcome.Median, now); err != nil {
		return fmt.Errorf("completing request %s: %w", requestID, err)
	}
	metrics.IncRequestCompleted()

	logger.Log.WithFields(map[string]interface{}{
		"request_id":  requestID,
		"data_type":   req.DataType,
		"submissions": len(successes),
		"consensus":   outcome.Median,
	}).Info("request completed")

	return nil
}

// fanOut dispatches the query to every agent concurrently and joins all of
// them. Each agent's own fallback chain stays sequential inside its Fetcher.
func (c *Coordinator) fanOut(ctx context.Context, q fetch.Query) []agentResult {
	results := make([]agentResult, len(c.agents))

	var wg sync.WaitGroup
	for i, ag := range c.agents {
		wg.Add(1)
		go func(i int, ag agents.Identity) {
			defer wg.Done()
			start := time.Now()
			res := ag.Fetcher.Fetch(ctx, q)
			results[i] = agentResult{agent: ag, result: res, duration: time.Since(start)}
		}(i, ag)
	}
	wg.Wait()

	return results
}
