package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/agentoracle/platform/pkg/common/logger"
	"github.com/agentoracle/platform/pkg/common/models"
	"github.com/agentoracle/platform/pkg/observability/metrics"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	DispatchModeQueue  = "queue"
	DispatchModeInline = "inline"

	EventRequestCreated = "request-created"

	statsCacheKey = "oracle:stats"
)

// Publisher is the slice of the kafka producer the service needs.
type Publisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

// Service handles the synchronous API operations: request creation (with
// async dispatch), result retrieval, the recent listing, and stats.
type Service struct {
	validator    *Validator
	store        Store
	coordinator  *Coordinator
	producer     Publisher
	dlq          Publisher
	statsCache   *redis.Client
	statsTTL     time.Duration
	dispatchMode string
	activeAgents int

	inflight sync.WaitGroup
}

type ServiceOptions struct {
	DispatchMode string
	StatsTTL     time.Duration
	ActiveAgents int
}

func NewService(validator *Validator, store Store, coordinator *Coordinator, producer, dlq Publisher, statsCache *redis.Client, opts ServiceOptions) *Service {
	mode := opts.DispatchMode
	if mode == "" {
		mode = DispatchModeInline
	}
	return &Service{
		validator:    validator,
		store:        store,
		coordinator:  coordinator,
		producer:     producer,
		dlq:          dlq,
		statsCache:   statsCache,
		statsTTL:     opts.StatsTTL,
		dispatchMode: mode,
		activeAgents: opts.ActiveAgents,
	}
}

// Create validates the payload, persists the request as pending, and hands it
// to the dispatch mechanism. The response returns before processing finishes.
func (s *Service) Create(ctx context.Context, req models.CreateRequest) (*models.CreateResponse, error) {
	q, err := s.validator.Validate(req)
	if err != nil {
		return nil, err
	}

	record := &Request{
		ID:        uuid.New().String(),
		Query:     req.Query,
		DataType:  string(q.DataType),
		Params:    ParamsMap(q),
		Status:    models.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateRequest(ctx, record); err != nil {
		return nil, fmt.Errorf("persisting oracle request: %w", err)
	}
	metrics.IncRequestCreated()

	if err := s.dispatch(ctx, record.ID); err != nil {
		return nil, err
	}

	return &models.CreateResponse{
		RequestID: record.ID,
		Status:    models.StatusPending,
	}, nil
}

func (s *Service) dispatch(ctx context.Context, requestID string) error {
	if s.dispatchMode == DispatchModeQueue && s.producer != nil {
		payload := map[string]interface{}{"request_id": requestID}

		if err := s.producer.PublishEvent(ctx, EventRequestCreated, "oracle-api", payload); err != nil {
			logger.Log.WithError(err).WithField("request_id", requestID).Error("failed to enqueue request")
			if failErr := s.store.FailRequest(ctx, requestID, time.Now().UTC()); failErr != nil {
				logger.Log.WithError(failErr).WithField("request_id", requestID).Error("failed to mark undispatched request failed")
			}
			metrics.IncRequestFailed()
			if s.dlq != nil {
				if dlqErr := s.dlq.PublishEvent(ctx, EventRequestCreated, "oracle-api", payload); dlqErr != nil {
					logger.Log.WithError(dlqErr).Error("failed to push event to DLQ")
				}
			}
			return fmt.Errorf("enqueueing request: %w", err)
		}
		return nil
	}

	// Inline mode: a tracked goroutine, joined via Wait on shutdown. Detached
	// from the request context so the HTTP response returning does not cancel
	// the processing.
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		if err := s.coordinator.Process(context.Background(), requestID); err != nil {
			logger.Log.WithError(err).WithField("request_id", requestID).Error("request processing failed")
		}
	}()
	return nil
}

// Wait blocks until all inline dispatches have settled.
func (s *Service) Wait() {
	s.inflight.Wait()
}

// Result returns a request and its submissions.
func (s *Service) Result(ctx context.Context, id string) (*Request, []Submission, error) {
	req, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	subs, err := s.store.SubmissionsByRequest(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("loading submissions for %s: %w", id, err)
	}
	return req, subs, nil
}

// Recent returns the newest requests, newest first.
func (s *Service) Recent(ctx context.Context, limit int) ([]Request, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 50 {
		limit = 50
	}
	return s.store.ListRecentRequests(ctx, limit)
}

// Stats aggregates over all requests and submissions. Results are cached in
// Redis for a short window; cache errors degrade to a direct store read.
func (s *Service) Stats(ctx context.Context) (models.Stats, error) {
	if s.statsCache != nil {
		if raw, err := s.statsCache.Get(ctx, statsCacheKey).Result(); err == nil {
			var cached models.Stats
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				return cached, nil
			}
		}
	}

	stats, err := s.store.Stats(ctx)
	if err != nil {
		return models.Stats{}, fmt.Errorf("computing stats: %w", err)
	}
	stats.ActiveAgents = s.activeAgents

	if s.statsCache != nil && s.statsTTL > 0 {
		if data, err := json.Marshal(stats); err == nil {
			if err := s.statsCache.Set(ctx, statsCacheKey, data, s.statsTTL).Err(); err != nil {
				logger.Log.WithError(err).Debug("failed to cache stats")
			}
		}
	}

	return stats, nil
}

// Agents returns the registry rows for the configured fleet.
func (s *Service) Agents(ctx context.Context) ([]Agent, error) {
	return s.store.ListAgents(ctx)
}
