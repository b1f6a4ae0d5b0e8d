package oracle

import (
	"context"
	"errors"
	"time"

	"github.com/agentoracle/platform/pkg/common/models"
)

var ErrNotFound = errors.New("oracle request not found")

// Store is the durable keyed storage the pipeline needs: per-record inserts,
// partial last-write-wins patches, lookup by id and by request index. No
// multi-record transactional guarantees are assumed.
type Store interface {
	CreateRequest(ctx context.Context, req *Request) error
	GetRequest(ctx context.Context, id string) (*Request, error)
	ListRecentRequests(ctx context.Context, limit int) ([]Request, error)

	// MarkProcessing claims a pending request for processing. It reports
	// whether this caller won the claim; a false return means the request was
	// not pending, so the caller must not process it.
	MarkProcessing(ctx context.Context, id string) (bool, error)
	CompleteRequest(ctx context.Context, id string, consensusValue float64, completedAt time.Time) error
	FailRequest(ctx context.Context, id string, completedAt time.Time) error

	CreateSubmission(ctx context.Context, sub *Submission) error
	SubmissionsByRequest(ctx context.Context, requestID string) ([]Submission, error)
	SetConsensusFlag(ctx context.Context, submissionID string, isConsensus bool) error

	UpsertAgent(ctx context.Context, agent *Agent) error
	ListAgents(ctx context.Context) ([]Agent, error)
	RecordAgentResult(ctx context.Context, agentID string, successful bool, at time.Time) error

	Stats(ctx context.Context) (models.Stats, error)
}
