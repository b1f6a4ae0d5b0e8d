package oracle

import (
	"context"
	"errors"
	"time"

	"github.com/agentoracle/platform/pkg/common/models"
	"gorm.io/gorm"
)

// Repository is the PostgreSQL-backed Store.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&Request{}, &Submission{}, &Agent{})
}

func (r *Repository) CreateRequest(ctx context.Context, req *Request) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *Repository) GetRequest(ctx context.Context, id string) (*Request, error) {
	var req Request
	result := r.db.WithContext(ctx).First(&req, "id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &req, result.Error
}

func (r *Repository) ListRecentRequests(ctx context.Context, limit int) ([]Request, error) {
	var requests []Request
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&requests).Error
	return requests, err
}

func (r *Repository) MarkProcessing(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&Request{}).
		Where("id = ? AND status = ?", id, models.StatusPending).
		Updates(map[string]interface{}{
			"status": models.StatusProcessing,
		})
	return result.RowsAffected > 0, result.Error
}

func (r *Repository) CompleteRequest(ctx context.Context, id string, consensusValue float64, completedAt time.Time) error {
	return r.db.WithContext(ctx).Model(&Request{}).
		Where("id = ? AND status = ?", id, models.StatusProcessing).
		Updates(map[string]interface{}{
			"status":          models.StatusCompleted,
			"consensus_value": consensusValue,
			"completed_at":    completedAt,
		}).Error
}

func (r *Repository) FailRequest(ctx context.Context, id string, completedAt time.Time) error {
	return r.db.WithContext(ctx).Model(&Request{}).
		Where("id = ? AND status IN ?", id, []string{models.StatusPending, models.StatusProcessing}).
		Updates(map[string]interface{}{
			"status":       models.StatusFailed,
			"completed_at": completedAt,
		}).Error
}

func (r *Repository) CreateSubmission(ctx context.Context, sub *Submission) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *Repository) SubmissionsByRequest(ctx context.Context, requestID string) ([]Submission, error) {
	var subs []Submission
	err := r.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("timestamp ASC").
		Find(&subs).Error
	return subs, err
}

func (r *Repository) SetConsensusFlag(ctx context.Context, submissionID string, isConsensus bool) error {
	return r.db.WithContext(ctx).Model(&Submission{}).
		Where("id = ?", submissionID).
		Updates(map[string]interface{}{
			"is_consensus": isConsensus,
		}).Error
}

func (r *Repository) UpsertAgent(ctx context.Context, agent *Agent) error {
	var existing Agent
	err := r.db.WithContext(ctx).First(&existing, "agent_id = ?", agent.AgentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.db.WithContext(ctx).Create(agent).Error
	}
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Model(&Agent{}).
		Where("agent_id = ?", agent.AgentID).
		Updates(map[string]interface{}{
			"name":      agent.Name,
			"stake":     agent.Stake,
			"is_active": agent.IsActive,
		}).Error
}

func (r *Repository) ListAgents(ctx context.Context) ([]Agent, error) {
	var agents []Agent
	err := r.db.WithContext(ctx).Order("agent_id ASC").Find(&agents).Error
	return agents, err
}

func (r *Repository) RecordAgentResult(ctx context.Context, agentID string, successful bool, at time.Time) error {
	updates := map[string]interface{}{
		"total_requests": gorm.Expr("total_requests + 1"),
		"last_active":    at,
	}
	if successful {
		updates["successful_submissions"] = gorm.Expr("successful_submissions + 1")
	}
	return r.db.WithContext(ctx).Model(&Agent{}).
		Where("agent_id = ?", agentID).
		Updates(updates).Error
}

func (r *Repository) Stats(ctx context.Context) (models.Stats, error) {
	var stats models.Stats

	if err := r.db.WithContext(ctx).Model(&Request{}).Count(&stats.TotalRequests).Error; err != nil {
		return stats, err
	}
	if err := r.db.WithContext(ctx).Model(&Request{}).
		Where("status = ?", models.StatusCompleted).
		Count(&stats.CompletedRequests).Error; err != nil {
		return stats, err
	}

	if err := r.db.WithContext(ctx).Model(&Request{}).
		Where("status = ?", models.StatusCompleted).
		Select("COALESCE(SUM(consensus_value), 0)").
		Scan(&stats.TotalValue).Error; err != nil {
		return stats, err
	}

	if err := r.db.WithContext(ctx).Model(&Submission{}).Count(&stats.TotalSubmissions).Error; err != nil {
		return stats, err
	}

	var consensusCount int64
	if err := r.db.WithContext(ctx).Model(&Submission{}).
		Where("is_consensus = ?", true).
		Count(&consensusCount).Error; err != nil {
		return stats, err
	}
	if stats.TotalSubmissions > 0 {
		stats.ConsensusRate = int(float64(consensusCount)/float64(stats.TotalSubmissions)*100 + 0.5)
	}

	return stats, nil
}
