package oracle

import (
	"time"

	"gorm.io/datatypes"
)

// Request is one oracle request moving through
// pending -> processing -> {completed | failed}.
type Request struct {
	ID             string            `json:"id" gorm:"primaryKey;column:id"`
	Query          string            `json:"query" gorm:"column:query"`
	DataType       string            `json:"data_type" gorm:"column:data_type"`
	Params         datatypes.JSONMap `json:"params" gorm:"column:params"`
	Status         string            `json:"status" gorm:"index;column:status"`
	ConsensusValue *float64          `json:"consensus_value,omitempty" gorm:"column:consensus_value"`
	CreatedAt      time.Time         `json:"created_at" gorm:"index;column:created_at"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty" gorm:"column:completed_at"`
}

func (Request) TableName() string {
	return "oracle_requests"
}

// Submission is one agent's successful answer to a request. IsConsensus stays
// unset until the consensus step classifies the full set, and is written once.
type Submission struct {
	ID             string    `json:"id" gorm:"primaryKey;column:id"`
	RequestID      string    `json:"request_id" gorm:"index;column:request_id"`
	AgentID        string    `json:"agent_id" gorm:"index;column:agent_id"`
	AgentName      string    `json:"agent_name" gorm:"column:agent_name"`
	Value          float64   `json:"value" gorm:"column:value"`
	Source         string    `json:"source" gorm:"column:source"`
	Timestamp      time.Time `json:"timestamp" gorm:"column:timestamp"`
	ResponseTimeMS int64     `json:"response_time_ms" gorm:"column:response_time_ms"`
	IsConsensus    *bool     `json:"is_consensus,omitempty" gorm:"column:is_consensus"`
}

func (Submission) TableName() string {
	return "oracle_submissions"
}

// Agent is the registry row for one configured fetch identity.
type Agent struct {
	AgentID               string     `json:"agent_id" gorm:"primaryKey;column:agent_id"`
	Name                  string     `json:"name" gorm:"column:name"`
	Stake                 float64    `json:"stake" gorm:"column:stake"`
	TotalRequests         int64      `json:"total_requests" gorm:"column:total_requests"`
	SuccessfulSubmissions int64      `json:"successful_submissions" gorm:"column:successful_submissions"`
	LastActive            *time.Time `json:"last_active,omitempty" gorm:"column:last_active"`
	IsActive              bool       `json:"is_active" gorm:"column:is_active"`
}

func (Agent) TableName() string {
	return "oracle_agents"
}
