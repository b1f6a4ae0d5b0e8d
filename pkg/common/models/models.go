package models

import "time"

// Request lifecycle statuses shared across services.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Supported data types.
const (
	DataTypeCryptoPrice = "crypto_price"
	DataTypeWeather     = "weather"
)

// CreateRequest is the body accepted by the request-creation endpoint.
type CreateRequest struct {
	Query    string                 `json:"query"`
	DataType string                 `json:"data_type"`
	Params   map[string]interface{} `json:"params,omitempty"`
}

// CreateResponse is returned synchronously; processing happens asynchronously.
type CreateResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

// Stats is the aggregate view across all requests and submissions.
type Stats struct {
	TotalRequests     int64   `json:"total_requests"`
	CompletedRequests int64   `json:"completed_requests"`
	TotalSubmissions  int64   `json:"total_submissions"`
	TotalValue        float64 `json:"total_value"`
	ConsensusRate     int     `json:"consensus_rate"`
	ActiveAgents      int     `json:"active_agents"`
}

// Event Bus models
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // request-created
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}
