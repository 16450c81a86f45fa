package dto

import (
	"encoding/json"
	"time"
)

// QueuedOrderResponse is the DTO for API responses containing a queued order.
type QueuedOrderResponse struct {
	ID               uint            `json:"id"`
	ExecutionOrderID uint            `json:"execution_order_id"`
	Symbol           string          `json:"symbol"`
	Side             string          `json:"side"`
	Quantity         string          `json:"quantity"`
	Priority         int             `json:"priority"`
	Broker           string          `json:"broker"`
	Status           string          `json:"status"`
	ScheduledAt      time.Time       `json:"scheduled_at"`
	BatchID          string          `json:"batch_id,omitempty"`
	ErrorMessage     string          `json:"error_message,omitempty"`
	Result           json.RawMessage `json:"result,omitempty" swaggertype:"object"`
	ExecutedAt       *time.Time      `json:"executed_at"`
}
