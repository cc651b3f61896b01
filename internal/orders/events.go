package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventCancelRequested    = "CancelRequested"
	EventCancelResolved     = "CancelResolved"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // salah satu const di atas
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "toko-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

// ---- Payload tipe per event ----

type EventItem struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
	Price     int64  `json:"price"`
}

type OrderCreatedPayload struct {
	OrderID    string      `json:"order_id"`
	ExternalID string      `json:"external_id"`
	UserID     string      `json:"user_id"`
	ShopID     string      `json:"shop_id"`
	Items      []EventItem `json:"items,omitempty"`
	TotalPrice int64       `json:"total_price"`
}

type OrderStatusChangedPayload struct {
	OrderID string `json:"order_id"`
	From    Status `json:"from"`
	To      Status `json:"to"`
	Actor   Party  `json:"actor"`
}

type CancelRequestedPayload struct {
	OrderID     string `json:"order_id"`
	By          Party  `json:"by"`
	PriorStatus Status `json:"prior_status"`
}

type CancelResolvedPayload struct {
	OrderID  string `json:"order_id"`
	By       Party  `json:"by"` // who resolved, not who requested
	Approved bool   `json:"approved"`
	Status   Status `json:"status"`
}
