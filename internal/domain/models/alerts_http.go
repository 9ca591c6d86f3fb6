package models

// Requests for alert and fusion HTTP endpoints.

type ListAlertsRequest struct {
	Status string `query:"status" json:"status" validate:"omitempty,oneof=active executed cancelled expired"`
	Symbol string `query:"symbol" json:"symbol" validate:"omitempty,symbol"`
	Limit  int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=500"`
}

type ActiveAlertsRequest struct {
	Limit int `query:"limit" json:"limit" default:"20" validate:"gte=1,lte=500"`
}

type AlertHistoryRequest struct {
	Symbol string `param:"symbol" validate:"required,symbol"`
	Limit  int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=500"`
}

type CreateAlertRequest struct {
	Symbol      string   `json:"symbol" validate:"required,symbol"`
	Signal      string   `json:"signal" validate:"required,oneof=BUY SELL HOLD"`
	EntryPrice  float64  `json:"entryPrice" validate:"gt=0"`
	TargetPrice *float64 `json:"targetPrice" validate:"omitempty,gt=0"`
	StopLoss    *float64 `json:"stopLoss" validate:"omitempty,gt=0"`
	Confidence  *float64 `json:"confidence" validate:"omitempty,gte=0,lte=1"`
	Rationale   string   `json:"rationale" validate:"max=512"`
}

type UpdateStatusRequest struct {
	ID     string `param:"id" validate:"required"`
	Status string `json:"status" validate:"required,oneof=active executed cancelled expired"`
}

type FusionRequest struct {
	Symbol string `param:"symbol" validate:"required,symbol"`
}

type MarketHistoryRequest struct {
	Symbol string `param:"symbol" validate:"required,symbol"`
	From   string `query:"from"`
	To     string `query:"to"`
	Limit  int    `query:"limit" default:"100" validate:"gte=1,lte=5000"`
}
