package http

import "time"

// APIResponse is the envelope every JSON endpoint answers with.
type APIResponse struct {
	Status    int         `json:"status" example:"200"`
	Message   string      `json:"message" example:"OK"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ValidationError describes one rejected request field.
type ValidationError struct {
	Code    string                 `json:"code,omitempty" example:"ERR_REQUIRED"`
	Field   string                 `json:"field,omitempty" example:"entryPrice"`
	Message string                 `json:"message,omitempty" example:"entryPrice must be greater than 0"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// ListDataResponse wraps rows with the number of rows returned. Alert and
// snapshot listings are bounded by a limit, so Total is never a table count.
type ListDataResponse struct {
	Rows  interface{} `json:"rows"`
	Total int64       `json:"total"`
}
