package models

import "time"

// MarketSnapshot is the latest quote for a symbol.
type MarketSnapshot struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"changePercent"`
	Volume        int64     `json:"volume"`
	High          float64   `json:"high,omitempty"`
	Low           float64   `json:"low,omitempty"`
	Open          float64   `json:"open,omitempty"`
	Source        string    `json:"source,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// OptionsFlow is the aggregated institutional options activity.
type OptionsFlow struct {
	BuyValue  float64   `json:"buyValue"`
	SellValue float64   `json:"sellValue"`
	NetValue  float64   `json:"netValue"`
	Timestamp time.Time `json:"timestamp"`
}
