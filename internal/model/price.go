package model

import "time"

// PriceQuote is the latest answer of a price feed.
type PriceQuote struct {
	Ticker     string     `json:"ticker"`
	Price      float64    `json:"price"`
	IsError    bool       `json:"is_error"`
	LastUpdate *time.Time `json:"last_update,omitempty"`
}
