package dto

import "time"

// Odds em texto decimal ("2.50"); valores em unidades mínimas como string decimal.
type PlaceOrderRequest struct {
	UserID      string `json:"userId"`
	MarketID    uint64 `json:"market_id"`
	SelectionID uint64 `json:"selection_id"`
	Side        string `json:"side"` // "BACK" | "LAY"
	Odds        string `json:"odds"`
	Funds       string `json:"funds"`               // BACK: stake; LAY: stake + liability
	Liability   string `json:"liability,omitempty"` // só LAY
}

type CancelOrderRequest struct {
	UserID string `json:"userId"`
}

type CreateMarketRequest struct {
	EventID     string    `json:"event_id"`
	Description string    `json:"description"`
	Selections  []string  `json:"selections"`
	CloseAt     time.Time `json:"close_at"`
}
