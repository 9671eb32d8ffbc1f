package dto

import (
	"time"

	"github.com/radieske/betting-exchange-poc/internal/exchange/book"
	"github.com/radieske/betting-exchange-poc/internal/exchange/market"
	"github.com/radieske/betting-exchange-poc/internal/exchange/odds"
)

type PlaceOrderResponse struct {
	OrderID       string `json:"orderId"`
	Status        string `json:"status"`
	Odds          string `json:"odds"`
	Stake         string `json:"stake"`
	Liability     string `json:"liability"`
	Matched       string `json:"matched"`
	Unmatched     string `json:"unmatched"`
	Reserved      string `json:"reserved"`
	ReservationID string `json:"reservation_id,omitempty"`
}

type OrderResponse struct {
	OrderID         string `json:"orderId"`
	UserID          string `json:"userId"`
	MarketID        uint64 `json:"market_id"`
	SelectionID     uint64 `json:"selection_id"`
	Side            string `json:"side"`
	Odds            string `json:"odds"`
	Stake           string `json:"stake"`
	Liability       string `json:"liability"`
	Exposure        string `json:"exposure"`
	PotentialProfit string `json:"potential_profit"`
	Matched         string `json:"matched"`
	Unmatched       string `json:"unmatched"`
	Status          string `json:"status"`
	CreatedAt       int64  `json:"created_at"`
}

func NewOrderResponse(o *book.Order) OrderResponse {
	return OrderResponse{
		OrderID:         o.ReceiptID,
		UserID:          o.Owner,
		MarketID:        o.MarketID,
		SelectionID:     o.SelectionID,
		Side:            o.Side.String(),
		Odds:            odds.Format(o.Odds),
		Stake:           o.Stake.Dec(),
		Liability:       o.Liability.Dec(),
		Exposure:        o.Exposure.Dec(),
		PotentialProfit: o.PotentialProfit.Dec(),
		Matched:         o.Matched.Dec(),
		Unmatched:       o.Unmatched.Dec(),
		Status:          o.Status.String(),
		CreatedAt:       o.CreatedAt,
	}
}

type CancelOrderResponse struct {
	OrderID  string `json:"orderId"`
	Status   string `json:"status"`
	Released string `json:"released"`
}

type SelectionResponse struct {
	ID          uint64 `json:"id"`
	Description string `json:"description"`
}

type MarketResponse struct {
	ID           uint64              `json:"id"`
	EventID      string              `json:"event_id"`
	Description  string              `json:"description"`
	Status       string              `json:"status"`
	CloseAt      time.Time           `json:"close_at"`
	TotalMatched string              `json:"total_matched"`
	Selections   []SelectionResponse `json:"selections"`
}

func NewMarketResponse(m *market.Market) MarketResponse {
	out := MarketResponse{
		ID:           m.ID,
		EventID:      m.EventID,
		Description:  m.Description,
		Status:       string(m.Status),
		CloseAt:      m.CloseAt,
		TotalMatched: m.TotalMatched.Dec(),
		Selections:   make([]SelectionResponse, 0, len(m.Selections)),
	}
	for _, s := range m.Selections {
		out.Selections = append(out.Selections, SelectionResponse{ID: s.ID, Description: s.Description})
	}
	return out
}

// BookResponse é a inspeção do book com odds já formatadas
type BookResponse struct {
	MarketID      uint64        `json:"market_id"`
	SelectionID   uint64        `json:"selection_id"`
	BackCount     int           `json:"back_count"`
	LayCount      int           `json:"lay_count"`
	BackLiquidity string        `json:"back_liquidity"`
	LayLiquidity  string        `json:"lay_liquidity"`
	BestBackOdds  string        `json:"best_back_odds,omitempty"`
	BestLayOdds   string        `json:"best_lay_odds,omitempty"`
	BackOdds      []string      `json:"back_odds"`
	LayOdds       []string      `json:"lay_odds"`
	Counters      book.Counters `json:"counters"`
}

func NewBookResponse(marketID, selectionID uint64, in *book.Inspection) BookResponse {
	out := BookResponse{
		MarketID:      marketID,
		SelectionID:   selectionID,
		BackCount:     in.BackCount,
		LayCount:      in.LayCount,
		BackLiquidity: in.BackLiquidity.Dec(),
		LayLiquidity:  in.LayLiquidity.Dec(),
		BackOdds:      formatAll(in.BackOdds),
		LayOdds:       formatAll(in.LayOdds),
		Counters:      in.Counters,
	}
	if in.BestBackOdds != 0 {
		out.BestBackOdds = odds.Format(in.BestBackOdds)
	}
	if in.BestLayOdds != 0 {
		out.BestLayOdds = odds.Format(in.BestLayOdds)
	}
	return out
}

func formatAll(list []uint64) []string {
	out := make([]string, 0, len(list))
	for _, o := range list {
		out = append(out, odds.Format(o))
	}
	return out
}

type ErrorResponse struct {
	Error string `json:"error"`
}
