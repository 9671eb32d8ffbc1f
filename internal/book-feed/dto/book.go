package dto

import (
	"time"

	"github.com/radieske/betting-exchange-poc/internal/exchange/odds"
	"github.com/radieske/betting-exchange-poc/pkg/contracts/events"
)

// Book é a visão pública de um snapshot de book
type Book struct {
	MarketID      uint64             `json:"marketId"`
	SelectionID   uint64             `json:"selectionId"`
	BestBackOdds  string             `json:"bestBackOdds,omitempty"`
	BestLayOdds   string             `json:"bestLayOdds,omitempty"`
	BackLiquidity string             `json:"backLiquidity"`
	LayLiquidity  string             `json:"layLiquidity"`
	Back          []events.BookLevel `json:"back"`
	Lay           []events.BookLevel `json:"lay"`
	Counters      events.Counters    `json:"counters"`
	Version       uint64             `json:"version"`
	UpdatedAt     string             `json:"updatedAt"`
}

// FromSnapshot converte o evento para a resposta REST. Odds 0 = lado vazio.
func FromSnapshot(e *events.BookSnapshot) Book {
	b := Book{
		MarketID:      e.MarketID,
		SelectionID:   e.SelectionID,
		BackLiquidity: e.BackLiquidity,
		LayLiquidity:  e.LayLiquidity,
		Back:          e.Back,
		Lay:           e.Lay,
		Counters:      e.Counters,
		Version:       e.Version,
		UpdatedAt:     time.UnixMilli(e.TsUnixMs).UTC().Format(time.RFC3339),
	}
	if e.BestBackOdds != 0 {
		b.BestBackOdds = odds.Format(e.BestBackOdds)
	}
	if e.BestLayOdds != 0 {
		b.BestLayOdds = odds.Format(e.BestLayOdds)
	}
	if b.Back == nil {
		b.Back = []events.BookLevel{}
	}
	if b.Lay == nil {
		b.Lay = []events.BookLevel{}
	}
	return b
}
