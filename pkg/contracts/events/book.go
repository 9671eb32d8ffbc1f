package events

// Counters espelha os contadores de status de um book
type Counters struct {
	Matched          uint64 `json:"matched"`
	Unmatched        uint64 `json:"unmatched"`
	PartiallyMatched uint64 `json:"partially_matched"`
	Win              uint64 `json:"win"`
	Lost             uint64 `json:"lost"`
	Canceled         uint64 `json:"canceled"`
}

// CounterUpdated é publicado a cada transição de status contabilizada
type CounterUpdated struct {
	MarketID    uint64   `json:"market_id"`
	SelectionID uint64   `json:"selection_id"`
	ReceiptID   string   `json:"receipt_id"`
	From        string   `json:"from"`
	To          string   `json:"to"`
	Counters    Counters `json:"counters"`
	TsUnixMs    int64    `json:"ts_unix_ms"`
}

// BookLevel agrega a liquidez de uma faixa de odds
type BookLevel struct {
	Odds      uint64 `json:"odds"`
	OddsText  string `json:"odds_text"`
	Liquidity string `json:"liquidity"`
	Orders    int    `json:"orders"`
}

// BookSnapshot: estado do book de uma seleção após uma mudança.
// Version é a versão do book, que sobe a cada Match e Cancel.
type BookSnapshot struct {
	MarketID      uint64      `json:"market_id"`
	SelectionID   uint64      `json:"selection_id"`
	BestBackOdds  uint64      `json:"best_back_odds"`
	BestLayOdds   uint64      `json:"best_lay_odds"`
	BackLiquidity string      `json:"back_liquidity"`
	LayLiquidity  string      `json:"lay_liquidity"`
	Back          []BookLevel `json:"back"`
	Lay           []BookLevel `json:"lay"`
	Counters      Counters    `json:"counters"`
	MatchedDelta  string      `json:"matched_delta"` // volume casado pela mudança que gerou o snapshot
	Version       uint64      `json:"version"`
	TsUnixMs      int64       `json:"ts_unix_ms"`
}
