package events

// Valores monetários trafegam como string decimal (uint256).
// Odds vão nos dois formatos: inteiro com escala 100 e texto ("2.50").

// OrderPlaced é emitido pelo exchange-service após o commit de uma ordem nova.
type OrderPlaced struct {
	ReceiptID   string `json:"receipt_id"`
	Owner       string `json:"owner"`
	MarketID    uint64 `json:"market_id"`
	SelectionID uint64 `json:"selection_id"`
	Side        string `json:"side"` // "BACK" | "LAY"
	Odds        uint64 `json:"odds"`
	OddsText    string `json:"odds_text"`
	Stake       string `json:"stake"`
	Liability   string `json:"liability"`
	Matched     string `json:"matched"`
	Unmatched   string `json:"unmatched"`
	Reserved    string `json:"reserved"`
	ReservedRef string `json:"reserved_ref,omitempty"` // referência devolvida pela carteira
	Status      string `json:"status"`
	TsUnixMs    int64  `json:"ts_unix_ms"`
}

// OrderCanceled: ordem removida do book; Released é o valor devolvido à carteira.
type OrderCanceled struct {
	ReceiptID   string `json:"receipt_id"`
	Owner       string `json:"owner"`
	MarketID    uint64 `json:"market_id"`
	SelectionID uint64 `json:"selection_id"`
	Side        string `json:"side"`
	Matched     string `json:"matched"`
	Released    string `json:"released"`
	PrevStatus  string `json:"prev_status"`
	TsUnixMs    int64  `json:"ts_unix_ms"`
}
