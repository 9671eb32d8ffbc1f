package ws

import "github.com/radieske/betting-exchange-poc/pkg/contracts/events"

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
// MarketID/SelectionID: obrigatórios para subscribe/unsubscribe
type ClientMsg struct {
	Type        string `json:"type"` // subscribe | unsubscribe | ping
	MarketID    uint64 `json:"marketId"`
	SelectionID uint64 `json:"selectionId"`
}

// BookUpdate é o envelope publicado no Redis e repassado aos clientes
type BookUpdate struct {
	Book    string              `json:"book"` // "market:selection"
	Payload events.BookSnapshot `json:"payload"`
}

type serverMsg struct {
	Type  string `json:"type"` // pong | subscribed | unsubscribed | error
	Book  string `json:"book,omitempty"`
	Error string `json:"error,omitempty"`
}
