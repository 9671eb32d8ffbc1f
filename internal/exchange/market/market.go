package market

import (
	"errors"
	"time"

	"github.com/holiman/uint256"
)

type Status string

const (
	Open   Status = "OPEN"
	Closed Status = "CLOSED"
)

var (
	ErrNotFound         = errors.New("market not found")
	ErrCloseInPast      = errors.New("close timestamp must be in the future")
	ErrNoSelections     = errors.New("market needs at least one selection")
	ErrEmptyDescription = errors.New("description required")
)

// Selection é um resultado possível do mercado. Cada seleção tem o seu próprio book.
type Selection struct {
	ID          uint64 `json:"id"`
	Description string `json:"description"`
}

// Market agrupa as seleções de um evento e os dados administrativos
type Market struct {
	ID           uint64      `json:"id"`
	EventID      string      `json:"event_id"`
	Description  string      `json:"description"`
	Selections   []Selection `json:"selections"`
	Status       Status      `json:"status"`
	CloseAt      time.Time   `json:"close_at"`
	TotalMatched uint256.Int `json:"total_matched"`
	CreatedAt    time.Time   `json:"created_at"`
}

// New valida e monta um mercado aberto. Seleções recebem ids 1..n na ordem dada.
func New(eventID, description string, selections []string, closeAt, now time.Time) (Market, error) {
	if description == "" {
		return Market{}, ErrEmptyDescription
	}
	if len(selections) == 0 {
		return Market{}, ErrNoSelections
	}
	if !closeAt.After(now) {
		return Market{}, ErrCloseInPast
	}

	m := Market{
		EventID:     eventID,
		Description: description,
		Status:      Open,
		CloseAt:     closeAt,
		CreatedAt:   now,
	}
	for i, d := range selections {
		if d == "" {
			return Market{}, ErrEmptyDescription
		}
		m.Selections = append(m.Selections, Selection{ID: uint64(i + 1), Description: d})
	}
	return m, nil
}

// Selection procura a seleção pelo id
func (m *Market) Selection(id uint64) (Selection, bool) {
	for _, s := range m.Selections {
		if s.ID == id {
			return s, true
		}
	}
	return Selection{}, false
}

// AcceptsOrders: aberto e antes do horário de fechamento
func (m *Market) AcceptsOrders(now time.Time) bool {
	return m.Status == Open && now.Before(m.CloseAt)
}
