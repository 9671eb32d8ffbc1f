package receipt

import (
	"context"

	"github.com/google/uuid"

	"github.com/radieske/betting-exchange-poc/internal/exchange/book"
)

// UUIDIssuer gera o receipt de cada ordem. O book usa o receipt como identidade.
type UUIDIssuer struct{}

func (UUIDIssuer) Issue(_ context.Context, _ *book.Order) (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
