package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/holiman/uint256"
)

// ReserveRequest é o payload de bloqueio de saldo no wallet-service.
// Valores em string decimal.
type ReserveRequest struct {
	UserID      string `json:"userId"`
	Amount      string `json:"amount"`
	ExternalRef string `json:"external_ref"`
}

type ReserveResponse struct {
	ReservationID string `json:"reservation_id"`
	Status        string `json:"status"`
}

// RefundRequest devolve parte (ou todo) o saldo bloqueado por external_ref
type RefundRequest struct {
	UserID      string `json:"userId"`
	Amount      string `json:"amount"`
	ExternalRef string `json:"external_ref"`
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(base string) *Client {
	return &Client{
		BaseURL: base,
		HTTP:    &http.Client{Timeout: 2 * time.Second},
	}
}

func (c *Client) Reserve(ctx context.Context, userID string, amount *uint256.Int, externalRef string) (string, error) {
	var out ReserveResponse
	err := c.post(ctx, "/wallet/reserve", ReserveRequest{UserID: userID, Amount: amount.Dec(), ExternalRef: externalRef}, &out)
	if err != nil {
		return "", err
	}
	return out.ReservationID, nil
}

func (c *Client) Refund(ctx context.Context, userID string, amount *uint256.Int, externalRef string) error {
	return c.post(ctx, "/wallet/refund", RefundRequest{UserID: userID, Amount: amount.Dec(), ExternalRef: externalRef}, nil)
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return fmt.Errorf("wallet %s http %d", path, res.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}
