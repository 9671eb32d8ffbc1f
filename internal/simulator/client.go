package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/radieske/betting-exchange-poc/internal/exchange/dto"
)

// Client fala com a API REST do exchange-service
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(base string) *Client {
	return &Client{BaseURL: base, HTTP: &http.Client{Timeout: 3 * time.Second}}
}

// StatusError carrega o status e a mensagem devolvidos pela API
type StatusError struct {
	Code int
	Msg  string
}

func (e *StatusError) Error() string { return fmt.Sprintf("exchange http %d: %s", e.Code, e.Msg) }

func (c *Client) CreateMarket(ctx context.Context, req dto.CreateMarketRequest) (dto.MarketResponse, error) {
	var out dto.MarketResponse
	return out, c.post(ctx, "/v1/markets", req, &out)
}

func (c *Client) PlaceOrder(ctx context.Context, req dto.PlaceOrderRequest) (dto.PlaceOrderResponse, error) {
	var out dto.PlaceOrderResponse
	return out, c.post(ctx, "/v1/orders", req, &out)
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
		var e dto.ErrorResponse
		_ = json.NewDecoder(res.Body).Decode(&e)
		return &StatusError{Code: res.StatusCode, Msg: e.Error}
	}
	return json.NewDecoder(res.Body).Decode(out)
}
