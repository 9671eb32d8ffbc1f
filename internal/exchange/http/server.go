package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radieske/betting-exchange-poc/internal/exchange/book"
	"github.com/radieske/betting-exchange-poc/internal/exchange/dto"
	"github.com/radieske/betting-exchange-poc/internal/exchange/market"
	"github.com/radieske/betting-exchange-poc/internal/exchange/odds"
	"github.com/radieske/betting-exchange-poc/internal/exchange/placement"
)

// Exchange é o que a API precisa do serviço de colocação
type Exchange interface {
	PlaceOrder(ctx context.Context, req placement.PlaceOrderRequest) (placement.PlaceOrderResult, error)
	CancelOrder(ctx context.Context, owner, orderID string) (placement.CancelOrderResult, error)
	Order(ctx context.Context, id string) (book.Order, error)
	Inspect(ctx context.Context, marketID, selectionID uint64) (book.Inspection, error)
	Market(ctx context.Context, id uint64) (market.Market, error)
	CreateMarket(ctx context.Context, eventID, description string, selections []string, closeAt time.Time) (market.Market, error)
	CloseMarket(ctx context.Context, id uint64) error
}

// OrderLister lista ordens de um usuário (leitura direta do repositório)
type OrderLister interface {
	OrdersByOwner(ctx context.Context, owner string, limit int) ([]book.Order, error)
}

// Server expõe a API REST da bolsa
type Server struct {
	log    *zap.Logger
	ex     Exchange
	orders OrderLister
}

func NewServer(log *zap.Logger, ex Exchange, orders OrderLister) *Server {
	return &Server{log: log, ex: ex, orders: orders}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/v1/markets", s.createMarket)
	r.Get("/v1/markets/{id}", s.getMarket)
	r.Post("/v1/markets/{id}/close", s.closeMarket)
	r.Get("/v1/markets/{id}/selections/{sel}/book", s.getBook)

	r.Post("/v1/orders", s.placeOrder)
	r.Get("/v1/orders", s.listOrders) // ?userId=...
	r.Get("/v1/orders/{id}", s.getOrder)
	r.Post("/v1/orders/{id}/cancel", s.cancelOrder)
	return r
}

func (s *Server) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	in, err := toPlaceRequest(&req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.ex.PlaceOrder(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	o := &res.Order
	writeJSON(w, http.StatusCreated, dto.PlaceOrderResponse{
		OrderID:       res.OrderID,
		Status:        o.Status.String(),
		Odds:          odds.Format(res.Odds),
		Stake:         res.Stake.Dec(),
		Liability:     o.Liability.Dec(),
		Matched:       o.Matched.Dec(),
		Unmatched:     o.Unmatched.Dec(),
		Reserved:      res.Reserved.Dec(),
		ReservationID: res.ReservationID,
	})
}

// toPlaceRequest valida o formato do payload; regras de negócio ficam no serviço
func toPlaceRequest(req *dto.PlaceOrderRequest) (placement.PlaceOrderRequest, error) {
	if req.UserID == "" || req.MarketID == 0 || req.SelectionID == 0 {
		return placement.PlaceOrderRequest{}, errors.New("invalid payload")
	}
	side, err := book.ParseSide(req.Side)
	if err != nil {
		return placement.PlaceOrderRequest{}, err
	}
	o, err := odds.Parse(req.Odds)
	if err != nil {
		return placement.PlaceOrderRequest{}, errors.New("invalid odds format")
	}
	funds, err := odds.ParseAmount(req.Funds)
	if err != nil {
		return placement.PlaceOrderRequest{}, errors.New("invalid funds")
	}
	liability, err := odds.ParseAmount(req.Liability)
	if err != nil {
		return placement.PlaceOrderRequest{}, errors.New("invalid liability")
	}

	out := placement.PlaceOrderRequest{
		Owner:       req.UserID,
		MarketID:    req.MarketID,
		SelectionID: req.SelectionID,
		Odds:        o,
		Side:        side,
	}
	out.Funds.Set(funds)
	out.Liability.Set(liability)
	return out, nil
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := s.ex.Order(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewOrderResponse(&o))
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId required")
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	list, err := s.orders.OrdersByOwner(r.Context(), userID, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]dto.OrderResponse, 0, len(list))
	for i := range list {
		out = append(out, dto.NewOrderResponse(&list[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) cancelOrder(w http.ResponseWriter, r *http.Request) {
	var req dto.CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	res, err := s.ex.CancelOrder(r.Context(), req.UserID, chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.CancelOrderResponse{
		OrderID:  res.Order.ReceiptID,
		Status:   res.Order.Status.String(),
		Released: res.Released.Dec(),
	})
}

func (s *Server) createMarket(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	m, err := s.ex.CreateMarket(r.Context(), req.EventID, req.Description, req.Selections, req.CloseAt)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.NewMarketResponse(&m))
}

func (s *Server) getMarket(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "id")
	if !ok {
		return
	}
	m, err := s.ex.Market(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewMarketResponse(&m))
}

func (s *Server) closeMarket(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "id")
	if !ok {
		return
	}
	if err := s.ex.CloseMarket(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(market.Closed)})
}

func (s *Server) getBook(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "id")
	if !ok {
		return
	}
	sel, ok := uintParam(w, r, "sel")
	if !ok {
		return
	}
	in, err := s.ex.Inspect(r.Context(), id, sel)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewBookResponse(id, sel, &in))
}

func uintParam(w http.ResponseWriter, r *http.Request, name string) (uint64, bool) {
	v, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return v, true
}

// StatusFor traduz erros de domínio em status HTTP
func StatusFor(err error) int {
	switch {
	case errors.Is(err, placement.ErrInvalidMarket),
		errors.Is(err, placement.ErrSelectionNotFound),
		errors.Is(err, placement.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, placement.ErrMarketNotOpen),
		errors.Is(err, placement.ErrMarketClosed),
		errors.Is(err, placement.ErrNotCancelable),
		errors.Is(err, placement.ErrReserveFailed),
		errors.Is(err, placement.ErrRefundFailed):
		return http.StatusConflict
	case errors.Is(err, placement.ErrInvalidOdds),
		errors.Is(err, placement.ErrInvalidLiabilityForBack),
		errors.Is(err, placement.ErrLiabilityRequiredForLay),
		errors.Is(err, placement.ErrAmountMismatch),
		errors.Is(err, placement.ErrInvalidAmount),
		errors.Is(err, market.ErrCloseInPast),
		errors.Is(err, market.ErrNoSelections),
		errors.Is(err, market.ErrEmptyDescription):
		return http.StatusUnprocessableEntity
	case errors.Is(err, placement.ErrNotOwner):
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := StatusFor(err)
	if code == http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, code, "internal error")
		return
	}
	msg := err.Error()
	if errors.Is(err, placement.ErrReserveFailed) {
		msg = placement.ErrReserveFailed.Error()
	}
	writeError(w, code, msg)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, dto.ErrorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
