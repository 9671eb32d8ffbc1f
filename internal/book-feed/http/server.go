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

	"github.com/radieske/betting-exchange-poc/internal/book-feed/dto"
	"github.com/radieske/betting-exchange-poc/internal/book-feed/repo"
	"github.com/radieske/betting-exchange-poc/pkg/contracts/events"
)

type BookReader interface {
	Book(ctx context.Context, marketID, selectionID uint64) (events.BookSnapshot, error)
	MarketBooks(ctx context.Context, marketID uint64) ([]events.BookSnapshot, error)
	History(ctx context.Context, marketID, selectionID uint64, limit int) ([]events.BookSnapshot, error)
}

type BookCache interface {
	GetBook(ctx context.Context, marketID, selectionID uint64) (events.BookSnapshot, bool, error)
	FillBook(ctx context.Context, e events.BookSnapshot, ttl time.Duration) error
}

// API expõe os endpoints REST de consulta de books
// Utiliza um repositório de leitura (Postgres) e cache (Redis)
type API struct {
	Log      *zap.Logger
	ReadRepo BookReader // acesso ao banco de dados
	Cache    BookCache  // cache de snapshots
	CacheTTL time.Duration
	WS       http.Handler // hub WebSocket, opcional
}

// Router retorna o roteador HTTP com os endpoints REST
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/v1/markets/{id}/books", a.listBooks)                              // books de todas as seleções
	r.Get("/v1/markets/{id}/selections/{sel}/book", a.getBook)                // book corrente
	r.Get("/v1/markets/{id}/selections/{sel}/book/history", a.getBookHistory) // últimas versões
	if a.WS != nil {
		r.Handle("/ws", a.WS)
	}
	return r
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *API) internal(w http.ResponseWriter, r *http.Request, err error) {
	a.Log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

// getBook retorna o book corrente, preferencialmente do cache
func (a *API) getBook(w http.ResponseWriter, r *http.Request) {
	id, sel, ok := bookParams(w, r)
	if !ok {
		return
	}

	if snap, hit, err := a.Cache.GetBook(r.Context(), id, sel); err != nil {
		a.Log.Warn("cache read failed", zap.Error(err))
	} else if hit {
		writeJSON(w, http.StatusOK, dto.FromSnapshot(&snap))
		return
	}

	snap, err := a.ReadRepo.Book(r.Context(), id, sel)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		a.internal(w, r, err)
		return
	}

	if err := a.Cache.FillBook(r.Context(), snap, a.CacheTTL); err != nil {
		a.Log.Warn("cache fill failed", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, dto.FromSnapshot(&snap))
}

func (a *API) listBooks(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	list, err := a.ReadRepo.MarketBooks(r.Context(), id)
	if err != nil {
		a.internal(w, r, err)
		return
	}
	out := make([]dto.Book, 0, len(list))
	for i := range list {
		out = append(out, dto.FromSnapshot(&list[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) getBookHistory(w http.ResponseWriter, r *http.Request) {
	id, sel, ok := bookParams(w, r)
	if !ok {
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 200 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}
	list, err := a.ReadRepo.History(r.Context(), id, sel, limit)
	if err != nil {
		a.internal(w, r, err)
		return
	}
	out := make([]dto.Book, 0, len(list))
	for i := range list {
		out = append(out, dto.FromSnapshot(&list[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func bookParams(w http.ResponseWriter, r *http.Request) (uint64, uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return 0, 0, false
	}
	sel, err := strconv.ParseUint(chi.URLParam(r, "sel"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid selection"})
		return 0, 0, false
	}
	return id, sel, true
}
