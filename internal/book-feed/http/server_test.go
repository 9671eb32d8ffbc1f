package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/betting-exchange-poc/internal/book-feed/cache"
	"github.com/radieske/betting-exchange-poc/internal/book-feed/dto"
	"github.com/radieske/betting-exchange-poc/internal/book-feed/repo"
	"github.com/radieske/betting-exchange-poc/pkg/contracts/events"
)

type fakeReader struct {
	books map[uint64]events.BookSnapshot // selection -> snapshot do mercado 1
	reads int
	err   error
}

func (f *fakeReader) Book(_ context.Context, marketID, selectionID uint64) (events.BookSnapshot, error) {
	f.reads++
	if f.err != nil {
		return events.BookSnapshot{}, f.err
	}
	b, ok := f.books[selectionID]
	if marketID != 1 || !ok {
		return events.BookSnapshot{}, repo.ErrNotFound
	}
	return b, nil
}

func (f *fakeReader) MarketBooks(_ context.Context, marketID uint64) ([]events.BookSnapshot, error) {
	if marketID != 1 {
		return nil, nil
	}
	return []events.BookSnapshot{f.books[1], f.books[2]}, nil
}

func (f *fakeReader) History(_ context.Context, _, selectionID uint64, limit int) ([]events.BookSnapshot, error) {
	out := []events.BookSnapshot{f.books[selectionID]}
	return out[:min(limit, len(out))], nil
}

func newAPI(t *testing.T, rd *fakeReader) (*httptest.Server, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	a := &API{
		Log:      zap.NewNop(),
		ReadRepo: rd,
		Cache:    cache.New(redis.NewClient(&redis.Options{Addr: mr.Addr()})),
		CacheTTL: time.Minute,
	}
	srv := httptest.NewServer(a.Router())
	t.Cleanup(srv.Close)
	return srv, mr
}

func get(t *testing.T, url string, v any) int {
	t.Helper()
	res, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	if v != nil && res.StatusCode == http.StatusOK {
		if err := json.NewDecoder(res.Body).Decode(v); err != nil {
			t.Fatal(err)
		}
	}
	return res.StatusCode
}

func TestGetBookFillsCache(t *testing.T) {
	rd := &fakeReader{books: map[uint64]events.BookSnapshot{
		1: {MarketID: 1, SelectionID: 1, BestBackOdds: 250, BackLiquidity: "40", Version: 3, TsUnixMs: 1700000000000},
	}}
	srv, _ := newAPI(t, rd)

	var b dto.Book
	if code := get(t, srv.URL+"/v1/markets/1/selections/1/book", &b); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if b.BestBackOdds != "2.50" || b.BestLayOdds != "" || b.BackLiquidity != "40" || b.Version != 3 {
		t.Errorf("book = %+v", b)
	}
	if b.Back == nil || b.Lay == nil {
		t.Error("levels must encode as empty arrays")
	}

	// segunda leitura vem do Redis
	get(t, srv.URL+"/v1/markets/1/selections/1/book", &b)
	if rd.reads != 1 {
		t.Errorf("db reads = %d, want 1", rd.reads)
	}
}

func TestGetBookErrors(t *testing.T) {
	rd := &fakeReader{books: map[uint64]events.BookSnapshot{}}
	srv, _ := newAPI(t, rd)

	if code := get(t, srv.URL+"/v1/markets/1/selections/9/book", nil); code != http.StatusNotFound {
		t.Errorf("missing book status = %d", code)
	}
	if code := get(t, srv.URL+"/v1/markets/x/selections/1/book", nil); code != http.StatusBadRequest {
		t.Errorf("bad id status = %d", code)
	}

	rd.err = errors.New("db down")
	if code := get(t, srv.URL+"/v1/markets/1/selections/1/book", nil); code != http.StatusInternalServerError {
		t.Errorf("db failure status = %d", code)
	}
}

func TestGetBookCacheDownFallsBackToDB(t *testing.T) {
	rd := &fakeReader{books: map[uint64]events.BookSnapshot{1: {MarketID: 1, SelectionID: 1, Version: 1}}}
	srv, mr := newAPI(t, rd)
	mr.Close()

	if code := get(t, srv.URL+"/v1/markets/1/selections/1/book", nil); code != http.StatusOK {
		t.Errorf("status = %d", code)
	}
}

func TestListBooksAndHistory(t *testing.T) {
	rd := &fakeReader{books: map[uint64]events.BookSnapshot{
		1: {MarketID: 1, SelectionID: 1, Version: 2},
		2: {MarketID: 1, SelectionID: 2, Version: 5},
	}}
	srv, _ := newAPI(t, rd)

	var list []dto.Book
	get(t, srv.URL+"/v1/markets/1/books", &list)
	if len(list) != 2 || list[1].SelectionID != 2 {
		t.Errorf("books = %+v", list)
	}

	var hist []dto.Book
	get(t, srv.URL+"/v1/markets/1/selections/2/book/history?limit=1", &hist)
	if len(hist) != 1 || hist[0].Version != 5 {
		t.Errorf("history = %+v", hist)
	}
	if code := get(t, srv.URL+"/v1/markets/1/selections/2/book/history?limit=0", nil); code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", code)
	}
}
