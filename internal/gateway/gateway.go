package gateway

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/rs/cors"
	"go.uber.org/zap"
)

// Targets são os serviços atrás do gateway
type Targets struct {
	Exchange string // exchange-service
	BookFeed string // book-feed-service (REST + /ws)
}

func proxy(log *zap.Logger, name, to string) (*httputil.ReverseProxy, error) {
	u, err := url.Parse(to)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid %s url %q", name, to)
	}
	rp := httputil.NewSingleHostReverseProxy(u)
	rp.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Warn("upstream failed", zap.String("upstream", name), zap.String("path", r.URL.Path), zap.Error(err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"upstream unavailable"}`))
	}
	return rp, nil
}

// New monta o handler do gateway:
//
//	/api/exchange/* -> exchange-service
//	/api/books/*    -> book-feed-service (inclusive /api/books/ws)
func New(log *zap.Logger, t Targets, allowedOrigins []string) (http.Handler, error) {
	exchange, err := proxy(log, "exchange", t.Exchange)
	if err != nil {
		return nil, err
	}
	books, err := proxy(log, "book-feed", t.BookFeed)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/api/exchange/", http.StripPrefix("/api/exchange", exchange))
	mux.Handle("/api/books/", http.StripPrefix("/api/books", books))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         600,
	})
	return c.Handler(mux), nil
}
