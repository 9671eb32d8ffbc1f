package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/betting-exchange-poc/pkg/contracts/keys"
)

const writeWait = 5 * time.Second

// client serializa as escritas: gorilla não aceita writers concorrentes
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

// Hub gerencia conexões WebSocket e assinaturas de books
// subs: mapeia "market:selection" para o conjunto de clientes inscritos
type Hub struct {
	log      *zap.Logger
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	subs     map[string]map[*client]struct{}
}

// NewHub cria uma instância de Hub com política customizada de origem (CORS)
func NewHub(log *zap.Logger, allowOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		log:      log,
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		subs:     make(map[string]map[*client]struct{}),
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) { h.HandleWS(w, r) }

// HandleWS gerencia o ciclo de vida de uma conexão WebSocket
// Cada cliente pode se inscrever em vários books
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("ws upgrade failed", zap.Error(err))
		return
	}
	c := &client{conn: conn}
	defer func() {
		h.drop(c)
		_ = conn.Close()
	}()

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case "subscribe", "unsubscribe":
			if msg.MarketID == 0 || msg.SelectionID == 0 {
				_ = c.write(serverMsg{Type: "error", Error: "marketId and selectionId required"})
				continue
			}
			book := keys.Book(msg.MarketID, msg.SelectionID)
			if msg.Type == "subscribe" {
				h.subscribe(c, book)
			} else {
				h.unsubscribe(c, book)
			}
			_ = c.write(serverMsg{Type: msg.Type + "d", Book: book})
		case "ping":
			_ = c.write(serverMsg{Type: "pong"})
		default:
			_ = c.write(serverMsg{Type: "error", Error: "unknown type"})
		}
	}
}

func (h *Hub) subscribe(c *client, book string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[book]; !ok {
		h.subs[book] = make(map[*client]struct{})
	}
	h.subs[book][c] = struct{}{}
}

func (h *Hub) unsubscribe(c *client, book string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m, ok := h.subs[book]; ok {
		delete(m, c)
		if len(m) == 0 {
			delete(h.subs, book)
		}
	}
}

// drop remove o cliente de todas as assinaturas ao desconectar
func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for book, set := range h.subs {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, book)
		}
	}
}

// Subscribers retorna quantos clientes acompanham o book
func (h *Hub) Subscribers(book string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[book])
}

// Broadcast envia a atualização para os clientes inscritos no book
func (h *Hub) Broadcast(update BookUpdate) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.subs[update.Book]))
	for c := range h.subs[update.Book] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	b, err := json.Marshal(update)
	if err != nil {
		h.log.Warn("ws marshal failed", zap.Error(err))
		return
	}
	for _, c := range targets {
		if err := c.write(json.RawMessage(b)); err != nil {
			h.log.Debug("ws write failed", zap.String("book", update.Book), zap.Error(err))
		}
	}
}
