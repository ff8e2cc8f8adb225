package observe

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"flasharb/internal/batch"
	"flasharb/internal/journal"
	"flasharb/internal/stats"
)

const broadcastWriteTimeout = 5 * time.Second

// Message is the websocket frame: {"type": "...", "data": {...}}.
type Message struct {
	Type string         `json:"type"`
	Data journal.Record `json:"data"`
}

// Broadcaster pushes every callback as JSON to all connected websocket
// clients. Slow or dead clients are dropped on the first failed write.
type Broadcaster struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]struct{}
	upgrader websocket.Upgrader
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients:  make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

// Handler accepts websocket connections. Clients are write-only from our
// side; the read loop only notices disconnects.
func (b *Broadcaster) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := b.upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[warn] websocket upgrade: %v", err)
			return
		}
		b.mu.Lock()
		b.clients[conn] = struct{}{}
		b.mu.Unlock()

		go func() {
			defer b.drop(conn)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}

func (b *Broadcaster) drop(conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[conn]; ok {
		delete(b.clients, conn)
		_ = conn.Close()
	}
}

// Len reports the number of connected clients.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

func (b *Broadcaster) send(msgType string, rec journal.Record) {
	msg, err := json.Marshal(Message{Type: msgType, Data: rec})
	if err != nil {
		log.Printf("[warn] websocket marshal %s: %v", msgType, err)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		_ = c.SetWriteDeadline(time.Now().Add(broadcastWriteTimeout))
		if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Printf("[warn] websocket write %s: %v", c.RemoteAddr(), err)
			_ = c.Close()
			delete(b.clients, c)
		}
	}
}

// Close disconnects every client.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		_ = c.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"), time.Now().Add(time.Second))
		_ = c.Close()
		delete(b.clients, c)
	}
}

func (b *Broadcaster) OnEvent(v EventView)         { b.send("event", EventRecord(v)) }
func (b *Broadcaster) OnStats(a stats.Aggregate)   { b.send("stats", StatsRecord(a)) }
func (b *Broadcaster) OnOverall(o stats.Overall)   { b.send("overall", OverallRecord(o)) }
func (b *Broadcaster) OnTrade(r batch.TradeRecord) { b.send("trade", TradeEntry(r)) }
