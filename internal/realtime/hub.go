package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wonny/sfmlstats/internal/comparison"
	"github.com/wonny/sfmlstats/internal/contracts"
	"github.com/wonny/sfmlstats/pkg/database"
	"github.com/wonny/sfmlstats/pkg/logger"
)

const (
	// sendBuffer 구독자별 대기 메시지 수. 넘치면 구독자를 끊는다.
	sendBuffer = 16

	// Ping/Pong settings
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
)

// EventRecordWritten is sent after a pass stores a day
const EventRecordWritten = "record_written"

// Event is one message on the comparison stream
type Event struct {
	Type   string               `json:"type"`
	Date   string               `json:"date"`
	Record *contracts.DayRecord `json:"record,omitempty"`
	SentAt time.Time            `json:"sent_at"`
}

// Subscription receives encoded events until it is closed
type Subscription struct {
	C <-chan []byte

	send chan []byte
}

// Hub fans written comparison records out to websocket subscribers
// ⭐ SSOT: 실시간 비교 레코드 브로드캐스트는 여기서만
type Hub struct {
	acquirer database.Acquirer
	upgrader websocket.Upgrader
	logger   *logger.Logger

	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// NewHub creates a hub. acquirer may be nil, in which case events carry the date only.
func NewHub(acquirer database.Acquirer, log *logger.Logger) *Hub {
	return &Hub{
		acquirer: acquirer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: log.WithField("module", "realtime.hub"),
		subs:   make(map[*Subscription]struct{}),
	}
}

// RecordWritten implements contracts.Notifier: reloads the day and broadcasts it
func (h *Hub) RecordWritten(ctx context.Context, date string) {
	event := Event{Type: EventRecordWritten, Date: date, SentAt: time.Now()}
	event.Record = h.load(ctx, date)
	h.Broadcast(event)
}

func (h *Hub) load(ctx context.Context, date string) *contracts.DayRecord {
	if h.acquirer == nil {
		return nil
	}
	lease := h.acquirer.Acquire(ctx)
	if lease == nil {
		return nil
	}
	defer lease.Release()

	rec, err := comparison.NewRepository(lease.Conn, h.logger).Get(ctx, date)
	if err != nil {
		return nil
	}
	return rec
}

// Broadcast sends event to every subscriber without blocking
func (h *Hub) Broadcast(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.WithError(err).Error("Failed to encode event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs {
		select {
		case sub.send <- payload:
		default:
			// slow consumer
			delete(h.subs, sub)
			close(sub.send)
			h.logger.Warn("Dropped slow subscriber")
		}
	}

	h.logger.WithFields(map[string]interface{}{
		"date":        event.Date,
		"subscribers": len(h.subs),
	}).Debug("Broadcast event")
}

// Subscribe registers a new subscriber
func (h *Hub) Subscribe() *Subscription {
	send := make(chan []byte, sendBuffer)
	sub := &Subscription{C: send, send: send}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	return sub
}

// Unsubscribe removes sub and closes its channel. Safe to call twice.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		close(sub.send)
	}
}

// SubscriberCount returns the number of live subscribers
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close disconnects every subscriber
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs {
		delete(h.subs, sub)
		close(sub.send)
	}
}

// ServeWS upgrades the request and streams events until either side closes
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}

	sub := h.Subscribe()
	h.logger.WithField("remote", r.RemoteAddr).Info("Websocket subscriber connected")

	go h.writeLoop(conn, sub)
	h.readLoop(conn)

	h.Unsubscribe(sub)
	h.logger.WithField("remote", r.RemoteAddr).Info("Websocket subscriber disconnected")
}

// readLoop discards client messages and returns when the connection drops
func (h *Hub) readLoop(conn *websocket.Conn) {
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(conn *websocket.Conn, sub *Subscription) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case payload, ok := <-sub.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
