package mockserver

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// NotificationEvent 推送给客户端的事件信封。
type NotificationEvent struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// Hub 维护所有通知订阅连接并向它们广播事件。
type Hub struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]struct{}
	upgrader websocket.Upgrader
}

// NewHub 构造通知中心。
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// ServeWS 升级连接并保持到客户端断开，定期发送心跳。
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[notify] upgrade failed: %v", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()
	log.Printf("[notify] client connected, total=%d", h.clientCount())

	h.writeTo(conn, NotificationEvent{Type: "connected", Timestamp: now()})

	// 读循环只为感知断开；客户端不上行业务数据。
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			h.drop(conn)
			return
		case <-ticker.C:
			h.writeTo(conn, NotificationEvent{Type: "ping", Timestamp: now()})
		}
	}
}

// BroadcastResumeCreated 向所有订阅者广播简历创建事件。
func (h *Hub) BroadcastResumeCreated(resumeID, title, redirectURL string) {
	h.Broadcast(NotificationEvent{
		Type: "resume_created",
		Data: map[string]interface{}{
			"resume_id":    resumeID,
			"title":        title,
			"redirect_url": redirectURL,
		},
		Timestamp: now(),
	})
}

// Broadcast 把事件发给每个连接，写失败的连接直接摘除。
func (h *Hub) Broadcast(event NotificationEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		if err := conn.WriteJSON(event); err != nil {
			log.Printf("[notify] dropping client: %v", err)
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

func (h *Hub) writeTo(conn *websocket.Conn, event NotificationEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[conn]; !ok {
		return
	}
	if err := conn.WriteJSON(event); err != nil {
		conn.Close()
		delete(h.clients, conn)
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conn.Close()
	delete(h.clients, conn)
}

func (h *Hub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
