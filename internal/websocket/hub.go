package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"multichat-backend/internal/metrics"
	"multichat-backend/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub pushes turn updates to the browsers watching a conversation. With a
// Redis client, updates travel over pub/sub so any instance holding the
// socket can deliver them.
type Hub struct {
	mu          sync.Mutex
	connections map[uuid.UUID][]*websocket.Conn
	redisClient *redis.Client
	subs        map[uuid.UUID]*subscription
}

// subscription is the Redis subscription shared by a conversation's sockets.
// ready closes once the server has confirmed it, or it has failed.
type subscription struct {
	cancel context.CancelFunc
	ready  chan struct{}
}

// NewHub returns a hub. redisClient may be nil for single-instance delivery.
func NewHub(redisClient *redis.Client) *Hub {
	return &Hub{
		connections: make(map[uuid.UUID][]*websocket.Conn),
		redisClient: redisClient,
		subs:        make(map[uuid.UUID]*subscription),
	}
}

func updatesChannel(conversationID uuid.UUID) string {
	return "conversation_updates:" + conversationID.String()
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conversationID, err := uuid.Parse(r.URL.Query().Get("conversation_id"))
	if err != nil {
		http.Error(w, "Invalid conversation ID", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	h.registerConnection(conversationID, conn)

	// Keep connection alive and handle disconnect
	go func() {
		defer h.unregisterConnection(conversationID, conn)
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				break
			}
		}
	}()
}

// Publish delivers msg to every socket watching the conversation.
func (h *Hub) Publish(ctx context.Context, conversationID uuid.UUID, msg models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("WebSocket: failed to encode %s update: %v", msg.Type, err)
		return
	}

	if h.redisClient != nil {
		if err := h.redisClient.Publish(ctx, updatesChannel(conversationID), data).Err(); err != nil {
			log.Printf("WebSocket: failed to publish update for conversation %s: %v", conversationID, err)
		}
		return
	}
	h.broadcast(conversationID, data)
}

// registerConnection returns once updates published for the conversation
// will reach conn.
func (h *Hub) registerConnection(conversationID uuid.UUID, conn *websocket.Conn) {
	h.mu.Lock()
	h.connections[conversationID] = append(h.connections[conversationID], conn)
	metrics.WebSocketConnections.Inc()
	total := len(h.connections[conversationID])

	var sub *subscription
	var ctx context.Context
	first := false
	if h.redisClient != nil {
		sub = h.subs[conversationID]
		if sub == nil {
			var cancel context.CancelFunc
			ctx, cancel = context.WithCancel(context.Background())
			sub = &subscription{cancel: cancel, ready: make(chan struct{})}
			h.subs[conversationID] = sub
			first = true
		}
	}
	h.mu.Unlock()

	if first {
		h.subscribe(ctx, conversationID, sub)
	} else if sub != nil {
		<-sub.ready
	}

	log.Printf("WebSocket connected: conversation %s (total: %d)", conversationID, total)
}

// subscribe waits for Redis to confirm the subscription before handing it to
// the forwarding goroutine; a PUBLISH sent earlier would be dropped.
func (h *Hub) subscribe(ctx context.Context, conversationID uuid.UUID, sub *subscription) {
	defer close(sub.ready)

	pubsub := h.redisClient.Subscribe(ctx, updatesChannel(conversationID))
	if _, err := pubsub.Receive(ctx); err != nil {
		log.Printf("WebSocket: subscribe to conversation %s failed: %v", conversationID, err)
		pubsub.Close()
		return
	}
	go h.forward(ctx, conversationID, pubsub)
}

func (h *Hub) unregisterConnection(conversationID uuid.UUID, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn.Close()

	conns := h.connections[conversationID]
	for i, c := range conns {
		if c == conn {
			h.connections[conversationID] = append(conns[:i], conns[i+1:]...)
			metrics.WebSocketConnections.Dec()
			break
		}
	}

	if len(h.connections[conversationID]) == 0 {
		delete(h.connections, conversationID)
		if sub, ok := h.subs[conversationID]; ok {
			sub.cancel()
			delete(h.subs, conversationID)
		}
	}

	log.Printf("WebSocket disconnected: conversation %s", conversationID)
}

func (h *Hub) forward(ctx context.Context, conversationID uuid.UUID, pubsub *redis.PubSub) {
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast(conversationID, []byte(msg.Payload))
		}
	}
}

// broadcast holds the write lock: a gorilla connection allows one writer at a time.
func (h *Hub) broadcast(conversationID uuid.UUID, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, conn := range h.connections[conversationID] {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("WebSocket: write to conversation %s failed: %v", conversationID, err)
		}
	}
}

func (h *Hub) connectionCount(conversationID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.connections[conversationID])
}
