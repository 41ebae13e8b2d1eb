package websocket

import (
	"context"
	"log"
	"net/http"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans round_scored and feedback_ready events out to a user's open
// browser tabs. The first connection for a user starts one Redis pub/sub
// subscription on their personal channel; the last disconnect tears it down.
type Hub struct {
	mu          sync.RWMutex
	conns       map[uuid.UUID]map[*websocket.Conn]struct{}
	cancelSub   map[uuid.UUID]context.CancelFunc
	redisClient *redis.Client
	jwtSecret   []byte
}

func NewHub(redisClient *redis.Client, jwtSecret string) *Hub {
	return &Hub{
		conns:       make(map[uuid.UUID]map[*websocket.Conn]struct{}),
		cancelSub:   make(map[uuid.UUID]context.CancelFunc),
		redisClient: redisClient,
		jwtSecret:   []byte(jwtSecret),
	}
}

// HandleWebSocket upgrades GET /ws. Browsers cannot set an Authorization
// header on the upgrade request, so the JWT rides in the token query param.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticate(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	h.add(userID, conn)

	// Drain the read side until the client goes away.
	go func() {
		defer h.remove(userID, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) authenticate(r *http.Request) (uuid.UUID, bool) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		return uuid.Nil, false
	}

	token, err := jwt.Parse(tokenStr, func(*jwt.Token) (interface{}, error) {
		return h.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, false
	}
	idStr, _ := claims["user_id"].(string)
	userID, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, false
	}
	return userID, true
}

func (h *Hub) add(userID uuid.UUID, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.conns[userID] == nil {
		h.conns[userID] = make(map[*websocket.Conn]struct{})
	}
	h.conns[userID][conn] = struct{}{}

	if len(h.conns[userID]) == 1 {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancelSub[userID] = cancel
		go h.relayUpdates(ctx, userID)
	}

	log.Printf("WebSocket connected: user %s (total: %d)", userID, len(h.conns[userID]))
}

func (h *Hub) remove(userID uuid.UUID, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn.Close()
	delete(h.conns[userID], conn)

	if len(h.conns[userID]) == 0 {
		delete(h.conns, userID)
		if cancel, ok := h.cancelSub[userID]; ok {
			cancel()
			delete(h.cancelSub, userID)
		}
	}

	log.Printf("WebSocket disconnected: user %s", userID)
}

// relayUpdates forwards every message on the user's channel to all of their
// connections. Messages are already JSON envelopes produced by the services.
func (h *Hub) relayUpdates(ctx context.Context, userID uuid.UUID) {
	pubsub := h.redisClient.Subscribe(ctx, "user_updates:"+userID.String())
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
			h.broadcast(userID, []byte(msg.Payload))
		}
	}
}

func (h *Hub) broadcast(userID uuid.UUID, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for conn := range h.conns[userID] {
		conn.WriteMessage(websocket.TextMessage, data)
	}
}
