package websocket

import (
	"encoding/json"
	"sync"

	"github.com/progclub/duel-arena-backend/pkg/logger"
)

// Event 사용자에게 내려보내는 결투 이벤트
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// Hub 사용자별 WebSocket 연결 허브. 결투 수명주기 이벤트를 해당
// 참가자의 모든 연결로 밀어준다.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]bool // userID 기준

	register   chan *Client
	unregister chan *Client
	stopChan   chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stopChan:   make(chan struct{}),
	}
}

// Run 허브 이벤트 루프
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case <-h.stopChan:
			h.closeAll()
			return
		}
	}
}

// Stop 허브 종료
func (h *Hub) Stop() {
	close(h.stopChan)
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.userID] == nil {
		h.clients[client.userID] = make(map[*Client]bool)
	}
	h.clients[client.userID][client] = true

	logger.Debug("websocket client connected", "userId", client.userID)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.clients[client.userID]; ok {
		if _, ok := conns[client]; ok {
			delete(conns, client)
			close(client.send)
			if len(conns) == 0 {
				delete(h.clients, client.userID)
			}
		}
	}

	logger.Debug("websocket client disconnected", "userId", client.userID)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, conns := range h.clients {
		for client := range conns {
			close(client.send)
		}
		delete(h.clients, userID)
	}
}

// SendToUser 해당 사용자의 모든 연결로 이벤트 전송. 연결이 없으면
// 조용히 버린다. 버퍼가 가득 찬 느린 연결도 건너뛴다.
func (h *Hub) SendToUser(userID string, msgType string, payload interface{}) {
	data, err := json.Marshal(Event{Type: msgType, Payload: payload})
	if err != nil {
		logger.Error("failed to marshal event", "type", msgType, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[userID] {
		select {
		case client.send <- data:
		default:
			logger.Warn("dropping event for slow client", "userId", userID, "type", msgType)
		}
	}
}

// ConnectedUsers 현재 연결된 사용자 수
func (h *Hub) ConnectedUsers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
