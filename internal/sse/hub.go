package sse

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType определяет тип события для подписчиков
type EventType string

const (
	EventNewMessage   EventType = "new_message"
	EventNotification EventType = "notification"
	EventSwapUpdated  EventType = "swap_updated"
	EventUnreadCount  EventType = "unread_count"
)

// Event представляет структуру события, отправляемого клиенту
type Event struct {
	Type      EventType       `json:"type"`
	UserID    string          `json:"user_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Размер буфера исходящих событий одного клиента
const clientBufferSize = 16

// Client представляет одно открытое SSE-соединение
type Client struct {
	ID     uuid.UUID
	UserID string
	Ch     chan []byte
}

// Hub представляет центральный менеджер всех SSE подписок.
// Доставка необязательная: медленный клиент пропускается, а не блокирует
// отправителя — источником истины остаются записи в базе.
type Hub struct {
	clients      map[uuid.UUID]*Client
	clientsMutex sync.RWMutex
	userClients  map[string]map[uuid.UUID]bool // userID -> map[clientID]bool
	userMutex    sync.RWMutex
}

// NewHub создает новый экземпляр Hub
func NewHub() *Hub {
	return &Hub{
		clients:     make(map[uuid.UUID]*Client),
		userClients: make(map[string]map[uuid.UUID]bool),
	}
}

// AddClient регистрирует нового подписчика
func (h *Hub) AddClient(userID string) *Client {
	client := &Client{
		ID:     uuid.New(),
		UserID: userID,
		Ch:     make(chan []byte, clientBufferSize),
	}

	h.clientsMutex.Lock()
	h.clients[client.ID] = client
	h.clientsMutex.Unlock()

	// Связываем клиент с пользователем
	h.userMutex.Lock()
	if _, exists := h.userClients[userID]; !exists {
		h.userClients[userID] = make(map[uuid.UUID]bool)
	}
	h.userClients[userID][client.ID] = true
	h.userMutex.Unlock()

	log.Printf("SSE клиент %s подключен для пользователя %s", client.ID, userID)
	return client
}

// RemoveClient удаляет подписчика
func (h *Hub) RemoveClient(clientID uuid.UUID) {
	h.clientsMutex.Lock()
	client, exists := h.clients[clientID]
	if exists {
		delete(h.clients, clientID)
	}
	h.clientsMutex.Unlock()

	if !exists {
		return
	}

	h.userMutex.Lock()
	if clients, ok := h.userClients[client.UserID]; ok {
		delete(clients, clientID)
		// Если это был последний клиент пользователя, удаляем запись пользователя
		if len(clients) == 0 {
			delete(h.userClients, client.UserID)
		}
	}
	h.userMutex.Unlock()

	close(client.Ch)
	log.Printf("SSE клиент %s отключен для пользователя %s", clientID, client.UserID)
}

// SendToUser отправляет событие всем соединениям конкретного пользователя
func (h *Hub) SendToUser(userID string, event Event) {
	if userID == "" {
		return
	}

	h.userMutex.RLock()
	clientIDs := make([]uuid.UUID, 0, len(h.userClients[userID]))
	for id := range h.userClients[userID] {
		clientIDs = append(clientIDs, id)
	}
	h.userMutex.RUnlock()

	if len(clientIDs) == 0 {
		// Пользователь не онлайн, событие остаётся только в БД
		return
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		log.Printf("Ошибка сериализации события: %v", err)
		return
	}

	// Формат SSE: data: {json}\n\n
	frame := []byte(fmt.Sprintf("data: %s\n\n", eventJSON))

	// Отправка выполняется под блокировкой, чтобы канал не был закрыт
	// параллельным RemoveClient между проверкой и записью
	h.clientsMutex.RLock()
	defer h.clientsMutex.RUnlock()

	for _, clientID := range clientIDs {
		client, exists := h.clients[clientID]
		if !exists {
			continue
		}

		select {
		case client.Ch <- frame:
			// Событие добавлено в очередь отправки
		default:
			// Буфер заполнен, клиент слишком медленный — пропускаем
			log.Printf("⚠️ Буфер клиента %s заполнен, событие пропущено", client.ID)
		}
	}
}

// ConnectedUsers возвращает количество пользователей с активными подписками
func (h *Hub) ConnectedUsers() int {
	h.userMutex.RLock()
	defer h.userMutex.RUnlock()
	return len(h.userClients)
}
