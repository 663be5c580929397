package sse

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubSendToUser(t *testing.T) {
	hub := NewHub()
	client := hub.AddClient("user-1")

	hub.SendToUser("user-1", Event{Type: EventNotification})

	select {
	case frame := <-client.Ch:
		assert.Contains(t, string(frame), "data: ")
		assert.Contains(t, string(frame), string(EventNotification))
	case <-time.After(time.Second):
		t.Fatal("событие не доставлено")
	}
}

func TestHubDoesNotCrossUsers(t *testing.T) {
	hub := NewHub()
	a := hub.AddClient("user-a")
	b := hub.AddClient("user-b")

	hub.SendToUser("user-a", Event{Type: EventNewMessage})

	select {
	case <-a.Ch:
	case <-time.After(time.Second):
		t.Fatal("событие не доставлено получателю")
	}

	select {
	case <-b.Ch:
		t.Fatal("событие доставлено чужому пользователю")
	default:
	}
}

func TestHubSkipsSlowClient(t *testing.T) {
	hub := NewHub()
	client := hub.AddClient("user-slow")

	// Переполняем буфер клиента, отправитель не должен блокироваться
	done := make(chan struct{})
	go func() {
		for i := 0; i < clientBufferSize*2; i++ {
			hub.SendToUser("user-slow", Event{Type: EventUnreadCount})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("отправка заблокировалась на медленном клиенте")
	}

	assert.Len(t, client.Ch, clientBufferSize)
}

func TestHubRemoveClient(t *testing.T) {
	hub := NewHub()
	client := hub.AddClient("user-x")
	require.Equal(t, 1, hub.ConnectedUsers())

	hub.RemoveClient(client.ID)
	assert.Equal(t, 0, hub.ConnectedUsers())

	// Канал закрыт
	_, open := <-client.Ch
	assert.False(t, open)

	// Повторное удаление безопасно
	hub.RemoveClient(client.ID)
}

func TestEventSerialization(t *testing.T) {
	payload, _ := json.Marshal(map[string]int{"count": 3})
	event := Event{Type: EventUnreadCount, UserID: "u", Timestamp: time.Now(), Payload: payload}

	data, err := json.Marshal(event)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"unread_count"`)
	assert.Contains(t, string(data), `"count":3`)
}
