package models

import (
	"time"

	"github.com/google/uuid"
)

// Conversation представляет диалог между двумя участниками обмена
type Conversation struct {
	ID              uuid.UUID  `json:"id"`
	SwapID          *uuid.UUID `json:"swap_id,omitempty"`
	RequesterID     uuid.UUID  `json:"requester_id"`
	OwnerID         uuid.UUID  `json:"owner_id"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	LastMessageText string     `json:"last_message_text,omitempty"`
	LastMessageTime *time.Time `json:"last_message_time,omitempty"`
	IsActive        bool       `json:"is_active"`

	// Дополнительные поля для API
	Requester   *User `json:"requester,omitempty"`
	Owner       *User `json:"owner,omitempty"`
	UnreadCount int   `json:"unread_count,omitempty"`
}

// Message представляет сообщение в диалоге
type Message struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	SenderID       uuid.UUID `json:"sender_id"`
	Text           string    `json:"text"`
	IsRead         bool      `json:"is_read"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// Дополнительные поля для API
	Sender *User `json:"sender,omitempty"`
}
