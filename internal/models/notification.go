package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// NotificationType определяет тип уведомления
type NotificationType string

// Типы событий обмена и чата плюс ежедневные напоминания.
// Типы напоминаний в верхнем регистре — их различает внешний планировщик.
const (
	NotificationSwapRequest   NotificationType = "swap_request"
	NotificationSwapAccepted  NotificationType = "swap_accepted"
	NotificationSwapDeclined  NotificationType = "swap_declined"
	NotificationSwapCancelled NotificationType = "swap_cancelled"
	NotificationSwapCompleted NotificationType = "swap_completed"
	NotificationCounterOffer  NotificationType = "counter_offer"
	NotificationChatMessage   NotificationType = "chat_message"

	NotificationDailyReminderPending     NotificationType = "DAILY_REMINDER_PENDING_SWAPS"
	NotificationDailyReminderCounter     NotificationType = "DAILY_REMINDER_COUNTER_OFFERS"
	NotificationDailyReminderUnfinished  NotificationType = "DAILY_REMINDER_UNFINISHED_SWAPS"
)

// Notification представляет сохранённое уведомление пользователя
type Notification struct {
	ID        uuid.UUID        `json:"id"`
	UserID    uuid.UUID        `json:"user_id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Data      json.RawMessage  `json:"data,omitempty"`
	IsRead    bool             `json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
}

// SwapNotificationData — полезная нагрузка уведомлений о событиях обмена
type SwapNotificationData struct {
	SwapID uuid.UUID `json:"swap_id"`
	BookID uuid.UUID `json:"book_id,omitempty"`
}

// ChatNotificationData — полезная нагрузка уведомлений о сообщениях чата
type ChatNotificationData struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	MessageID      uuid.UUID `json:"message_id"`
}

// ReminderNotificationData — агрегированная нагрузка ежедневного напоминания:
// одно уведомление на пользователя и категорию, а не на каждый обмен
type ReminderNotificationData struct {
	Count   int         `json:"count"`
	SwapIDs []uuid.UUID `json:"swap_ids"`
}
