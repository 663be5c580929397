package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/sahilm2002/booze-and-books-sub002/internal/db"
	"github.com/sahilm2002/booze-and-books-sub002/internal/models"
	"github.com/sahilm2002/booze-and-books-sub002/internal/sse"
)

// Creator сохраняет уведомление. Выделен в интерфейс, чтобы рассылку
// можно было проверять без базы данных.
type Creator interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
}

// PgCreator сохраняет уведомления в Postgres
type PgCreator struct{}

// CreateNotification вставляет запись уведомления
func (PgCreator) CreateNotification(ctx context.Context, n *models.Notification) error {
	_, err := db.Pool.Exec(ctx, `
        INSERT INTO notifications (id, user_id, type, title, message, data, is_read, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, false, $7)
    `, n.ID, n.UserID, n.Type, n.Title, n.Message, n.Data, n.CreatedAt)
	return err
}

// Dispatcher превращает доменные события в сохранённые уведомления
// и best-effort уведомляет подключённых клиентов через SSE
type Dispatcher struct {
	creator Creator
	hub     *sse.Hub
}

// NewDispatcher создает новый экземпляр Dispatcher
func NewDispatcher(creator Creator, hub *sse.Hub) *Dispatcher {
	return &Dispatcher{creator: creator, hub: hub}
}

// Dispatch сохраняет одно уведомление и публикует событие подписчикам
func (d *Dispatcher) Dispatch(ctx context.Context, n *models.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	if err := d.creator.CreateNotification(ctx, n); err != nil {
		return fmt.Errorf("ошибка сохранения уведомления: %w", err)
	}

	if d.hub != nil {
		payload, err := json.Marshal(n)
		if err == nil {
			d.hub.SendToUser(n.UserID.String(), sse.Event{
				Type:    sse.EventNotification,
				Payload: payload,
			})
		}
	}

	return nil
}

// Заголовки и тексты уведомлений о событиях обмена
var swapEventTexts = map[models.NotificationType][2]string{
	models.NotificationSwapRequest:   {"Новый запрос на обмен", "Пользователь хочет обменяться с вами книгой «%s»"},
	models.NotificationSwapAccepted:  {"Запрос принят", "Владелец принял ваш запрос на обмен книги «%s»"},
	models.NotificationSwapDeclined:  {"Запрос отклонён", "Владелец отклонил ваш запрос на обмен книги «%s»"},
	models.NotificationSwapCancelled: {"Обмен отменён", "Обмен книги «%s» был отменён"},
	models.NotificationSwapCompleted: {"Обмен завершён", "Обмен книги «%s» отмечен завершённым"},
	models.NotificationCounterOffer:  {"Встречное предложение", "Владелец предложил другую книгу взамен «%s»"},
}

// DispatchSwapEvent создает уведомление о событии обмена для получателя
func (d *Dispatcher) DispatchSwapEvent(ctx context.Context, eventType models.NotificationType,
	recipientID uuid.UUID, swap *models.SwapRequest, bookTitle string) error {

	texts, ok := swapEventTexts[eventType]
	if !ok {
		return fmt.Errorf("неизвестный тип события обмена: %s", eventType)
	}

	data, err := json.Marshal(models.SwapNotificationData{SwapID: swap.ID, BookID: swap.BookID})
	if err != nil {
		return fmt.Errorf("ошибка сериализации данных уведомления: %w", err)
	}

	return d.Dispatch(ctx, &models.Notification{
		UserID:  recipientID,
		Type:    eventType,
		Title:   texts[0],
		Message: fmt.Sprintf(texts[1], bookTitle),
		Data:    data,
	})
}

// Максимальная длина превью сообщения чата в байтах
const chatPreviewLimit = 80

// DispatchChatMessage создает уведомление о новом сообщении чата
func (d *Dispatcher) DispatchChatMessage(ctx context.Context, recipientID uuid.UUID,
	conversationID, messageID uuid.UUID, senderName, preview string) error {

	data, err := json.Marshal(models.ChatNotificationData{
		ConversationID: conversationID,
		MessageID:      messageID,
	})
	if err != nil {
		return fmt.Errorf("ошибка сериализации данных уведомления: %w", err)
	}

	// Усечение по границе руны: байтовый срез посреди кириллицы
	// оставил бы в сообщении невалидный UTF-8
	if len(preview) > chatPreviewLimit {
		cut := chatPreviewLimit
		for cut > 0 && !utf8.RuneStart(preview[cut]) {
			cut--
		}
		preview = preview[:cut]
	}

	return d.Dispatch(ctx, &models.Notification{
		UserID:  recipientID,
		Type:    models.NotificationChatMessage,
		Title:   "Новое сообщение от " + senderName,
		Message: preview,
		Data:    data,
	})
}

// LogDispatchError логирует ошибку доставки одному получателю, не прерывая остальных
func LogDispatchError(recipientID uuid.UUID, err error) {
	log.Printf("❌ Ошибка отправки уведомления пользователю %s: %v", recipientID, err)
}
