package chat

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sahilm2002/booze-and-books-sub002/internal/config"
	"github.com/sahilm2002/booze-and-books-sub002/internal/db"
	"github.com/sahilm2002/booze-and-books-sub002/internal/models"
	"github.com/sahilm2002/booze-and-books-sub002/internal/services/book"
	"github.com/sahilm2002/booze-and-books-sub002/internal/services/notification"
	"github.com/sahilm2002/booze-and-books-sub002/internal/utils"
)

// ChatService представляет сервис для работы с диалогами обменов
type ChatService struct {
	cfg        *config.Config
	jwtService *utils.JWTService
	dispatcher *notification.Dispatcher
}

// NewChatService создает новый экземпляр ChatService
func NewChatService(cfg *config.Config, dispatcher *notification.Dispatcher) *ChatService {
	return &ChatService{
		cfg:        cfg,
		jwtService: utils.NewJWTService(cfg.JWTSecret),
		dispatcher: dispatcher,
	}
}

// HandleGet маршрутизирует GET-запросы чата по параметру action
func (s *ChatService) HandleGet(c fiber.Ctx) error {
	switch action := c.Query("action"); action {
	case "conversations":
		return s.getConversations(c)
	case "history":
		return s.getHistory(c)
	default:
		return utils.ErrorJSON(c, fiber.StatusBadRequest, utils.CodeInvalidInput, "Неизвестное действие: "+action)
	}
}

// HandlePost маршрутизирует POST-запросы чата по полю action тела
func (s *ChatService) HandlePost(c fiber.Ctx) error {
	var envelope struct {
		Action         string `json:"action"`
		ConversationID string `json:"conversation_id"`
		Text           string `json:"text"`
	}
	if err := c.Bind().Body(&envelope); err != nil {
		log.Printf("Ошибка декодирования тела запроса: %v", err)
		return utils.ErrorJSON(c, fiber.StatusBadRequest, utils.CodeInvalidInput, "Неверный формат данных")
	}

	switch envelope.Action {
	case "send":
		return s.sendMessage(c, envelope.ConversationID, envelope.Text)
	case "markAsRead":
		return s.markAsRead(c, envelope.ConversationID)
	default:
		return utils.ErrorJSON(c, fiber.StatusBadRequest, utils.CodeInvalidInput, "Неизвестное действие: "+envelope.Action)
	}
}

// getConversations возвращает список диалогов пользователя
func (s *ChatService) getConversations(c fiber.Ctx) error {
	userUUID, err := callerUUID(c)
	if err != nil {
		return utils.ErrorJSON(c, fiber.StatusBadRequest, utils.CodeInvalidInput, "Неверный формат ID пользователя")
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	query := `
        SELECT cv.id, cv.swap_id, cv.requester_id, cv.owner_id, cv.created_at, cv.updated_at,
               COALESCE(cv.last_message_text, ''), cv.last_message_time, cv.is_active,
               COUNT(m.id) FILTER (WHERE m.sender_id != $1 AND m.is_read = false) AS unread_count
        FROM conversations cv
        LEFT JOIN messages m ON cv.id = m.conversation_id
        WHERE cv.requester_id = $1 OR cv.owner_id = $1
        GROUP BY cv.id
        ORDER BY cv.last_message_time DESC NULLS LAST, cv.created_at DESC
    `

	rows, err := db.Pool.Query(ctx, query, userUUID)
	if err != nil {
		log.Printf("Ошибка запроса диалогов: %v", err)
		return utils.ErrorJSON(c, fiber.StatusInternalServerError, utils.CodeInternal, "Ошибка получения диалогов")
	}
	defer rows.Close()

	conversations := []models.Conversation{}
	for rows.Next() {
		var cv models.Conversation
		var lastMessageTime *time.Time

		if err := rows.Scan(
			&cv.ID, &cv.SwapID, &cv.RequesterID, &cv.OwnerID,
			&cv.CreatedAt, &cv.UpdatedAt,
			&cv.LastMessageText, &lastMessageTime, &cv.IsActive,
			&cv.UnreadCount,
		); err != nil {
			log.Printf("Ошибка сканирования строки: %v", err)
			continue
		}
		cv.LastMessageTime = lastMessageTime

		// Данные о собеседнике (не текущем пользователе)
		if cv.RequesterID == userUUID {
			cv.Owner = book.GetUserInfo(ctx, cv.OwnerID)
		} else {
			cv.Requester = book.GetUserInfo(ctx, cv.RequesterID)
		}

		conversations = append(conversations, cv)
	}

	return c.JSON(fiber.Map{
		"conversations": conversations,
		"count":         len(conversations),
	})
}

// getHistory возвращает страницу сообщений диалога
func (s *ChatService) getHistory(c fiber.Ctx) error {
	userUUID, err := callerUUID(c)
	if err != nil {
		return utils.ErrorJSON(c, fiber.StatusBadRequest, utils.CodeInvalidInput, "Неверный формат ID пользователя")
	}

	conversationUUID, err := uuid.Parse(c.Query("conversation_id"))
	if err != nil {
		return utils.ErrorJSON(c, fiber.StatusBadRequest, utils.CodeInvalidInput, "Неверный формат ID диалога")
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	if cv, respErr := s.conversationFor(c, ctx, conversationUUID, userUUID); cv == nil {
		return respErr
	}

	limit := 50

	before := c.Query("before")
	var query string
	var queryArgs []interface{}

	if before != "" {
		beforeUUID, err := uuid.Parse(before)
		if err != nil {
			return utils.ErrorJSON(c, fiber.StatusBadRequest, utils.CodeInvalidInput, "Неверный формат ID сообщения")
		}
		query = `
            SELECT m.id, m.conversation_id, m.sender_id, m.text, m.is_read, m.created_at, m.updated_at
            FROM messages m
            WHERE m.conversation_id = $1
              AND m.created_at < (SELECT created_at FROM messages WHERE id = $2)
            ORDER BY m.created_at DESC
            LIMIT $3
        `
		queryArgs = []interface{}{conversationUUID, beforeUUID, limit}
	} else {
		query = `
            SELECT m.id, m.conversation_id, m.sender_id, m.text, m.is_read, m.created_at, m.updated_at
            FROM messages m
            WHERE m.conversation_id = $1
            ORDER BY m.created_at DESC
            LIMIT $2
        `
		queryArgs = []interface{}{conversationUUID, limit}
	}

	rows, err := db.Pool.Query(ctx, query, queryArgs...)
	if err != nil {
		log.Printf("Ошибка запроса сообщений: %v", err)
		return utils.ErrorJSON(c, fiber.StatusInternalServerError, utils.CodeInternal, "Ошибка получения сообщений")
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(
			&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Text,
			&msg.IsRead, &msg.CreatedAt, &msg.UpdatedAt,
		); err != nil {
			log.Printf("Ошибка сканирования сообщения: %v", err)
			continue
		}
		msg.Sender = book.GetUserInfo(ctx, msg.SenderID)
		messages = append(messages, msg)
	}

	return c.JSON(fiber.Map{
		"messages": messages,
		"has_more": len(messages) == limit,
	})
}

// sendMessage сохраняет сообщение и обновляет диалог в одной транзакции
func (s *ChatService) sendMessage(c fiber.Ctx, conversationID, text string) error {
	userUUID, err := callerUUID(c)
	if err != nil {
		return utils.ErrorJSON(c, fiber.StatusBadRequest, utils.CodeInvalidInput, "Неверный формат ID пользователя")
	}

	conversationUUID, err := uuid.Parse(conversationID)
	if err != nil {
		return utils.ErrorJSON(c, fiber.StatusBadRequest, utils.CodeInvalidInput, "Неверный формат ID диалога")
	}

	if text == "" {
		return utils.ErrorJSON(c, fiber.StatusBadRequest, utils.CodeInvalidInput, "Текст сообщения не может быть пустым")
	}
	if len(text) > 4000 {
		return utils.ErrorJSON(c, fiber.StatusBadRequest, utils.CodeInvalidInput, "Текст сообщения слишком длинный")
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	cv, respErr := s.conversationFor(c, ctx, conversationUUID, userUUID)
	if cv == nil {
		return respErr
	}

	if !cv.IsActive {
		return utils.ErrorJSON(c, fiber.StatusForbidden, utils.CodeUnauthorized, "Диалог неактивен")
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		log.Printf("Ошибка начала транзакции: %v", err)
		return utils.ErrorJSON(c, fiber.StatusInternalServerError, utils.CodeInternal, "Ошибка базы данных")
	}
	defer tx.Rollback(ctx)

	messageID := uuid.New()
	now := time.Now()

	_, err = tx.Exec(ctx, `
        INSERT INTO messages (id, conversation_id, sender_id, text, is_read, created_at, updated_at)
        VALUES ($1, $2, $3, $4, false, $5, $6)
    `, messageID, conversationUUID, userUUID, text, now, now)
	if err != nil {
		log.Printf("Ошибка создания сообщения: %v", err)
		return utils.ErrorJSON(c, fiber.StatusInternalServerError, utils.CodeInternal, "Ошибка сохранения сообщения")
	}

	_, err = tx.Exec(ctx, `
        UPDATE conversations
        SET last_message_text = $1, last_message_time = $2, updated_at = $3
        WHERE id = $4
    `, text, now, now, conversationUUID)
	if err != nil {
		log.Printf("Ошибка обновления диалога: %v", err)
		return utils.ErrorJSON(c, fiber.StatusInternalServerError, utils.CodeInternal, "Ошибка обновления диалога")
	}

	if err = tx.Commit(ctx); err != nil {
		log.Printf("Ошибка фиксации транзакции: %v", err)
		return utils.ErrorJSON(c, fiber.StatusInternalServerError, utils.CodeInternal, "Ошибка базы данных")
	}

	// Уведомляем собеседника
	recipient := cv.RequesterID
	if userUUID == cv.RequesterID {
		recipient = cv.OwnerID
	}
	sender := book.GetUserInfo(ctx, userUUID)
	senderName := ""
	if sender != nil {
		senderName = sender.FirstName
	}
	if err := s.dispatcher.DispatchChatMessage(ctx, recipient, conversationUUID, messageID, senderName, text); err != nil {
		notification.LogDispatchError(recipient, err)
		// Не возвращаем ошибку, т.к. основная функциональность выполнена
	}

	message := models.Message{
		ID:             messageID,
		ConversationID: conversationUUID,
		SenderID:       userUUID,
		Text:           text,
		IsRead:         false,
		CreatedAt:      now,
		UpdatedAt:      now,
		Sender:         sender,
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": message,
		"success": true,
	})
}

// markAsRead отмечает входящие сообщения диалога прочитанными
func (s *ChatService) markAsRead(c fiber.Ctx, conversationID string) error {
	userUUID, err := callerUUID(c)
	if err != nil {
		return utils.ErrorJSON(c, fiber.StatusBadRequest, utils.CodeInvalidInput, "Неверный формат ID пользователя")
	}

	conversationUUID, err := uuid.Parse(conversationID)
	if err != nil {
		return utils.ErrorJSON(c, fiber.StatusBadRequest, utils.CodeInvalidInput, "Неверный формат ID диалога")
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	if cv, respErr := s.conversationFor(c, ctx, conversationUUID, userUUID); cv == nil {
		return respErr
	}

	tag, err := db.Pool.Exec(ctx, `
        UPDATE messages
        SET is_read = true, updated_at = NOW()
        WHERE conversation_id = $1 AND sender_id != $2 AND is_read = false
    `, conversationUUID, userUUID)
	if err != nil {
		log.Printf("Ошибка обновления статуса прочтения: %v", err)
		return utils.ErrorJSON(c, fiber.StatusInternalServerError, utils.CodeInternal, "Ошибка обновления статуса прочтения")
	}

	return c.JSON(fiber.Map{
		"success":     true,
		"marked_read": tag.RowsAffected(),
	})
}

// conversationFor загружает диалог и проверяет, что пользователь — его участник.
// При отказе сам пишет JSON-ответ и возвращает nil-диалог.
func (s *ChatService) conversationFor(c fiber.Ctx, ctx context.Context, conversationID, userID uuid.UUID) (*models.Conversation, error) {
	var cv models.Conversation
	err := db.Pool.QueryRow(ctx, `
        SELECT id, requester_id, owner_id, is_active FROM conversations
        WHERE id = $1 AND (requester_id = $2 OR owner_id = $2)
    `, conversationID, userID).Scan(&cv.ID, &cv.RequesterID, &cv.OwnerID, &cv.IsActive)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, utils.ErrorJSON(c, fiber.StatusForbidden, utils.CodeUnauthorized, "У вас нет доступа к этому диалогу")
		}
		log.Printf("Ошибка проверки доступа к диалогу: %v", err)
		return nil, utils.ErrorJSON(c, fiber.StatusInternalServerError, utils.CodeInternal, "Ошибка проверки доступа к диалогу")
	}

	return &cv, nil
}

// callerUUID извлекает ID пользователя из контекста авторизации
func callerUUID(c fiber.Ctx) (uuid.UUID, error) {
	userID, _ := c.Locals("userID").(string)
	return uuid.Parse(userID)
}
