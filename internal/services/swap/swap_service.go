package swap

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

// SwapService представляет сервис для работы с запросами на обмен
type SwapService struct {
	cfg        *config.Config
	jwtService *utils.JWTService
	dispatcher *notification.Dispatcher
}

// NewSwapService создает новый экземпляр SwapService
func NewSwapService(cfg *config.Config, dispatcher *notification.Dispatcher) *SwapService {
	return &SwapService{
		cfg:        cfg,
		jwtService: utils.NewJWTService(cfg.JWTSecret),
		dispatcher: dispatcher,
	}
}

// CreateSwap создает новый запрос на обмен
func (s *SwapService) CreateSwap(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	requesterID, err := uuid.Parse(userID)
	if err != nil {
		return utils.ErrorJSON(c, fiber.StatusBadRequest, utils.CodeInvalidInput, "Неверный формат ID пользователя")
	}

	var requestData struct {
		BookID  string `json:"book_id" validate:"required,uuid"`
		Message string `json:"message" validate:"max=1000"`
	}

	if err := c.Bind().Body(&requestData); err != nil {
		log.Printf("Ошибка декодирования тела запроса: %v", err)
		return utils.ErrorJSON(c, fiber.StatusBadRequest, utils.CodeInvalidInput, "Неверный формат данных")
	}

	if fields := utils.ValidateStruct(requestData); fields != nil {
		return utils.FieldErrorsJSON(c, "Ошибка валидации запроса на обмен", fields)
	}

	bookUUID, err := uuid.Parse(requestData.BookID)
	if err != nil {
		return utils.ErrorJSON(c, fiber.StatusBadRequest, utils.CodeInvalidInput, "Неверный формат ID книги")
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	// Книга должна существовать, быть доступной и не принадлежать запрашивающему
	targetBook, err := book.GetBookByID(ctx, bookUUID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return utils.ErrorJSON(c, fiber.StatusNotFound, utils.CodeNotFound, "Книга не найдена")
		}
		log.Printf("Ошибка запроса книги: %v", err)
		return utils.ErrorJSON(c, fiber.StatusInternalServerError, utils.CodeInternal, "Ошибка проверки книги")
	}

	if err := models.CanCreateSwap(targetBook, requesterID); err != nil {
		return utils.ErrorJSON(c, fiber.StatusConflict, utils.CodeConflict, err.Error())
	}

	// Повторный запрос той же книги тем же пользователем не создается
	var existing int
	err = db.Pool.QueryRow(ctx, `
        SELECT COUNT(*) FROM swap_requests
        WHERE book_id = $1 AND requester_id = $2 AND status IN ('pending', 'accepted')
    `, bookUUID, requesterID).Scan(&existing)
	if err != nil {
		log.Printf("Ошибка проверки существующих запросов: %v", err)
		return utils.ErrorJSON(c, fiber.StatusInternalServerError, utils.CodeInternal, "Ошибка проверки существующих обменов")
	}
	if existing > 0 {
		return utils.ErrorJSON(c, fiber.StatusConflict, utils.CodeConflict, "Запрос на обмен этой книги уже существует")
	}

	swapID := uuid.New()
	_, err = db.Pool.Exec(ctx, `
        INSERT INTO swap_requests (id, book_id, requester_id, owner_id, status, message)
        VALUES ($1, $2, $3, $4, 'pending', $5)
    `, swapID, bookUUID, requesterID, targetBook.OwnerID, requestData.Message)

	if err != nil {
		// Проверка COUNT выше — подсказка для раннего ответа; гонку двух
		// одинаковых запросов разрешает частичный уникальный индекс по
		// (book_id, requester_id) для активных статусов
		if utils.IsUniqueViolation(err) {
			return utils.ErrorJSON(c, fiber.StatusConflict, utils.CodeConflict, "Запрос на обмен этой книги уже существует")
		}
		log.Printf("Ошибка создания запроса на обмен: %v", err)
		return utils.ErrorJSON(c, fiber.StatusInternalServerError, utils.CodeInternal, "Ошибка сохранения запроса на обмен")
	}

	// Уведомляем владельца книги
	swapRef := &models.SwapRequest{ID: swapID, BookID: bookUUID}
	if err := s.dispatcher.DispatchSwapEvent(ctx, models.NotificationSwapRequest,
		targetBook.OwnerID, swapRef, targetBook.Title); err != nil {
		notification.LogDispatchError(targetBook.OwnerID, err)
		// Не возвращаем ошибку, т.к. основная функциональность выполнена
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"swap_id": swapID,
		"status":  models.SwapStatusPending,
	})
}

// GetMySwaps возвращает входящие и исходящие запросы на обмен
func (s *SwapService) GetMySwaps(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return utils.ErrorJSON(c, fiber.StatusBadRequest, utils.CodeInvalidInput, "Неверный формат ID пользователя")
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	incoming, err := s.querySwaps(ctx, `WHERE sr.owner_id = $1`, userUUID)
	if err != nil {
		log.Printf("Ошибка запроса входящих обменов: %v", err)
		return utils.ErrorJSON(c, fiber.StatusInternalServerError, utils.CodeInternal, "Ошибка получения обменов")
	}

	outgoing, err := s.querySwaps(ctx, `WHERE sr.requester_id = $1`, userUUID)
	if err != nil {
		log.Printf("Ошибка запроса исходящих обменов: %v", err)
		return utils.ErrorJSON(c, fiber.StatusInternalServerError, utils.CodeInternal, "Ошибка получения обменов")
	}

	return c.JSON(fiber.Map{
		"incoming": incoming,
		"outgoing": outgoing,
	})
}

// querySwaps выбирает запросы на обмен с данными о книге и участниках
func (s *SwapService) querySwaps(ctx context.Context, where string, args ...interface{}) ([]models.SwapRequest, error) {
	query := `
        SELECT sr.id, sr.book_id, sr.requester_id, sr.owner_id, sr.status, COALESCE(sr.message, ''),
               sr.counter_offer_book_id, sr.requester_completed_at, sr.owner_completed_at, sr.completed_at,
               sr.requester_rating, sr.owner_rating,
               COALESCE(sr.requester_feedback, ''), COALESCE(sr.owner_feedback, ''),
               sr.created_at, sr.updated_at
        FROM swap_requests sr
        ` + where + `
        ORDER BY sr.created_at DESC
    `

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	swaps := []models.SwapRequest{}
	for rows.Next() {
		var sw models.SwapRequest
		if err := rows.Scan(
			&sw.ID, &sw.BookID, &sw.RequesterID, &sw.OwnerID, &sw.Status, &sw.Message,
			&sw.CounterOfferBookID, &sw.RequesterCompletedAt, &sw.OwnerCompletedAt, &sw.CompletedAt,
			&sw.RequesterRating, &sw.OwnerRating, &sw.RequesterFeedback, &sw.OwnerFeedback,
			&sw.CreatedAt, &sw.UpdatedAt,
		); err != nil {
			log.Printf("Ошибка сканирования строки: %v", err)
			continue
		}

		if b, err := book.GetBookByID(ctx, sw.BookID); err == nil {
			sw.Book = b
		}
		sw.Requester = book.GetUserInfo(ctx, sw.RequesterID)
		sw.Owner = book.GetUserInfo(ctx, sw.OwnerID)

		swaps = append(swaps, sw)
	}

	return swaps, rows.Err()
}

// getSwap загружает один запрос на обмен
func getSwap(ctx context.Context, swapID uuid.UUID) (*models.SwapRequest, error) {
	var sw models.SwapRequest
	err := db.Pool.QueryRow(ctx, `
        SELECT id, book_id, requester_id, owner_id, status, COALESCE(message, ''),
               counter_offer_book_id, requester_completed_at, owner_completed_at, completed_at,
               requester_rating, owner_rating,
               COALESCE(requester_feedback, ''), COALESCE(owner_feedback, ''),
               created_at, updated_at
        FROM swap_requests
        WHERE id = $1
    `, swapID).Scan(
		&sw.ID, &sw.BookID, &sw.RequesterID, &sw.OwnerID, &sw.Status, &sw.Message,
		&sw.CounterOfferBookID, &sw.RequesterCompletedAt, &sw.OwnerCompletedAt, &sw.CompletedAt,
		&sw.RequesterRating, &sw.OwnerRating, &sw.RequesterFeedback, &sw.OwnerFeedback,
		&sw.CreatedAt, &sw.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sw, nil
}

// UpdateSwapStatus обновляет статус запроса: принятие, отклонение, отмена
func (s *SwapService) UpdateSwapStatus(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return utils.ErrorJSON(c, fiber.StatusBadRequest, utils.CodeInvalidInput, "Неверный формат ID пользователя")
	}

	swapUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ErrorJSON(c, fiber.StatusBadRequest, utils.CodeInvalidInput, "Неверный формат ID запроса")
	}

	var requestData struct {
		Status string `json:"status" validate:"required,oneof=accepted declined cancelled"`
	}
	if err := c.Bind().Body(&requestData); err != nil {
		log.Printf("Ошибка декодирования тела запроса: %v", err)
		return utils.ErrorJSON(c, fiber.StatusBadRequest, utils.CodeInvalidInput, "Неверный формат данных")
	}
	if fields := utils.ValidateStruct(requestData); fields != nil {
		return utils.FieldErrorsJSON(c, "Недопустимый статус запроса", fields)
	}
	newStatus := models.SwapStatus(requestData.Status)

	ctx, cancel := db.GetContext()
	defer cancel()

	sw, err := getSwap(ctx, swapUUID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return utils.ErrorJSON(c, fiber.StatusNotFound, utils.CodeNotFound, "Запрос на обмен не найден")
		}
		log.Printf("Ошибка запроса обмена: %v", err)
		return utils.ErrorJSON(c, fiber.StatusInternalServerError, utils.CodeInternal, "Ошибка получения запроса")
	}

	party, err := sw.PartyOf(userUUID)
	if err != nil {
		return utils.ErrorJSON(c, fiber.StatusForbidden, utils.CodeUnauthorized, "Вы не являетесь участником обмена")
	}

	// Принять или отклонить может только владелец книги; отменить — любая сторона
	if (newStatus == models.SwapStatusAccepted || newStatus == models.SwapStatusDeclined) &&
		party != models.PartyOwner {
		return utils.ErrorJSON(c, fiber.StatusForbidden, utils.CodeUnauthorized, "Только владелец книги может принять или отклонить запрос")
	}

	if !models.CanTransition(sw.Status, newStatus) {
		return utils.ErrorJSON(c, fiber.StatusConflict, utils.CodeConflict, "Недопустимый переход статуса обмена")
	}

	// Атомарное обновление по прежнему статусу: параллельный переход не затирается
	tag, err := db.Pool.Exec(ctx, `
        UPDATE swap_requests
        SET status = $1, updated_at = NOW()
        WHERE id = $2 AND status = $3
    `, newStatus, swapUUID, sw.Status)
	if err != nil {
		log.Printf("Ошибка обновления статуса запроса: %v", err)
		return utils.ErrorJSON(c, fiber.StatusInternalServerError, utils.CodeInternal, "Ошибка обновления статуса")
	}
	if tag.RowsAffected() == 0 {
		return utils.ErrorJSON(c, fiber.StatusConflict, utils.CodeConflict, "Статус запроса уже изменён")
	}

	// Принятая книга снимается с витрины, отмена принятого обмена возвращает её
	if newStatus == models.SwapStatusAccepted {
		s.setBookAvailability(ctx, sw.BookID, false)
	} else if newStatus == models.SwapStatusCancelled && sw.Status == models.SwapStatusAccepted {
		s.setBookAvailability(ctx, sw.BookID, true)
	}

	// При принятии создаем диалог между участниками
	var conversationID uuid.UUID
	if newStatus == models.SwapStatusAccepted {
		conversationID = s.createConversation(ctx, sw)
	}

	// Уведомляем вторую сторону
	eventType := map[models.SwapStatus]models.NotificationType{
		models.SwapStatusAccepted:  models.NotificationSwapAccepted,
		models.SwapStatusDeclined:  models.NotificationSwapDeclined,
		models.SwapStatusCancelled: models.NotificationSwapCancelled,
	}[newStatus]

	recipient := sw.RequesterID
	if party == models.PartyRequester {
		recipient = sw.OwnerID
	}

	bookTitle := ""
	if b, err := book.GetBookByID(ctx, sw.BookID); err == nil {
		bookTitle = b.Title
	}
	if err := s.dispatcher.DispatchSwapEvent(ctx, eventType, recipient, sw, bookTitle); err != nil {
		notification.LogDispatchError(recipient, err)
	}

	response := fiber.Map{
		"success": true,
		"swap_id": swapUUID,
		"status":  newStatus,
	}
	if conversationID != uuid.Nil {
		response["conversation_id"] = conversationID
	}

	return c.JSON(response)
}

// CounterOffer сохраняет встречное предложение владельца:
// книгу запрашивающего, которую он хочет получить взамен
func (s *SwapService) CounterOffer(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return utils.ErrorJSON(c, fiber.StatusBadRequest, utils.CodeInvalidInput, "Неверный формат ID пользователя")
	}

	swapUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ErrorJSON(c, fiber.StatusBadRequest, utils.CodeInvalidInput, "Неверный формат ID запроса")
	}

	var requestData struct {
		BookID string `json:"book_id" validate:"required,uuid"`
	}
	if err := c.Bind().Body(&requestData); err != nil {
		log.Printf("Ошибка декодирования тела запроса: %v", err)
		return utils.ErrorJSON(c, fiber.StatusBadRequest, utils.CodeInvalidInput, "Неверный формат данных")
	}
	if fields := utils.ValidateStruct(requestData); fields != nil {
		return utils.FieldErrorsJSON(c, "Ошибка валидации встречного предложения", fields)
	}

	counterBookUUID, err := uuid.Parse(requestData.BookID)
	if err != nil {
		return utils.ErrorJSON(c, fiber.StatusBadRequest, utils.CodeInvalidInput, "Неверный формат ID книги")
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	sw, err := getSwap(ctx, swapUUID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return utils.ErrorJSON(c, fiber.StatusNotFound, utils.CodeNotFound, "Запрос на обмен не найден")
		}
		log.Printf("Ошибка запроса обмена: %v", err)
		return utils.ErrorJSON(c, fiber.StatusInternalServerError, utils.CodeInternal, "Ошибка получения запроса")
	}

	if sw.OwnerID != userUUID {
		return utils.ErrorJSON(c, fiber.StatusForbidden, utils.CodeUnauthorized, "Встречное предложение может сделать только владелец книги")
	}

	if sw.Status != models.SwapStatusPending {
		return utils.ErrorJSON(c, fiber.StatusConflict, utils.CodeConflict, "Встречное предложение возможно только для ожидающего запроса")
	}

	// Предлагаемая книга должна принадлежать запрашивающему и быть доступной
	counterBook, err := book.GetBookByID(ctx, counterBookUUID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return utils.ErrorJSON(c, fiber.StatusNotFound, utils.CodeNotFound, "Книга для встречного предложения не найдена")
		}
		log.Printf("Ошибка запроса книги: %v", err)
		return utils.ErrorJSON(c, fiber.StatusInternalServerError, utils.CodeInternal, "Ошибка проверки книги")
	}

	if counterBook.OwnerID != sw.RequesterID {
		return utils.ErrorJSON(c, fiber.StatusConflict, utils.CodeConflict, "Книга встречного предложения должна принадлежать запрашивающему")
	}
	if !counterBook.IsAvailable {
		return utils.ErrorJSON(c, fiber.StatusConflict, utils.CodeConflict, "Книга встречного предложения недоступна")
	}

	_, err = db.Pool.Exec(ctx, `
        UPDATE swap_requests
        SET counter_offer_book_id = $1, updated_at = NOW()
        WHERE id = $2 AND status = 'pending'
    `, counterBookUUID, swapUUID)
	if err != nil {
		log.Printf("Ошибка сохранения встречного предложения: %v", err)
		return utils.ErrorJSON(c, fiber.StatusInternalServerError, utils.CodeInternal, "Ошибка сохранения встречного предложения")
	}

	bookTitle := ""
	if b, err := book.GetBookByID(ctx, sw.BookID); err == nil {
		bookTitle = b.Title
	}
	if err := s.dispatcher.DispatchSwapEvent(ctx, models.NotificationCounterOffer,
		sw.RequesterID, sw, bookTitle); err != nil {
		notification.LogDispatchError(sw.RequesterID, err)
	}

	return c.JSON(fiber.Map{
		"success":               true,
		"swap_id":               swapUUID,
		"counter_offer_book_id": counterBookUUID,
	})
}

// CompleteSwap отмечает обмен завершённым со стороны вызывающего.
// Первое завершение из статуса accepted финализирует обмен; повторные
// вызовы идемпотентны и не меняют completed_at.
func (s *SwapService) CompleteSwap(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return utils.ErrorJSON(c, fiber.StatusBadRequest, utils.CodeInvalidInput, "Неверный формат ID пользователя")
	}

	swapUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ErrorJSON(c, fiber.StatusBadRequest, utils.CodeInvalidInput, "Неверный формат ID запроса")
	}

	var requestData struct {
		Rating   *int   `json:"rating" validate:"omitempty,gte=1,lte=5"`
		Feedback string `json:"feedback" validate:"max=2000"`
	}
	if err := c.Bind().Body(&requestData); err != nil {
		log.Printf("Ошибка декодирования тела запроса: %v", err)
		return utils.ErrorJSON(c, fiber.StatusBadRequest, utils.CodeInvalidInput, "Неверный формат данных")
	}
	if fields := utils.ValidateStruct(requestData); fields != nil {
		return utils.FieldErrorsJSON(c, "Ошибка валидации завершения обмена", fields)
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	sw, err := getSwap(ctx, swapUUID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return utils.ErrorJSON(c, fiber.StatusNotFound, utils.CodeNotFound, "Запрос на обмен не найден")
		}
		log.Printf("Ошибка запроса обмена: %v", err)
		return utils.ErrorJSON(c, fiber.StatusInternalServerError, utils.CodeInternal, "Ошибка получения запроса")
	}

	party, err := sw.PartyOf(userUUID)
	if err != nil {
		return utils.ErrorJSON(c, fiber.StatusForbidden, utils.CodeUnauthorized, "Вы не являетесь участником обмена")
	}

	prevStatus := sw.Status
	finalized, err := sw.ApplyCompletion(party, time.Now())
	if err != nil {
		return utils.ErrorJSON(c, fiber.StatusConflict, utils.CodeConflict, "Завершить можно только принятый обмен")
	}

	if err := sw.ApplyRating(party, requestData.Rating, requestData.Feedback); err != nil {
		return utils.ErrorJSON(c, fiber.StatusBadRequest, utils.CodeInvalidInput, err.Error())
	}

	// Атомарная запись по прежнему статусу: повторное завершение другой
	// стороной не перетирает первый completed_at
	tag, err := db.Pool.Exec(ctx, `
        UPDATE swap_requests
        SET status = $1,
            requester_completed_at = $2,
            owner_completed_at = $3,
            completed_at = COALESCE(completed_at, $4),
            requester_rating = COALESCE(requester_rating, $5),
            owner_rating = COALESCE(owner_rating, $6),
            requester_feedback = COALESCE(NULLIF(requester_feedback, ''), $7),
            owner_feedback = COALESCE(NULLIF(owner_feedback, ''), $8),
            updated_at = NOW()
        WHERE id = $9 AND status = $10
    `, sw.Status, sw.RequesterCompletedAt, sw.OwnerCompletedAt, sw.CompletedAt,
		sw.RequesterRating, sw.OwnerRating, sw.RequesterFeedback, sw.OwnerFeedback,
		swapUUID, prevStatus)
	if err != nil {
		log.Printf("Ошибка записи завершения обмена: %v", err)
		return utils.ErrorJSON(c, fiber.StatusInternalServerError, utils.CodeInternal, "Ошибка завершения обмена")
	}
	if tag.RowsAffected() == 0 {
		return utils.ErrorJSON(c, fiber.StatusConflict, utils.CodeConflict, "Статус запроса уже изменён, повторите попытку")
	}

	// Уведомляем вторую сторону только при фактическом завершении
	if finalized {
		recipient := sw.RequesterID
		if party == models.PartyRequester {
			recipient = sw.OwnerID
		}
		bookTitle := ""
		if b, err := book.GetBookByID(ctx, sw.BookID); err == nil {
			bookTitle = b.Title
		}
		if err := s.dispatcher.DispatchSwapEvent(ctx, models.NotificationSwapCompleted,
			recipient, sw, bookTitle); err != nil {
			notification.LogDispatchError(recipient, err)
		}
	}

	return c.JSON(fiber.Map{
		"success":      true,
		"swap_id":      swapUUID,
		"status":       sw.Status,
		"completed_at": sw.CompletedAt,
	})
}

// setBookAvailability переключает доступность книги
func (s *SwapService) setBookAvailability(ctx context.Context, bookID uuid.UUID, available bool) {
	_, err := db.Pool.Exec(ctx, `
        UPDATE books SET is_available = $1, updated_at = NOW() WHERE id = $2
    `, available, bookID)
	if err != nil {
		log.Printf("Ошибка обновления доступности книги %s: %v", bookID, err)
	}
}

// createConversation создает диалог для принятого обмена с системным сообщением
func (s *SwapService) createConversation(ctx context.Context, sw *models.SwapRequest) uuid.UUID {
	conversationID := uuid.New()
	now := time.Now()
	initialMessage := "Обмен был принят. Вы можете обсудить детали здесь."

	_, err := db.Pool.Exec(ctx, `
        INSERT INTO conversations (id, swap_id, requester_id, owner_id, created_at, updated_at, last_message_text, last_message_time, is_active)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, true)
    `, conversationID, sw.ID, sw.RequesterID, sw.OwnerID, now, now, initialMessage, now)

	if err != nil {
		log.Printf("Ошибка создания диалога для обмена: %v", err)
		// Не возвращаем ошибку, т.к. основная функциональность выполнена
		return uuid.Nil
	}

	messageID := uuid.New()
	_, err = db.Pool.Exec(ctx, `
        INSERT INTO messages (id, conversation_id, sender_id, text, is_read, created_at, updated_at)
        VALUES ($1, $2, $3, $4, false, $5, $6)
    `, messageID, conversationID, sw.OwnerID, initialMessage, now, now)

	if err != nil {
		log.Printf("Ошибка создания системного сообщения: %v", err)
	}

	return conversationID
}
