package notification

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/sahilm2002/booze-and-books-sub002/internal/config"
	"github.com/sahilm2002/booze-and-books-sub002/internal/db"
	"github.com/sahilm2002/booze-and-books-sub002/internal/models"
	"github.com/sahilm2002/booze-and-books-sub002/internal/sse"
	"github.com/sahilm2002/booze-and-books-sub002/internal/utils"
)

// NotificationService представляет сервис для работы с уведомлениями
type NotificationService struct {
	cfg        *config.Config
	jwtService *utils.JWTService
	dispatcher *Dispatcher
	hub        *sse.Hub
}

// NewNotificationService создает новый экземпляр NotificationService
func NewNotificationService(cfg *config.Config, dispatcher *Dispatcher, hub *sse.Hub) *NotificationService {
	return &NotificationService{
		cfg:        cfg,
		jwtService: utils.NewJWTService(cfg.JWTSecret),
		dispatcher: dispatcher,
		hub:        hub,
	}
}

// GetNotifications возвращает уведомления пользователя с количеством непрочитанных
func (s *NotificationService) GetNotifications(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return utils.ErrorJSON(c, fiber.StatusBadRequest, utils.CodeInvalidInput, "Неверный формат ID пользователя")
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	rows, err := db.Pool.Query(ctx, `
        SELECT id, user_id, type, title, message, data, is_read, created_at
        FROM notifications
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT 100
    `, userUUID)
	if err != nil {
		log.Printf("Ошибка запроса уведомлений: %v", err)
		return utils.ErrorJSON(c, fiber.StatusInternalServerError, utils.CodeInternal, "Ошибка получения уведомлений")
	}
	defer rows.Close()

	notifications := []models.Notification{}
	unread := 0
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.Data, &n.IsRead, &n.CreatedAt); err != nil {
			log.Printf("Ошибка сканирования уведомления: %v", err)
			continue
		}
		if !n.IsRead {
			unread++
		}
		notifications = append(notifications, n)
	}

	return c.JSON(fiber.Map{
		"notifications": notifications,
		"unread_count":  unread,
		"success":       true,
	})
}

// MarkAsRead отмечает уведомления прочитанными: конкретные ID или все сразу
func (s *NotificationService) MarkAsRead(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return utils.ErrorJSON(c, fiber.StatusBadRequest, utils.CodeInvalidInput, "Неверный формат ID пользователя")
	}

	var requestData struct {
		IDs []string `json:"ids"`
		All bool     `json:"all"`
	}
	if err := c.Bind().Body(&requestData); err != nil {
		log.Printf("Ошибка декодирования тела запроса: %v", err)
		return utils.ErrorJSON(c, fiber.StatusBadRequest, utils.CodeInvalidInput, "Неверный формат данных")
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	if requestData.All {
		_, err = db.Pool.Exec(ctx, `
            UPDATE notifications SET is_read = true WHERE user_id = $1 AND is_read = false
        `, userUUID)
	} else {
		if len(requestData.IDs) == 0 {
			return utils.ErrorJSON(c, fiber.StatusBadRequest, utils.CodeInvalidInput, "Не указаны ID уведомлений")
		}
		ids := make([]uuid.UUID, 0, len(requestData.IDs))
		for _, raw := range requestData.IDs {
			id, parseErr := uuid.Parse(raw)
			if parseErr != nil {
				return utils.ErrorJSON(c, fiber.StatusBadRequest, utils.CodeInvalidInput, "Неверный формат ID уведомления")
			}
			ids = append(ids, id)
		}
		_, err = db.Pool.Exec(ctx, `
            UPDATE notifications SET is_read = true WHERE user_id = $1 AND id = ANY($2)
        `, userUUID, ids)
	}

	if err != nil {
		log.Printf("Ошибка обновления статуса прочтения: %v", err)
		return utils.ErrorJSON(c, fiber.StatusInternalServerError, utils.CodeInternal, "Ошибка обновления уведомлений")
	}

	return c.JSON(fiber.Map{"success": true})
}

// DailyReminders обрабатывает запуск свипа ежедневных напоминаний.
// POST отправляет напоминания, GET возвращает статистику без отправки.
// Доступ только по bearer-токену планировщика.
func (s *NotificationService) DailyReminders(c fiber.Ctx) error {
	if !s.authorizeCron(c) {
		return utils.ErrorJSON(c, fiber.StatusUnauthorized, utils.CodeUnauthorized, "Неверный токен планировщика")
	}

	dryRun := c.Method() == fiber.MethodGet

	ctx, cancel := db.GetContext()
	defer cancel()

	stats, err := s.dispatcher.RunDailyReminders(ctx, dryRun)
	if err != nil {
		log.Printf("Ошибка свипа напоминаний: %v", err)
		return utils.ErrorJSON(c, fiber.StatusInternalServerError, utils.CodeInternal, "Ошибка запуска напоминаний")
	}

	return c.JSON(fiber.Map{
		"stats":   stats,
		"dry_run": dryRun,
		"success": true,
	})
}

// authorizeCron проверяет bearer-токен планировщика за постоянное время
func (s *NotificationService) authorizeCron(c fiber.Ctx) bool {
	if s.cfg.CronSecret == "" {
		return false
	}
	authHeader := c.Get("Authorization")
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return false
	}
	return utils.SecureCompare(parts[1], s.cfg.CronSecret)
}
