package notification

import (
	"github.com/gofiber/fiber/v3"
)

// SetupRoutes настраивает маршруты для API уведомлений
func (s *NotificationService) SetupRoutes(app *fiber.App, authMiddleware, csrfMiddleware, readLimiter, mutationLimiter fiber.Handler) {
	// Эндпоинты планировщика защищены собственным bearer-токеном,
	// пользовательская авторизация и лимиты к ним не применяются
	app.Post("/api/notifications/daily-reminders", s.DailyReminders)
	app.Get("/api/notifications/daily-reminders", s.DailyReminders)

	// Маршрут для получения списка уведомлений
	app.Get("/api/notifications", s.GetNotifications, authMiddleware, readLimiter)

	// Маршрут для отметки уведомлений прочитанными
	app.Post("/api/notifications/read", s.MarkAsRead, authMiddleware, mutationLimiter, csrfMiddleware)

	// SSE-поток событий для подключённых клиентов
	app.Get("/api/events", s.StreamEvents, authMiddleware)
}
