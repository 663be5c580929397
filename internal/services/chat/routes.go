package chat

import (
	"github.com/gofiber/fiber/v3"
)

// SetupRoutes настраивает маршруты для API чата
func (s *ChatService) SetupRoutes(app *fiber.App, authMiddleware, csrfMiddleware, readLimiter, mutationLimiter fiber.Handler) {
	// Чтения: action=conversations | history
	app.Get("/api/chat", s.HandleGet, authMiddleware, readLimiter)

	// Мутации: action=send | markAsRead
	app.Post("/api/chat", s.HandlePost, authMiddleware, mutationLimiter, csrfMiddleware)
}
