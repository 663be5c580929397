package auth

import (
	"github.com/gofiber/fiber/v3"
)

// SetupRoutes регистрирует маршруты в Fiber
func (s *AuthService) SetupRoutes(app *fiber.App, mutationLimiter fiber.Handler) {
	// Вход не требует авторизации и CSRF, но ограничен по частоте
	app.Post("/api/auth/telegram", s.TelegramAuthHandler, mutationLimiter)
}
