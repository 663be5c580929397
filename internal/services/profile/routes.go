package profile

import (
	"github.com/gofiber/fiber/v3"
)

// SetupRoutes настраивает маршруты для API профилей
func (s *ProfileService) SetupRoutes(app *fiber.App, authMiddleware, csrfMiddleware, readLimiter, mutationLimiter fiber.Handler) {
	// Профиль текущего пользователя и публичные профили
	app.Get("/api/profile", s.GetMyProfile, authMiddleware, readLimiter)
	app.Get("/api/profile/:id", s.GetProfile, authMiddleware, readLimiter)

	// Загрузка аватара
	app.Post("/api/profile/avatar", s.UploadAvatar, authMiddleware, mutationLimiter, csrfMiddleware)

	// Подписанные параметры для клиентской загрузки обложек
	app.Get("/api/upload/params", s.GenerateUploadParams, authMiddleware, readLimiter)

	// Сводная панель пользователя
	app.Get("/api/dashboard", s.GetDashboard, authMiddleware, readLimiter)
}
