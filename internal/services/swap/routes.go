package swap

import (
	"github.com/gofiber/fiber/v3"
)

// SetupRoutes настраивает маршруты для API обменов
func (s *SwapService) SetupRoutes(app *fiber.App, authMiddleware, csrfMiddleware, readLimiter, mutationLimiter fiber.Handler) {
	// Маршрут для получения списка запросов на обмен
	app.Get("/api/swaps", s.GetMySwaps, authMiddleware, readLimiter)

	// Маршрут для создания запроса на обмен
	app.Post("/api/swaps", s.CreateSwap, authMiddleware, mutationLimiter, csrfMiddleware)

	// Маршрут для обновления статуса запроса
	app.Put("/api/swaps/:id/status", s.UpdateSwapStatus, authMiddleware, mutationLimiter, csrfMiddleware)

	// Маршрут для встречного предложения владельца
	app.Post("/api/swaps/:id/counter-offer", s.CounterOffer, authMiddleware, mutationLimiter, csrfMiddleware)

	// Маршрут для завершения обмена
	app.Post("/api/swaps/:id/complete", s.CompleteSwap, authMiddleware, mutationLimiter, csrfMiddleware)
}
