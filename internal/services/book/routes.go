package book

import (
	"github.com/gofiber/fiber/v3"
)

// SetupRoutes настраивает маршруты для API книг
func (s *BookService) SetupRoutes(app *fiber.App, authMiddleware, csrfMiddleware, readLimiter, mutationLimiter fiber.Handler) {
	// Чтения — общий уровень лимита
	app.Get("/api/books", s.GetBooks, authMiddleware, readLimiter)
	app.Get("/api/books/:id", s.GetBook, authMiddleware, readLimiter)

	// Мутации — строгий уровень лимита плюс CSRF
	app.Post("/api/books", s.CreateBook, authMiddleware, mutationLimiter, csrfMiddleware)
	app.Put("/api/books/:id", s.UpdateBook, authMiddleware, mutationLimiter, csrfMiddleware)
	app.Delete("/api/books/:id", s.DeleteBook, authMiddleware, mutationLimiter, csrfMiddleware)
}
