package notification

import (
	"bufio"
	"log"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/valyala/fasthttp"
)

// Период служебных ping-кадров SSE
const keepaliveInterval = 20 * time.Second

// streamConn — минимальный контракт соединения для насоса событий.
// bufio.Writer ему удовлетворяет; в тестах подменяется фиктивной записью.
type streamConn interface {
	Write(p []byte) (int, error)
	WriteString(s string) (int, error)
	Flush() error
}

// StreamEvents открывает SSE-поток и транслирует события пользователя
// до разрыва соединения
func (s *NotificationService) StreamEvents(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	client := s.hub.AddClient(userID)

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer s.hub.RemoveClient(client.ID)

		// Подтверждаем подключение
		if _, err := w.WriteString("data: {\"type\":\"connected\"}\n\n"); err != nil {
			return
		}
		if err := w.Flush(); err != nil {
			return
		}

		streamPump(w, client.Ch, keepaliveInterval)
		log.Printf("SSE соединение пользователя %s закрыто", userID)
	}))

	return nil
}

// streamPump транслирует кадры канала в соединение. Между событиями
// каждые keepalive отправляется комментарий-ping: клиент, отключившийся
// молча, проявляется ошибкой записи, и соединение снимается с учёта
// вместо вечного ожидания следующего события.
func streamPump(w streamConn, frames <-chan []byte, keepalive time.Duration) {
	ticker := time.NewTicker(keepalive)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				return
			}
			if _, err := w.Write(frame); err != nil {
				return
			}
			if err := w.Flush(); err != nil {
				return
			}
		case <-ticker.C:
			if _, err := w.WriteString(": ping\n\n"); err != nil {
				return
			}
			if err := w.Flush(); err != nil {
				return
			}
		}
	}
}
