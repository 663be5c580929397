package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/sahilm2002/booze-and-books-sub002/internal/utils"
)

// RateLimiter ограничивает количество запросов по скользящему окну.
// Ключ — ID пользователя из контекста, для неавторизованных запросов IP.
// Счётчики разделяются между одновременными запросами, поэтому доступ
// к ним защищён мьютексом.
type RateLimiter struct {
	mu      sync.Mutex
	callers map[string][]time.Time
	limit   int
	window  time.Duration
	nowFunc func() time.Time
}

// NewRateLimiter создаёт новый лимитер с заданным лимитом и окном
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		callers: make(map[string][]time.Time),
		limit:   limit,
		window:  window,
		nowFunc: time.Now,
	}
}

// Allow регистрирует запрос вызывающего и сообщает, пропущен ли он,
// сколько запросов осталось в окне и когда окно сбросится
func (rl *RateLimiter) Allow(key string) (allowed bool, remaining int, reset time.Time) {
	now := rl.nowFunc()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Оставляем только отметки внутри окна
	times := rl.callers[key]
	filtered := times[:0]
	for _, t := range times {
		if now.Sub(t) < rl.window {
			filtered = append(filtered, t)
		}
	}

	reset = now.Add(rl.window)
	if len(filtered) > 0 {
		reset = filtered[0].Add(rl.window)
	}

	if len(filtered) >= rl.limit {
		rl.callers[key] = filtered
		return false, 0, reset
	}

	filtered = append(filtered, now)
	rl.callers[key] = filtered
	return true, rl.limit - len(filtered), reset
}

// Middleware возвращает fiber-обработчик лимитера. Заголовки с остатком
// квоты и временем сброса выставляются на каждый ответ, включая отказ.
func (rl *RateLimiter) Middleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		key := c.IP()
		if userID, ok := c.Locals("userID").(string); ok && userID != "" {
			key = userID
		}

		allowed, remaining, reset := rl.Allow(key)

		c.Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if !allowed {
			return utils.ErrorJSON(c, fiber.StatusTooManyRequests, utils.CodeRateLimited,
				"Слишком много запросов, попробуйте позже")
		}

		return c.Next()
	}
}
