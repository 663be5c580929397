package notification

import (
	"encoding/json"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sahilm2002/booze-and-books-sub002/internal/models"
)

// Пустой список уведомлений отдаётся клиенту как [], а не null —
// та же форма, что у списков диалогов и книг
func TestEmptyNotificationListShape(t *testing.T) {
	notifications := []models.Notification{}

	payload, err := json.Marshal(fiber.Map{
		"notifications": notifications,
		"unread_count":  0,
		"success":       true,
	})
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"notifications":[]`)
}
