package models

import (
	"time"

	"github.com/google/uuid"
)

// User представляет минимальную информацию о пользователе для API
type User struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username,omitempty"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`
}

// Profile представляет публичный профиль пользователя с агрегатом рейтинга
type Profile struct {
	ID              uuid.UUID `json:"id"`
	Username        string    `json:"username,omitempty"`
	FirstName       string    `json:"first_name,omitempty"`
	LastName        string    `json:"last_name,omitempty"`
	Bio             string    `json:"bio,omitempty"`
	AvatarURL       string    `json:"avatar_url,omitempty"`
	AvatarPublicID  string    `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
	AverageRating   float64   `json:"average_rating"`
	TotalRatings    int       `json:"total_ratings"`
	RatingBreakdown [5]int    `json:"rating_breakdown"` // количество оценок 1..5
	CompletedSwaps  int       `json:"completed_swaps"`
}
