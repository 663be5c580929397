package models

import (
	"time"

	"github.com/google/uuid"
)

// Статусы книги в каталоге
const (
	BookStatusAvailable   = "available"
	BookStatusUnavailable = "unavailable"
)

// Book представляет книгу в каталоге пользователя
type Book struct {
	ID            uuid.UUID `json:"id"`
	OwnerID       uuid.UUID `json:"owner_id"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	Description   string    `json:"description,omitempty"`
	Genre         string    `json:"genre,omitempty"`
	Condition     string    `json:"condition"`
	GoogleBooksID string    `json:"google_books_id,omitempty"`
	CoverURL      string    `json:"cover_url,omitempty"`
	IsAvailable   bool      `json:"is_available"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	// Дополнительные поля для API
	Owner *User `json:"owner,omitempty"`
}

// BookCreateRequest представляет тело запроса создания книги
type BookCreateRequest struct {
	Title         string `json:"title" validate:"required,max=255"`
	Author        string `json:"author" validate:"required,max=255"`
	Description   string `json:"description" validate:"max=2000"`
	Genre         string `json:"genre" validate:"max=100"`
	Condition     string `json:"condition" validate:"omitempty,oneof=new excellent good used worn"`
	GoogleBooksID string `json:"google_books_id" validate:"max=64"`
	CoverURL      string `json:"cover_url" validate:"omitempty,url,max=1024"`
}

// BookUpdateRequest представляет тело запроса обновления книги
type BookUpdateRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=255"`
	Author      *string `json:"author" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Genre       *string `json:"genre" validate:"omitempty,max=100"`
	Condition   *string `json:"condition" validate:"omitempty,oneof=new excellent good used worn"`
	CoverURL    *string `json:"cover_url" validate:"omitempty,url,max=1024"`
	IsAvailable *bool   `json:"is_available"`
}
