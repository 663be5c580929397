package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// SwapStatus представляет статус запроса на обмен
type SwapStatus string

// Жизненный цикл запроса: pending → accepted/declined → cancelled/completed.
// Статусы declined, cancelled и completed — терминальные.
const (
	SwapStatusPending   SwapStatus = "pending"
	SwapStatusAccepted  SwapStatus = "accepted"
	SwapStatusDeclined  SwapStatus = "declined"
	SwapStatusCancelled SwapStatus = "cancelled"
	SwapStatusCompleted SwapStatus = "completed"
)

// SwapParty обозначает сторону обмена
type SwapParty string

const (
	PartyRequester SwapParty = "requester"
	PartyOwner     SwapParty = "owner"
)

// Ошибки переходов состояния обмена
var (
	ErrInvalidTransition = errors.New("недопустимый переход статуса обмена")
	ErrNotParticipant    = errors.New("пользователь не является участником обмена")
	ErrOwnBook           = errors.New("нельзя запросить обмен собственной книги")
	ErrBookUnavailable   = errors.New("книга недоступна для обмена")
	ErrInvalidRating     = errors.New("оценка должна быть от 1 до 5")
)

// SwapRequest представляет запрос на обмен книгами
type SwapRequest struct {
	ID          uuid.UUID  `json:"id"`
	BookID      uuid.UUID  `json:"book_id"`
	RequesterID uuid.UUID  `json:"requester_id"`
	OwnerID     uuid.UUID  `json:"owner_id"`
	Status      SwapStatus `json:"status"`
	Message     string     `json:"message,omitempty"`

	// Встречное предложение: книга запрашивающего, которую владелец хочет взамен
	CounterOfferBookID *uuid.UUID `json:"counter_offer_book_id,omitempty"`

	RequesterCompletedAt *time.Time `json:"requester_completed_at,omitempty"`
	OwnerCompletedAt     *time.Time `json:"owner_completed_at,omitempty"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`

	RequesterRating   *int   `json:"requester_rating,omitempty"`
	OwnerRating       *int   `json:"owner_rating,omitempty"`
	RequesterFeedback string `json:"requester_feedback,omitempty"`
	OwnerFeedback     string `json:"owner_feedback,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Дополнительные поля для API
	Book      *Book `json:"book,omitempty"`
	Requester *User `json:"requester,omitempty"`
	Owner     *User `json:"owner,omitempty"`
}

// IsTerminal сообщает, является ли статус терминальным
func (s SwapStatus) IsTerminal() bool {
	return s == SwapStatusDeclined || s == SwapStatusCancelled || s == SwapStatusCompleted
}

// CanTransition проверяет допустимость перехода статуса
func CanTransition(from, to SwapStatus) bool {
	switch to {
	case SwapStatusAccepted, SwapStatusDeclined:
		return from == SwapStatusPending
	case SwapStatusCancelled:
		return from == SwapStatusPending || from == SwapStatusAccepted
	case SwapStatusCompleted:
		return from == SwapStatusAccepted
	}
	return false
}

// CanCreateSwap проверяет, что книга доступна и не принадлежит запрашивающему.
// При нарушении запрос не должен создаваться вовсе.
func CanCreateSwap(book *Book, requesterID uuid.UUID) error {
	if book.OwnerID == requesterID {
		return ErrOwnBook
	}
	if !book.IsAvailable || book.Status() != BookStatusAvailable {
		return ErrBookUnavailable
	}
	return nil
}

// Status возвращает статус книги по флагу доступности
func (b *Book) Status() string {
	if b.IsAvailable {
		return BookStatusAvailable
	}
	return BookStatusUnavailable
}

// PartyOf определяет сторону пользователя в обмене
func (s *SwapRequest) PartyOf(userID uuid.UUID) (SwapParty, error) {
	switch userID {
	case s.RequesterID:
		return PartyRequester, nil
	case s.OwnerID:
		return PartyOwner, nil
	}
	return "", ErrNotParticipant
}

// ApplyCompletion фиксирует завершение обмена указанной стороной.
//
// Политика «первое завершение решает»: как только одна из сторон отметила
// обмен завершённым из статуса accepted, completed_at фиксируется и статус
// становится completed. Повторные завершения идемпотентны: completed_at и
// статус больше не меняются, отметка второй стороны записывается один раз.
// Возвращает true, если именно этот вызов перевёл обмен в completed.
func (s *SwapRequest) ApplyCompletion(party SwapParty, now time.Time) (bool, error) {
	if s.Status != SwapStatusAccepted && s.Status != SwapStatusCompleted {
		return false, ErrInvalidTransition
	}

	// Отметка стороны ставится один раз и не перезаписывается
	switch party {
	case PartyRequester:
		if s.RequesterCompletedAt == nil {
			t := now
			s.RequesterCompletedAt = &t
		}
	case PartyOwner:
		if s.OwnerCompletedAt == nil {
			t := now
			s.OwnerCompletedAt = &t
		}
	default:
		return false, ErrNotParticipant
	}

	if s.Status == SwapStatusCompleted {
		return false, nil
	}

	// Первое завершение: completed_at берётся из первой проставленной отметки
	completedAt := s.RequesterCompletedAt
	if completedAt == nil {
		completedAt = s.OwnerCompletedAt
	}
	s.CompletedAt = completedAt
	s.Status = SwapStatusCompleted
	return true, nil
}

// ApplyRating записывает оценку и отзыв завершающей стороны
func (s *SwapRequest) ApplyRating(party SwapParty, rating *int, feedback string) error {
	if rating != nil && (*rating < 1 || *rating > 5) {
		return ErrInvalidRating
	}
	switch party {
	case PartyRequester:
		if s.RequesterRating == nil {
			s.RequesterRating = rating
		}
		if s.RequesterFeedback == "" {
			s.RequesterFeedback = feedback
		}
	case PartyOwner:
		if s.OwnerRating == nil {
			s.OwnerRating = rating
		}
		if s.OwnerFeedback == "" {
			s.OwnerFeedback = feedback
		}
	default:
		return ErrNotParticipant
	}
	return nil
}

// CheckCompletionInvariant проверяет инвариант: статус completed тогда и
// только тогда, когда проставлен completed_at
func (s *SwapRequest) CheckCompletionInvariant() bool {
	return (s.Status == SwapStatusCompleted) == (s.CompletedAt != nil)
}
