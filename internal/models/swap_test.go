package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAcceptedSwap() *SwapRequest {
	return &SwapRequest{
		ID:          uuid.New(),
		BookID:      uuid.New(),
		RequesterID: uuid.New(),
		OwnerID:     uuid.New(),
		Status:      SwapStatusAccepted,
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to SwapStatus
		ok       bool
	}{
		{SwapStatusPending, SwapStatusAccepted, true},
		{SwapStatusPending, SwapStatusDeclined, true},
		{SwapStatusPending, SwapStatusCancelled, true},
		{SwapStatusAccepted, SwapStatusCancelled, true},
		{SwapStatusAccepted, SwapStatusCompleted, true},
		{SwapStatusPending, SwapStatusCompleted, false},
		{SwapStatusDeclined, SwapStatusAccepted, false},
		{SwapStatusCancelled, SwapStatusAccepted, false},
		{SwapStatusCompleted, SwapStatusCancelled, false},
		{SwapStatusCompleted, SwapStatusAccepted, false},
		{SwapStatusAccepted, SwapStatusPending, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.ok, CanTransition(tc.from, tc.to),
			"переход %s → %s", tc.from, tc.to)
	}
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, SwapStatusPending.IsTerminal())
	assert.False(t, SwapStatusAccepted.IsTerminal())
	assert.True(t, SwapStatusDeclined.IsTerminal())
	assert.True(t, SwapStatusCancelled.IsTerminal())
	assert.True(t, SwapStatusCompleted.IsTerminal())
}

func TestCanCreateSwap(t *testing.T) {
	owner := uuid.New()
	requester := uuid.New()
	book := &Book{ID: uuid.New(), OwnerID: owner, IsAvailable: true}

	// Доступная чужая книга — можно
	require.NoError(t, CanCreateSwap(book, requester))

	// Собственная книга — отказ независимо от доступности
	assert.ErrorIs(t, CanCreateSwap(book, owner), ErrOwnBook)
	book.IsAvailable = false
	assert.ErrorIs(t, CanCreateSwap(book, owner), ErrOwnBook)

	// Недоступная чужая книга — отказ
	assert.ErrorIs(t, CanCreateSwap(book, requester), ErrBookUnavailable)
}

func TestApplyCompletionFirstWins(t *testing.T) {
	s := newAcceptedSwap()
	t1 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(2 * time.Hour)

	// Владелец завершает первым в T1
	done, err := s.ApplyCompletion(PartyOwner, t1)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, SwapStatusCompleted, s.Status)
	require.NotNil(t, s.CompletedAt)
	assert.Equal(t, t1, *s.CompletedAt)
	require.NotNil(t, s.OwnerCompletedAt)
	assert.Equal(t, t1, *s.OwnerCompletedAt)
	assert.True(t, s.CheckCompletionInvariant())

	// Запрашивающий завершает позже в T2 — completed_at не меняется
	done, err = s.ApplyCompletion(PartyRequester, t2)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, t1, *s.CompletedAt)
	assert.Equal(t, SwapStatusCompleted, s.Status)
	require.NotNil(t, s.RequesterCompletedAt)
	assert.Equal(t, t2, *s.RequesterCompletedAt)
}

func TestApplyCompletionIdempotent(t *testing.T) {
	s := newAcceptedSwap()
	t1 := time.Now().UTC()

	_, err := s.ApplyCompletion(PartyRequester, t1)
	require.NoError(t, err)

	// Повторное завершение той же стороной ничего не меняет
	done, err := s.ApplyCompletion(PartyRequester, t1.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, t1, *s.CompletedAt)
	assert.Equal(t, t1, *s.RequesterCompletedAt)
	assert.True(t, s.CheckCompletionInvariant())
}

func TestApplyCompletionRequiresAccepted(t *testing.T) {
	for _, status := range []SwapStatus{SwapStatusPending, SwapStatusDeclined, SwapStatusCancelled} {
		s := newAcceptedSwap()
		s.Status = status
		_, err := s.ApplyCompletion(PartyOwner, time.Now())
		assert.ErrorIs(t, err, ErrInvalidTransition, "статус %s", status)
		assert.Nil(t, s.CompletedAt)
	}
}

func TestPartyOf(t *testing.T) {
	s := newAcceptedSwap()

	party, err := s.PartyOf(s.RequesterID)
	require.NoError(t, err)
	assert.Equal(t, PartyRequester, party)

	party, err = s.PartyOf(s.OwnerID)
	require.NoError(t, err)
	assert.Equal(t, PartyOwner, party)

	_, err = s.PartyOf(uuid.New())
	assert.ErrorIs(t, err, ErrNotParticipant)
}

func TestApplyRating(t *testing.T) {
	s := newAcceptedSwap()

	bad := 6
	assert.ErrorIs(t, s.ApplyRating(PartyOwner, &bad, ""), ErrInvalidRating)

	good := 4
	require.NoError(t, s.ApplyRating(PartyOwner, &good, "отличный обмен"))
	require.NotNil(t, s.OwnerRating)
	assert.Equal(t, 4, *s.OwnerRating)
	assert.Equal(t, "отличный обмен", s.OwnerFeedback)

	// Повторная оценка не перезаписывает первую
	other := 1
	require.NoError(t, s.ApplyRating(PartyOwner, &other, "передумал"))
	assert.Equal(t, 4, *s.OwnerRating)
	assert.Equal(t, "отличный обмен", s.OwnerFeedback)
}

// Сценарий из жизни: владелец A принимает запрос C и завершает первым
func TestSwapLifecycleScenario(t *testing.T) {
	s := newAcceptedSwap()
	s.Status = SwapStatusPending

	require.True(t, CanTransition(s.Status, SwapStatusAccepted))
	s.Status = SwapStatusAccepted

	t1 := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	t2 := t1.Add(24 * time.Hour)

	done, err := s.ApplyCompletion(PartyOwner, t1)
	require.NoError(t, err)
	require.True(t, done)

	done, err = s.ApplyCompletion(PartyRequester, t2)
	require.NoError(t, err)
	require.False(t, done)

	assert.Equal(t, t1, *s.CompletedAt)
	assert.True(t, s.CheckCompletionInvariant())
}
