package repository

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/hydrapay/internal/channel/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChannel(headID, userID string, status domain.Status) *domain.Channel {
	return &domain.Channel{
		HeadID:         headID,
		UserID:         userID,
		Status:         status,
		Balance:        decimal.NewFromInt(10),
		InitialBalance: decimal.NewFromInt(10),
		OpenedAt:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestStoreLookups(t *testing.T) {
	s := NewStore()

	_, ok := s.FindAnyByUser("alice")
	assert.False(t, ok)

	require.NoError(t, s.Put(newChannel("head_1", "alice", domain.StatusInitializing)))

	ch, ok := s.FindActiveByUser("alice")
	require.True(t, ok)
	assert.Equal(t, "head_1", ch.HeadID)

	ch, ok = s.FindByHead("head_1")
	require.True(t, ok)
	assert.Equal(t, "alice", ch.UserID)

	_, ok = s.FindActiveByUser("bob")
	assert.False(t, ok)
}

func TestStoreReturnsCopies(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Put(newChannel("head_1", "alice", domain.StatusOpen)))

	ch, _ := s.FindByHead("head_1")
	ch.Balance = decimal.Zero
	ch.Transactions = append(ch.Transactions, domain.Payment{ID: "1"})

	again, _ := s.FindByHead("head_1")
	assert.True(t, again.Balance.Equal(decimal.NewFromInt(10)))
	assert.Empty(t, again.Transactions)
}

func TestStoreRejectsSecondActiveChannel(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Put(newChannel("head_1", "alice", domain.StatusOpen)))

	err := s.Put(newChannel("head_2", "alice", domain.StatusInitializing))
	assert.ErrorIs(t, err, domain.ErrActiveChannelExists)

	ch, ok := s.FindAnyByUser("alice")
	require.True(t, ok)
	assert.Equal(t, "head_1", ch.HeadID)
}

func TestStoreSupersedesClosedChannel(t *testing.T) {
	s := NewStore()
	closed := newChannel("head_1", "alice", domain.StatusOpen)
	closed.Settle(time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, s.Put(closed))

	_, ok := s.FindActiveByUser("alice")
	assert.False(t, ok)
	ch, ok := s.FindAnyByUser("alice")
	require.True(t, ok)
	assert.Equal(t, domain.StatusClosed, ch.Status)

	require.NoError(t, s.Put(newChannel("head_2", "alice", domain.StatusInitializing)))

	ch, ok = s.FindAnyByUser("alice")
	require.True(t, ok)
	assert.Equal(t, "head_2", ch.HeadID)
	_, ok = s.FindByHead("head_1")
	assert.False(t, ok)
	assert.Equal(t, domain.Stats{Total: 1, Open: 0}, s.Stats())
}

func TestStoreUpdateInPlace(t *testing.T) {
	s := NewStore()
	ch := newChannel("head_1", "alice", domain.StatusInitializing)
	require.NoError(t, s.Put(ch))

	ch.Status = domain.StatusOpen
	require.NoError(t, s.Put(ch))

	got, _ := s.FindByHead("head_1")
	assert.Equal(t, domain.StatusOpen, got.Status)
	assert.Equal(t, domain.Stats{Total: 1, Open: 1}, s.Stats())

	stolen := newChannel("head_1", "bob", domain.StatusOpen)
	assert.ErrorIs(t, s.Put(stolen), domain.ErrInvalidChannel)
}

func TestStoreRemoveReusesSlot(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Put(newChannel("head_1", "alice", domain.StatusOpen)))
	require.NoError(t, s.Put(newChannel("head_2", "bob", domain.StatusOpen)))

	s.Remove("head_1")
	s.Remove("head_missing")
	_, ok := s.FindAnyByUser("alice")
	assert.False(t, ok)

	require.NoError(t, s.Put(newChannel("head_3", "carol", domain.StatusOpen)))
	assert.Len(t, s.slots, 2)
	assert.Equal(t, domain.Stats{Total: 2, Open: 2}, s.Stats())
}

func TestStoreRejectsInvalidChannel(t *testing.T) {
	s := NewStore()
	assert.ErrorIs(t, s.Put(nil), domain.ErrInvalidChannel)
	assert.ErrorIs(t, s.Put(newChannel("", "alice", domain.StatusOpen)), domain.ErrInvalidChannel)
	assert.ErrorIs(t, s.Put(newChannel("head_1", " ", domain.StatusOpen)), domain.ErrInvalidChannel)
}

func TestStoreFindPayment(t *testing.T) {
	s := NewStore()
	ch := newChannel("head_1", "alice", domain.StatusOpen)
	require.NoError(t, s.Put(ch))

	_, ok := s.FindPayment("p1")
	assert.False(t, ok)

	ch.Transactions = append(ch.Transactions, domain.Payment{ID: "p1", Amount: decimal.NewFromInt(1)})
	ch.TransactionCount = 1
	require.NoError(t, s.Put(ch))

	p, ok := s.FindPayment("p1")
	require.True(t, ok)
	assert.True(t, p.Amount.Equal(decimal.NewFromInt(1)))

	s.Remove("head_1")
	_, ok = s.FindPayment("p1")
	assert.False(t, ok)
}
