package repository

import (
	"strings"
	"sync"

	"github.com/smallbiznis/hydrapay/internal/channel/domain"
)

// Store keeps channels in a slot arena with a headId index and a userId index
// pointing at the user's most recent channel. byPayment maps payment ids to
// the owning head.
type Store struct {
	mu        sync.RWMutex
	slots     []*domain.Channel
	free      []int
	byHead    map[string]int
	byUser    map[string]string
	byPayment map[string]string
}

func Provide() domain.Repository {
	return NewStore()
}

func NewStore() *Store {
	return &Store{
		byHead:    make(map[string]int),
		byUser:    make(map[string]string),
		byPayment: make(map[string]string),
	}
}

func (s *Store) FindActiveByUser(userID string) (*domain.Channel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ch := s.userChannel(userID)
	if !ch.Active() {
		return nil, false
	}
	return ch.Clone(), true
}

func (s *Store) FindAnyByUser(userID string) (*domain.Channel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ch := s.userChannel(userID)
	if ch == nil {
		return nil, false
	}
	return ch.Clone(), true
}

func (s *Store) FindByHead(headID string) (*domain.Channel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	slot, ok := s.byHead[headID]
	if !ok {
		return nil, false
	}
	return s.slots[slot].Clone(), true
}

func (s *Store) FindPayment(paymentID string) (domain.Payment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	headID, ok := s.byPayment[paymentID]
	if !ok {
		return domain.Payment{}, false
	}
	slot, ok := s.byHead[headID]
	if !ok {
		return domain.Payment{}, false
	}
	for _, p := range s.slots[slot].Transactions {
		if p.ID == paymentID {
			return p, true
		}
	}
	return domain.Payment{}, false
}

// Put inserts or replaces by headId. A new channel for a user whose current
// channel is still active is rejected; a closed predecessor is superseded.
func (s *Store) Put(channel *domain.Channel) error {
	if channel == nil || strings.TrimSpace(channel.HeadID) == "" || strings.TrimSpace(channel.UserID) == "" {
		return domain.ErrInvalidChannel
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if slot, ok := s.byHead[channel.HeadID]; ok {
		if s.slots[slot].UserID != channel.UserID {
			return domain.ErrInvalidChannel
		}
		s.slots[slot] = channel.Clone()
		s.byUser[channel.UserID] = channel.HeadID
		s.indexPayments(channel)
		return nil
	}

	if prev := s.userChannel(channel.UserID); prev != nil {
		if prev.Active() && channel.Active() {
			return domain.ErrActiveChannelExists
		}
		s.removeLocked(prev.HeadID)
	}

	var slot int
	if n := len(s.free); n > 0 {
		slot = s.free[n-1]
		s.free = s.free[:n-1]
		s.slots[slot] = channel.Clone()
	} else {
		slot = len(s.slots)
		s.slots = append(s.slots, channel.Clone())
	}
	s.byHead[channel.HeadID] = slot
	s.byUser[channel.UserID] = channel.HeadID
	s.indexPayments(channel)
	return nil
}

func (s *Store) indexPayments(channel *domain.Channel) {
	for _, p := range channel.Transactions {
		if p.ID != "" {
			s.byPayment[p.ID] = channel.HeadID
		}
	}
}

func (s *Store) Remove(headID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(headID)
}

func (s *Store) Stats() domain.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := domain.Stats{Total: len(s.byHead)}
	for _, slot := range s.byHead {
		if s.slots[slot].Status == domain.StatusOpen {
			stats.Open++
		}
	}
	return stats
}

// userChannel must be called with s.mu held.
func (s *Store) userChannel(userID string) *domain.Channel {
	headID, ok := s.byUser[userID]
	if !ok {
		return nil
	}
	slot, ok := s.byHead[headID]
	if !ok {
		return nil
	}
	return s.slots[slot]
}

func (s *Store) removeLocked(headID string) {
	slot, ok := s.byHead[headID]
	if !ok {
		return
	}
	ch := s.slots[slot]
	for _, p := range ch.Transactions {
		delete(s.byPayment, p.ID)
	}
	delete(s.byHead, headID)
	if s.byUser[ch.UserID] == headID {
		delete(s.byUser, ch.UserID)
	}
	s.slots[slot] = nil
	s.free = append(s.free, slot)
}
