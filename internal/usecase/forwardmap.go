package usecase

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// ForwardRef points a message forwarded into the admin group back at its
// origin chat.
type ForwardRef struct {
	ChatID    int64
	MessageID int64
}

// ForwardMap routes admin replies in the operator group back to the user
// whose message was forwarded. Bounded LRU: replies to messages beyond
// the window are simply unroutable, which is acceptable.
type ForwardMap struct {
	cache *lru.Cache[int64, ForwardRef]
}

// NewForwardMap builds a map holding at most size entries.
func NewForwardMap(size int) (*ForwardMap, error) {
	c, err := lru.New[int64, ForwardRef](size)
	if err != nil {
		return nil, err
	}
	return &ForwardMap{cache: c}, nil
}

// Track records that forwardedID in the admin group originated from ref.
func (m *ForwardMap) Track(forwardedID int64, ref ForwardRef) {
	m.cache.Add(forwardedID, ref)
}

// Resolve returns the origin of a forwarded message, if still tracked.
func (m *ForwardMap) Resolve(forwardedID int64) (ForwardRef, bool) {
	return m.cache.Get(forwardedID)
}

// Len reports the number of tracked forwards.
func (m *ForwardMap) Len() int { return m.cache.Len() }
