// Ordo - Agent orchestration substrate
// License: MIT
//
// Copyright (c) 2026 Ordo contributors

package sharedmem

import "sync"

// feed is the in-process change dispatcher. Filters by key and agent id
// are applied at the subscriber side, as the relational backend has no
// server-side feed filtering.
type feed struct {
	subs   map[int]*FeedSubscription
	nextID int
	closed bool
	mu     sync.RWMutex
}

func newFeed() *feed {
	return &feed{subs: make(map[int]*FeedSubscription)}
}

func (f *feed) subscribe(cb func(Change), filter SubscriptionFilter) *FeedSubscription {
	f.mu.Lock()
	defer f.mu.Unlock()

	sub := &FeedSubscription{feed: f, id: f.nextID, cb: cb, filter: filter}
	f.subs[f.nextID] = sub
	f.nextID++
	return sub
}

func (f *feed) publish(change Change) {
	f.mu.RLock()
	if f.closed {
		f.mu.RUnlock()
		return
	}
	subs := make([]*FeedSubscription, 0, len(f.subs))
	for _, sub := range f.subs {
		subs = append(subs, sub)
	}
	f.mu.RUnlock()

	for _, sub := range subs {
		if sub.matches(change.Entry) {
			sub.cb(change)
		}
	}
}

func (f *feed) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.subs = make(map[int]*FeedSubscription)
}

// FeedSubscription is the handle returned by Store.Subscribe.
type FeedSubscription struct {
	feed   *feed
	id     int
	cb     func(Change)
	filter SubscriptionFilter
	once   sync.Once
}

func (s *FeedSubscription) matches(e Entry) bool {
	if s.filter.Key != "" && s.filter.Key != e.Key {
		return false
	}
	if s.filter.AgentID != "" && s.filter.AgentID != e.AgentID {
		return false
	}
	return true
}

// Unsubscribe removes the callback. Safe to call more than once.
func (s *FeedSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.feed.mu.Lock()
		defer s.feed.mu.Unlock()
		delete(s.feed.subs, s.id)
	})
}
