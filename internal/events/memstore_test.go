package events

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/calendint/backend/internal/lifecycle"
	"github.com/calendint/backend/internal/models"
	"github.com/calendint/backend/internal/query"
)

// memStore is an in-memory Store. Mutate serializes on rowLock like SELECT FOR UPDATE.
type memStore struct {
	mu      sync.Mutex
	rowLock sync.Mutex
	events  map[uuid.UUID]*models.Event
	tags    map[uuid.UUID]models.Tag
	groups  map[uuid.UUID]uuid.UUID // group -> organization
	orgs    map[uuid.UUID]bool
	react   map[uuid.UUID]map[uuid.UUID]string

	failGet error
}

func newMemStore() *memStore {
	return &memStore{
		events: map[uuid.UUID]*models.Event{},
		tags:   map[uuid.UUID]models.Tag{},
		groups: map[uuid.UUID]uuid.UUID{},
		orgs:   map[uuid.UUID]bool{},
		react:  map[uuid.UUID]map[uuid.UUID]string{},
	}
}

func clone(ev *models.Event) *models.Event {
	out := *ev
	out.TagIDs = append([]uuid.UUID(nil), ev.TagIDs...)
	out.GuestOrganizationIDs = append([]uuid.UUID(nil), ev.GuestOrganizationIDs...)
	return &out
}

func (m *memStore) put(ev *models.Event) *models.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	m.events[ev.ID] = clone(ev)
	return ev
}

func (m *memStore) Get(_ context.Context, id uuid.UUID) (*models.Event, error) {
	if m.failGet != nil {
		return nil, m.failGet
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(ev), nil
}

func (m *memStore) List(_ context.Context, where query.Predicate, order Order, limit, offset int) ([]*models.Event, int, error) {
	m.mu.Lock()
	var all []*models.Event
	for _, ev := range m.events {
		if where.Match(ev) {
			all = append(all, clone(ev))
		}
	}
	m.mu.Unlock()
	sort.Slice(all, func(i, j int) bool {
		if order == OrderStartDesc {
			return all[i].StartTime.After(all[j].StartTime)
		}
		return all[i].StartTime.Before(all[j].StartTime)
	})
	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *memStore) Create(_ context.Context, ev *models.Event) error {
	m.put(ev)
	return nil
}

func (m *memStore) Mutate(ctx context.Context, id uuid.UUID, fn func(ev *models.Event) error) (*models.Event, error) {
	m.rowLock.Lock()
	defer m.rowLock.Unlock()
	ev, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(ev); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.events[id] = clone(ev)
	m.mu.Unlock()
	return ev, nil
}

func (m *memStore) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[id]; !ok {
		return ErrNotFound
	}
	delete(m.events, id)
	return nil
}

func (m *memStore) AutoTags(_ context.Context, orgID uuid.UUID, tagIDs []uuid.UUID) (lifecycle.AutoTags, error) {
	out := lifecycle.AutoTags{}
	for _, id := range tagIDs {
		t, ok := m.tags[id]
		if !ok || t.OrganizationID != orgID {
			return nil, ErrNotFound
		}
		out[id] = t.IsAutoApproved
	}
	return out, nil
}

func (m *memStore) CheckGroup(_ context.Context, orgID, groupID uuid.UUID) error {
	if m.groups[groupID] != orgID {
		return ErrNotFound
	}
	return nil
}

func (m *memStore) CheckOrganizations(_ context.Context, ids []uuid.UUID) error {
	for _, id := range ids {
		if !m.orgs[id] {
			return ErrNotFound
		}
	}
	return nil
}

func (m *memStore) ToggleReaction(_ context.Context, eventID, userID uuid.UUID, emoji string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byUser := m.react[eventID]
	if byUser == nil {
		byUser = map[uuid.UUID]string{}
		m.react[eventID] = byUser
	}
	if byUser[userID] == emoji {
		delete(byUser, userID)
		return nil
	}
	byUser[userID] = emoji
	return nil
}

func (m *memStore) ReactionSummary(_ context.Context, eventID uuid.UUID, viewer *uuid.UUID) ([]models.ReactionSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[string]*models.ReactionSummary{}
	for user, emoji := range m.react[eventID] {
		s := counts[emoji]
		if s == nil {
			s = &models.ReactionSummary{Emoji: emoji}
			counts[emoji] = s
		}
		s.Count++
		if viewer != nil && *viewer == user {
			s.UserReacted = true
		}
	}
	out := []models.ReactionSummary{}
	for _, s := range counts {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Emoji < out[j].Emoji })
	return out, nil
}

func (m *memStore) ListReactions(_ context.Context, eventID uuid.UUID) ([]models.ReactionDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.ReactionDetail{}
	for user, emoji := range m.react[eventID] {
		out = append(out, models.ReactionDetail{User: models.UserPublic{ID: user}, Emoji: emoji})
	}
	return out, nil
}

func (m *memStore) DeleteReaction(_ context.Context, eventID, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.react[eventID][userID]; !ok {
		return ErrNotFound
	}
	delete(m.react[eventID], userID)
	return nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.Visibility
	err    error
}

func (n *recordingNotifier) EventModerated(_ context.Context, ev *models.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev.Visibility)
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

type recordingPublisher struct {
	mu    sync.Mutex
	kinds []string
}

func (p *recordingPublisher) PublishEventChange(_ context.Context, kind string, _ *models.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.kinds = append(p.kinds, kind)
	return errors.New("publisher offline")
}
