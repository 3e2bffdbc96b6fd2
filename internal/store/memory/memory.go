// Package memory is an in-process implementation of the store
// contract. It keeps aggregates as encoded documents with the same
// version discipline as the postgres store, so engine behavior under
// test matches production. A transaction holds the store lock for its
// whole extent, which gives serializable isolation.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/FaresAhmed23/tournament/internal/domain"
	"github.com/FaresAhmed23/tournament/internal/errors"
	"github.com/FaresAhmed23/tournament/internal/store"
)

type record struct {
	doc     []byte
	hash    string // password hash, kept out of the document
	version int64
}

type Store struct {
	// Now is the clock used to derive event status in listings.
	Now func() time.Time

	mu     sync.Mutex
	events map[string]record
	users  map[string]record
	teams  map[string]record
}

func New() *Store {
	return &Store{
		Now:    time.Now,
		events: make(map[string]record),
		users:  make(map[string]record),
		teams:  make(map[string]record),
	}
}

func (s *Store) RunInTx(_ context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{s: s, staged: make(map[string]*record), deleted: make(map[string]bool)}
	if err := fn(context.Background(), t); err != nil {
		return err
	}

	t.commit()

	return nil
}

func (s *Store) CreateEvent(ctx context.Context, e *domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return (&tx{s: s}).createEvent(e)
}

func (s *Store) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return (&tx{s: s}).GetEvent(ctx, id)
}

func (s *Store) ListEvents(_ context.Context, f store.EventFilter) ([]*domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now()
	var out []*domain.Event
	for _, rec := range s.events {
		e, err := decodeEvent(rec)
		if err != nil {
			return nil, err
		}
		if f.Type != "" && e.Type != f.Type {
			continue
		}
		if f.Status != "" && e.Status(now) != f.Status {
			continue
		}
		if f.Search != "" && !matches(e, f.Search) {
			continue
		}
		out = append(out, e)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })

	return out, nil
}

func matches(e *domain.Event, search string) bool {
	search = strings.ToLower(search)
	return strings.Contains(strings.ToLower(e.Name), search) ||
		strings.Contains(strings.ToLower(e.Description), search)
}

func (s *Store) EventsByUser(_ context.Context, userID string) ([]*domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.Event
	for _, rec := range s.events {
		e, err := decodeEvent(rec)
		if err != nil {
			return nil, err
		}
		if _, ok := e.ParticipantByUser(userID); ok {
			out = append(out, e)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })

	return out, nil
}

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return (&tx{s: s}).createUser(u)
}

func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return (&tx{s: s}).GetUser(ctx, id)
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.users {
		u, err := decodeUser(rec)
		if err != nil {
			return nil, err
		}
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}

	return nil, errors.New(errors.CodeNotFound,
		errors.WithMessagef("user not found: email=%s", email))
}

func (s *Store) SaveUser(ctx context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{s: s, staged: make(map[string]*record), deleted: make(map[string]bool)}
	if err := t.SaveUser(ctx, u); err != nil {
		return err
	}
	t.commit()

	return nil
}

func (s *Store) GetUsers(_ context.Context, ids []string) (map[string]*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID := make(map[string]*domain.User, len(ids))
	for _, id := range ids {
		rec, ok := s.users[id]
		if !ok {
			continue
		}
		u, err := decodeUser(rec)
		if err != nil {
			return nil, err
		}
		byID[id] = u
	}

	return byID, nil
}

func (s *Store) ListIndividualUsers(context.Context) ([]*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.User
	for _, rec := range s.users {
		u, err := decodeUser(rec)
		if err != nil {
			return nil, err
		}
		if u.ParticipationType == domain.ParticipationIndividual {
			out = append(out, u)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return strings.ToLower(out[i].Username) < strings.ToLower(out[j].Username)
	})

	return out, nil
}

func (s *Store) CreateTeam(ctx context.Context, t *domain.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return (&tx{s: s}).createTeam(t)
}

func (s *Store) GetTeam(ctx context.Context, id string) (*domain.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return (&tx{s: s}).GetTeam(ctx, id)
}

func (s *Store) SaveTeam(ctx context.Context, t *domain.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tr := &tx{s: s, staged: make(map[string]*record), deleted: make(map[string]bool)}
	if err := tr.SaveTeam(ctx, t); err != nil {
		return err
	}
	tr.commit()

	return nil
}

func (s *Store) GetTeams(_ context.Context, ids []string) (map[string]*domain.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID := make(map[string]*domain.Team, len(ids))
	for _, id := range ids {
		rec, ok := s.teams[id]
		if !ok {
			continue
		}
		t, err := decodeTeam(rec)
		if err != nil {
			return nil, err
		}
		byID[id] = t
	}

	return byID, nil
}

func (s *Store) ListTeams(context.Context) ([]*domain.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.Team
	for _, rec := range s.teams {
		t, err := decodeTeam(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})

	return out, nil
}

func decodeEvent(rec record) (*domain.Event, error) {
	var e domain.Event
	if err := json.Unmarshal(rec.doc, &e); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	e.Version = rec.version

	return &e, nil
}

func decodeUser(rec record) (*domain.User, error) {
	var u domain.User
	if err := json.Unmarshal(rec.doc, &u); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	u.PasswordHash = rec.hash
	u.Version = rec.version

	return &u, nil
}

func decodeTeam(rec record) (*domain.Team, error) {
	var t domain.Team
	if err := json.Unmarshal(rec.doc, &t); err != nil {
		return nil, fmt.Errorf("decode team: %w", err)
	}
	t.Version = rec.version

	return &t, nil
}
