package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/FaresAhmed23/tournament/internal/domain"
	"github.com/FaresAhmed23/tournament/internal/errors"
)

const (
	kindEvent = "event"
	kindUser  = "user"
	kindTeam  = "team"
)

// tx stages writes until commit. A nil staged map means autocommit:
// writes land directly in the store (the caller already holds the
// lock). Reads always observe the transaction's own writes first.
type tx struct {
	s       *Store
	staged  map[string]*record
	deleted map[string]bool
}

func key(kind, id string) string { return kind + ":" + id }

func (t *tx) table(kind string) map[string]record {
	switch kind {
	case kindEvent:
		return t.s.events
	case kindUser:
		return t.s.users
	default:
		return t.s.teams
	}
}

func (t *tx) lookup(kind, id string) (record, bool) {
	k := key(kind, id)
	if t.deleted[k] {
		return record{}, false
	}
	if t.staged != nil {
		if r, ok := t.staged[k]; ok {
			return *r, true
		}
	}
	r, ok := t.table(kind)[id]

	return r, ok
}

func (t *tx) put(kind, id string, r record) {
	if t.staged == nil {
		t.table(kind)[id] = r
		return
	}

	k := key(kind, id)
	t.staged[k] = &r
	delete(t.deleted, k)
}

func (t *tx) remove(kind, id string) {
	if t.staged == nil {
		delete(t.table(kind), id)
		return
	}

	k := key(kind, id)
	delete(t.staged, k)
	t.deleted[k] = true
}

func (t *tx) commit() {
	for k, r := range t.staged {
		kind, id, _ := strings.Cut(k, ":")
		t.table(kind)[id] = *r
	}
	for k := range t.deleted {
		kind, id, _ := strings.Cut(k, ":")
		delete(t.table(kind), id)
	}
}

// each visits every record of a kind, staged writes included.
func (t *tx) each(kind string, visit func(id string, r record) error) error {
	seen := make(map[string]bool)
	if t.staged != nil {
		for k, r := range t.staged {
			kd, id, _ := strings.Cut(k, ":")
			if kd != kind {
				continue
			}
			seen[id] = true
			if err := visit(id, *r); err != nil {
				return err
			}
		}
	}
	for id, r := range t.table(kind) {
		if seen[id] || t.deleted[key(kind, id)] {
			continue
		}
		if err := visit(id, r); err != nil {
			return err
		}
	}

	return nil
}

func (t *tx) GetEvent(_ context.Context, id string) (*domain.Event, error) {
	rec, ok := t.lookup(kindEvent, id)
	if !ok {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("event not found: id=%s", id))
	}

	return decodeEvent(rec)
}

func (t *tx) createEvent(e *domain.Event) error {
	if _, ok := t.lookup(kindEvent, e.ID); ok {
		return errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef("event already exists: id=%s", e.ID))
	}

	doc, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	e.Version = 1
	t.put(kindEvent, e.ID, record{doc: doc, version: 1})

	return nil
}

func (t *tx) SaveEvent(_ context.Context, e *domain.Event) error {
	if e.MaxParticipants > 0 && e.CurrentParticipants > e.MaxParticipants {
		return errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("maximum participants limit exceeded: %d > %d",
				e.CurrentParticipants, e.MaxParticipants))
	}

	if e.Version == 0 {
		return t.createEvent(e)
	}

	rec, ok := t.lookup(kindEvent, e.ID)
	if !ok || rec.version != e.Version {
		return errors.New(errors.CodeAborted,
			errors.WithMessagef("event modified concurrently: id=%s", e.ID))
	}

	doc, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	e.Version++
	t.put(kindEvent, e.ID, record{doc: doc, version: e.Version})

	return nil
}

func (t *tx) DeleteEvent(_ context.Context, id string) error {
	if _, ok := t.lookup(kindEvent, id); !ok {
		return errors.New(errors.CodeNotFound,
			errors.WithMessagef("event not found: id=%s", id))
	}
	t.remove(kindEvent, id)

	return nil
}

func (t *tx) GetUser(_ context.Context, id string) (*domain.User, error) {
	rec, ok := t.lookup(kindUser, id)
	if !ok {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("user not found: id=%s", id))
	}

	return decodeUser(rec)
}

func (t *tx) createUser(u *domain.User) error {
	var taken bool
	err := t.each(kindUser, func(_ string, r record) error {
		other, err := decodeUser(r)
		if err != nil {
			return err
		}
		if strings.EqualFold(other.Username, u.Username) || strings.EqualFold(other.Email, u.Email) {
			taken = true
		}
		return nil
	})
	if err != nil {
		return err
	}
	if taken {
		return errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef("username or email already taken: %s", u.Username))
	}

	doc, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	u.Version = 1
	t.put(kindUser, u.ID, record{doc: doc, hash: u.PasswordHash, version: 1})

	return nil
}

func (t *tx) SaveUser(_ context.Context, u *domain.User) error {
	if u.Version == 0 {
		return t.createUser(u)
	}

	rec, ok := t.lookup(kindUser, u.ID)
	if !ok || rec.version != u.Version {
		return errors.New(errors.CodeAborted,
			errors.WithMessagef("user modified concurrently: id=%s", u.ID))
	}

	doc, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	u.Version++
	t.put(kindUser, u.ID, record{doc: doc, hash: u.PasswordHash, version: u.Version})

	return nil
}

func (t *tx) GetTeam(_ context.Context, id string) (*domain.Team, error) {
	rec, ok := t.lookup(kindTeam, id)
	if !ok {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("team not found: id=%s", id))
	}

	return decodeTeam(rec)
}

func (t *tx) createTeam(team *domain.Team) error {
	var taken bool
	err := t.each(kindTeam, func(_ string, r record) error {
		other, err := decodeTeam(r)
		if err != nil {
			return err
		}
		if strings.EqualFold(other.Name, team.Name) {
			taken = true
		}
		return nil
	})
	if err != nil {
		return err
	}
	if taken {
		return errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef("team name already taken: %s", team.Name))
	}

	doc, err := json.Marshal(team)
	if err != nil {
		return fmt.Errorf("encode team: %w", err)
	}
	team.Version = 1
	t.put(kindTeam, team.ID, record{doc: doc, version: 1})

	return nil
}

func (t *tx) SaveTeam(_ context.Context, team *domain.Team) error {
	if team.Version == 0 {
		return t.createTeam(team)
	}

	rec, ok := t.lookup(kindTeam, team.ID)
	if !ok || rec.version != team.Version {
		return errors.New(errors.CodeAborted,
			errors.WithMessagef("team modified concurrently: id=%s", team.ID))
	}

	doc, err := json.Marshal(team)
	if err != nil {
		return fmt.Errorf("encode team: %w", err)
	}
	team.Version++
	t.put(kindTeam, team.ID, record{doc: doc, version: team.Version})

	return nil
}
