package postgres

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/FaresAhmed23/tournament/internal/domain"
	"github.com/FaresAhmed23/tournament/internal/errors"
)

// tx runs aggregate reads and compare-and-saves against a single
// querier. With forUpdate set, loads take row locks so concurrent
// transactions against the same aggregate serialize instead of racing.
type tx struct {
	q         querier
	forUpdate bool
}

func (t *tx) lock() string {
	if t.forUpdate {
		return " FOR UPDATE"
	}

	return ""
}

func (t *tx) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	stmt := `SELECT doc, version FROM events WHERE id = $1` + t.lock() + `;`

	var (
		doc     []byte
		version int64
	)
	if err := t.q.QueryRow(ctx, stmt, id).Scan(&doc, &version); err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.New(errors.CodeNotFound,
				errors.WithMessagef("event not found: id=%s", id))
		}
		return nil, fmt.Errorf("get event: %w", err)
	}

	return decodeEvent(doc, version)
}

func (t *tx) createEvent(ctx context.Context, e *domain.Event) error {
	doc, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	const stmt = `INSERT INTO events (id, doc) VALUES ($1, $2);`
	if _, err := t.q.Exec(ctx, stmt, e.ID, doc); err != nil {
		return convertError(err)
	}
	e.Version = 1

	return nil
}

func (t *tx) SaveEvent(ctx context.Context, e *domain.Event) error {
	if e.MaxParticipants > 0 && e.CurrentParticipants > e.MaxParticipants {
		return errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("maximum participants limit exceeded: %d > %d",
				e.CurrentParticipants, e.MaxParticipants))
	}

	if e.Version == 0 {
		return t.createEvent(ctx, e)
	}

	doc, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	const stmt = `UPDATE events SET doc = $2, version = version + 1 WHERE id = $1 AND version = $3;`
	tag, err := t.q.Exec(ctx, stmt, e.ID, doc, e.Version)
	if err != nil {
		return convertError(err)
	}
	if tag.RowsAffected() == 0 {
		return errors.New(errors.CodeAborted,
			errors.WithMessagef("event modified concurrently: id=%s", e.ID))
	}
	e.Version++

	return nil
}

func (t *tx) DeleteEvent(ctx context.Context, id string) error {
	tag, err := t.q.Exec(ctx, `DELETE FROM events WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.New(errors.CodeNotFound,
			errors.WithMessagef("event not found: id=%s", id))
	}

	return nil
}

func (t *tx) GetUser(ctx context.Context, id string) (*domain.User, error) {
	stmt := `SELECT password_hash, doc, version FROM users WHERE id = $1` + t.lock() + `;`

	u, err := scanUserRow(t.q.QueryRow(ctx, stmt, id))
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.New(errors.CodeNotFound,
				errors.WithMessagef("user not found: id=%s", id))
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return u, nil
}

func (t *tx) createUser(ctx context.Context, u *domain.User) error {
	doc, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	const stmt = `INSERT INTO users (id, username, email, password_hash, doc) VALUES ($1, $2, $3, $4, $5);`
	if _, err := t.q.Exec(ctx, stmt, u.ID, u.Username, u.Email, u.PasswordHash, doc); err != nil {
		return convertError(err)
	}
	u.Version = 1

	return nil
}

func (t *tx) SaveUser(ctx context.Context, u *domain.User) error {
	if u.Version == 0 {
		return t.createUser(ctx, u)
	}

	doc, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	const stmt = `
UPDATE users SET username = $2, email = $3, password_hash = $4, doc = $5, version = version + 1
WHERE id = $1 AND version = $6;`
	tag, err := t.q.Exec(ctx, stmt, u.ID, u.Username, u.Email, u.PasswordHash, doc, u.Version)
	if err != nil {
		return convertError(err)
	}
	if tag.RowsAffected() == 0 {
		return errors.New(errors.CodeAborted,
			errors.WithMessagef("user modified concurrently: id=%s", u.ID))
	}
	u.Version++

	return nil
}

func (t *tx) GetTeam(ctx context.Context, id string) (*domain.Team, error) {
	stmt := `SELECT doc, version FROM teams WHERE id = $1` + t.lock() + `;`

	var (
		doc     []byte
		version int64
	)
	if err := t.q.QueryRow(ctx, stmt, id).Scan(&doc, &version); err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.New(errors.CodeNotFound,
				errors.WithMessagef("team not found: id=%s", id))
		}
		return nil, fmt.Errorf("get team: %w", err)
	}

	return decodeTeam(doc, version)
}

func (t *tx) createTeam(ctx context.Context, team *domain.Team) error {
	doc, err := json.Marshal(team)
	if err != nil {
		return fmt.Errorf("encode team: %w", err)
	}

	const stmt = `INSERT INTO teams (id, name, doc) VALUES ($1, $2, $3);`
	if _, err := t.q.Exec(ctx, stmt, team.ID, team.Name, doc); err != nil {
		return convertError(err)
	}
	team.Version = 1

	return nil
}

func (t *tx) SaveTeam(ctx context.Context, team *domain.Team) error {
	if team.Version == 0 {
		return t.createTeam(ctx, team)
	}

	doc, err := json.Marshal(team)
	if err != nil {
		return fmt.Errorf("encode team: %w", err)
	}

	const stmt = `UPDATE teams SET name = $2, doc = $3, version = version + 1 WHERE id = $1 AND version = $4;`
	tag, err := t.q.Exec(ctx, stmt, team.ID, team.Name, doc, team.Version)
	if err != nil {
		return convertError(err)
	}
	if tag.RowsAffected() == 0 {
		return errors.New(errors.CodeAborted,
			errors.WithMessagef("team modified concurrently: id=%s", team.ID))
	}
	team.Version++

	return nil
}

func decodeEvent(doc []byte, version int64) (*domain.Event, error) {
	var e domain.Event
	if err := json.Unmarshal(doc, &e); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	e.Version = version

	return &e, nil
}

func decodeTeam(doc []byte, version int64) (*domain.Team, error) {
	var t domain.Team
	if err := json.Unmarshal(doc, &t); err != nil {
		return nil, fmt.Errorf("decode team: %w", err)
	}
	t.Version = version

	return &t, nil
}

func scanEvent(r pgx.CollectableRow) (*domain.Event, error) {
	var (
		doc     []byte
		version int64
	)
	if err := r.Scan(&doc, &version); err != nil {
		return nil, err
	}

	return decodeEvent(doc, version)
}

func scanTeam(r pgx.CollectableRow) (*domain.Team, error) {
	var (
		doc     []byte
		version int64
	)
	if err := r.Scan(&doc, &version); err != nil {
		return nil, err
	}

	return decodeTeam(doc, version)
}

func scanUser(r pgx.CollectableRow) (*domain.User, error) {
	return scanUserRow(r)
}

func scanUserRow(r pgx.Row) (*domain.User, error) {
	var (
		hash    string
		doc     []byte
		version int64
	)
	if err := r.Scan(&hash, &doc, &version); err != nil {
		return nil, err
	}

	var u domain.User
	if err := json.Unmarshal(doc, &u); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	u.PasswordHash = hash
	u.Version = version

	return &u, nil
}
