// Package postgres persists the Event, User and Team aggregates as
// JSONB documents guarded by a version column. Compare-and-save is an
// UPDATE conditioned on the version read; multi-aggregate operations
// run inside one database transaction with row locks.
package postgres

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/FaresAhmed23/tournament/internal/domain"
	"github.com/FaresAhmed23/tournament/internal/errors"
	"github.com/FaresAhmed23/tournament/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id      UUID PRIMARY KEY,
	doc     JSONB NOT NULL,
	version BIGINT NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS events_participants_idx ON events USING GIN ((doc->'participants'));

CREATE TABLE IF NOT EXISTS users (
	id            UUID PRIMARY KEY,
	username      TEXT NOT NULL,
	email         TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	doc           JSONB NOT NULL,
	version       BIGINT NOT NULL DEFAULT 1
);
CREATE UNIQUE INDEX IF NOT EXISTS users_username_key ON users (lower(username));
CREATE UNIQUE INDEX IF NOT EXISTS users_email_key ON users (lower(email));

CREATE TABLE IF NOT EXISTS teams (
	id      UUID PRIMARY KEY,
	name    TEXT NOT NULL,
	doc     JSONB NOT NULL,
	version BIGINT NOT NULL DEFAULT 1
);
CREATE UNIQUE INDEX IF NOT EXISTS teams_name_key ON teams (lower(name));
`

// statusExpr derives the event status from the clock at query time.
const statusExpr = `CASE
	WHEN now() < (doc->>'startDate')::timestamptz THEN 'upcoming'
	WHEN now() > (doc->>'endDate')::timestamptz THEN 'completed'
	ELSE 'active'
END`

type Store struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Init creates the schema if it does not exist yet.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

// querier is satisfied by both the pool and a pgx transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) (err error) {
	pgtx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = stderrors.Join(err, ignoreTxClosed(pgtx.Rollback(ctx)))
		}
	}()

	if err = fn(ctx, &tx{q: pgtx, forUpdate: true}); err != nil {
		return err
	}

	if err = pgtx.Commit(ctx); err != nil {
		return convertError(err)
	}

	return nil
}

func ignoreTxClosed(err error) error {
	if stderrors.Is(err, pgx.ErrTxClosed) {
		return nil
	}

	return err
}

// convertError maps driver failures onto the error kinds callers react
// to: unique violations become conflicts, serialization aborts and
// deadlocks become retryable transaction failures.
func convertError(err error) error {
	var pgErr *pgconn.PgError
	if !stderrors.As(err, &pgErr) {
		return err
	}

	const (
		codeUniqueViolation      = "23505"
		codeSerializationFailure = "40001"
		codeDeadlockDetected     = "40P01"
	)

	switch pgErr.Code {
	case codeUniqueViolation:
		return errors.New(errors.CodeAlreadyExists, errors.WithCause(err))
	case codeSerializationFailure, codeDeadlockDetected:
		return errors.New(errors.CodeAborted, errors.WithCause(err))
	}

	return err
}

func (s *Store) CreateEvent(ctx context.Context, e *domain.Event) error {
	return (&tx{q: s.db}).createEvent(ctx, e)
}

func (s *Store) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	return (&tx{q: s.db}).GetEvent(ctx, id)
}

func (s *Store) ListEvents(ctx context.Context, f store.EventFilter) ([]*domain.Event, error) {
	stmt := fmt.Sprintf(`
SELECT doc, version FROM events
WHERE ($1 = '' OR doc->>'type' = $1)
  AND ($2 = '' OR %s = $2)
  AND ($3 = '' OR doc->>'name' ILIKE '%%'||$3||'%%' OR doc->>'description' ILIKE '%%'||$3||'%%')
ORDER BY (doc->>'startDate')::timestamptz;`, statusExpr)

	rows, err := s.db.Query(ctx, stmt, string(f.Type), string(f.Status), f.Search)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	return pgx.CollectRows(rows, scanEvent)
}

func (s *Store) EventsByUser(ctx context.Context, userID string) ([]*domain.Event, error) {
	const stmt = `
SELECT doc, version FROM events
WHERE doc->'participants' @> jsonb_build_array(jsonb_build_object('user', $1::text))
ORDER BY (doc->>'startDate')::timestamptz;`

	rows, err := s.db.Query(ctx, stmt, userID)
	if err != nil {
		return nil, fmt.Errorf("events by user: %w", err)
	}

	return pgx.CollectRows(rows, scanEvent)
}

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	return (&tx{q: s.db}).createUser(ctx, u)
}

func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return (&tx{q: s.db}).GetUser(ctx, id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	const stmt = `SELECT password_hash, doc, version FROM users WHERE lower(email) = lower($1);`

	u, err := scanUserRow(s.db.QueryRow(ctx, stmt, email))
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.New(errors.CodeNotFound,
				errors.WithMessagef("user not found: email=%s", email))
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	return u, nil
}

func (s *Store) SaveUser(ctx context.Context, u *domain.User) error {
	return (&tx{q: s.db}).SaveUser(ctx, u)
}

func (s *Store) GetUsers(ctx context.Context, ids []string) (map[string]*domain.User, error) {
	const stmt = `SELECT password_hash, doc, version FROM users WHERE id = ANY($1::uuid[]);`

	rows, err := s.db.Query(ctx, stmt, ids)
	if err != nil {
		return nil, fmt.Errorf("get users: %w", err)
	}

	users, err := pgx.CollectRows(rows, scanUser)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*domain.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	return byID, nil
}

func (s *Store) ListIndividualUsers(ctx context.Context) ([]*domain.User, error) {
	const stmt = `
SELECT password_hash, doc, version FROM users
WHERE doc->>'participationType' = 'individual'
ORDER BY (doc->>'score')::int DESC, lower(username);`

	rows, err := s.db.Query(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	return pgx.CollectRows(rows, scanUser)
}

func (s *Store) CreateTeam(ctx context.Context, t *domain.Team) error {
	return (&tx{q: s.db}).createTeam(ctx, t)
}

func (s *Store) GetTeam(ctx context.Context, id string) (*domain.Team, error) {
	return (&tx{q: s.db}).GetTeam(ctx, id)
}

func (s *Store) SaveTeam(ctx context.Context, t *domain.Team) error {
	return (&tx{q: s.db}).SaveTeam(ctx, t)
}

func (s *Store) GetTeams(ctx context.Context, ids []string) (map[string]*domain.Team, error) {
	const stmt = `SELECT doc, version FROM teams WHERE id = ANY($1::uuid[]);`

	rows, err := s.db.Query(ctx, stmt, ids)
	if err != nil {
		return nil, fmt.Errorf("get teams: %w", err)
	}

	teams, err := pgx.CollectRows(rows, scanTeam)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*domain.Team, len(teams))
	for _, t := range teams {
		byID[t.ID] = t
	}

	return byID, nil
}

func (s *Store) ListTeams(ctx context.Context) ([]*domain.Team, error) {
	const stmt = `
SELECT doc, version FROM teams
ORDER BY (doc->>'score')::int DESC, lower(name);`

	rows, err := s.db.Query(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}

	return pgx.CollectRows(rows, scanTeam)
}
