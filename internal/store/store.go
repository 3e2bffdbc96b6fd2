// Package store defines the persistence contract for the Event, User
// and Team aggregates. Implementations must provide atomic
// compare-and-save per aggregate and a unit of work that commits
// writes to all three together or not at all.
package store

import (
	"context"

	"github.com/FaresAhmed23/tournament/internal/domain"
)

// EventFilter narrows ListEvents. Zero values match everything.
type EventFilter struct {
	Type   domain.EventType
	Status domain.EventStatus
	Search string
}

// Tx is a transaction spanning all three aggregates. Loads observe the
// transaction's own staged writes. Save fails with CodeAborted when the
// aggregate's version changed since it was loaded, and with
// CodeFailedPrecondition when a stored invariant would be violated.
type Tx interface {
	GetEvent(ctx context.Context, id string) (*domain.Event, error)
	SaveEvent(ctx context.Context, e *domain.Event) error
	DeleteEvent(ctx context.Context, id string) error

	GetUser(ctx context.Context, id string) (*domain.User, error)
	SaveUser(ctx context.Context, u *domain.User) error

	GetTeam(ctx context.Context, id string) (*domain.Team, error)
	SaveTeam(ctx context.Context, t *domain.Team) error
}

type Store interface {
	// RunInTx executes fn within one atomic unit of work. Any error
	// from fn aborts the transaction, leaving no partial writes.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	CreateEvent(ctx context.Context, e *domain.Event) error
	GetEvent(ctx context.Context, id string) (*domain.Event, error)
	ListEvents(ctx context.Context, f EventFilter) ([]*domain.Event, error)
	// EventsByUser lists events holding an individual registration of
	// the user, ordered by start date.
	EventsByUser(ctx context.Context, userID string) ([]*domain.Event, error)

	CreateUser(ctx context.Context, u *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	SaveUser(ctx context.Context, u *domain.User) error
	// GetUsers resolves many users at once. Missing ids are skipped.
	GetUsers(ctx context.Context, ids []string) (map[string]*domain.User, error)
	// ListIndividualUsers returns individually-participating users
	// ordered by cumulative score descending, then username.
	ListIndividualUsers(ctx context.Context) ([]*domain.User, error)

	CreateTeam(ctx context.Context, t *domain.Team) error
	GetTeam(ctx context.Context, id string) (*domain.Team, error)
	SaveTeam(ctx context.Context, t *domain.Team) error
	GetTeams(ctx context.Context, ids []string) (map[string]*domain.Team, error)
	// ListTeams returns all teams ordered by cumulative score
	// descending, then name.
	ListTeams(ctx context.Context) ([]*domain.Team, error)
}
