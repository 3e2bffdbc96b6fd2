package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/FaresAhmed23/tournament/internal/domain"
	"github.com/FaresAhmed23/tournament/internal/errors"
	"github.com/FaresAhmed23/tournament/internal/store"
	"github.com/FaresAhmed23/tournament/internal/store/memory"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func TestStore_EventVersioning(t *testing.T) {
	t.Parallel()

	s := memory.New()
	ctx := context.Background()

	e := testEvent("e1")
	require.NoError(t, s.CreateEvent(ctx, e))
	require.EqualValues(t, 1, e.Version)

	// Two loads of the same version race; the second save loses.
	a, err := s.GetEvent(ctx, "e1")
	require.NoError(t, err)
	b, err := s.GetEvent(ctx, "e1")
	require.NoError(t, err)

	a.Name = "first writer"
	require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.SaveEvent(ctx, a)
	}))
	require.EqualValues(t, 2, a.Version)

	b.Name = "second writer"
	err = s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.SaveEvent(ctx, b)
	})
	require.True(t, errors.Is(err, errors.CodeAborted))

	got, err := s.GetEvent(ctx, "e1")
	require.NoError(t, err)
	require.Equal(t, "first writer", got.Name)
}

func TestStore_SaveEventCapacityInvariant(t *testing.T) {
	t.Parallel()

	s := memory.New()
	ctx := context.Background()

	e := testEvent("e1")
	e.MaxParticipants = 2
	require.NoError(t, s.CreateEvent(ctx, e))

	e.CurrentParticipants = 3
	err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.SaveEvent(ctx, e)
	})
	require.True(t, errors.Is(err, errors.CodeFailedPrecondition))
}

func TestStore_TxRollsBackOnError(t *testing.T) {
	t.Parallel()

	s := memory.New()
	ctx := context.Background()

	e := testEvent("e1")
	require.NoError(t, s.CreateEvent(ctx, e))

	err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		got, err := tx.GetEvent(ctx, "e1")
		require.NoError(t, err)

		got.Name = "changed"
		if err := tx.SaveEvent(ctx, got); err != nil {
			return err
		}

		// The transaction's own write is visible inside it.
		again, err := tx.GetEvent(ctx, "e1")
		require.NoError(t, err)
		require.Equal(t, "changed", again.Name)

		return errors.New(errors.CodeInternal, errors.WithMessagef("boom"))
	})
	require.Error(t, err)

	got, err := s.GetEvent(ctx, "e1")
	require.NoError(t, err)
	require.Equal(t, "math sprint", got.Name, "a failed transaction should leave no writes behind")
	require.EqualValues(t, 1, got.Version)
}

func TestStore_CreateUserUniqueness(t *testing.T) {
	t.Parallel()

	s := memory.New()
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, &domain.User{ID: "u1", Username: "alice", Email: "alice@example.com"}))

	err := s.CreateUser(ctx, &domain.User{ID: "u2", Username: "ALICE", Email: "other@example.com"})
	require.True(t, errors.Is(err, errors.CodeAlreadyExists), "usernames are unique ignoring case")

	err = s.CreateUser(ctx, &domain.User{ID: "u3", Username: "bob", Email: "Alice@Example.com"})
	require.True(t, errors.Is(err, errors.CodeAlreadyExists), "emails are unique ignoring case")
}

func TestStore_ListEvents(t *testing.T) {
	t.Parallel()

	s := memory.New()
	s.Now = func() time.Time { return testNow }
	ctx := context.Background()

	past := testEvent("e1")
	past.Name = "finished round"
	past.StartDate = testNow.Add(-2 * time.Hour)
	past.EndDate = testNow.Add(-time.Hour)
	require.NoError(t, s.CreateEvent(ctx, past))

	active := testEvent("e2")
	active.Name = "running round"
	require.NoError(t, s.CreateEvent(ctx, active))

	upcoming := testEvent("e3")
	upcoming.Name = "future offline round"
	upcoming.Type = domain.EventOffline
	upcoming.Location = "HCMC"
	upcoming.StartDate = testNow.Add(time.Hour)
	upcoming.EndDate = testNow.Add(2 * time.Hour)
	require.NoError(t, s.CreateEvent(ctx, upcoming))

	tests := map[string]struct {
		filter  store.EventFilter
		wantIDs []string
	}{
		"no filter returns everything ordered by start date": {
			filter:  store.EventFilter{},
			wantIDs: []string{"e1", "e2", "e3"},
		},
		"filter by type": {
			filter:  store.EventFilter{Type: domain.EventOffline},
			wantIDs: []string{"e3"},
		},
		"filter by derived status": {
			filter:  store.EventFilter{Status: domain.StatusActive},
			wantIDs: []string{"e2"},
		},
		"search matches name case-insensitively": {
			filter:  store.EventFilter{Search: "FUTURE"},
			wantIDs: []string{"e3"},
		},
		"search misses return empty": {
			filter:  store.EventFilter{Search: "no such"},
			wantIDs: nil,
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			events, err := s.ListEvents(ctx, tt.filter)
			require.NoError(t, err)

			var ids []string
			for _, e := range events {
				ids = append(ids, e.ID)
			}
			require.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestStore_ListIndividualUsers(t *testing.T) {
	t.Parallel()

	s := memory.New()
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, &domain.User{ID: "u1", Username: "zoe", Email: "zoe@example.com", ParticipationType: domain.ParticipationIndividual, Score: 10}))
	require.NoError(t, s.CreateUser(ctx, &domain.User{ID: "u2", Username: "amy", Email: "amy@example.com", ParticipationType: domain.ParticipationIndividual, Score: 10}))
	require.NoError(t, s.CreateUser(ctx, &domain.User{ID: "u3", Username: "max", Email: "max@example.com", ParticipationType: domain.ParticipationIndividual, Score: 30}))
	require.NoError(t, s.CreateUser(ctx, &domain.User{ID: "u4", Username: "tim", Email: "tim@example.com", ParticipationType: domain.ParticipationTeam, Score: 99}))

	users, err := s.ListIndividualUsers(ctx)
	require.NoError(t, err)

	var names []string
	for _, u := range users {
		names = append(names, u.Username)
	}
	require.Equal(t, []string{"max", "amy", "zoe"}, names, "score descending, ties by username; team players excluded")
}

func testEvent(id string) *domain.Event {
	return &domain.Event{
		ID:          id,
		Name:        "math sprint",
		Type:        domain.EventOnline,
		Description: "quick round",
		StartDate:   testNow.Add(-time.Hour),
		EndDate:     testNow.Add(time.Hour),
		Questions: []domain.Question{
			{ID: "q1", Text: "2+2?", Options: []string{"3", "4"}, Answer: "4", Points: 10},
		},
		MaxParticipants: domain.DefaultMaxParticipants,
		TeamSize:        domain.DefaultTeamSize,
	}
}
