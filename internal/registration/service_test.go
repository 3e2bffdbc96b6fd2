package registration_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/FaresAhmed23/tournament/internal/domain"
	"github.com/FaresAhmed23/tournament/internal/errors"
	"github.com/FaresAhmed23/tournament/internal/registration"
	"github.com/FaresAhmed23/tournament/internal/store/memory"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func TestService_RegisterOffline(t *testing.T) {
	tests := map[string]struct {
		arrange func(t *testing.T, s *memory.Store)
		req     registration.RegisterOfflineRequest
		assert  func(t *testing.T, s *memory.Store, resp *registration.RegisterOfflineResponse, err error)
	}{
		"an individual registration should consume one seat": {
			arrange: func(t *testing.T, s *memory.Store) {
				seedOfflineEvent(t, s, "e1", 10)
			},
			req: registration.RegisterOfflineRequest{
				EventID: "e1",
				UserID:  "u1",
				Kind:    domain.RegistrationIndividual,
			},
			assert: func(t *testing.T, s *memory.Store, resp *registration.RegisterOfflineResponse, err error) {
				require.NoError(t, err)
				require.Equal(t, 1, resp.CurrentParticipants)
				require.Equal(t, 10, resp.MaxParticipants)
			},
		},

		"a team registration should consume the event's team size": {
			arrange: func(t *testing.T, s *memory.Store) {
				seedOfflineEvent(t, s, "e1", 10)
				seedTeam(t, s, "t1", 3)
			},
			req: registration.RegisterOfflineRequest{
				EventID: "e1",
				UserID:  "u1",
				Kind:    domain.RegistrationTeam,
				TeamID:  "t1",
			},
			assert: func(t *testing.T, s *memory.Store, resp *registration.RegisterOfflineResponse, err error) {
				require.NoError(t, err)
				require.Equal(t, 5, resp.CurrentParticipants, "the event's team size wins over the roster size")
			},
		},

		"a team filling the event exactly should close it to everyone": {
			arrange: func(t *testing.T, s *memory.Store) {
				seedOfflineEvent(t, s, "e1", 5)
				seedTeam(t, s, "t1", 5)

				_, err := makeService(t, s).RegisterOffline(context.Background(), registration.RegisterOfflineRequest{
					EventID: "e1",
					UserID:  "u1",
					Kind:    domain.RegistrationTeam,
					TeamID:  "t1",
				})
				require.NoError(t, err)
			},
			req: registration.RegisterOfflineRequest{
				EventID: "e1",
				UserID:  "u2",
				Kind:    domain.RegistrationIndividual,
			},
			assert: func(t *testing.T, s *memory.Store, resp *registration.RegisterOfflineResponse, err error) {
				require.True(t, errors.Is(err, errors.CodeFailedPrecondition))

				e, err := s.GetEvent(context.Background(), "e1")
				require.NoError(t, err)
				require.Equal(t, 5, e.CurrentParticipants)
			},
		},

		"a registration that would overflow capacity should be rejected whole": {
			arrange: func(t *testing.T, s *memory.Store) {
				seedOfflineEvent(t, s, "e1", 4)
				seedTeam(t, s, "t1", 3)
			},
			req: registration.RegisterOfflineRequest{
				EventID: "e1",
				UserID:  "u1",
				Kind:    domain.RegistrationTeam,
				TeamID:  "t1",
			},
			assert: func(t *testing.T, s *memory.Store, resp *registration.RegisterOfflineResponse, err error) {
				require.True(t, errors.Is(err, errors.CodeFailedPrecondition))

				e, err := s.GetEvent(context.Background(), "e1")
				require.NoError(t, err)
				require.Equal(t, 0, e.CurrentParticipants, "no seats should be booked on failure")
				require.Empty(t, e.Participants)
			},
		},

		"registering the same user twice should conflict": {
			arrange: func(t *testing.T, s *memory.Store) {
				seedOfflineEvent(t, s, "e1", 10)

				_, err := makeService(t, s).RegisterOffline(context.Background(), registration.RegisterOfflineRequest{
					EventID: "e1",
					UserID:  "u1",
					Kind:    domain.RegistrationIndividual,
				})
				require.NoError(t, err)
			},
			req: registration.RegisterOfflineRequest{
				EventID: "e1",
				UserID:  "u1",
				Kind:    domain.RegistrationIndividual,
			},
			assert: func(t *testing.T, s *memory.Store, resp *registration.RegisterOfflineResponse, err error) {
				require.True(t, errors.Is(err, errors.CodeAlreadyExists))
			},
		},

		"registering the same team twice should conflict": {
			arrange: func(t *testing.T, s *memory.Store) {
				seedOfflineEvent(t, s, "e1", 20)
				seedTeam(t, s, "t1", 3)

				_, err := makeService(t, s).RegisterOffline(context.Background(), registration.RegisterOfflineRequest{
					EventID: "e1",
					UserID:  "u1",
					Kind:    domain.RegistrationTeam,
					TeamID:  "t1",
				})
				require.NoError(t, err)
			},
			req: registration.RegisterOfflineRequest{
				EventID: "e1",
				UserID:  "u2",
				Kind:    domain.RegistrationTeam,
				TeamID:  "t1",
			},
			assert: func(t *testing.T, s *memory.Store, resp *registration.RegisterOfflineResponse, err error) {
				require.True(t, errors.Is(err, errors.CodeAlreadyExists))
			},
		},

		"registration should close at the event start": {
			arrange: func(t *testing.T, s *memory.Store) {
				e := offlineEvent("e1", 10)
				e.StartDate = testNow.Add(-time.Minute)
				require.NoError(t, s.CreateEvent(context.Background(), e))
			},
			req: registration.RegisterOfflineRequest{
				EventID: "e1",
				UserID:  "u1",
				Kind:    domain.RegistrationIndividual,
			},
			assert: func(t *testing.T, s *memory.Store, resp *registration.RegisterOfflineResponse, err error) {
				require.True(t, errors.Is(err, errors.CodeFailedPrecondition))
			},
		},

		"online events should not accept offline registrations": {
			arrange: func(t *testing.T, s *memory.Store) {
				e := offlineEvent("e1", 10)
				e.Type = domain.EventOnline
				e.Location = ""
				require.NoError(t, s.CreateEvent(context.Background(), e))
			},
			req: registration.RegisterOfflineRequest{
				EventID: "e1",
				UserID:  "u1",
				Kind:    domain.RegistrationIndividual,
			},
			assert: func(t *testing.T, s *memory.Store, resp *registration.RegisterOfflineResponse, err error) {
				require.True(t, errors.Is(err, errors.CodeInvalidArgument))
			},
		},

		"a team registration without a team id should be rejected": {
			arrange: func(t *testing.T, s *memory.Store) {
				seedOfflineEvent(t, s, "e1", 10)
			},
			req: registration.RegisterOfflineRequest{
				EventID: "e1",
				UserID:  "u1",
				Kind:    domain.RegistrationTeam,
			},
			assert: func(t *testing.T, s *memory.Store, resp *registration.RegisterOfflineResponse, err error) {
				require.True(t, errors.Is(err, errors.CodeInvalidArgument))
			},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			s := memory.New()
			s.Now = func() time.Time { return testNow }
			tt.arrange(t, s)

			resp, err := makeService(t, s).RegisterOffline(context.Background(), tt.req)

			tt.assert(t, s, resp, err)
		})
	}
}

// Concurrent registrations racing for the last seats must never
// oversell the event.
func TestService_RegisterOffline_Concurrent(t *testing.T) {
	t.Parallel()

	const capacity = 5

	s := memory.New()
	s.Now = func() time.Time { return testNow }
	seedOfflineEvent(t, s, "e1", capacity)

	svc := makeService(t, s)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			_, err := svc.RegisterOffline(context.Background(), registration.RegisterOfflineRequest{
				EventID: "e1",
				UserID:  string(rune('a' + i)),
				Kind:    domain.RegistrationIndividual,
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else {
				require.True(t, errors.Is(err, errors.CodeFailedPrecondition))
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, capacity, succeeded)

	e, err := s.GetEvent(context.Background(), "e1")
	require.NoError(t, err)
	require.Equal(t, capacity, e.CurrentParticipants)
	require.Len(t, e.Participants, capacity)
}

func makeService(t *testing.T, s *memory.Store) *registration.Service {
	t.Helper()

	return registration.NewService(registration.Config{
		Store: s,
		Now:   func() time.Time { return testNow },
	})
}

func offlineEvent(id string, capacity int) *domain.Event {
	return &domain.Event{
		ID:              id,
		Name:            "city finals",
		Type:            domain.EventOffline,
		Description:     "on-site finals",
		Location:        "HCMC",
		StartDate:       testNow.Add(24 * time.Hour),
		EndDate:         testNow.Add(25 * time.Hour),
		MaxParticipants: capacity,
		TeamSize:        domain.DefaultTeamSize,
	}
}

func seedOfflineEvent(t *testing.T, s *memory.Store, id string, capacity int) {
	t.Helper()
	require.NoError(t, s.CreateEvent(context.Background(), offlineEvent(id, capacity)))
}

func seedTeam(t *testing.T, s *memory.Store, id string, members int) {
	t.Helper()

	team := &domain.Team{ID: id, Name: "team-" + id, CaptainID: "u1"}
	for i := 0; i < members; i++ {
		team.Members = append(team.Members, domain.TeamMember{
			Name:  "member",
			Email: string(rune('a'+i)) + "@example.com",
		})
	}
	require.NoError(t, s.CreateTeam(context.Background(), team))
}
