package standings_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/FaresAhmed23/tournament/internal/domain"
	"github.com/FaresAhmed23/tournament/internal/eventbus"
	"github.com/FaresAhmed23/tournament/internal/standings"
	"github.com/FaresAhmed23/tournament/internal/store/memory"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func TestService_GetEventLeaderboard(t *testing.T) {
	t.Parallel()

	s := memory.New()
	seedUser(t, s, "u1", "alice", 0)
	seedUser(t, s, "u2", "bob", 0)
	seedTeamScored(t, s, "t1", "reds", 0, 0)

	e := &domain.Event{
		ID:        "e1",
		Name:      "math sprint",
		Type:      domain.EventOnline,
		StartDate: testNow.Add(-time.Hour),
		EndDate:   testNow.Add(time.Hour),
		Participants: []domain.Participant{
			{UserID: "u1", RegistrationType: domain.RegistrationIndividual, Score: 10},
			{UserID: "u2", RegistrationType: domain.RegistrationIndividual, Score: 30, PerfectRun: true},
			{TeamID: "t1", RegistrationType: domain.RegistrationTeam, Score: 20},
		},
	}
	require.NoError(t, s.CreateEvent(context.Background(), e))

	lb, err := makeService(t, s).GetEventLeaderboard(context.Background(), standings.EventLeaderboardRequest{EventID: "e1"})
	require.NoError(t, err)

	require.Equal(t, "math sprint", lb.EventName)
	require.Len(t, lb.Leaderboard, 3)
	require.Equal(t, "bob", lb.Leaderboard[0].Username)
	require.True(t, lb.Leaderboard[0].PerfectRun)
	require.Equal(t, "reds", lb.Leaderboard[1].Username, "team entries appear under the team name")
	require.Equal(t, "alice", lb.Leaderboard[2].Username)
}

func TestService_GetTeamStandings(t *testing.T) {
	t.Parallel()

	s := memory.New()
	seedTeamScored(t, s, "t1", "reds", 0, 0)
	seedTeamScored(t, s, "t2", "blues", 0, 0)
	seedTeamScored(t, s, "t3", "greens", 0, 0)

	e := &domain.Event{
		ID:        "e1",
		Name:      "league night",
		Type:      domain.EventOnline,
		StartDate: testNow.Add(-time.Hour),
		EndDate:   testNow.Add(time.Hour),
		Participants: []domain.Participant{
			{TeamID: "t1", RegistrationType: domain.RegistrationTeam, Score: 10, PerfectRun: true},
			{TeamID: "t1", RegistrationType: domain.RegistrationTeam, Score: 20},
			{TeamID: "t2", RegistrationType: domain.RegistrationTeam, Score: 30},
			{TeamID: "t3", RegistrationType: domain.RegistrationTeam, Score: 5},
		},
	}
	require.NoError(t, s.CreateEvent(context.Background(), e))

	st, err := makeService(t, s).GetTeamStandings(context.Background(), standings.TeamStandingsRequest{EventID: "e1"})
	require.NoError(t, err)

	require.Equal(t, "league night", st.EventName)
	require.Len(t, st.TeamStandings, 3)

	// t1 and t2 tie on 30 points; t1 keeps its earlier position and
	// both share a dense rank.
	require.Equal(t, "t1", st.TeamStandings[0].TeamID)
	require.Equal(t, 30, st.TeamStandings[0].TotalScore)
	require.Equal(t, 1, st.TeamStandings[0].Rank)
	require.Equal(t, 1, st.TeamStandings[0].PerfectRuns)
	require.Equal(t, 2, st.TeamStandings[0].ParticipantCount)
	require.True(t, decimal.NewFromInt(15).Equal(st.TeamStandings[0].AverageScore))

	require.Equal(t, "t2", st.TeamStandings[1].TeamID)
	require.Equal(t, 1, st.TeamStandings[1].Rank)

	require.Equal(t, "t3", st.TeamStandings[2].TeamID)
	require.Equal(t, 2, st.TeamStandings[2].Rank, "ranks are dense, a tie does not skip the next rank")
}

func TestService_GetGlobalLeaderboard(t *testing.T) {
	t.Parallel()

	s := memory.New()
	seedUser(t, s, "u1", "alice", 40)
	seedUser(t, s, "u2", "bob", 20)
	seedTeamScored(t, s, "t1", "reds", 40, 1)
	seedTeamScored(t, s, "t2", "blues", 30, 0)

	entries, err := makeService(t, s).GetGlobalLeaderboard(context.Background())
	require.NoError(t, err)

	require.Len(t, entries, 4)

	// 40-point tie: the user precedes the team, the merge is stable.
	require.Equal(t, "alice", entries[0].Name)
	require.Equal(t, standings.KindUser, entries[0].Kind)
	require.Equal(t, "reds", entries[1].Name)
	require.Equal(t, standings.KindTeam, entries[1].Kind)
	require.Equal(t, "blues", entries[2].Name)
	require.Equal(t, "bob", entries[3].Name)

	for i, e := range entries {
		require.Equal(t, i+1, e.Rank)
	}
}

func TestService_Cache(t *testing.T) {
	t.Parallel()

	s := memory.New()
	seedUser(t, s, "u1", "alice", 10)

	eb := eventbus.NewBus()
	svc := makeService(t, s, withEventBus(eb))

	entries, err := svc.GetGlobalLeaderboard(context.Background())
	require.NoError(t, err)
	require.Equal(t, 10, entries[0].Score)

	// A direct store write is invisible while the cache holds.
	u, err := s.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	u.Score = 50
	require.NoError(t, s.SaveUser(context.Background(), u))

	entries, err = svc.GetGlobalLeaderboard(context.Background())
	require.NoError(t, err)
	require.Equal(t, 10, entries[0].Score, "the cached payload should be served")

	// A submission event flushes the affected keys.
	eb.Publish(context.Background(), domain.EventScoreSubmitted{EventID: "e1", UserID: "u1", Score: 40})
	eb.Stop()

	entries, err = svc.GetGlobalLeaderboard(context.Background())
	require.NoError(t, err)
	require.Equal(t, 50, entries[0].Score)
}

func TestService_GetUserHistory(t *testing.T) {
	t.Parallel()

	s := memory.New()
	e1 := &domain.Event{
		ID:        "e1",
		Name:      "done",
		Type:      domain.EventOnline,
		StartDate: testNow.Add(-2 * time.Hour),
		EndDate:   testNow.Add(-time.Hour),
		Participants: []domain.Participant{
			{UserID: "u1", RegistrationType: domain.RegistrationIndividual, Score: 20, PerfectRun: true, HasCompleted: true},
		},
	}
	e2 := &domain.Event{
		ID:        "e2",
		Name:      "pending",
		Type:      domain.EventOffline,
		StartDate: testNow.Add(time.Hour),
		EndDate:   testNow.Add(2 * time.Hour),
		Participants: []domain.Participant{
			{UserID: "u1", RegistrationType: domain.RegistrationIndividual},
		},
	}
	require.NoError(t, s.CreateEvent(context.Background(), e1))
	require.NoError(t, s.CreateEvent(context.Background(), e2))

	history, err := makeService(t, s).GetUserHistory(context.Background(), standings.UserHistoryRequest{UserID: "u1"})
	require.NoError(t, err)

	require.Len(t, history, 2)
	require.Equal(t, "e1", history[0].EventID)
	require.Equal(t, "completed", history[0].Status)
	require.Equal(t, 20, history[0].Score)
	require.Equal(t, "e2", history[1].EventID)
	require.Equal(t, "registered", history[1].Status)
}

func makeService(t *testing.T, s *memory.Store, opts ...options) *standings.Service {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	require.NoError(t, rc.Ping(ctx).Err(), "should be able to ping redis")

	c := standings.Config{
		Store:  s,
		Redis:  rc,
		Prefix: "test",
	}

	for _, opt := range opts {
		opt(&c)
	}

	return standings.NewService(c)
}

type options func(c *standings.Config)

func withEventBus(eb *eventbus.Bus) options {
	return func(c *standings.Config) {
		c.EventBus = eb
	}
}

func seedUser(t *testing.T, s *memory.Store, id, username string, score int) {
	t.Helper()
	require.NoError(t, s.CreateUser(context.Background(), &domain.User{
		ID:                id,
		Username:          username,
		Email:             username + "@example.com",
		ParticipationType: domain.ParticipationIndividual,
		Score:             score,
	}))
}

func seedTeamScored(t *testing.T, s *memory.Store, id, name string, score, wins int) {
	t.Helper()
	require.NoError(t, s.CreateTeam(context.Background(), &domain.Team{
		ID:        id,
		Name:      name,
		CaptainID: "c-" + id,
		Score:     score,
		Wins:      wins,
	}))
}
