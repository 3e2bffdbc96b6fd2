// Package standings derives leaderboards from stored aggregates. All
// operations are read-only projections; computed payloads are cached
// in redis and invalidated when scores or rosters change.
package standings

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/FaresAhmed23/tournament/internal/domain"
	"github.com/FaresAhmed23/tournament/internal/eventbus"
	"github.com/FaresAhmed23/tournament/internal/store"
)

const defaultCacheTTL = 30 * time.Second

type Config struct {
	Store    store.Store
	EventBus *eventbus.Bus
	// Redis caches computed standings. Optional; with no client every
	// read recomputes from the store.
	Redis    redis.UniversalClient
	Prefix   string
	CacheTTL time.Duration
}

type Service struct {
	store  store.Store
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewService(c Config) *Service {
	if c.CacheTTL <= 0 {
		c.CacheTTL = defaultCacheTTL
	}

	s := &Service{
		store:  c.Store,
		redis:  c.Redis,
		prefix: c.Prefix,
		ttl:    c.CacheTTL,
	}

	if c.EventBus != nil {
		c.EventBus.Subscribe(domain.EventNameScoreSubmitted, func(ctx context.Context, e eventbus.Event) error {
			return s.invalidate(ctx, e.(domain.EventScoreSubmitted).EventID)
		})
		c.EventBus.Subscribe(domain.EventNameRosterChanged, func(ctx context.Context, e eventbus.Event) error {
			return s.invalidate(ctx, e.(domain.EventRosterChanged).EventID)
		})
	}

	return s
}

type EventLeaderboardRequest struct {
	EventID string
}

type EventEntry struct {
	Username    string    `json:"username"`
	Score       int       `json:"score"`
	PerfectRun  bool      `json:"perfectRun"`
	CompletedAt time.Time `json:"completedAt,omitempty"`
}

type EventLeaderboard struct {
	EventName   string       `json:"eventName"`
	Leaderboard []EventEntry `json:"leaderboard"`
}

// GetEventLeaderboard ranks an event's participants by score. Team
// registrations appear under the team's name.
func (s *Service) GetEventLeaderboard(ctx context.Context, req EventLeaderboardRequest) (*EventLeaderboard, error) {
	var lb EventLeaderboard
	if ok, err := s.cacheGet(ctx, s.eventKey(req.EventID), &lb); err == nil && ok {
		return &lb, nil
	}

	e, err := s.store.GetEvent(ctx, req.EventID)
	if err != nil {
		return nil, err
	}

	users, teams, err := s.resolveNames(ctx, e)
	if err != nil {
		return nil, err
	}

	ps := make([]domain.Participant, len(e.Participants))
	copy(ps, e.Participants)
	sort.SliceStable(ps, func(i, j int) bool { return ps[i].Score > ps[j].Score })

	lb = EventLeaderboard{
		EventName:   e.Name,
		Leaderboard: make([]EventEntry, 0, len(ps)),
	}
	for _, p := range ps {
		name := ""
		if p.RegistrationType == domain.RegistrationTeam {
			if t, ok := teams[p.TeamID]; ok {
				name = t.Name
			}
		} else if u, ok := users[p.UserID]; ok {
			name = u.Username
		}

		lb.Leaderboard = append(lb.Leaderboard, EventEntry{
			Username:    name,
			Score:       p.Score,
			PerfectRun:  p.PerfectRun,
			CompletedAt: p.LastSubmittedAt(),
		})
	}

	s.cacheSet(ctx, s.eventKey(req.EventID), lb)

	return &lb, nil
}

func (s *Service) resolveNames(ctx context.Context, e *domain.Event) (map[string]*domain.User, map[string]*domain.Team, error) {
	var userIDs, teamIDs []string
	for _, p := range e.Participants {
		switch {
		case p.UserID != "":
			userIDs = append(userIDs, p.UserID)
		case p.TeamID != "":
			teamIDs = append(teamIDs, p.TeamID)
		}
	}

	users := make(map[string]*domain.User)
	teams := make(map[string]*domain.Team)
	var err error
	if len(userIDs) > 0 {
		if users, err = s.store.GetUsers(ctx, userIDs); err != nil {
			return nil, nil, err
		}
	}
	if len(teamIDs) > 0 {
		if teams, err = s.store.GetTeams(ctx, teamIDs); err != nil {
			return nil, nil, err
		}
	}

	return users, teams, nil
}

type TeamStandingsRequest struct {
	EventID string
}

type TeamStanding struct {
	TeamID           string          `json:"teamId"`
	TeamName         string          `json:"teamName"`
	TotalScore       int             `json:"totalScore"`
	PerfectRuns      int             `json:"perfectRuns"`
	ParticipantCount int             `json:"participantCount"`
	Rank             int             `json:"rank"`
	AverageScore     decimal.Decimal `json:"averageScore"`
}

type TeamStandings struct {
	EventName     string         `json:"eventName"`
	TeamStandings []TeamStanding `json:"teamStandings"`
}

// GetTeamStandings groups an event's participants by team, sums their
// scores and assigns dense ranks.
func (s *Service) GetTeamStandings(ctx context.Context, req TeamStandingsRequest) (*TeamStandings, error) {
	var st TeamStandings
	if ok, err := s.cacheGet(ctx, s.teamStandingsKey(req.EventID), &st); err == nil && ok {
		return &st, nil
	}

	e, err := s.store.GetEvent(ctx, req.EventID)
	if err != nil {
		return nil, err
	}

	_, teams, err := s.resolveNames(ctx, e)
	if err != nil {
		return nil, err
	}

	byTeam := make(map[string]*TeamStanding)
	var order []string
	for _, p := range e.Participants {
		if p.TeamID == "" {
			continue
		}
		ts, ok := byTeam[p.TeamID]
		if !ok {
			ts = &TeamStanding{TeamID: p.TeamID}
			if t, found := teams[p.TeamID]; found {
				ts.TeamName = t.Name
			}
			byTeam[p.TeamID] = ts
			order = append(order, p.TeamID)
		}
		ts.TotalScore += p.Score
		if p.PerfectRun {
			ts.PerfectRuns++
		}
		ts.ParticipantCount++
	}

	standings := make([]TeamStanding, 0, len(order))
	for _, id := range order {
		standings = append(standings, *byTeam[id])
	}
	sort.SliceStable(standings, func(i, j int) bool { return standings[i].TotalScore > standings[j].TotalScore })

	rank := 0
	for i := range standings {
		if i == 0 || standings[i].TotalScore < standings[i-1].TotalScore {
			rank++
		}
		standings[i].Rank = rank
		standings[i].AverageScore = decimal.NewFromInt(int64(standings[i].TotalScore)).
			Div(decimal.NewFromInt(int64(standings[i].ParticipantCount)))
	}

	st = TeamStandings{
		EventName:     e.Name,
		TeamStandings: standings,
	}

	s.cacheSet(ctx, s.teamStandingsKey(req.EventID), st)

	return &st, nil
}

const (
	KindUser = "user"
	KindTeam = "team"
)

type GlobalEntry struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Score int    `json:"score"`
	Wins  int    `json:"wins"`
	Rank  int    `json:"rank"`
}

// GetGlobalLeaderboard merges the individual-user and team
// leaderboards into one ranked sequence. The merge is stable: equal
// scores keep their relative order, users before teams.
func (s *Service) GetGlobalLeaderboard(ctx context.Context) ([]GlobalEntry, error) {
	var entries []GlobalEntry
	if ok, err := s.cacheGet(ctx, s.globalKey(), &entries); err == nil && ok {
		return entries, nil
	}

	var (
		users []*domain.User
		teams []*domain.Team
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() (err error) {
		users, err = s.store.ListIndividualUsers(egCtx)
		return err
	})
	eg.Go(func() (err error) {
		teams, err = s.store.ListTeams(egCtx)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	entries = make([]GlobalEntry, 0, len(users)+len(teams))
	for _, u := range users {
		entries = append(entries, GlobalEntry{
			ID:    u.ID,
			Name:  u.Username,
			Kind:  KindUser,
			Score: u.Score,
			Wins:  u.Wins,
		})
	}
	for _, t := range teams {
		entries = append(entries, GlobalEntry{
			ID:    t.ID,
			Name:  t.Name,
			Kind:  KindTeam,
			Score: t.Score,
			Wins:  t.Wins,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Score > entries[j].Score })
	for i := range entries {
		entries[i].Rank = i + 1
	}

	s.cacheSet(ctx, s.globalKey(), entries)

	return entries, nil
}

// GetUserLeaderboard ranks individually-participating users by
// cumulative score.
func (s *Service) GetUserLeaderboard(ctx context.Context) ([]GlobalEntry, error) {
	users, err := s.store.ListIndividualUsers(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]GlobalEntry, 0, len(users))
	for i, u := range users {
		entries = append(entries, GlobalEntry{
			ID:    u.ID,
			Name:  u.Username,
			Kind:  KindUser,
			Score: u.Score,
			Wins:  u.Wins,
			Rank:  i + 1,
		})
	}

	return entries, nil
}

// GetTeamLeaderboard ranks all teams by cumulative score.
func (s *Service) GetTeamLeaderboard(ctx context.Context) ([]GlobalEntry, error) {
	teams, err := s.store.ListTeams(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]GlobalEntry, 0, len(teams))
	for i, t := range teams {
		entries = append(entries, GlobalEntry{
			ID:    t.ID,
			Name:  t.Name,
			Kind:  KindTeam,
			Score: t.Score,
			Wins:  t.Wins,
			Rank:  i + 1,
		})
	}

	return entries, nil
}

type UserHistoryRequest struct {
	UserID string
}

type HistoryEntry struct {
	EventID    string           `json:"eventId"`
	EventName  string           `json:"eventName"`
	Type       domain.EventType `json:"type"`
	Date       time.Time        `json:"date"`
	Score      int              `json:"score"`
	PerfectRun bool             `json:"perfectRun"`
	Status     string           `json:"status"`
}

// GetUserHistory reports every event the user participated in, marked
// completed or registered by the participant's completion flag.
func (s *Service) GetUserHistory(ctx context.Context, req UserHistoryRequest) ([]HistoryEntry, error) {
	events, err := s.store.EventsByUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	history := make([]HistoryEntry, 0, len(events))
	for _, e := range events {
		p, ok := e.ParticipantByUser(req.UserID)
		if !ok {
			continue
		}

		status := "registered"
		if p.HasCompleted {
			status = "completed"
		}

		history = append(history, HistoryEntry{
			EventID:    e.ID,
			EventName:  e.Name,
			Type:       e.Type,
			Date:       e.StartDate,
			Score:      p.Score,
			PerfectRun: p.PerfectRun,
			Status:     status,
		})
	}

	return history, nil
}

func (s *Service) invalidate(ctx context.Context, eventID string) error {
	if s.redis == nil {
		return nil
	}

	keys := []string{s.globalKey(), s.eventKey(eventID), s.teamStandingsKey(eventID)}
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("standings: invalidate cache: %w", err)
	}

	return nil
}

func (s *Service) cacheGet(ctx context.Context, key string, out any) (bool, error) {
	if s.redis == nil {
		return false, nil
	}

	b, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}

	if err := json.Unmarshal(b, out); err != nil {
		return false, err
	}

	return true, nil
}

// cacheSet is best effort: a failed write only costs a recompute.
func (s *Service) cacheSet(ctx context.Context, key string, v any) {
	if s.redis == nil {
		return
	}

	b, err := json.Marshal(v)
	if err != nil {
		return
	}

	_ = s.redis.Set(ctx, key, b, s.ttl).Err()
}

func (s *Service) globalKey() string {
	return fmt.Sprintf("%s:leaderboard:global", s.prefix)
}

func (s *Service) eventKey(eventID string) string {
	return fmt.Sprintf("%s:leaderboard:event:%s", s.prefix, eventID)
}

func (s *Service) teamStandingsKey(eventID string) string {
	return fmt.Sprintf("%s:standings:event:%s", s.prefix, eventID)
}
