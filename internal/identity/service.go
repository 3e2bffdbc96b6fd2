// Package identity manages user and team records: registration,
// credential checks, team creation and membership.
package identity

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FaresAhmed23/tournament/internal/auth"
	"github.com/FaresAhmed23/tournament/internal/domain"
	"github.com/FaresAhmed23/tournament/internal/errors"
	"github.com/FaresAhmed23/tournament/internal/store"
)

var emailRe = regexp.MustCompile(`(?i)^[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}$`)

type Config struct {
	Store store.Store
	// Now is overridable for tests. Defaults to time.Now.
	Now func() time.Time
}

type Service struct {
	store store.Store
	now   func() time.Time
}

func NewService(c Config) *Service {
	if c.Now == nil {
		c.Now = time.Now
	}

	return &Service{
		store: c.Store,
		now:   c.Now,
	}
}

type MemberInput struct {
	Name  string
	Email string
}

type RegisterRequest struct {
	Username          string
	Email             string
	Password          string
	ParticipationType domain.ParticipationType
	// TeamName and TeamMembers apply to team registrations only. The
	// registering user becomes the team captain.
	TeamName    string
	TeamMembers []MemberInput
}

// Register creates a user and, for team participants, their team, as
// one atomic unit of work.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*domain.User, error) {
	if req.Username == "" || req.Email == "" || req.Password == "" || req.ParticipationType == "" {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("all required fields must be provided"))
	}
	if !emailRe.MatchString(req.Email) {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("invalid email format"))
	}
	if len(req.Username) < 3 {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("username must be at least 3 characters long"))
	}
	if len(req.Password) < 6 {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("password must be at least 6 characters long"))
	}
	if req.ParticipationType != domain.ParticipationIndividual && req.ParticipationType != domain.ParticipationTeam {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("unknown participation type: %s", req.ParticipationType))
	}

	if req.ParticipationType == domain.ParticipationTeam {
		if req.TeamName == "" {
			return nil, errors.New(errors.CodeInvalidArgument,
				errors.WithMessagef("team name is required for team registration"))
		}
		for _, m := range req.TeamMembers {
			if m.Name == "" || m.Email == "" {
				return nil, errors.New(errors.CodeInvalidArgument,
					errors.WithMessagef("all team members must have both name and email"))
			}
			if !emailRe.MatchString(m.Email) {
				return nil, errors.New(errors.CodeInvalidArgument,
					errors.WithMessagef("invalid email format for team member: %s", m.Name))
			}
		}
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	userID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate user ID: %w", err)
	}

	u := &domain.User{
		ID:                userID.String(),
		Username:          req.Username,
		Email:             req.Email,
		PasswordHash:      hash,
		Role:              domain.RoleUser,
		ParticipationType: req.ParticipationType,
		IsCaptain:         req.ParticipationType == domain.ParticipationTeam,
		CreatedAt:         s.now(),
	}

	err = s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.SaveUser(ctx, u); err != nil {
			return err
		}

		if req.ParticipationType != domain.ParticipationTeam {
			return nil
		}

		teamID, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate team ID: %w", err)
		}

		t := &domain.Team{
			ID:        teamID.String(),
			Name:      req.TeamName,
			CaptainID: u.ID,
			CreatedAt: s.now(),
		}
		for _, m := range req.TeamMembers {
			// The captain is added separately, never twice.
			if m.Email == req.Email {
				continue
			}
			t.Members = append(t.Members, domain.TeamMember{Name: m.Name, Email: m.Email})
		}
		t.EnsureCaptainMember(u)

		if err := tx.SaveTeam(ctx, t); err != nil {
			return err
		}

		u.TeamID = t.ID
		return tx.SaveUser(ctx, u)
	})
	if err != nil {
		return nil, err
	}

	return u, nil
}

type LoginRequest struct {
	Email    string
	Password string
}

// Login verifies the credentials and returns the user. Missing user
// and wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*domain.User, error) {
	u, err := s.store.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, errors.CodeNotFound) {
			return nil, errors.New(errors.CodeUnauthenticated,
				errors.WithMessagef("invalid credentials"))
		}
		return nil, err
	}

	if !auth.CheckPassword(u.PasswordHash, req.Password) {
		return nil, errors.New(errors.CodeUnauthenticated,
			errors.WithMessagef("invalid credentials"))
	}

	return u, nil
}

func (s *Service) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.store.GetUser(ctx, id)
}

type CreateTeamRequest struct {
	Name      string
	CaptainID string
}

// CreateTeam creates a team captained by the requester and marks the
// requester a team participant.
func (s *Service) CreateTeam(ctx context.Context, req CreateTeamRequest) (*domain.Team, error) {
	if req.Name == "" {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("team name is required"))
	}

	teamID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate team ID: %w", err)
	}

	var created *domain.Team

	err = s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		captain, err := tx.GetUser(ctx, req.CaptainID)
		if err != nil {
			return err
		}

		t := &domain.Team{
			ID:        teamID.String(),
			Name:      req.Name,
			CaptainID: captain.ID,
			CreatedAt: s.now(),
		}
		t.EnsureCaptainMember(captain)

		if err := tx.SaveTeam(ctx, t); err != nil {
			return err
		}

		captain.TeamID = t.ID
		captain.IsCaptain = true
		captain.ParticipationType = domain.ParticipationTeam
		if err := tx.SaveUser(ctx, captain); err != nil {
			return err
		}

		created = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

type AddMemberRequest struct {
	TeamID      string
	RequesterID string
	MemberID    string
}

// AddMember puts a user on the team roster. Only the captain may do
// this; the member's own record gains the team back-reference.
func (s *Service) AddMember(ctx context.Context, req AddMemberRequest) (*domain.Team, error) {
	var updated *domain.Team

	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		t, err := tx.GetTeam(ctx, req.TeamID)
		if err != nil {
			return err
		}

		if t.CaptainID != req.RequesterID {
			return errors.New(errors.CodePermissionDenied,
				errors.WithMessagef("only the team captain can add members"))
		}

		member, err := tx.GetUser(ctx, req.MemberID)
		if err != nil {
			return err
		}

		if !t.HasMember(member.ID, member.Email) {
			t.Members = append(t.Members, domain.TeamMember{
				Name:   member.Username,
				Email:  member.Email,
				UserID: member.ID,
			})
			if err := tx.SaveTeam(ctx, t); err != nil {
				return err
			}

			member.TeamID = t.ID
			member.ParticipationType = domain.ParticipationTeam
			if err := tx.SaveUser(ctx, member); err != nil {
				return err
			}
		}

		updated = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (s *Service) GetTeam(ctx context.Context, id string) (*domain.Team, error) {
	return s.store.GetTeam(ctx, id)
}

type TeamStats struct {
	TeamName           string               `json:"teamName"`
	TotalScore         int                  `json:"totalScore"`
	TotalWins          int                  `json:"totalWins"`
	AverageScore       decimal.Decimal      `json:"averageScore"`
	MemberCount        int                  `json:"memberCount"`
	EventsParticipated []domain.EventResult `json:"eventsParticipated"`
}

// GetTeamStats reports a team's cumulative record. Averages and counts
// are derived on read, never persisted.
func (s *Service) GetTeamStats(ctx context.Context, teamID string) (*TeamStats, error) {
	t, err := s.store.GetTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}

	return &TeamStats{
		TeamName:           t.Name,
		TotalScore:         t.Score,
		TotalWins:          t.Wins,
		AverageScore:       t.AverageEventScore(),
		MemberCount:        t.MemberCount(),
		EventsParticipated: t.EventsParticipated,
	}, nil
}
