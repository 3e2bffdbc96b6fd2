// Package registration applies capacity-constrained enrollment of
// individuals and teams into offline events.
package registration

import (
	"context"
	"time"

	"github.com/FaresAhmed23/tournament/internal/domain"
	"github.com/FaresAhmed23/tournament/internal/errors"
	"github.com/FaresAhmed23/tournament/internal/eventbus"
	"github.com/FaresAhmed23/tournament/internal/store"
	"github.com/FaresAhmed23/tournament/internal/telemetry"
)

type Config struct {
	Store    store.Store
	EventBus *eventbus.Bus
	// Now is overridable for tests. Defaults to time.Now.
	Now func() time.Time
}

type Service struct {
	store store.Store
	eb    *eventbus.Bus
	now   func() time.Time
}

func NewService(c Config) *Service {
	if c.Now == nil {
		c.Now = time.Now
	}

	return &Service{
		store: c.Store,
		eb:    c.EventBus,
		now:   c.Now,
	}
}

type RegisterOfflineRequest struct {
	EventID string
	// UserID is the authenticated requester performing the
	// registration; for team registrations, the captain.
	UserID string
	Kind   domain.RegistrationType
	TeamID string
}

type RegisterOfflineResponse struct {
	CurrentParticipants int
	MaxParticipants     int
}

// RegisterOffline enrolls the requester (or their team) into an
// offline event. An individual consumes one seat, a team consumes the
// event's team size. The whole operation is one atomic unit of work:
// a registration either books its seats and joins the roster, or
// leaves the event untouched.
func (s *Service) RegisterOffline(ctx context.Context, req RegisterOfflineRequest) (*RegisterOfflineResponse, error) {
	if req.Kind != domain.RegistrationIndividual && req.Kind != domain.RegistrationTeam {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("unknown registration kind: %s", req.Kind))
	}
	if req.Kind == domain.RegistrationTeam && req.TeamID == "" {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("team registration requires a team id"))
	}

	var (
		resp  RegisterOfflineResponse
		seats int
	)

	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		e, err := tx.GetEvent(ctx, req.EventID)
		if err != nil {
			return err
		}

		if e.Type != domain.EventOffline {
			return errors.New(errors.CodeInvalidArgument,
				errors.WithMessagef("registration is for offline events only"))
		}

		// Registration cutoff is the event start.
		if s.now().After(e.StartDate) {
			return errors.New(errors.CodeFailedPrecondition,
				errors.WithMessagef("registration period has ended"))
		}

		if _, ok := e.ParticipantByUser(req.UserID); ok {
			return errors.New(errors.CodeAlreadyExists,
				errors.WithMessagef("already registered for this event"))
		}

		p := domain.Participant{
			RegisteredBy:     req.UserID,
			RegistrationType: req.Kind,
		}
		seats = 1

		if req.Kind == domain.RegistrationTeam {
			team, err := tx.GetTeam(ctx, req.TeamID)
			if err != nil {
				return err
			}
			if e.HasTeam(team.ID) {
				return errors.New(errors.CodeAlreadyExists,
					errors.WithMessagef("team is already registered for this event"))
			}
			seats = e.SeatsForTeam(team.MemberCount())
			p.TeamID = team.ID
		} else {
			p.UserID = req.UserID
		}

		if e.CurrentParticipants+seats > e.MaxParticipants {
			return errors.New(errors.CodeFailedPrecondition,
				errors.WithMessagef("not enough spots available: requested=%d, free=%d",
					seats, e.MaxParticipants-e.CurrentParticipants))
		}

		e.Participants = append(e.Participants, p)
		e.CurrentParticipants += seats

		if err := tx.SaveEvent(ctx, e); err != nil {
			return err
		}

		resp = RegisterOfflineResponse{
			CurrentParticipants: e.CurrentParticipants,
			MaxParticipants:     e.MaxParticipants,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	telemetry.Registrations.Inc()
	if s.eb != nil {
		s.eb.Publish(ctx, domain.EventRosterChanged{
			EventID: req.EventID,
			Seats:   seats,
		})
	}

	return &resp, nil
}
