// Package event manages the event lifecycle: creation with full
// validation, admin updates, deletion, and read access with the answer
// key stripped for non-admin callers.
package event

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/FaresAhmed23/tournament/internal/domain"
	"github.com/FaresAhmed23/tournament/internal/errors"
	"github.com/FaresAhmed23/tournament/internal/store"
)

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

type QuestionInput struct {
	Text    string
	Options []string
	Answer  string
}

type CreateEventRequest struct {
	Name            string
	Type            domain.EventType
	Description     string
	Location        string
	StartDate       time.Time
	EndDate         time.Time
	Questions       []QuestionInput
	MaxParticipants int
	TeamSize        int
}

// CreateEvent validates and persists a new event. Online events carry
// questions with a fixed per-question score; offline events carry a
// location and a capacity ceiling.
func (s *Service) CreateEvent(ctx context.Context, req CreateEventRequest) (*domain.Event, error) {
	if req.Name == "" || req.Type == "" || req.Description == "" || req.StartDate.IsZero() || req.EndDate.IsZero() {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("missing required fields"))
	}

	if req.Type != domain.EventOnline && req.Type != domain.EventOffline {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("unknown event type: %s", req.Type))
	}

	if !req.StartDate.Before(req.EndDate) {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("end date must be after start date"))
	}

	if req.StartDate.Before(s.now()) {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("start date cannot be in the past"))
	}

	e := &domain.Event{
		Name:            req.Name,
		Type:            req.Type,
		Description:     req.Description,
		Location:        req.Location,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		MaxParticipants: req.MaxParticipants,
		TeamSize:        req.TeamSize,
		CreatedAt:       s.now(),
	}
	if e.TeamSize == 0 {
		e.TeamSize = domain.DefaultTeamSize
	}
	if e.TeamSize <= 0 {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("team size must be greater than 0"))
	}

	switch req.Type {
	case domain.EventOnline:
		qs, err := buildQuestions(req.Questions)
		if err != nil {
			return nil, err
		}
		e.Questions = qs
		if e.MaxParticipants <= 0 {
			e.MaxParticipants = domain.DefaultMaxParticipants
		}

	case domain.EventOffline:
		if req.Location == "" {
			return nil, errors.New(errors.CodeInvalidArgument,
				errors.WithMessagef("offline events require a location"))
		}
		if req.MaxParticipants <= 0 {
			return nil, errors.New(errors.CodeInvalidArgument,
				errors.WithMessagef("offline events require a valid maximum number of participants"))
		}
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate event ID: %w", err)
	}
	e.ID = id.String()

	if err := s.store.CreateEvent(ctx, e); err != nil {
		return nil, err
	}

	return e, nil
}

func buildQuestions(inputs []QuestionInput) ([]domain.Question, error) {
	if len(inputs) == 0 {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("online events require questions"))
	}

	qs := make([]domain.Question, 0, len(inputs))
	for _, in := range inputs {
		if in.Text == "" || in.Answer == "" || len(in.Options) < 2 {
			return nil, errors.New(errors.CodeInvalidArgument,
				errors.WithMessagef("each question must have question text, an answer, and at least two options"))
		}

		seen := make(map[string]bool, len(in.Options))
		answerListed := false
		for _, opt := range in.Options {
			if seen[opt] {
				return nil, errors.New(errors.CodeInvalidArgument,
					errors.WithMessagef("question options must be distinct"))
			}
			seen[opt] = true
			if opt == in.Answer {
				answerListed = true
			}
		}
		if !answerListed {
			return nil, errors.New(errors.CodeInvalidArgument,
				errors.WithMessagef("answer must be one of the options provided"))
		}

		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("generate question ID: %w", err)
		}

		qs = append(qs, domain.Question{
			ID:      id.String(),
			Text:    in.Text,
			Options: in.Options,
			Answer:  in.Answer,
			Points:  domain.DefaultQuestionPoints,
		})
	}

	return qs, nil
}

type UpdateEventRequest struct {
	EventID         string
	Name            *string
	Description     *string
	Location        *string
	StartDate       *time.Time
	EndDate         *time.Time
	MaxParticipants *int
	TeamSize        *int
}

func (s *Service) UpdateEvent(ctx context.Context, req UpdateEventRequest) (*domain.Event, error) {
	var updated *domain.Event

	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		e, err := tx.GetEvent(ctx, req.EventID)
		if err != nil {
			return err
		}

		if req.Name != nil {
			e.Name = *req.Name
		}
		if req.Description != nil {
			e.Description = *req.Description
		}
		if req.Location != nil {
			e.Location = *req.Location
		}
		if req.StartDate != nil {
			e.StartDate = *req.StartDate
		}
		if req.EndDate != nil {
			e.EndDate = *req.EndDate
		}
		if req.MaxParticipants != nil {
			e.MaxParticipants = *req.MaxParticipants
		}
		if req.TeamSize != nil {
			e.TeamSize = *req.TeamSize
		}

		if !e.StartDate.Before(e.EndDate) {
			return errors.New(errors.CodeInvalidArgument,
				errors.WithMessagef("end date must be after start date"))
		}
		if e.TeamSize <= 0 {
			return errors.New(errors.CodeInvalidArgument,
				errors.WithMessagef("team size must be greater than 0"))
		}

		if err := tx.SaveEvent(ctx, e); err != nil {
			return err
		}
		updated = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

type DeleteEventRequest struct {
	EventID string
}

// DeleteEvent removes the event and, with it, its embedded questions
// and participant roster.
func (s *Service) DeleteEvent(ctx context.Context, req DeleteEventRequest) error {
	return s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.DeleteEvent(ctx, req.EventID)
	})
}

type ListEventsRequest struct {
	Type   string
	Status string
	Search string
	Role   domain.Role
}

// ListEvents filters events and reports seats consumed as recomputed
// from each roster. Answer keys are stripped for non-admin callers.
func (s *Service) ListEvents(ctx context.Context, req ListEventsRequest) ([]*domain.Event, error) {
	events, err := s.store.ListEvents(ctx, store.EventFilter{
		Type:   domain.EventType(req.Type),
		Status: domain.EventStatus(req.Status),
		Search: req.Search,
	})
	if err != nil {
		return nil, err
	}

	for _, e := range events {
		e.CurrentParticipants = e.RosterSeats()
		if req.Role != domain.RoleAdmin {
			e.Questions = e.SanitizedQuestions()
		}
	}

	return events, nil
}

type GetEventRequest struct {
	EventID string
	Role    domain.Role
}

func (s *Service) GetEvent(ctx context.Context, req GetEventRequest) (*domain.Event, error) {
	e, err := s.store.GetEvent(ctx, req.EventID)
	if err != nil {
		return nil, err
	}

	if req.Role != domain.RoleAdmin {
		e.Questions = e.SanitizedQuestions()
	}

	return e, nil
}
