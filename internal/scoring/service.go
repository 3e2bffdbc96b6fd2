// Package scoring grades answer submissions for online events and
// propagates score and win deltas to the submitting user and their
// team, as one atomic unit of work.
package scoring

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

type ParticipateRequest struct {
	EventID string
	UserID  string
}

// ParticipateResponse carries the event's questions with the answer
// key stripped. The correct answer is never revealed pre-submission.
type ParticipateResponse struct {
	EventID     string
	Name        string
	Type        domain.EventType
	Description string
	StartDate   time.Time
	EndDate     time.Time
	Questions   []domain.Question
}

// Participate ensures a participant record exists for the requester in
// an online event and returns the sanitized question list. Calling it
// again before submitting is a no-op on the roster.
func (s *Service) Participate(ctx context.Context, req ParticipateRequest) (*ParticipateResponse, error) {
	var resp *ParticipateResponse

	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		e, err := tx.GetEvent(ctx, req.EventID)
		if err != nil {
			return err
		}

		if e.Type != domain.EventOnline {
			return errors.New(errors.CodeInvalidArgument,
				errors.WithMessagef("participation is for online events only"))
		}

		if !e.InWindow(s.now()) {
			return errors.New(errors.CodeFailedPrecondition,
				errors.WithMessagef("event is not active"))
		}

		p, ok := e.ParticipantByUser(req.UserID)
		if ok && p.HasCompleted {
			return errors.New(errors.CodeFailedPrecondition,
				errors.WithMessagef("you have already completed this event"))
		}

		if !ok {
			e.Participants = append(e.Participants, domain.Participant{
				UserID:           req.UserID,
				RegisteredBy:     req.UserID,
				RegistrationType: domain.RegistrationIndividual,
			})
			if err := tx.SaveEvent(ctx, e); err != nil {
				return err
			}
		}

		resp = &ParticipateResponse{
			EventID:     e.ID,
			Name:        e.Name,
			Type:        e.Type,
			Description: e.Description,
			StartDate:   e.StartDate,
			EndDate:     e.EndDate,
			Questions:   e.SanitizedQuestions(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return resp, nil
}

type Answer struct {
	QuestionID string
	Answer     string
}

type SubmitRequest struct {
	EventID string
	UserID  string
	Answers []Answer
}

type SubmitResponse struct {
	Score          int
	CorrectAnswers []string
	PerfectRun     bool
	TeamUpdated    bool
}

// Submit grades a batch of answers against the event's answer key and
// updates the participant's record, the user's aggregate, and (for
// team players) the team's aggregate. All three writes commit together
// or not at all; a failure at any step leaves no partial score.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*SubmitResponse, error) {
	if len(req.Answers) == 0 {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("invalid answers format"))
	}
	for _, a := range req.Answers {
		if a.QuestionID == "" || a.Answer == "" {
			return nil, errors.New(errors.CodeInvalidArgument,
				errors.WithMessagef("invalid answers format"))
		}
	}

	var (
		resp   *SubmitResponse
		teamID string
	)

	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		e, err := tx.GetEvent(ctx, req.EventID)
		if err != nil {
			return err
		}

		p, ok := e.ParticipantByUser(req.UserID)
		if !ok {
			return errors.New(errors.CodeNotFound,
				errors.WithMessagef("participant not found"))
		}

		if p.HasCompleted {
			return errors.New(errors.CodeFailedPrecondition,
				errors.WithMessagef("you have already completed this event"))
		}

		now := s.now()
		if !e.InWindow(now) {
			return errors.New(errors.CodeFailedPrecondition,
				errors.WithMessagef("event is not active for submissions"))
		}

		totalScore := 0
		var correctAnswers []string
		correct := make(map[string]bool)

		for _, a := range req.Answers {
			q, ok := e.QuestionByID(a.QuestionID)
			if !ok {
				return errors.New(errors.CodeNotFound,
					errors.WithMessagef("question not found: id=%s", a.QuestionID))
			}

			isCorrect := q.Answer == a.Answer
			if isCorrect {
				totalScore += q.Points
				correctAnswers = append(correctAnswers, q.ID)
				correct[q.ID] = true
			}

			p.Answers = append(p.Answers, domain.AnswerRecord{
				QuestionID:  q.ID,
				Answer:      a.Answer,
				IsCorrect:   isCorrect,
				SubmittedAt: now,
			})
		}

		// A perfect run requires a correct answer to every question
		// defined on the event, not just every submitted one.
		perfectRun := len(correct) == len(e.Questions)

		p.Score = totalScore
		p.PerfectRun = perfectRun
		p.HasCompleted = true

		u, err := tx.GetUser(ctx, req.UserID)
		if err != nil {
			return err
		}
		u.Score += totalScore
		if perfectRun {
			u.Wins++
		}

		teamUpdated := false
		if u.ParticipationType == domain.ParticipationTeam && u.TeamID != "" {
			team, err := tx.GetTeam(ctx, u.TeamID)
			if err != nil {
				return err
			}

			team.Score += totalScore
			if perfectRun {
				team.Wins++
			}
			team.UpsertEventResult(domain.EventResult{
				EventID:          e.ID,
				Score:            totalScore,
				ParticipantCount: team.MemberCount(),
				CompletedAt:      now,
			})

			if err := tx.SaveTeam(ctx, team); err != nil {
				return err
			}
			teamUpdated = true
			teamID = team.ID
		}

		if err := tx.SaveEvent(ctx, e); err != nil {
			return err
		}
		if err := tx.SaveUser(ctx, u); err != nil {
			return err
		}

		resp = &SubmitResponse{
			Score:          totalScore,
			CorrectAnswers: correctAnswers,
			PerfectRun:     perfectRun,
			TeamUpdated:    teamUpdated,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	telemetry.Submissions.Inc()
	if resp.PerfectRun {
		telemetry.PerfectRuns.Inc()
	}

	if s.eb != nil {
		s.eb.Publish(ctx, domain.EventScoreSubmitted{
			EventID:    req.EventID,
			UserID:     req.UserID,
			TeamID:     teamID,
			Score:      resp.Score,
			PerfectRun: resp.PerfectRun,
		})
	}

	return resp, nil
}
