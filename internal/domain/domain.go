package domain

import (
	"time"
)

type EventType string

const (
	EventOnline  EventType = "online"
	EventOffline EventType = "offline"
)

type EventStatus string

const (
	StatusUpcoming  EventStatus = "upcoming"
	StatusActive    EventStatus = "active"
	StatusCompleted EventStatus = "completed"
)

type RegistrationType string

const (
	RegistrationIndividual RegistrationType = "individual"
	RegistrationTeam       RegistrationType = "team"
)

const (
	// DefaultMaxParticipants is applied to online events, which have no
	// meaningful capacity ceiling.
	DefaultMaxParticipants = 99

	// DefaultTeamSize is the number of seats a team registration consumes
	// when the event does not pin its own team size.
	DefaultTeamSize = 5

	// DefaultQuestionPoints is the fixed score of a question created
	// through the standard event creation path.
	DefaultQuestionPoints = 10
)

type Question struct {
	ID      string   `json:"id"`
	Text    string   `json:"question"`
	Options []string `json:"options"`
	Answer  string   `json:"answer,omitempty"`
	Points  int      `json:"points"`
}

// Sanitized returns a copy of the question with the answer stripped.
func (q Question) Sanitized() Question {
	q.Answer = ""
	return q
}

type AnswerRecord struct {
	QuestionID  string    `json:"question"`
	Answer      string    `json:"answer"`
	IsCorrect   bool      `json:"isCorrect"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Participant is an event-scoped record of one individual or team:
// its registration, progress and score. Exactly one of UserID / TeamID
// is set, matching RegistrationType.
type Participant struct {
	UserID           string           `json:"user,omitempty"`
	TeamID           string           `json:"team,omitempty"`
	RegisteredBy     string           `json:"registeredBy"`
	RegistrationType RegistrationType `json:"registrationType"`
	Score            int              `json:"score"`
	PerfectRun       bool             `json:"perfectRun"`
	HasCompleted     bool             `json:"hasCompleted"`
	Answers          []AnswerRecord   `json:"answers"`
}

// LastSubmittedAt is the instant of the participant's latest answer.
func (p *Participant) LastSubmittedAt() time.Time {
	if len(p.Answers) == 0 {
		return time.Time{}
	}

	return p.Answers[len(p.Answers)-1].SubmittedAt
}

// Event owns its questions and participant roster. It is an aggregate:
// loaded and saved as a whole, guarded by Version for compare-and-save.
type Event struct {
	ID                  string        `json:"id"`
	Name                string        `json:"name"`
	Type                EventType     `json:"type"`
	Description         string        `json:"description"`
	Location            string        `json:"location,omitempty"`
	StartDate           time.Time     `json:"startDate"`
	EndDate             time.Time     `json:"endDate"`
	Questions           []Question    `json:"questions"`
	MaxParticipants     int           `json:"maxParticipants"`
	CurrentParticipants int           `json:"currentParticipants"`
	TeamSize            int           `json:"teamSize"`
	Participants        []Participant `json:"participants"`
	CreatedAt           time.Time     `json:"createdAt"`

	// Version is the optimistic concurrency token managed by the store.
	Version int64 `json:"-"`
}

// Status is derived from the clock, never stored: upcoming before
// StartDate, completed after EndDate, active in between.
func (e *Event) Status(now time.Time) EventStatus {
	switch {
	case now.Before(e.StartDate):
		return StatusUpcoming
	case now.After(e.EndDate):
		return StatusCompleted
	default:
		return StatusActive
	}
}

// InWindow reports whether now falls inside [StartDate, EndDate].
func (e *Event) InWindow(now time.Time) bool {
	return !now.Before(e.StartDate) && !now.After(e.EndDate)
}

func (e *Event) QuestionByID(id string) (*Question, bool) {
	for i := range e.Questions {
		if e.Questions[i].ID == id {
			return &e.Questions[i], true
		}
	}

	return nil, false
}

// ParticipantByUser finds the individual registration of a user.
func (e *Event) ParticipantByUser(userID string) (*Participant, bool) {
	for i := range e.Participants {
		p := &e.Participants[i]
		if p.RegistrationType == RegistrationIndividual && p.UserID == userID {
			return p, true
		}
	}

	return nil, false
}

// HasTeam reports whether the team already holds a roster slot.
func (e *Event) HasTeam(teamID string) bool {
	for i := range e.Participants {
		if e.Participants[i].TeamID == teamID {
			return true
		}
	}

	return false
}

// SeatsForTeam is the number of seats one team registration consumes:
// the event's team size, falling back to the team's member count, then
// to the hard default.
func (e *Event) SeatsForTeam(memberCount int) int {
	if e.TeamSize > 0 {
		return e.TeamSize
	}
	if memberCount > 0 {
		return memberCount
	}

	return DefaultTeamSize
}

// RosterSeats recomputes seats consumed from the roster itself. Listing
// reports this derived figure rather than the stored counter.
func (e *Event) RosterSeats() int {
	total := 0
	for i := range e.Participants {
		if e.Participants[i].RegistrationType == RegistrationTeam {
			if e.TeamSize > 0 {
				total += e.TeamSize
			} else {
				total++
			}
			continue
		}
		total++
	}

	return total
}

// SanitizedQuestions returns the event's questions with answers stripped.
func (e *Event) SanitizedQuestions() []Question {
	qs := make([]Question, 0, len(e.Questions))
	for _, q := range e.Questions {
		qs = append(qs, q.Sanitized())
	}

	return qs
}
