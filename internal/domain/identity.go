package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

type ParticipationType string

const (
	ParticipationIndividual ParticipationType = "individual"
	ParticipationTeam       ParticipationType = "team"
)

type User struct {
	ID                string            `json:"id"`
	Username          string            `json:"username"`
	Email             string            `json:"email"`
	PasswordHash      string            `json:"-"`
	Role              Role              `json:"role"`
	ParticipationType ParticipationType `json:"participationType"`
	TeamID            string            `json:"teamId,omitempty"`
	IsCaptain         bool              `json:"isCaptain"`
	Score             int               `json:"score"`
	Wins              int               `json:"wins"`
	CreatedAt         time.Time         `json:"createdAt"`

	Version int64 `json:"-"`
}

// FormattedRole is a display label derived on read, never persisted.
func (u *User) FormattedRole() string {
	if u.Role == RoleAdmin {
		return "Administrator"
	}

	return "Player"
}

func (u *User) FormattedParticipationType() string {
	if u.ParticipationType == ParticipationTeam {
		return "Team Player"
	}

	return "Individual Player"
}

func (u *User) FormattedPosition() string {
	if u.ParticipationType != ParticipationTeam {
		return ""
	}
	if u.IsCaptain {
		return "Team Captain"
	}

	return "Team Member"
}

type TeamMember struct {
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	UserID string `json:"user,omitempty"`
}

// EventResult is the team's snapshot of one event participation,
// upserted on every submission. At most one entry per event.
type EventResult struct {
	EventID          string    `json:"event"`
	Score            int       `json:"score"`
	ParticipantCount int       `json:"participantCount"`
	CompletedAt      time.Time `json:"completedAt"`
}

type Team struct {
	ID                 string        `json:"id"`
	Name               string        `json:"name"`
	CaptainID          string        `json:"captain"`
	Members            []TeamMember  `json:"members"`
	Score              int           `json:"score"`
	Wins               int           `json:"wins"`
	EventsParticipated []EventResult `json:"eventsParticipated"`
	CreatedAt          time.Time     `json:"createdAt"`

	Version int64 `json:"-"`
}

func (t *Team) MemberCount() int {
	return len(t.Members)
}

// AverageEventScore is the mean score across participated events.
func (t *Team) AverageEventScore() decimal.Decimal {
	if len(t.EventsParticipated) == 0 {
		return decimal.Zero
	}

	total := decimal.Zero
	for _, r := range t.EventsParticipated {
		total = total.Add(decimal.NewFromInt(int64(r.Score)))
	}

	return total.Div(decimal.NewFromInt(int64(len(t.EventsParticipated))))
}

// HasMember reports whether the user is on the roster, by id or email.
func (t *Team) HasMember(userID, email string) bool {
	for _, m := range t.Members {
		if (m.UserID != "" && m.UserID == userID) || (m.Email != "" && m.Email == email) {
			return true
		}
	}

	return false
}

// EnsureCaptainMember keeps the captain on the member list, as the
// first entry. The captain is always implicitly a member.
func (t *Team) EnsureCaptainMember(captain *User) {
	if t.HasMember(captain.ID, captain.Email) {
		return
	}

	t.Members = append([]TeamMember{{
		Name:   captain.Username,
		Email:  captain.Email,
		UserID: captain.ID,
	}}, t.Members...)
}

// UpsertEventResult replaces the snapshot for the event, or appends it.
func (t *Team) UpsertEventResult(r EventResult) {
	for i := range t.EventsParticipated {
		if t.EventsParticipated[i].EventID == r.EventID {
			t.EventsParticipated[i] = r
			return
		}
	}

	t.EventsParticipated = append(t.EventsParticipated, r)
}
