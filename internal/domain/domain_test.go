package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/FaresAhmed23/tournament/internal/domain"
)

func TestEvent_Status(t *testing.T) {
	start := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)
	e := &domain.Event{StartDate: start, EndDate: end}

	tests := map[string]struct {
		now  time.Time
		want domain.EventStatus
	}{
		"before the start":  {now: start.Add(-time.Minute), want: domain.StatusUpcoming},
		"exactly at start":  {now: start, want: domain.StatusActive},
		"inside the window": {now: start.Add(time.Hour), want: domain.StatusActive},
		"exactly at end":    {now: end, want: domain.StatusActive},
		"after the end":     {now: end.Add(time.Minute), want: domain.StatusCompleted},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Status(tt.now))
			assert.Equal(t, tt.want == domain.StatusActive, e.InWindow(tt.now))
		})
	}
}

func TestEvent_SeatsForTeam(t *testing.T) {
	tests := map[string]struct {
		teamSize    int
		memberCount int
		want        int
	}{
		"the event's team size wins":            {teamSize: 4, memberCount: 7, want: 4},
		"fall back to the roster size":          {teamSize: 0, memberCount: 3, want: 3},
		"fall back to the default when unknown": {teamSize: 0, memberCount: 0, want: domain.DefaultTeamSize},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			e := &domain.Event{TeamSize: tt.teamSize}
			assert.Equal(t, tt.want, e.SeatsForTeam(tt.memberCount))
		})
	}
}

func TestEvent_RosterSeats(t *testing.T) {
	e := &domain.Event{
		TeamSize: 3,
		Participants: []domain.Participant{
			{UserID: "u1", RegistrationType: domain.RegistrationIndividual},
			{TeamID: "t1", RegistrationType: domain.RegistrationTeam},
			{UserID: "u2", RegistrationType: domain.RegistrationIndividual},
		},
	}

	assert.Equal(t, 5, e.RosterSeats())
}
